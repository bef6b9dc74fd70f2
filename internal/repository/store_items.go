package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"derbent-workflow/backend/pkg/models"
)

// CreateItem inserts an item. Its type and status must belong to its tenant.
func (s *Store) CreateItem(ctx context.Context, item *models.Item) error {
	if item.StatusID == "" {
		return models.ErrNullStatus
	}
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	item.CreatedAt = now()
	item.UpdatedAt = item.CreatedAt
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.checkOwner(ctx, tx, "item_types", "item type", item.TenantID, item.TypeID); err != nil {
			return err
		}
		if err := s.checkOwner(ctx, tx, "statuses", "status", item.TenantID, item.StatusID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			s.q(`INSERT INTO items (id, tenant_id, kind, title, item_type_id, status_id, created_by, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			item.ID, item.TenantID, item.Kind, item.Title, item.TypeID, item.StatusID, item.CreatedBy,
			s.ts(item.CreatedAt), s.ts(item.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert item: %w", err)
		}
		return nil
	})
}

// GetItem returns an item of the tenant.
func (s *Store) GetItem(ctx context.Context, tenantID, id string) (*models.Item, error) {
	var it models.Item
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT id, tenant_id, kind, title, item_type_id, status_id, created_by, created_at, updated_at
		 FROM items WHERE tenant_id = ? AND id = ?`),
		tenantID, id,
	).Scan(&it.ID, &it.TenantID, &it.Kind, &it.Title, &it.TypeID, &it.StatusID, &it.CreatedBy,
		timeColumn{&it.CreatedAt}, timeColumn{&it.UpdatedAt})
	if err != nil {
		return nil, handleNotFound(err)
	}
	return &it, nil
}

// UpdateItemStatus persists an authorized status change.
func (s *Store) UpdateItemStatus(ctx context.Context, tenantID, id, statusID string, at time.Time) error {
	if statusID == "" {
		return models.ErrNullStatus
	}
	return s.updateItem(ctx,
		`UPDATE items SET status_id = ?, updated_at = ? WHERE tenant_id = ? AND id = ?`,
		id, statusID, s.ts(at), tenantID, id)
}

// UpdateItemType persists a new item type for an item.
func (s *Store) UpdateItemType(ctx context.Context, tenantID, id, itemTypeID string) error {
	return s.updateItem(ctx,
		`UPDATE items SET item_type_id = ?, updated_at = ? WHERE tenant_id = ? AND id = ?`,
		id, itemTypeID, s.ts(now()), tenantID, id)
}

func (s *Store) updateItem(ctx context.Context, query, id string, args ...any) error {
	res, err := s.db.ExecContext(ctx, s.q(query), args...)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	return nil
}
