package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"derbent-workflow/backend/pkg/models"
)

// CreateWorkflow inserts a workflow; names are unique per tenant.
func (s *Store) CreateWorkflow(ctx context.Context, wf *models.Workflow) error {
	wf.Name = strings.TrimSpace(wf.Name)
	if wf.ID == "" {
		wf.ID = uuid.New().String()
	}
	wf.CreatedAt = now()
	_, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO workflows (id, tenant_id, name, description, active, created_at) VALUES (?, ?, ?, ?, ?, ?)`),
		wf.ID, wf.TenantID, wf.Name, wf.Description, wf.Active, s.ts(wf.CreatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("workflow %q: %w", wf.Name, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert workflow: %w", err)
	}
	return nil
}

func scanWorkflow(row rowScanner) (*models.Workflow, error) {
	var wf models.Workflow
	if err := row.Scan(&wf.ID, &wf.TenantID, &wf.Name, &wf.Description, &wf.Active, timeColumn{&wf.CreatedAt}); err != nil {
		return nil, err
	}
	return &wf, nil
}

// GetWorkflow returns a workflow of the tenant.
func (s *Store) GetWorkflow(ctx context.Context, tenantID, id string) (*models.Workflow, error) {
	row := s.db.QueryRowContext(ctx,
		s.q(`SELECT id, tenant_id, name, description, active, created_at FROM workflows WHERE tenant_id = ? AND id = ?`),
		tenantID, id)
	wf, err := scanWorkflow(row)
	if err != nil {
		return nil, handleNotFound(err)
	}
	return wf, nil
}

// ListWorkflows returns the tenant's workflows by name.
func (s *Store) ListWorkflows(ctx context.Context, tenantID string) ([]*models.Workflow, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT id, tenant_id, name, description, active, created_at FROM workflows WHERE tenant_id = ? ORDER BY name`),
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()

	var workflows []*models.Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, wf)
	}
	return workflows, rows.Err()
}

// CreateItemType inserts an item type. A referenced workflow must belong to
// the same tenant.
func (s *Store) CreateItemType(ctx context.Context, it *models.ItemType) error {
	it.Name = strings.TrimSpace(it.Name)
	if it.ID == "" {
		it.ID = uuid.New().String()
	}
	it.CreatedAt = now()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if it.WorkflowID != "" {
			if err := s.checkWorkflowScope(ctx, tx, it.TenantID, it.WorkflowID); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx,
			s.q(`INSERT INTO item_types (id, tenant_id, name, kind, workflow_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`),
			it.ID, it.TenantID, it.Name, it.Kind, nullIfEmpty(it.WorkflowID), s.ts(it.CreatedAt),
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("item type %q: %w", it.Name, ErrDuplicate)
		}
		if err != nil {
			return fmt.Errorf("insert item type: %w", err)
		}
		return nil
	})
}

func scanItemType(row rowScanner) (*models.ItemType, error) {
	var it models.ItemType
	var workflowID sql.NullString
	if err := row.Scan(&it.ID, &it.TenantID, &it.Name, &it.Kind, &workflowID, timeColumn{&it.CreatedAt}); err != nil {
		return nil, err
	}
	it.WorkflowID = workflowID.String
	return &it, nil
}

// GetItemType returns an item type of the tenant.
func (s *Store) GetItemType(ctx context.Context, tenantID, id string) (*models.ItemType, error) {
	row := s.db.QueryRowContext(ctx,
		s.q(`SELECT id, tenant_id, name, kind, workflow_id, created_at FROM item_types WHERE tenant_id = ? AND id = ?`),
		tenantID, id)
	it, err := scanItemType(row)
	if err != nil {
		return nil, handleNotFound(err)
	}
	return it, nil
}

// ListItemTypes returns the tenant's item types by kind, then name.
func (s *Store) ListItemTypes(ctx context.Context, tenantID string) ([]*models.ItemType, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT id, tenant_id, name, kind, workflow_id, created_at FROM item_types WHERE tenant_id = ? ORDER BY kind, name`),
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("list item types: %w", err)
	}
	defer rows.Close()

	var types []*models.ItemType
	for rows.Next() {
		it, err := scanItemType(rows)
		if err != nil {
			return nil, err
		}
		types = append(types, it)
	}
	return types, rows.Err()
}

// SetItemTypeWorkflow points an item type at a workflow of the same tenant.
func (s *Store) SetItemTypeWorkflow(ctx context.Context, tenantID, itemTypeID, workflowID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if workflowID != "" {
			if err := s.checkWorkflowScope(ctx, tx, tenantID, workflowID); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx,
			s.q(`UPDATE item_types SET workflow_id = ? WHERE tenant_id = ? AND id = ?`),
			nullIfEmpty(workflowID), tenantID, itemTypeID)
		if err != nil {
			return fmt.Errorf("update item type workflow: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("item type %s: %w", itemTypeID, ErrNotFound)
		}
		return nil
	})
}

// checkWorkflowScope fails unless the workflow exists and belongs to tenantID.
func (s *Store) checkWorkflowScope(ctx context.Context, tx *sql.Tx, tenantID, workflowID string) error {
	var owner string
	err := tx.QueryRowContext(ctx, s.q(`SELECT tenant_id FROM workflows WHERE id = ?`), workflowID).Scan(&owner)
	if err != nil {
		return fmt.Errorf("workflow %s: %w", workflowID, handleNotFound(err))
	}
	if owner != tenantID {
		return fmt.Errorf("workflow %s: %w", workflowID, models.ErrCrossTenant)
	}
	return nil
}
