package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"derbent-workflow/backend/pkg/models"
)

const statusColumns = `id, tenant_id, name, color, sort_order, non_deletable,
	is_cancelled, is_closed, is_completed, is_in_progress, is_paused, is_final, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStatus(row rowScanner) (*models.Status, error) {
	var st models.Status
	err := row.Scan(&st.ID, &st.TenantID, &st.Name, &st.Color, &st.SortOrder, &st.NonDeletable,
		&st.Flags.Cancelled, &st.Flags.Closed, &st.Flags.Completed, &st.Flags.InProgress,
		&st.Flags.Paused, &st.Flags.Final, timeColumn{&st.CreatedAt})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// CreateStatus inserts a status; names are unique per tenant.
func (s *Store) CreateStatus(ctx context.Context, status *models.Status) error {
	status.Name = strings.TrimSpace(status.Name)
	if status.ID == "" {
		status.ID = uuid.New().String()
	}
	status.CreatedAt = now()
	f := status.Flags
	_, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO statuses (`+statusColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		status.ID, status.TenantID, status.Name, status.Color, status.SortOrder, status.NonDeletable,
		f.Cancelled, f.Closed, f.Completed, f.InProgress, f.Paused, f.Final, s.ts(status.CreatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("status %q: %w", status.Name, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert status: %w", err)
	}
	return nil
}

// GetStatus returns a status of the tenant.
func (s *Store) GetStatus(ctx context.Context, tenantID, id string) (*models.Status, error) {
	row := s.db.QueryRowContext(ctx,
		s.q(`SELECT `+statusColumns+` FROM statuses WHERE tenant_id = ? AND id = ?`), tenantID, id)
	st, err := scanStatus(row)
	if err != nil {
		return nil, handleNotFound(err)
	}
	return st, nil
}

// ListStatuses returns the tenant's statuses by sort order, then name.
func (s *Store) ListStatuses(ctx context.Context, tenantID string) ([]*models.Status, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT `+statusColumns+` FROM statuses WHERE tenant_id = ? ORDER BY sort_order, name`), tenantID)
	if err != nil {
		return nil, fmt.Errorf("list statuses: %w", err)
	}
	defer rows.Close()

	var statuses []*models.Status
	for rows.Next() {
		st, err := scanStatus(rows)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, st)
	}
	return statuses, rows.Err()
}

// DeleteStatus removes a status unless it is protected or referenced.
func (s *Store) DeleteStatus(ctx context.Context, tenantID, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var nonDeletable bool
		err := tx.QueryRowContext(ctx,
			s.q(`SELECT non_deletable FROM statuses WHERE tenant_id = ? AND id = ?`), tenantID, id,
		).Scan(&nonDeletable)
		if err != nil {
			return handleNotFound(err)
		}
		if nonDeletable {
			return fmt.Errorf("status %s: %w", id, ErrProtected)
		}

		var refs int
		err = tx.QueryRowContext(ctx, s.q(`SELECT
			(SELECT COUNT(1) FROM items WHERE status_id = ?) +
			(SELECT COUNT(1) FROM transitions WHERE from_status_id = ? OR to_status_id = ?)`),
			id, id, id,
		).Scan(&refs)
		if err != nil {
			return fmt.Errorf("count status references: %w", err)
		}
		if refs > 0 {
			return fmt.Errorf("status %s has %d references: %w", id, refs, ErrInUse)
		}

		if _, err := tx.ExecContext(ctx,
			s.q(`DELETE FROM statuses WHERE tenant_id = ? AND id = ?`), tenantID, id); err != nil {
			return fmt.Errorf("delete status: %w", err)
		}
		return nil
	})
}
