package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"derbent-workflow/backend/pkg/models"
)

const transitionColumns = `id, tenant_id, workflow_id, from_status_id, to_status_id, role_id, is_initial, created_at`

// transitionOrder sorts the wildcard role ('') ahead of named roles.
const transitionOrder = ` ORDER BY from_status_id, to_status_id, role_id`

// targetOrderQuery lists a workflow's edges by the position of their target
// status, so the first edge leads to the earliest status.
const targetOrderQuery = `SELECT t.id, t.tenant_id, t.workflow_id, t.from_status_id, t.to_status_id, t.role_id,
       t.is_initial, t.created_at
  FROM transitions t
  JOIN statuses s ON s.id = t.to_status_id
 WHERE t.tenant_id = ? AND t.workflow_id = ?
 ORDER BY s.sort_order, s.name, t.id`

func scanTransition(row rowScanner) (*models.Transition, error) {
	var t models.Transition
	if err := row.Scan(&t.ID, &t.TenantID, &t.WorkflowID, &t.FromStatusID, &t.ToStatusID, &t.RoleID,
		&t.Initial, timeColumn{&t.CreatedAt}); err != nil {
		return nil, err
	}
	return &t, nil
}

// AddTransition stores edge unless the (workflow, from, to, role) tuple
// already exists, then returns the stored edge. The workflow, both statuses
// and the role must belong to edge.TenantID. Self-loops are rejected.
//
// The initial flag is fixed when the edge is first stored: re-adding it with
// the other flag value fails with ErrInitialConflict, as does flagging an
// edge whose target differs from the workflow's existing initial status.
func (s *Store) AddTransition(ctx context.Context, edge *models.Transition) (*models.Transition, error) {
	if edge.FromStatusID == edge.ToStatusID {
		return nil, ErrSelfLoop
	}
	var stored *models.Transition
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.checkWorkflowScope(ctx, tx, edge.TenantID, edge.WorkflowID); err != nil {
			return err
		}
		for _, statusID := range []string{edge.FromStatusID, edge.ToStatusID} {
			if err := s.checkOwner(ctx, tx, "statuses", "status", edge.TenantID, statusID); err != nil {
				return err
			}
		}
		if edge.RoleID != "" {
			if err := s.checkOwner(ctx, tx, "roles", "role", edge.TenantID, edge.RoleID); err != nil {
				return err
			}
		}

		if edge.Initial {
			if err := s.checkInitialTarget(ctx, tx, edge.WorkflowID, edge.ToStatusID); err != nil {
				return err
			}
		}

		_, err := tx.ExecContext(ctx,
			s.q(`INSERT INTO transitions (`+transitionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (workflow_id, from_status_id, to_status_id, role_id) DO NOTHING`),
			uuid.New().String(), edge.TenantID, edge.WorkflowID, edge.FromStatusID, edge.ToStatusID, edge.RoleID,
			edge.Initial, s.ts(now()),
		)
		if err != nil {
			return fmt.Errorf("insert transition: %w", err)
		}

		row := tx.QueryRowContext(ctx,
			s.q(`SELECT `+transitionColumns+` FROM transitions
			 WHERE workflow_id = ? AND from_status_id = ? AND to_status_id = ? AND role_id = ?`),
			edge.WorkflowID, edge.FromStatusID, edge.ToStatusID, edge.RoleID)
		stored, err = scanTransition(row)
		if err != nil {
			return fmt.Errorf("read back transition: %w", err)
		}
		if stored.Initial != edge.Initial {
			return fmt.Errorf("transition %s already stored with initial=%t: %w", stored.ID, stored.Initial, ErrInitialConflict)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// ListTransitions returns every edge of a workflow ordered by the target
// status's sort order, then its name, then edge id.
func (s *Store) ListTransitions(ctx context.Context, tenantID, workflowID string) ([]*models.Transition, error) {
	rows, err := s.db.QueryContext(ctx, s.q(targetOrderQuery), tenantID, workflowID)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	return collectTransitions(rows)
}

// RemoveTransition deletes the edge matching all four fields.
func (s *Store) RemoveTransition(ctx context.Context, tenantID, workflowID, fromStatusID, toStatusID, roleID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		s.q(`DELETE FROM transitions
		 WHERE tenant_id = ? AND workflow_id = ? AND from_status_id = ? AND to_status_id = ? AND role_id = ?`),
		tenantID, workflowID, fromStatusID, toStatusID, roleID)
	if err != nil {
		return false, fmt.Errorf("delete transition: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// FindTransitionsByFromStatus returns the edges leaving a status, across workflows.
func (s *Store) FindTransitionsByFromStatus(ctx context.Context, tenantID, statusID string) ([]*models.Transition, error) {
	return s.queryTransitions(ctx, `tenant_id = ? AND from_status_id = ?`, tenantID, statusID)
}

// FindTransitionsByToStatus returns the edges entering a status, across workflows.
func (s *Store) FindTransitionsByToStatus(ctx context.Context, tenantID, statusID string) ([]*models.Transition, error) {
	return s.queryTransitions(ctx, `tenant_id = ? AND to_status_id = ?`, tenantID, statusID)
}

// FindTransitionsByRole returns the edges restricted to a role.
func (s *Store) FindTransitionsByRole(ctx context.Context, tenantID, roleID string) ([]*models.Transition, error) {
	return s.queryTransitions(ctx, `tenant_id = ? AND role_id = ?`, tenantID, roleID)
}

func (s *Store) queryTransitions(ctx context.Context, where string, args ...any) ([]*models.Transition, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT `+transitionColumns+` FROM transitions WHERE `+where+transitionOrder), args...)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	return collectTransitions(rows)
}

func collectTransitions(rows *sql.Rows) ([]*models.Transition, error) {
	defer rows.Close()

	var edges []*models.Transition
	for rows.Next() {
		t, err := scanTransition(rows)
		if err != nil {
			return nil, err
		}
		edges = append(edges, t)
	}
	return edges, rows.Err()
}

// checkInitialTarget fails when another status is already the workflow's
// initial status.
func (s *Store) checkInitialTarget(ctx context.Context, tx *sql.Tx, workflowID, toStatusID string) error {
	var existing string
	err := tx.QueryRowContext(ctx,
		s.q(`SELECT to_status_id FROM transitions
		 WHERE workflow_id = ? AND is_initial = ? AND to_status_id <> ? LIMIT 1`),
		workflowID, true, toStatusID).Scan(&existing)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("check initial status: %w", err)
	}
	return fmt.Errorf("workflow %s already starts at status %s: %w", workflowID, existing, ErrInitialConflict)
}

// checkOwner fails unless the row exists in table and belongs to tenantID.
func (s *Store) checkOwner(ctx context.Context, tx *sql.Tx, table, label, tenantID, id string) error {
	var owner string
	err := tx.QueryRowContext(ctx, s.q(`SELECT tenant_id FROM `+table+` WHERE id = ?`), id).Scan(&owner)
	if err != nil {
		return fmt.Errorf("%s %s: %w", label, id, handleNotFound(err))
	}
	if owner != tenantID {
		return fmt.Errorf("%s %s: %w", label, id, models.ErrCrossTenant)
	}
	return nil
}
