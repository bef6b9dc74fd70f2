package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"derbent-workflow/backend/internal/workflow"
	"derbent-workflow/backend/pkg/models"
)

// CreateRole inserts a role; names are unique per tenant.
func (s *Store) CreateRole(ctx context.Context, role *models.Role) error {
	role.Name = strings.TrimSpace(role.Name)
	if role.ID == "" {
		role.ID = uuid.New().String()
	}
	role.CreatedAt = now()
	_, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO roles (id, tenant_id, name, created_at) VALUES (?, ?, ?, ?)`),
		role.ID, role.TenantID, role.Name, s.ts(role.CreatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("role %q: %w", role.Name, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert role: %w", err)
	}
	return nil
}

// ListRoles returns the tenant's roles by name.
func (s *Store) ListRoles(ctx context.Context, tenantID string) ([]*models.Role, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT id, tenant_id, name, created_at FROM roles WHERE tenant_id = ? ORDER BY name`), tenantID)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	var roles []*models.Role
	for rows.Next() {
		var r models.Role
		if err := rows.Scan(&r.ID, &r.TenantID, &r.Name, timeColumn{&r.CreatedAt}); err != nil {
			return nil, err
		}
		roles = append(roles, &r)
	}
	return roles, rows.Err()
}

// AssignRole grants a role of the tenant to a user.
func (s *Store) AssignRole(ctx context.Context, a models.RoleAssignment) error {
	var owner string
	err := s.db.QueryRowContext(ctx, s.q(`SELECT tenant_id FROM roles WHERE id = ?`), a.RoleID).Scan(&owner)
	if err != nil {
		return fmt.Errorf("role %s: %w", a.RoleID, handleNotFound(err))
	}
	if owner != a.TenantID {
		return fmt.Errorf("role %s: %w", a.RoleID, models.ErrCrossTenant)
	}
	_, err = s.db.ExecContext(ctx,
		s.q(`INSERT INTO role_assignments (tenant_id, user_id, role_id) VALUES (?, ?, ?)
		 ON CONFLICT (tenant_id, user_id, role_id) DO NOTHING`),
		a.TenantID, strings.ToLower(strings.TrimSpace(a.UserID)), a.RoleID,
	)
	if err != nil {
		return fmt.Errorf("insert role assignment: %w", err)
	}
	return nil
}

// RolesOf returns the roles held by a user in a tenant scope.
func (s *Store) RolesOf(ctx context.Context, userID, scope string) (workflow.RoleSet, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT role_id FROM role_assignments WHERE tenant_id = ? AND user_id = ?`),
		scope, strings.ToLower(strings.TrimSpace(userID)))
	if err != nil {
		return nil, fmt.Errorf("resolve roles: %w", err)
	}
	defer rows.Close()

	roles := workflow.NewRoleSet()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		roles[id] = struct{}{}
	}
	return roles, rows.Err()
}
