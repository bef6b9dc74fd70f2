package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"derbent-workflow/backend/pkg/models"
)

// GetTenantByDomain returns the tenant owning an e-mail domain.
func (s *Store) GetTenantByDomain(ctx context.Context, domain string) (*models.Tenant, error) {
	var t models.Tenant
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT id, name, domain, created_at, updated_at FROM tenants WHERE domain = ?`),
		strings.ToLower(strings.TrimSpace(domain)),
	).Scan(&t.ID, &t.Name, &t.Domain, timeColumn{&t.CreatedAt}, timeColumn{&t.UpdatedAt})
	if err != nil {
		return nil, handleNotFound(err)
	}
	return &t, nil
}

// CreateTenant inserts a tenant, assigning its ID and timestamps.
func (s *Store) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	if tenant.ID == "" {
		tenant.ID = uuid.New().String()
	}
	tenant.Domain = strings.ToLower(strings.TrimSpace(tenant.Domain))
	tenant.CreatedAt = now()
	tenant.UpdatedAt = tenant.CreatedAt
	_, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO tenants (id, name, domain, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`),
		tenant.ID, tenant.Name, tenant.Domain, s.ts(tenant.CreatedAt), s.ts(tenant.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("tenant %q: %w", tenant.Domain, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}
