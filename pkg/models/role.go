package models

import "time"

// Role is an opaque permission grouping. The workflow engine only compares
// role IDs.
type Role struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// RoleAssignment grants a role to a user within a tenant.
type RoleAssignment struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
	RoleID   string `json:"role_id"`
}
