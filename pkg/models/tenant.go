package models

import (
	"time"
)

// Tenant is the isolation boundary for every status, role, workflow and item.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Domain    string    `json:"domain"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Actor is the caller of a request: the tenant being acted on and the user
// acting. It is passed explicitly into services instead of being read from
// session state.
type Actor struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
}
