package models

import (
	"time"
)

// Workflow is a named graph of authorized status transitions for a tenant.
type Workflow struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"` // Multi-tenancy isolation
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Transition is one edge of a workflow graph. An empty RoleID is the
// wildcard: any caller may use the edge. Edges are never updated in place.
type Transition struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id"`
	WorkflowID   string    `json:"workflow_id"`
	FromStatusID string    `json:"from_status_id"`
	ToStatusID   string    `json:"to_status_id"`
	RoleID       string    `json:"role_id,omitempty"`
	Initial      bool      `json:"initial"` // ToStatusID is the workflow's entry status
	CreatedAt    time.Time `json:"created_at"`
}

// Wildcard reports whether any role may use the edge.
func (t *Transition) Wildcard() bool {
	return t.RoleID == ""
}

// ItemType classifies items and selects the workflow that governs them.
// An empty WorkflowID means no workflow is configured.
type ItemType struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	Name       string    `json:"name"`
	Kind       string    `json:"kind"`
	WorkflowID string    `json:"workflow_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
