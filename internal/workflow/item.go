package workflow

import "derbent-workflow/backend/pkg/models"

// Item is the capability a domain item provides to take part in workflow
// evaluation. Orders, tickets, risks, budgets and the rest all implement
// it; the engine never looks past this interface.
type Item interface {
	TenantScope() string
	CurrentStatus() string
	ItemTypeID() string

	// SetItemType must reject a type from another tenant.
	SetItemType(t models.ItemType) error

	// InitializeStatus is the privileged first assignment made by the
	// creating collaborator. It bypasses the workflow graph.
	InitializeStatus(s models.Status) error

	// AssignStatus is called by the engine once a change is allowed.
	AssignStatus(statusID string)
}
