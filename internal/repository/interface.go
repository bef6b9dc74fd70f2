package repository

import (
	"context"
	"time"

	"derbent-workflow/backend/internal/workflow"
	"derbent-workflow/backend/pkg/models"
)

// TenantStore resolves and provisions tenants.
type TenantStore interface {
	GetTenantByDomain(ctx context.Context, domain string) (*models.Tenant, error)
	CreateTenant(ctx context.Context, tenant *models.Tenant) error
}

// StatusStore persists the status vocabulary of each tenant.
type StatusStore interface {
	// CreateStatus returns ErrDuplicate when the name is taken in the tenant.
	CreateStatus(ctx context.Context, status *models.Status) error
	GetStatus(ctx context.Context, tenantID, id string) (*models.Status, error)
	// ListStatuses orders by sort order, then name.
	ListStatuses(ctx context.Context, tenantID string) ([]*models.Status, error)
	// DeleteStatus returns ErrProtected for non-deletable statuses and
	// ErrInUse while items or transitions reference the status.
	DeleteStatus(ctx context.Context, tenantID, id string) error
}

// RoleStore persists roles and their assignment to users.
type RoleStore interface {
	workflow.RoleResolver
	CreateRole(ctx context.Context, role *models.Role) error
	ListRoles(ctx context.Context, tenantID string) ([]*models.Role, error)
	// AssignRole is idempotent.
	AssignRole(ctx context.Context, assignment models.RoleAssignment) error
}

// WorkflowStore persists workflows and the item types pointing at them.
type WorkflowStore interface {
	CreateWorkflow(ctx context.Context, wf *models.Workflow) error
	GetWorkflow(ctx context.Context, tenantID, id string) (*models.Workflow, error)
	ListWorkflows(ctx context.Context, tenantID string) ([]*models.Workflow, error)

	CreateItemType(ctx context.Context, itemType *models.ItemType) error
	GetItemType(ctx context.Context, tenantID, id string) (*models.ItemType, error)
	ListItemTypes(ctx context.Context, tenantID string) ([]*models.ItemType, error)
	// SetItemTypeWorkflow points an item type at a workflow; an empty
	// workflowID clears it.
	SetItemTypeWorkflow(ctx context.Context, tenantID, itemTypeID, workflowID string) error
}

// TransitionStore persists workflow edges.
type TransitionStore interface {
	// AddTransition stores the edge unless an edge with the same workflow,
	// statuses and role exists, and returns the stored edge either way.
	// A conflicting initial flag fails with ErrInitialConflict.
	AddTransition(ctx context.Context, edge *models.Transition) (*models.Transition, error)
	// ListTransitions orders edges by their target status's sort order.
	ListTransitions(ctx context.Context, tenantID, workflowID string) ([]*models.Transition, error)
	// RemoveTransition deletes the edge matching all four fields and reports
	// whether one existed.
	RemoveTransition(ctx context.Context, tenantID, workflowID, fromStatusID, toStatusID, roleID string) (bool, error)
	FindTransitionsByFromStatus(ctx context.Context, tenantID, statusID string) ([]*models.Transition, error)
	FindTransitionsByToStatus(ctx context.Context, tenantID, statusID string) ([]*models.Transition, error)
	FindTransitionsByRole(ctx context.Context, tenantID, roleID string) ([]*models.Transition, error)
}

// ItemStore persists workflow-aware items.
type ItemStore interface {
	CreateItem(ctx context.Context, item *models.Item) error
	GetItem(ctx context.Context, tenantID, id string) (*models.Item, error)
	UpdateItemStatus(ctx context.Context, tenantID, id, statusID string, at time.Time) error
	UpdateItemType(ctx context.Context, tenantID, id, itemTypeID string) error
}

// Repository is the full persistence surface used by the server.
type Repository interface {
	TenantStore
	StatusStore
	RoleStore
	WorkflowStore
	TransitionStore
	ItemStore
	Ping(ctx context.Context) error
}

var (
	_ Repository     = (*Store)(nil)
	_ workflow.Graph = (*Store)(nil)
)
