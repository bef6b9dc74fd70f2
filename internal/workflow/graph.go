package workflow

import (
	"context"
	"sort"

	"derbent-workflow/backend/pkg/models"
)

// Graph is the read side of the configuration the engine needs. It is
// implemented by the repository.
type Graph interface {
	GetItemType(ctx context.Context, tenantID, id string) (*models.ItemType, error)
	GetWorkflow(ctx context.Context, tenantID, id string) (*models.Workflow, error)
	// ListTransitions returns a workflow's edges ordered by their target
	// status's sort order. InitialStatus and NextStatuses rely on it.
	ListTransitions(ctx context.Context, tenantID, workflowID string) ([]*models.Transition, error)
}

// SortTransitions orders edges for display by from status, to status and
// role. The wildcard role sorts first.
func SortTransitions(edges []*models.Transition) {
	sort.SliceStable(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.FromStatusID != b.FromStatusID {
			return a.FromStatusID < b.FromStatusID
		}
		if a.ToStatusID != b.ToStatusID {
			return a.ToStatusID < b.ToStatusID
		}
		return a.RoleID < b.RoleID
	})
}

// InitialStatus returns the entry status of a workflow: the target of the
// first edge flagged Initial, else the target of the first edge. edges must
// be in target order. It returns "" for an empty graph.
func InitialStatus(edges []*models.Transition) string {
	for _, e := range edges {
		if e.Initial {
			return e.ToStatusID
		}
	}
	if len(edges) == 0 {
		return ""
	}
	return edges[0].ToStatusID
}

// NextStatuses lists the statuses selectable from current: current itself
// first, followed by the distinct targets of edges leaving current that the
// roles permit, in the order of edges.
func NextStatuses(edges []*models.Transition, current string, roles RoleSet) []string {
	out := []string{current}
	seen := map[string]bool{current: true}
	for _, e := range edges {
		if e.FromStatusID != current || seen[e.ToStatusID] {
			continue
		}
		if !e.Wildcard() && !roles.Has(e.RoleID) {
			continue
		}
		seen[e.ToStatusID] = true
		out = append(out, e.ToStatusID)
	}
	return out
}
