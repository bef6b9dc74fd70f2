package seed

import (
	"context"
	"fmt"

	"derbent-workflow/backend/internal/services"
	"derbent-workflow/backend/pkg/models"
)

// maxForwardSteps bounds the forward chain of a sample workflow.
const maxForwardSteps = 3

// SampleWorkflow creates an active workflow named name over statuses, which
// must already be in order, and returns it with the number of edges added.
//
// The graph it builds:
//   - forward: statuses[i] -> statuses[i+1] for the first maxForwardSteps
//     steps, restricted to roles[0]; the first edge is marked initial
//   - backward: statuses[i+1] -> statuses[i] for every forward step but the
//     first, restricted to roles[1] (roles[0] when there is only one role)
//   - restart: last -> first for every role
//   - cancel: each intermediate status -> last for every role
//
// Edges produced twice (a cancel edge that repeats a forward edge) are added
// once. With fewer than two statuses the workflow is created without edges.
func SampleWorkflow(ctx context.Context, wfs *services.WorkflowService, actor models.Actor, name string, statuses []*models.Status, roles []*models.Role) (*models.Workflow, int, error) {
	if len(roles) == 0 {
		return nil, 0, fmt.Errorf("%w: sample workflow needs at least one role", services.ErrInvalidInput)
	}
	for _, st := range statuses {
		if st.TenantID != actor.TenantID {
			return nil, 0, fmt.Errorf("%w: status %s", models.ErrCrossTenant, st.ID)
		}
	}

	wf, err := wfs.CreateWorkflow(ctx, actor, services.WorkflowInput{
		Name:        name,
		Description: fmt.Sprintf("Defines status transitions for %s based on user roles", name),
	})
	if err != nil {
		return nil, 0, err
	}
	n := len(statuses)
	if n < 2 {
		return wf, 0, nil
	}

	added := 0
	seen := make(map[[3]string]bool)
	add := func(from, to *models.Status, role *models.Role, initial bool) error {
		key := [3]string{from.ID, to.ID, role.ID}
		if seen[key] {
			return nil
		}
		seen[key] = true
		_, err := wfs.AddStatusTransition(ctx, actor, services.TransitionInput{
			WorkflowID:   wf.ID,
			FromStatusID: from.ID,
			ToStatusID:   to.ID,
			RoleID:       role.ID,
			Initial:      initial,
		})
		if err != nil {
			return fmt.Errorf("%s -> %s: %w", from.Name, to.Name, err)
		}
		added++
		return nil
	}

	backward := roles[0]
	if len(roles) > 1 {
		backward = roles[1]
	}
	steps := min(n-1, maxForwardSteps)
	for i := 0; i < steps; i++ {
		if err := add(statuses[i], statuses[i+1], roles[0], i == 0); err != nil {
			return wf, added, err
		}
		if i > 0 {
			if err := add(statuses[i+1], statuses[i], backward, false); err != nil {
				return wf, added, err
			}
		}
	}

	first, last := statuses[0], statuses[n-1]
	for _, role := range roles {
		if err := add(last, first, role, false); err != nil {
			return wf, added, err
		}
	}
	for i := 1; i < n-1; i++ {
		for _, role := range roles {
			if err := add(statuses[i], last, role, false); err != nil {
				return wf, added, err
			}
		}
	}
	return wf, added, nil
}
