package services

import (
	"context"
	"fmt"

	"derbent-workflow/backend/internal/repository"
	"derbent-workflow/backend/internal/workflow"
	"derbent-workflow/backend/pkg/models"
)

// GraphStore is the persistence WorkflowService needs.
type GraphStore interface {
	repository.WorkflowStore
	repository.TransitionStore
}

// WorkflowInput carries the fields of a new workflow. Active defaults to true.
type WorkflowInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Active      *bool  `json:"active,omitempty"`
}

// TransitionInput identifies one edge. An empty RoleID allows any caller.
type TransitionInput struct {
	WorkflowID   string `json:"workflow_id"`
	FromStatusID string `json:"from_status_id"`
	ToStatusID   string `json:"to_status_id"`
	RoleID       string `json:"role_id,omitempty"`
	Initial      bool   `json:"initial,omitempty"`
}

// ItemTypeInput carries the fields of a new item type.
type ItemTypeInput struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	WorkflowID string `json:"workflow_id,omitempty"`
}

// WorkflowService manages workflows, their transition graphs and the item
// types bound to them.
type WorkflowService struct {
	store  GraphStore
	logger Logger
}

// NewWorkflowService creates a new WorkflowService.
func NewWorkflowService(store GraphStore, logger Logger) *WorkflowService {
	return &WorkflowService{store: store, logger: logger}
}

func (s *WorkflowService) CreateWorkflow(ctx context.Context, actor models.Actor, in WorkflowInput) (*models.Workflow, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	if err := required("name", in.Name); err != nil {
		return nil, err
	}
	wf := &models.Workflow{TenantID: actor.TenantID, Name: in.Name, Description: in.Description, Active: true}
	if in.Active != nil {
		wf.Active = *in.Active
	}
	if err := s.store.CreateWorkflow(ctx, wf); err != nil {
		return nil, err
	}
	s.logger.Info("workflow created", "tenant", actor.TenantID, "workflow", wf.ID, "name", wf.Name)
	return wf, nil
}

func (s *WorkflowService) GetWorkflow(ctx context.Context, actor models.Actor, id string) (*models.Workflow, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	return s.store.GetWorkflow(ctx, actor.TenantID, id)
}

func (s *WorkflowService) ListWorkflows(ctx context.Context, actor models.Actor) ([]*models.Workflow, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	return s.store.ListWorkflows(ctx, actor.TenantID)
}

// AddStatusTransition adds an edge to a workflow and returns the stored
// edge. Adding an existing edge returns it unchanged.
func (s *WorkflowService) AddStatusTransition(ctx context.Context, actor models.Actor, in TransitionInput) (*models.Transition, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	for _, f := range []struct{ name, value string }{
		{"workflow id", in.WorkflowID},
		{"from status id", in.FromStatusID},
		{"to status id", in.ToStatusID},
	} {
		if err := required(f.name, f.value); err != nil {
			return nil, err
		}
	}
	edge, err := s.store.AddTransition(ctx, &models.Transition{
		TenantID:     actor.TenantID,
		WorkflowID:   in.WorkflowID,
		FromStatusID: in.FromStatusID,
		ToStatusID:   in.ToStatusID,
		RoleID:       in.RoleID,
		Initial:      in.Initial,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("transition added", "tenant", actor.TenantID, "workflow", edge.WorkflowID,
		"from", edge.FromStatusID, "to", edge.ToStatusID, "role", edge.RoleID)
	return edge, nil
}

// FindByWorkflow lists a workflow's edges by from status, to status and
// role, wildcard first.
func (s *WorkflowService) FindByWorkflow(ctx context.Context, actor models.Actor, workflowID string) ([]*models.Transition, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	if _, err := s.store.GetWorkflow(ctx, actor.TenantID, workflowID); err != nil {
		return nil, fmt.Errorf("workflow %s: %w", workflowID, err)
	}
	edges, err := s.store.ListTransitions(ctx, actor.TenantID, workflowID)
	if err != nil {
		return nil, err
	}
	workflow.SortTransitions(edges)
	return edges, nil
}

// DeleteByWorkflowAndStatuses removes one exact edge and reports whether it
// existed. Removing a missing edge is not an error.
func (s *WorkflowService) DeleteByWorkflowAndStatuses(ctx context.Context, actor models.Actor, workflowID, fromStatusID, toStatusID, roleID string) (bool, error) {
	if err := checkActor(actor); err != nil {
		return false, err
	}
	for _, f := range []struct{ name, value string }{
		{"workflow id", workflowID},
		{"from status id", fromStatusID},
		{"to status id", toStatusID},
	} {
		if err := required(f.name, f.value); err != nil {
			return false, err
		}
	}
	removed, err := s.store.RemoveTransition(ctx, actor.TenantID, workflowID, fromStatusID, toStatusID, roleID)
	if err != nil {
		return false, err
	}
	if removed {
		s.logger.Info("transition removed", "tenant", actor.TenantID, "workflow", workflowID,
			"from", fromStatusID, "to", toStatusID, "role", roleID)
	}
	return removed, nil
}

func (s *WorkflowService) FindByFromStatus(ctx context.Context, actor models.Actor, statusID string) ([]*models.Transition, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	return s.store.FindTransitionsByFromStatus(ctx, actor.TenantID, statusID)
}

func (s *WorkflowService) FindByToStatus(ctx context.Context, actor models.Actor, statusID string) ([]*models.Transition, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	return s.store.FindTransitionsByToStatus(ctx, actor.TenantID, statusID)
}

func (s *WorkflowService) FindByRole(ctx context.Context, actor models.Actor, roleID string) ([]*models.Transition, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	return s.store.FindTransitionsByRole(ctx, actor.TenantID, roleID)
}

// InitialStatus returns the status new items of the workflow start in, or
// "" when the workflow has no edges.
func (s *WorkflowService) InitialStatus(ctx context.Context, actor models.Actor, workflowID string) (string, error) {
	if err := checkActor(actor); err != nil {
		return "", err
	}
	if _, err := s.store.GetWorkflow(ctx, actor.TenantID, workflowID); err != nil {
		return "", fmt.Errorf("workflow %s: %w", workflowID, err)
	}
	edges, err := s.store.ListTransitions(ctx, actor.TenantID, workflowID)
	if err != nil {
		return "", err
	}
	return workflow.InitialStatus(edges), nil
}

func (s *WorkflowService) CreateItemType(ctx context.Context, actor models.Actor, in ItemTypeInput) (*models.ItemType, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	if err := required("name", in.Name); err != nil {
		return nil, err
	}
	if err := required("kind", in.Kind); err != nil {
		return nil, err
	}
	it := &models.ItemType{TenantID: actor.TenantID, Name: in.Name, Kind: in.Kind, WorkflowID: in.WorkflowID}
	if err := s.store.CreateItemType(ctx, it); err != nil {
		return nil, err
	}
	s.logger.Info("item type created", "tenant", actor.TenantID, "item_type", it.ID, "workflow", it.WorkflowID)
	return it, nil
}

func (s *WorkflowService) ListItemTypes(ctx context.Context, actor models.Actor) ([]*models.ItemType, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	return s.store.ListItemTypes(ctx, actor.TenantID)
}

// BindItemType points an item type at a workflow; an empty workflowID
// leaves its items unconfigured.
func (s *WorkflowService) BindItemType(ctx context.Context, actor models.Actor, itemTypeID, workflowID string) (*models.ItemType, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	if err := s.store.SetItemTypeWorkflow(ctx, actor.TenantID, itemTypeID, workflowID); err != nil {
		return nil, err
	}
	s.logger.Info("item type bound", "tenant", actor.TenantID, "item_type", itemTypeID, "workflow", workflowID)
	return s.store.GetItemType(ctx, actor.TenantID, itemTypeID)
}
