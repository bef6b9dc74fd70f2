package services

import (
	"context"
	"errors"
	"fmt"

	"derbent-workflow/backend/internal/repository"
	"derbent-workflow/backend/internal/workflow"
	"derbent-workflow/backend/pkg/models"
)

// ItemInput carries the fields of a new item. StatusID is optional; when
// empty the item starts in its workflow's initial status.
type ItemInput struct {
	Kind       string `json:"kind,omitempty"`
	Title      string `json:"title"`
	ItemTypeID string `json:"item_type_id"`
	StatusID   string `json:"status_id,omitempty"`
}

// ItemService creates workflow-aware items and routes their status changes
// through the engine.
type ItemService struct {
	repo   repository.Repository
	engine *workflow.Engine
	logger Logger
}

// NewItemService creates a new ItemService.
func NewItemService(repo repository.Repository, engine *workflow.Engine, logger Logger) *ItemService {
	return &ItemService{repo: repo, engine: engine, logger: logger}
}

// CreateItem stores a new item. Its first status is assigned directly and
// is not checked against the transition graph.
func (s *ItemService) CreateItem(ctx context.Context, actor models.Actor, in ItemInput) (*models.Item, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	if err := required("title", in.Title); err != nil {
		return nil, err
	}
	if err := required("item type id", in.ItemTypeID); err != nil {
		return nil, err
	}
	itemType, err := s.repo.GetItemType(ctx, actor.TenantID, in.ItemTypeID)
	if err != nil {
		return nil, fmt.Errorf("item type %s: %w", in.ItemTypeID, err)
	}

	item := &models.Item{TenantID: actor.TenantID, Kind: in.Kind, Title: in.Title, CreatedBy: actor.UserID}
	if item.Kind == "" {
		item.Kind = itemType.Kind
	}
	if err := item.SetItemType(*itemType); err != nil {
		return nil, err
	}

	statusID := in.StatusID
	if statusID == "" {
		if statusID, err = s.initialStatus(ctx, item); err != nil {
			return nil, err
		}
	}
	status, err := s.repo.GetStatus(ctx, actor.TenantID, statusID)
	if err != nil {
		return nil, fmt.Errorf("status %s: %w", statusID, err)
	}
	if err := item.InitializeStatus(*status); err != nil {
		return nil, err
	}

	if err := s.repo.CreateItem(ctx, item); err != nil {
		return nil, err
	}
	s.logger.Info("item created", "tenant", actor.TenantID, "item", item.ID, "status", item.StatusID)
	return item, nil
}

func (s *ItemService) initialStatus(ctx context.Context, item *models.Item) (string, error) {
	wf, err := s.engine.WorkflowOf(ctx, item)
	if err != nil {
		return "", err
	}
	if wf == nil {
		return "", fmt.Errorf("no initial status for item type %s: %w", item.TypeID, workflow.ErrUnconfigured)
	}
	edges, err := s.repo.ListTransitions(ctx, item.TenantID, wf.ID)
	if err != nil {
		return "", err
	}
	initial := workflow.InitialStatus(edges)
	if initial == "" {
		return "", fmt.Errorf("workflow %s has no transitions: %w", wf.ID, workflow.ErrUnconfigured)
	}
	return initial, nil
}

func (s *ItemService) GetItem(ctx context.Context, actor models.Actor, id string) (*models.Item, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	return s.repo.GetItem(ctx, actor.TenantID, id)
}

// ChangeStatus moves an item to target if the actor's roles allow it and
// persists the change. On denial the decision is returned together with a
// *workflow.DeniedError and nothing is written.
func (s *ItemService) ChangeStatus(ctx context.Context, actor models.Actor, itemID, target string) (*models.Item, workflow.Decision, error) {
	if err := checkActor(actor); err != nil {
		return nil, workflow.Decision{}, err
	}
	if target == "" {
		return nil, workflow.Decision{}, models.ErrNullStatus
	}
	item, err := s.repo.GetItem(ctx, actor.TenantID, itemID)
	if err != nil {
		return nil, workflow.Decision{}, fmt.Errorf("item %s: %w", itemID, err)
	}
	if _, err := s.repo.GetStatus(ctx, actor.TenantID, target); err != nil {
		return nil, workflow.Decision{}, fmt.Errorf("status %s: %w", target, err)
	}
	roles, err := s.repo.RolesOf(ctx, actor.UserID, actor.TenantID)
	if err != nil {
		return nil, workflow.Decision{}, err
	}

	from := item.StatusID
	d, err := s.engine.RequestStatusChange(ctx, item, target, roles)
	if err != nil {
		var denied *workflow.DeniedError
		if errors.As(err, &denied) {
			s.logger.Info("status change rejected", "tenant", actor.TenantID, "item", itemID,
				"user", actor.UserID, "reason", string(d.Reason))
		}
		return item, d, err
	}
	if err := s.repo.UpdateItemStatus(ctx, actor.TenantID, item.ID, item.StatusID, item.UpdatedAt); err != nil {
		return nil, d, err
	}
	s.logger.Info("status changed", "tenant", actor.TenantID, "item", item.ID,
		"user", actor.UserID, "from", from, "to", item.StatusID)
	return item, d, nil
}

// NextStatuses lists the statuses the actor may select for an item, its
// current status first.
func (s *ItemService) NextStatuses(ctx context.Context, actor models.Actor, itemID string) ([]string, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	item, err := s.repo.GetItem(ctx, actor.TenantID, itemID)
	if err != nil {
		return nil, fmt.Errorf("item %s: %w", itemID, err)
	}
	roles, err := s.repo.RolesOf(ctx, actor.UserID, actor.TenantID)
	if err != nil {
		return nil, err
	}
	return s.engine.NextStatuses(ctx, item, roles)
}

// SetItemType moves an item to another item type of the tenant. The
// current status is kept.
func (s *ItemService) SetItemType(ctx context.Context, actor models.Actor, itemID, itemTypeID string) (*models.Item, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	item, err := s.repo.GetItem(ctx, actor.TenantID, itemID)
	if err != nil {
		return nil, fmt.Errorf("item %s: %w", itemID, err)
	}
	itemType, err := s.repo.GetItemType(ctx, actor.TenantID, itemTypeID)
	if err != nil {
		return nil, fmt.Errorf("item type %s: %w", itemTypeID, err)
	}
	if err := item.SetItemType(*itemType); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateItemType(ctx, actor.TenantID, item.ID, item.TypeID); err != nil {
		return nil, err
	}
	return item, nil
}
