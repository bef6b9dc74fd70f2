package services

import (
	"context"

	"derbent-workflow/backend/internal/repository"
	"derbent-workflow/backend/pkg/models"
)

// StatusInput carries the fields of a new status.
type StatusInput struct {
	Name         string             `json:"name"`
	Color        string             `json:"color,omitempty"`
	SortOrder    int                `json:"sort_order"`
	NonDeletable bool               `json:"non_deletable,omitempty"`
	Flags        models.StatusFlags `json:"flags"`
}

// StatusService manages the status vocabulary of the actor's tenant.
type StatusService struct {
	store  repository.StatusStore
	logger Logger
}

// NewStatusService creates a new StatusService.
func NewStatusService(store repository.StatusStore, logger Logger) *StatusService {
	return &StatusService{store: store, logger: logger}
}

// CreateStatus adds a status to the tenant.
func (s *StatusService) CreateStatus(ctx context.Context, actor models.Actor, in StatusInput) (*models.Status, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	if err := required("name", in.Name); err != nil {
		return nil, err
	}
	status := &models.Status{
		TenantID:     actor.TenantID,
		Name:         in.Name,
		Color:        in.Color,
		SortOrder:    in.SortOrder,
		NonDeletable: in.NonDeletable,
		Flags:        in.Flags,
	}
	if err := s.store.CreateStatus(ctx, status); err != nil {
		return nil, err
	}
	s.logger.Info("status created", "tenant", actor.TenantID, "status", status.ID, "name", status.Name)
	return status, nil
}

func (s *StatusService) GetStatus(ctx context.Context, actor models.Actor, id string) (*models.Status, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	return s.store.GetStatus(ctx, actor.TenantID, id)
}

// ListStatuses returns the tenant's statuses by sort order, then name.
func (s *StatusService) ListStatuses(ctx context.Context, actor models.Actor) ([]*models.Status, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	return s.store.ListStatuses(ctx, actor.TenantID)
}

// DeleteStatus removes a status that is neither protected nor referenced.
func (s *StatusService) DeleteStatus(ctx context.Context, actor models.Actor, id string) error {
	if err := checkActor(actor); err != nil {
		return err
	}
	if err := required("status id", id); err != nil {
		return err
	}
	if err := s.store.DeleteStatus(ctx, actor.TenantID, id); err != nil {
		return err
	}
	s.logger.Info("status deleted", "tenant", actor.TenantID, "status", id)
	return nil
}
