package services

import (
	"context"

	"derbent-workflow/backend/internal/repository"
	"derbent-workflow/backend/pkg/models"
)

// AccessService manages roles and their assignment within a tenant.
type AccessService struct {
	store  repository.RoleStore
	logger Logger
}

// NewAccessService creates a new AccessService.
func NewAccessService(store repository.RoleStore, logger Logger) *AccessService {
	return &AccessService{store: store, logger: logger}
}

// CreateRole adds a role to the tenant.
func (s *AccessService) CreateRole(ctx context.Context, actor models.Actor, name string) (*models.Role, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	if err := required("name", name); err != nil {
		return nil, err
	}
	role := &models.Role{TenantID: actor.TenantID, Name: name}
	if err := s.store.CreateRole(ctx, role); err != nil {
		return nil, err
	}
	s.logger.Info("role created", "tenant", actor.TenantID, "role", role.ID, "name", role.Name)
	return role, nil
}

func (s *AccessService) ListRoles(ctx context.Context, actor models.Actor) ([]*models.Role, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	return s.store.ListRoles(ctx, actor.TenantID)
}

// AssignRole grants roleID to userID. Granting a held role is a no-op.
func (s *AccessService) AssignRole(ctx context.Context, actor models.Actor, userID, roleID string) error {
	if err := checkActor(actor); err != nil {
		return err
	}
	if err := required("user id", userID); err != nil {
		return err
	}
	if err := required("role id", roleID); err != nil {
		return err
	}
	err := s.store.AssignRole(ctx, models.RoleAssignment{TenantID: actor.TenantID, UserID: userID, RoleID: roleID})
	if err != nil {
		return err
	}
	s.logger.Info("role assigned", "tenant", actor.TenantID, "user", userID, "role", roleID)
	return nil
}

// MyRoles returns the role IDs the actor holds, sorted.
func (s *AccessService) MyRoles(ctx context.Context, actor models.Actor) ([]string, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	roles, err := s.store.RolesOf(ctx, actor.UserID, actor.TenantID)
	if err != nil {
		return nil, err
	}
	return roles.IDs(), nil
}
