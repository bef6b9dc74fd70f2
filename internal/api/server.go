// Package api contains the HTTP handlers for the workflow service
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"derbent-workflow/backend/internal/auth"
	"derbent-workflow/backend/internal/services"
	"derbent-workflow/backend/internal/workflow"
	"derbent-workflow/backend/pkg/models"
)

// Server holds the dependencies for the API server.
type Server struct {
	Statuses  *services.StatusService
	Access    *services.AccessService
	Workflows *services.WorkflowService
	Items     *services.ItemService
}

var _ ServerInterface = (*Server)(nil)

// AssignRoleRequest is the body of POST /roles/{roleId}/assignments.
type AssignRoleRequest struct {
	UserID string `json:"user_id"`
}

// CreateRoleRequest is the body of POST /roles.
type CreateRoleRequest struct {
	Name string `json:"name"`
}

// BindWorkflowRequest is the body of PUT /item-types/{itemTypeId}/workflow.
type BindWorkflowRequest struct {
	WorkflowID string `json:"workflow_id"`
}

// ChangeStatusRequest is the body of POST /items/{itemId}/status.
type ChangeStatusRequest struct {
	StatusID string `json:"status_id"`
}

// SetItemTypeRequest is the body of PUT /items/{itemId}/type.
type SetItemTypeRequest struct {
	ItemTypeID string `json:"item_type_id"`
}

// StatusChangeResponse reports an applied status change.
type StatusChangeResponse struct {
	Item     *models.Item      `json:"item"`
	Decision workflow.Decision `json:"decision"`
}

// RemoveTransitionResponse reports whether an edge was deleted.
type RemoveTransitionResponse struct {
	Removed bool `json:"removed"`
}

// InitialStatusResponse carries the entry status of a workflow.
type InitialStatusResponse struct {
	StatusID string `json:"status_id"`
}

func actor(c echo.Context) (models.Actor, error) {
	a, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return models.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "Tenant ID not found in context")
	}
	return a, nil
}

func bind(c echo.Context, dest any) error {
	if err := c.Bind(dest); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	return nil
}

// respond writes v as JSON, or returns err for the error handler.
func respond[T any](c echo.Context, status int, v T, err error) error {
	if err != nil {
		return err
	}
	return c.JSON(status, v)
}

func (s *Server) ListStatuses(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	statuses, err := s.Statuses.ListStatuses(c.Request().Context(), a)
	return respond(c, http.StatusOK, statuses, err)
}

func (s *Server) CreateStatus(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	var in services.StatusInput
	if err := bind(c, &in); err != nil {
		return err
	}
	status, err := s.Statuses.CreateStatus(c.Request().Context(), a, in)
	return respond(c, http.StatusCreated, status, err)
}

func (s *Server) GetStatus(c echo.Context, statusID string) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	status, err := s.Statuses.GetStatus(c.Request().Context(), a, statusID)
	return respond(c, http.StatusOK, status, err)
}

func (s *Server) DeleteStatus(c echo.Context, statusID string) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	if err := s.Statuses.DeleteStatus(c.Request().Context(), a, statusID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) ListRoles(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	roles, err := s.Access.ListRoles(c.Request().Context(), a)
	return respond(c, http.StatusOK, roles, err)
}

func (s *Server) CreateRole(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	var in CreateRoleRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	role, err := s.Access.CreateRole(c.Request().Context(), a, in.Name)
	return respond(c, http.StatusCreated, role, err)
}

func (s *Server) AssignRole(c echo.Context, roleID string) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	var in AssignRoleRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	if err := s.Access.AssignRole(c.Request().Context(), a, in.UserID, roleID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// MyRoles lists the role IDs held by the caller.
func (s *Server) MyRoles(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	roles, err := s.Access.MyRoles(c.Request().Context(), a)
	return respond(c, http.StatusOK, roles, err)
}

// ListWorkflows returns a list of all workflows
// (GET /api/v1/workflows)
func (s *Server) ListWorkflows(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	workflows, err := s.Workflows.ListWorkflows(c.Request().Context(), a)
	return respond(c, http.StatusOK, workflows, err)
}

// CreateWorkflow creates a workflow
// (POST /api/v1/workflows)
func (s *Server) CreateWorkflow(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	var in services.WorkflowInput
	if err := bind(c, &in); err != nil {
		return err
	}
	wf, err := s.Workflows.CreateWorkflow(c.Request().Context(), a, in)
	return respond(c, http.StatusCreated, wf, err)
}

func (s *Server) GetWorkflow(c echo.Context, workflowID string) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	wf, err := s.Workflows.GetWorkflow(c.Request().Context(), a, workflowID)
	return respond(c, http.StatusOK, wf, err)
}

func (s *Server) ListTransitions(c echo.Context, workflowID string) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	edges, err := s.Workflows.FindByWorkflow(c.Request().Context(), a, workflowID)
	return respond(c, http.StatusOK, edges, err)
}

// AddTransition is idempotent and answers 200 with the stored edge.
func (s *Server) AddTransition(c echo.Context, workflowID string) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	var in services.TransitionInput
	if err := bind(c, &in); err != nil {
		return err
	}
	in.WorkflowID = workflowID
	edge, err := s.Workflows.AddStatusTransition(c.Request().Context(), a, in)
	return respond(c, http.StatusOK, edge, err)
}

func (s *Server) RemoveTransition(c echo.Context, workflowID string, params RemoveTransitionParams) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	var role string
	if params.Role != nil {
		role = *params.Role
	}
	removed, err := s.Workflows.DeleteByWorkflowAndStatuses(c.Request().Context(), a, workflowID, params.From, params.To, role)
	return respond(c, http.StatusOK, RemoveTransitionResponse{Removed: removed}, err)
}

func (s *Server) GetInitialStatus(c echo.Context, workflowID string) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	statusID, err := s.Workflows.InitialStatus(c.Request().Context(), a, workflowID)
	return respond(c, http.StatusOK, InitialStatusResponse{StatusID: statusID}, err)
}

func (s *Server) FindTransitions(c echo.Context, params FindTransitionsParams) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	switch {
	case params.FromStatus != nil && params.ToStatus == nil && params.Role == nil:
		edges, err := s.Workflows.FindByFromStatus(ctx, a, *params.FromStatus)
		return respond(c, http.StatusOK, edges, err)
	case params.ToStatus != nil && params.FromStatus == nil && params.Role == nil:
		edges, err := s.Workflows.FindByToStatus(ctx, a, *params.ToStatus)
		return respond(c, http.StatusOK, edges, err)
	case params.Role != nil && params.FromStatus == nil && params.ToStatus == nil:
		edges, err := s.Workflows.FindByRole(ctx, a, *params.Role)
		return respond(c, http.StatusOK, edges, err)
	}
	return echo.NewHTTPError(http.StatusBadRequest, "exactly one of from_status, to_status or role is required")
}

func (s *Server) ListItemTypes(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	types, err := s.Workflows.ListItemTypes(c.Request().Context(), a)
	return respond(c, http.StatusOK, types, err)
}

func (s *Server) CreateItemType(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	var in services.ItemTypeInput
	if err := bind(c, &in); err != nil {
		return err
	}
	it, err := s.Workflows.CreateItemType(c.Request().Context(), a, in)
	return respond(c, http.StatusCreated, it, err)
}

func (s *Server) BindItemType(c echo.Context, itemTypeID string) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	var in BindWorkflowRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	it, err := s.Workflows.BindItemType(c.Request().Context(), a, itemTypeID, in.WorkflowID)
	return respond(c, http.StatusOK, it, err)
}

func (s *Server) CreateItem(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	var in services.ItemInput
	if err := bind(c, &in); err != nil {
		return err
	}
	item, err := s.Items.CreateItem(c.Request().Context(), a, in)
	return respond(c, http.StatusCreated, item, err)
}

func (s *Server) GetItem(c echo.Context, itemID string) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	item, err := s.Items.GetItem(c.Request().Context(), a, itemID)
	return respond(c, http.StatusOK, item, err)
}

// ChangeItemStatus asks the engine to move an item. Denials are answered
// with a problem document carrying the reason.
func (s *Server) ChangeItemStatus(c echo.Context, itemID string) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	var in ChangeStatusRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	item, decision, err := s.Items.ChangeStatus(c.Request().Context(), a, itemID, in.StatusID)
	return respond(c, http.StatusOK, StatusChangeResponse{Item: item, Decision: decision}, err)
}

func (s *Server) NextStatuses(c echo.Context, itemID string) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	next, err := s.Items.NextStatuses(c.Request().Context(), a, itemID)
	return respond(c, http.StatusOK, next, err)
}

func (s *Server) SetItemType(c echo.Context, itemID string) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	var in SetItemTypeRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	item, err := s.Items.SetItemType(c.Request().Context(), a, itemID, in.ItemTypeID)
	return respond(c, http.StatusOK, item, err)
}
