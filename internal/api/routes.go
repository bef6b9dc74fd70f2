package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/oapi-codegen/runtime"
)

// FindTransitionsParams defines parameters for FindTransitions. Exactly one
// must be set.
type FindTransitionsParams struct {
	FromStatus *string `form:"from_status,omitempty" json:"from_status,omitempty"`
	ToStatus   *string `form:"to_status,omitempty" json:"to_status,omitempty"`
	Role       *string `form:"role,omitempty" json:"role,omitempty"`
}

// RemoveTransitionParams defines parameters for RemoveTransition. An absent
// role selects the wildcard edge.
type RemoveTransitionParams struct {
	From string  `form:"from" json:"from"`
	To   string  `form:"to" json:"to"`
	Role *string `form:"role,omitempty" json:"role,omitempty"`
}

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// (GET /statuses)
	ListStatuses(ctx echo.Context) error
	// (POST /statuses)
	CreateStatus(ctx echo.Context) error
	// (GET /statuses/{statusId})
	GetStatus(ctx echo.Context, statusID string) error
	// (DELETE /statuses/{statusId})
	DeleteStatus(ctx echo.Context, statusID string) error

	// (GET /roles)
	ListRoles(ctx echo.Context) error
	// (POST /roles)
	CreateRole(ctx echo.Context) error
	// (POST /roles/{roleId}/assignments)
	AssignRole(ctx echo.Context, roleID string) error
	// (GET /me/roles)
	MyRoles(ctx echo.Context) error

	// (GET /workflows)
	ListWorkflows(ctx echo.Context) error
	// (POST /workflows)
	CreateWorkflow(ctx echo.Context) error
	// (GET /workflows/{workflowId})
	GetWorkflow(ctx echo.Context, workflowID string) error
	// (GET /workflows/{workflowId}/transitions)
	ListTransitions(ctx echo.Context, workflowID string) error
	// (POST /workflows/{workflowId}/transitions)
	AddTransition(ctx echo.Context, workflowID string) error
	// (DELETE /workflows/{workflowId}/transitions)
	RemoveTransition(ctx echo.Context, workflowID string, params RemoveTransitionParams) error
	// (GET /workflows/{workflowId}/initial-status)
	GetInitialStatus(ctx echo.Context, workflowID string) error
	// (GET /transitions)
	FindTransitions(ctx echo.Context, params FindTransitionsParams) error

	// (GET /item-types)
	ListItemTypes(ctx echo.Context) error
	// (POST /item-types)
	CreateItemType(ctx echo.Context) error
	// (PUT /item-types/{itemTypeId}/workflow)
	BindItemType(ctx echo.Context, itemTypeID string) error

	// (POST /items)
	CreateItem(ctx echo.Context) error
	// (GET /items/{itemId})
	GetItem(ctx echo.Context, itemID string) error
	// (POST /items/{itemId}/status)
	ChangeItemStatus(ctx echo.Context, itemID string) error
	// (GET /items/{itemId}/next-statuses)
	NextStatuses(ctx echo.Context, itemID string) error
	// (PUT /items/{itemId}/type)
	SetItemType(ctx echo.Context, itemID string) error
}

// ServerInterfaceWrapper converts echo contexts to parameters.
type ServerInterfaceWrapper struct {
	Handler ServerInterface
}

func pathParam(ctx echo.Context, name string) (string, error) {
	var value string
	err := runtime.BindStyledParameterWithOptions("simple", name, ctx.Param(name), &value,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter %s: %s", name, err))
	}
	return value, nil
}

func queryParam(ctx echo.Context, name string, required bool, dest any) error {
	if err := runtime.BindQueryParameter("form", true, required, name, ctx.QueryParams(), dest); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter %s: %s", name, err))
	}
	return nil
}

// withPath binds one path parameter and calls fn with it.
func withPath(name string, fn func(echo.Context, string) error) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		value, err := pathParam(ctx, name)
		if err != nil {
			return err
		}
		return fn(ctx, value)
	}
}

// RemoveTransition converts echo context to params.
func (w *ServerInterfaceWrapper) RemoveTransition(ctx echo.Context) error {
	workflowID, err := pathParam(ctx, "workflowId")
	if err != nil {
		return err
	}
	var params RemoveTransitionParams
	if err := queryParam(ctx, "from", true, &params.From); err != nil {
		return err
	}
	if err := queryParam(ctx, "to", true, &params.To); err != nil {
		return err
	}
	if err := queryParam(ctx, "role", false, &params.Role); err != nil {
		return err
	}
	return w.Handler.RemoveTransition(ctx, workflowID, params)
}

// FindTransitions converts echo context to params.
func (w *ServerInterfaceWrapper) FindTransitions(ctx echo.Context) error {
	var params FindTransitionsParams
	if err := queryParam(ctx, "from_status", false, &params.FromStatus); err != nil {
		return err
	}
	if err := queryParam(ctx, "to_status", false, &params.ToStatus); err != nil {
		return err
	}
	if err := queryParam(ctx, "role", false, &params.Role); err != nil {
		return err
	}
	return w.Handler.FindTransitions(ctx, params)
}

// EchoRouter is satisfied by both *echo.Echo and *echo.Group.
type EchoRouter interface {
	DELETE(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	GET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	POST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	PUT(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
}

// RegisterHandlers adds each server route to the EchoRouter.
func RegisterHandlers(router EchoRouter, si ServerInterface) {
	RegisterHandlersWithBaseURL(router, si, "")
}

// RegisterHandlersWithBaseURL registers the routes under baseURL.
func RegisterHandlersWithBaseURL(router EchoRouter, si ServerInterface, baseURL string) {
	w := ServerInterfaceWrapper{Handler: si}

	router.GET(baseURL+"/statuses", si.ListStatuses)
	router.POST(baseURL+"/statuses", si.CreateStatus)
	router.GET(baseURL+"/statuses/:statusId", withPath("statusId", si.GetStatus))
	router.DELETE(baseURL+"/statuses/:statusId", withPath("statusId", si.DeleteStatus))

	router.GET(baseURL+"/roles", si.ListRoles)
	router.POST(baseURL+"/roles", si.CreateRole)
	router.POST(baseURL+"/roles/:roleId/assignments", withPath("roleId", si.AssignRole))
	router.GET(baseURL+"/me/roles", si.MyRoles)

	router.GET(baseURL+"/workflows", si.ListWorkflows)
	router.POST(baseURL+"/workflows", si.CreateWorkflow)
	router.GET(baseURL+"/workflows/:workflowId", withPath("workflowId", si.GetWorkflow))
	router.GET(baseURL+"/workflows/:workflowId/transitions", withPath("workflowId", si.ListTransitions))
	router.POST(baseURL+"/workflows/:workflowId/transitions", withPath("workflowId", si.AddTransition))
	router.DELETE(baseURL+"/workflows/:workflowId/transitions", w.RemoveTransition)
	router.GET(baseURL+"/workflows/:workflowId/initial-status", withPath("workflowId", si.GetInitialStatus))
	router.GET(baseURL+"/transitions", w.FindTransitions)

	router.GET(baseURL+"/item-types", si.ListItemTypes)
	router.POST(baseURL+"/item-types", si.CreateItemType)
	router.PUT(baseURL+"/item-types/:itemTypeId/workflow", withPath("itemTypeId", si.BindItemType))

	router.POST(baseURL+"/items", si.CreateItem)
	router.GET(baseURL+"/items/:itemId", withPath("itemId", si.GetItem))
	router.POST(baseURL+"/items/:itemId/status", withPath("itemId", si.ChangeItemStatus))
	router.GET(baseURL+"/items/:itemId/next-statuses", withPath("itemId", si.NextStatuses))
	router.PUT(baseURL+"/items/:itemId/type", withPath("itemId", si.SetItemType))
}
