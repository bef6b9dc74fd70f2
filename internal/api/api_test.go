package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"derbent-workflow/backend/internal/auth"
	"derbent-workflow/backend/internal/logging"
	"derbent-workflow/backend/internal/repository"
	"derbent-workflow/backend/internal/services"
	"derbent-workflow/backend/internal/workflow"
	"derbent-workflow/backend/pkg/models"
)

type apiEnv struct {
	e      *echo.Echo
	store  *repository.Store
	tenant *models.Tenant
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	store, err := repository.OpenSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))

	tenant := &models.Tenant{Name: "acme.com", Domain: "acme.com"}
	require.NoError(t, store.CreateTenant(context.Background(), tenant))

	logger := logging.NewNop()
	srv := &Server{
		Statuses:  services.NewStatusService(store, logger),
		Access:    services.NewAccessService(store, logger),
		Workflows: services.NewWorkflowService(store, logger),
		Items:     services.NewItemService(store, workflow.NewEngine(store, logger), logger),
	}

	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(logger)
	// X-User stands in for the authenticated e-mail address.
	g := e.Group("/api/v1", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := c.Request().Header.Get("X-User")
			if user == "" {
				return next(c)
			}
			ctx := auth.WithActor(c.Request().Context(), models.Actor{TenantID: tenant.ID, UserID: user})
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})
	RegisterHandlers(g, srv)
	return &apiEnv{e: e, store: store, tenant: tenant}
}

func (env *apiEnv) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload string
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		payload = string(raw)
	}
	req := httptest.NewRequest(method, "/api/v1"+path, strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if user != "" {
		req.Header.Set("X-User", user)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

const admin = "admin@acme.com"

func TestStatusChangeFlow(t *testing.T) {
	env := newAPIEnv(t)

	ids := map[string]string{}
	for i, name := range []string{"Draft", "Review", "Approved"} {
		rec := env.do(t, http.MethodPost, "/statuses", admin, services.StatusInput{Name: name, SortOrder: i})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		ids[name] = decode[models.Status](t, rec).ID
	}

	rec := env.do(t, http.MethodPost, "/roles", admin, CreateRoleRequest{Name: "Approver"})
	require.Equal(t, http.StatusCreated, rec.Code)
	approver := decode[models.Role](t, rec).ID

	rec = env.do(t, http.MethodPost, "/roles/"+approver+"/assignments", admin, AssignRoleRequest{UserID: "ann@acme.com"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodPost, "/workflows", admin, services.WorkflowInput{Name: "W"})
	require.Equal(t, http.StatusCreated, rec.Code)
	wf := decode[models.Workflow](t, rec)
	assert.True(t, wf.Active)

	for _, edge := range []services.TransitionInput{
		{FromStatusID: ids["Draft"], ToStatusID: ids["Review"], Initial: true},
		{FromStatusID: ids["Review"], ToStatusID: ids["Approved"], RoleID: approver},
		{FromStatusID: ids["Draft"], ToStatusID: ids["Review"], Initial: true},
	} {
		rec = env.do(t, http.MethodPost, "/workflows/"+wf.ID+"/transitions", admin, edge)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	rec = env.do(t, http.MethodGet, "/workflows/"+wf.ID+"/transitions", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Transition](t, rec), 2)

	rec = env.do(t, http.MethodGet, "/workflows/"+wf.ID+"/initial-status", admin, nil)
	assert.Equal(t, ids["Review"], decode[InitialStatusResponse](t, rec).StatusID)

	rec = env.do(t, http.MethodPost, "/item-types", admin, services.ItemTypeInput{Name: "Order", Kind: models.KindOrder, WorkflowID: wf.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	itemType := decode[models.ItemType](t, rec)

	rec = env.do(t, http.MethodPost, "/items", admin, services.ItemInput{Title: "PO-1", ItemTypeID: itemType.ID, StatusID: ids["Draft"]})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	item := decode[models.Item](t, rec)

	t.Run("undefined move is 409", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/items/"+item.ID+"/status", admin, ChangeStatusRequest{StatusID: ids["Approved"]})
		assert.Equal(t, http.StatusConflict, rec.Code)
		p := decode[ProblemDetails](t, rec)
		assert.Equal(t, "NO_SUCH_TRANSITION", p.Reason)
		assert.Equal(t, "/api/v1/items/"+item.ID+"/status", p.Instance)
	})

	t.Run("wildcard edge", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/items/"+item.ID+"/status", admin, ChangeStatusRequest{StatusID: ids["Review"]})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decode[StatusChangeResponse](t, rec)
		assert.True(t, resp.Decision.Allowed)
		assert.Equal(t, ids["Review"], resp.Item.StatusID)
	})

	t.Run("role denied is 403 with required roles", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/items/"+item.ID+"/status", admin, ChangeStatusRequest{StatusID: ids["Approved"]})
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "application/problem+json", rec.Header().Get(echo.HeaderContentType))
		p := decode[ProblemDetails](t, rec)
		assert.Equal(t, "ROLE_DENIED", p.Reason)
		assert.Equal(t, []string{approver}, p.RequiredRoles)
	})

	t.Run("next statuses", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/items/"+item.ID+"/next-statuses", "ann@acme.com", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{ids["Review"], ids["Approved"]}, decode[[]string](t, rec))
	})

	t.Run("role holder succeeds", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/items/"+item.ID+"/status", "ann@acme.com", ChangeStatusRequest{StatusID: ids["Approved"]})
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("lookups", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/transitions?role="+approver, admin, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[[]models.Transition](t, rec), 1)

		rec = env.do(t, http.MethodGet, "/transitions?role="+approver+"&to_status=x", admin, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("remove edge", func(t *testing.T) {
		path := fmt.Sprintf("/workflows/%s/transitions?from=%s&to=%s&role=%s", wf.ID, ids["Review"], ids["Approved"], approver)
		rec := env.do(t, http.MethodDelete, path, admin, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, decode[RemoveTransitionResponse](t, rec).Removed)

		rec = env.do(t, http.MethodDelete, path, admin, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, decode[RemoveTransitionResponse](t, rec).Removed)

		rec = env.do(t, http.MethodDelete, "/workflows/"+wf.ID+"/transitions?to=x", admin, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unconfigured is 422", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, "/item-types/"+itemType.ID+"/workflow", admin, BindWorkflowRequest{})
		require.Equal(t, http.StatusOK, rec.Code)

		rec = env.do(t, http.MethodPost, "/items/"+item.ID+"/status", admin, ChangeStatusRequest{StatusID: ids["Draft"]})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "UNCONFIGURED", decode[ProblemDetails](t, rec).Reason)
	})

	t.Run("referenced status cannot be deleted", func(t *testing.T) {
		rec := env.do(t, http.MethodDelete, "/statuses/"+ids["Draft"], admin, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestRequestErrors(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, http.MethodGet, "/statuses", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/statuses/missing", admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found", decode[ProblemDetails](t, rec).Title)

	rec = env.do(t, http.MethodPost, "/statuses", admin, services.StatusInput{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/statuses", admin, services.StatusInput{Name: "Open"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = env.do(t, http.MethodPost, "/statuses", admin, services.StatusInput{Name: "Open"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodGet, "/statuses", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Status](t, rec), 1)
}

func TestProblemMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{&workflow.DeniedError{Decision: workflow.Decision{Reason: workflow.ReasonUnconfigured}}, http.StatusUnprocessableEntity},
		{fmt.Errorf("wrapped: %w", &workflow.DeniedError{Decision: workflow.Decision{Reason: workflow.ReasonRoleDenied}}), http.StatusForbidden},
		{fmt.Errorf("item x: %w", repository.ErrNotFound), http.StatusNotFound},
		{repository.ErrInUse, http.StatusConflict},
		{repository.ErrProtected, http.StatusConflict},
		{fmt.Errorf("transition t1: %w", repository.ErrInitialConflict), http.StatusConflict},
		{models.ErrCrossTenant, http.StatusBadRequest},
		{repository.ErrSelfLoop, http.StatusBadRequest},
		{echo.NewHTTPError(http.StatusUnauthorized, "no"), http.StatusUnauthorized},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, Problem(tc.err).Status, tc.err.Error())
	}
}

func TestHealth(t *testing.T) {
	env := newAPIEnv(t)
	h := NewHandler(env.store)

	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.HandleReady(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decode[HealthStatus](t, rec).Status)
}

func TestSpecHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	SpecHandler("https://acme.okta.com/oauth2/default")(rec, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "{oktaIssuer}")

	var doc struct {
		Paths map[string]any `yaml:"paths"`
	}
	require.NoError(t, yaml.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Contains(t, doc.Paths, "/items/{itemId}/status")
	assert.Contains(t, doc.Paths, "/workflows/{workflowId}/transitions")
}

func TestSwaggerHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/docs", nil)
	req.Host = "wf.example"
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	SwaggerHandler("spa-client")(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"spa-client"`)
	assert.Contains(t, body, `"https://wf.example/docs/oauth2-redirect.html"`)
	assert.Contains(t, body, `"/openapi.yaml"`)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
}

func TestOAuthRedirectHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	OAuthRedirectHandler(rec, httptest.NewRequest(http.MethodGet, "/docs/oauth2-redirect.html", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "swaggerUIRedirectOauth2")
}
