package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"derbent-workflow/backend/internal/repository"
	"derbent-workflow/backend/internal/services"
	"derbent-workflow/backend/internal/workflow"
	"derbent-workflow/backend/pkg/models"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains the operational HTTP handlers of the service.
type Handler struct {
	db Pinger
}

// NewHandler creates a new Handler with required dependencies
func NewHandler(db Pinger) *Handler {
	return &Handler{db: db}
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
}

// HandleHealth returns basic health status (always returns 200 OK)
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.status("ok"))
}

// HandleReady returns 503 while the database is unreachable.
func (h *Handler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Service Unavailable", "database unreachable: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.status("ready"))
}

func (h *Handler) status(s string) HealthStatus {
	return HealthStatus{Status: s, Timestamp: time.Now().UTC(), Service: "derbent-workflow", Version: Version}
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log error but can't change response at this point
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// ProblemDetails represents an RFC 7807 Problem Details response. Denied
// status changes add the reason and, for ROLE_DENIED, the roles that would
// have been accepted.
type ProblemDetails struct {
	Type          string   `json:"type"`
	Title         string   `json:"title"`
	Status        int      `json:"status"`
	Detail        string   `json:"detail"`
	Instance      string   `json:"instance,omitempty"`
	Reason        string   `json:"reason,omitempty"`
	FromStatusID  string   `json:"from_status_id,omitempty"`
	ToStatusID    string   `json:"to_status_id,omitempty"`
	RequiredRoles []string `json:"required_roles,omitempty"`
}

// writeError writes an RFC 7807 Problem Details JSON error response
func writeError(w http.ResponseWriter, status int, title, detail string) {
	problem := ProblemDetails{
		Type:   "about:blank",
		Title:  title,
		Status: status,
		Detail: detail,
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(problem)
}

// Problem maps an error to a problem document.
func Problem(err error) ProblemDetails {
	p := ProblemDetails{Type: "about:blank", Status: http.StatusInternalServerError, Detail: err.Error()}

	var denied *workflow.DeniedError
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &denied):
		d := denied.Decision
		p.Type = "urn:derbent:workflow:" + string(d.Reason)
		p.Reason = string(d.Reason)
		p.FromStatusID = d.FromStatusID
		p.ToStatusID = d.ToStatusID
		p.RequiredRoles = d.RequiredRoles
		switch d.Reason {
		case workflow.ReasonUnconfigured:
			p.Status = http.StatusUnprocessableEntity
		case workflow.ReasonNoSuchTransition:
			p.Status = http.StatusConflict
		case workflow.ReasonRoleDenied:
			p.Status = http.StatusForbidden
		}
	case errors.Is(err, workflow.ErrUnconfigured):
		p.Status = http.StatusUnprocessableEntity
		p.Reason = string(workflow.ReasonUnconfigured)
	case errors.As(err, &httpErr):
		p.Status = httpErr.Code
		if msg, ok := httpErr.Message.(string); ok {
			p.Detail = msg
		}
	case errors.Is(err, repository.ErrNotFound):
		p.Status = http.StatusNotFound
	case errors.Is(err, repository.ErrDuplicate),
		errors.Is(err, repository.ErrInUse),
		errors.Is(err, repository.ErrProtected),
		errors.Is(err, repository.ErrInitialConflict):
		p.Status = http.StatusConflict
	case errors.Is(err, models.ErrCrossTenant),
		errors.Is(err, models.ErrNullStatus),
		errors.Is(err, models.ErrStatusAlreadySet),
		errors.Is(err, models.ErrInvalidReference),
		errors.Is(err, repository.ErrSelfLoop),
		errors.Is(err, services.ErrInvalidInput):
		p.Status = http.StatusBadRequest
	}
	p.Title = http.StatusText(p.Status)
	return p
}

// ErrorHandler renders every error returned by a route as a problem
// document. Unexpected errors are logged and their detail hidden.
func ErrorHandler(logger services.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		p := Problem(err)
		if p.Status >= http.StatusInternalServerError {
			logger.Error("request failed", "method", c.Request().Method, "path", c.Path(), "error", err)
			p.Detail = "internal error"
		}
		p.Instance = c.Request().URL.Path
		c.Response().Header().Set(echo.HeaderContentType, "application/problem+json")
		c.Response().WriteHeader(p.Status)
		if c.Request().Method != http.MethodHead {
			_ = json.NewEncoder(c.Response()).Encode(p)
		}
	}
}
