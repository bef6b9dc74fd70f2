package workflow

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"derbent-workflow/backend/pkg/models"
)

const instrumentationName = "derbent-workflow/backend/internal/workflow"

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Engine resolves an item's workflow and evaluates status changes against it.
type Engine struct {
	graph     Graph
	logger    Logger
	decisions metric.Int64Counter
}

// NewEngine creates an Engine reading configuration from graph.
func NewEngine(graph Graph, logger Logger) *Engine {
	counter, err := otel.Meter(instrumentationName).Int64Counter(
		"workflow.transition.decisions",
		metric.WithDescription("Status change decisions by outcome"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		counter = noop.Int64Counter{}
	}
	return &Engine{graph: graph, logger: logger, decisions: counter}
}

// WorkflowOf derives item.itemType.workflow. A nil workflow with a nil
// error means none is configured; inactive workflows count as none.
func (e *Engine) WorkflowOf(ctx context.Context, item Item) (*models.Workflow, error) {
	typeID := item.ItemTypeID()
	if typeID == "" {
		return nil, nil
	}
	itemType, err := e.graph.GetItemType(ctx, item.TenantScope(), typeID)
	if err != nil {
		return nil, fmt.Errorf("load item type %s: %w", typeID, err)
	}
	if itemType.WorkflowID == "" {
		return nil, nil
	}
	wf, err := e.graph.GetWorkflow(ctx, item.TenantScope(), itemType.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("load workflow %s: %w", itemType.WorkflowID, err)
	}
	if !wf.Active {
		return nil, nil
	}
	return wf, nil
}

// Evaluate decides whether item may move to target without changing it.
func (e *Engine) Evaluate(ctx context.Context, item Item, target string, roles RoleSet) (Decision, error) {
	if target == "" || item.CurrentStatus() == "" {
		return Decision{}, models.ErrNullStatus
	}
	wf, edges, err := e.load(ctx, item)
	if err != nil {
		return Decision{}, err
	}
	d := Authorize(wf, edges, item.CurrentStatus(), target, roles)
	e.record(ctx, d)
	return d, nil
}

// RequestStatusChange evaluates the change and, when allowed, assigns the
// new status to item. A denial is returned both as the decision and as a
// *DeniedError; the item is left untouched. Persisting the item is up to
// the caller.
func (e *Engine) RequestStatusChange(ctx context.Context, item Item, target string, roles RoleSet) (Decision, error) {
	d, err := e.Evaluate(ctx, item, target, roles)
	if err != nil {
		return d, err
	}
	if !d.Allowed {
		if e.logger != nil {
			e.logger.Info("status change denied",
				"reason", string(d.Reason), "from", d.FromStatusID, "to", d.ToStatusID,
				"required_roles", d.RequiredRoles)
		}
		return d, d.Err()
	}
	item.AssignStatus(target)
	if e.logger != nil {
		e.logger.Debug("status change allowed", "workflow", d.WorkflowID, "from", d.FromStatusID, "to", d.ToStatusID)
	}
	return d, nil
}

// NextStatuses lists the statuses the caller could select for item, current
// status first. It returns ErrUnconfigured when the item has no workflow.
func (e *Engine) NextStatuses(ctx context.Context, item Item, roles RoleSet) ([]string, error) {
	wf, edges, err := e.load(ctx, item)
	if err != nil {
		return nil, err
	}
	if wf == nil {
		return nil, ErrUnconfigured
	}
	return NextStatuses(edges, item.CurrentStatus(), roles), nil
}

func (e *Engine) load(ctx context.Context, item Item) (*models.Workflow, []*models.Transition, error) {
	wf, err := e.WorkflowOf(ctx, item)
	if err != nil || wf == nil {
		return nil, nil, err
	}
	edges, err := e.graph.ListTransitions(ctx, item.TenantScope(), wf.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("list transitions of workflow %s: %w", wf.ID, err)
	}
	return wf, edges, nil
}

func (e *Engine) record(ctx context.Context, d Decision) {
	outcome := "allowed"
	if !d.Allowed {
		outcome = string(d.Reason)
	}
	e.decisions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
