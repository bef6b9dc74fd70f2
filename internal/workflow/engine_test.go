package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"derbent-workflow/backend/pkg/models"
)

var errNotFound = errors.New("not found")

// MockGraph satisfies Graph
type MockGraph struct {
	mock.Mock
}

func (m *MockGraph) GetItemType(ctx context.Context, tenantID, id string) (*models.ItemType, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ItemType), args.Error(1)
}

func (m *MockGraph) GetWorkflow(ctx context.Context, tenantID, id string) (*models.Workflow, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockGraph) ListTransitions(ctx context.Context, tenantID, workflowID string) ([]*models.Transition, error) {
	args := m.Called(ctx, tenantID, workflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Transition), args.Error(1)
}

// riskItem is a second, independent implementation of Item.
type riskItem struct {
	tenant   string
	typeID   string
	status   string
	severity int
}

func (r *riskItem) TenantScope() string    { return r.tenant }
func (r *riskItem) CurrentStatus() string  { return r.status }
func (r *riskItem) ItemTypeID() string     { return r.typeID }
func (r *riskItem) AssignStatus(id string) { r.status = id }

func (r *riskItem) SetItemType(t models.ItemType) error {
	if t.TenantID != r.tenant {
		return models.ErrCrossTenant
	}
	r.typeID = t.ID
	return nil
}

func (r *riskItem) InitializeStatus(s models.Status) error {
	if s.ID == "" {
		return models.ErrNullStatus
	}
	r.status = s.ID
	return nil
}

// graphWithEdges wires the usual tenant "t1" / type "type-1" / workflow "W".
func graphWithEdges(edges ...*models.Transition) *MockGraph {
	g := new(MockGraph)
	g.On("GetItemType", mock.Anything, "t1", "type-1").
		Return(&models.ItemType{ID: "type-1", TenantID: "t1", WorkflowID: "W"}, nil)
	g.On("GetWorkflow", mock.Anything, "t1", "W").
		Return(&models.Workflow{ID: "W", TenantID: "t1", Active: true}, nil)
	g.On("ListTransitions", mock.Anything, "t1", "W").Return(edges, nil)
	return g
}

func TestRequestStatusChange_Scenarios(t *testing.T) {
	ctx := context.Background()
	edges := []*models.Transition{
		edge("W", "draft", "review", ""),
		edge("W", "review", "approved", "approver"),
	}

	t.Run("wildcard edge with no roles", func(t *testing.T) {
		e := NewEngine(graphWithEdges(edges...), nil)
		item := &models.Item{TenantID: "t1", TypeID: "type-1", StatusID: "draft"}
		d, err := e.RequestStatusChange(ctx, item, "review", NewRoleSet())
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, "review", item.StatusID)
	})

	t.Run("role restricted edge", func(t *testing.T) {
		e := NewEngine(graphWithEdges(edges...), nil)
		item := &riskItem{tenant: "t1", typeID: "type-1", status: "review"}

		d, err := e.RequestStatusChange(ctx, item, "approved", NewRoleSet("contributor"))
		assert.ErrorIs(t, err, ErrRoleDenied)
		assert.Equal(t, ReasonRoleDenied, d.Reason)
		assert.Equal(t, "review", item.status)

		d, err = e.RequestStatusChange(ctx, item, "approved", NewRoleSet("approver"))
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, "approved", item.status)
	})

	t.Run("undefined move", func(t *testing.T) {
		e := NewEngine(graphWithEdges(edges...), nil)
		item := &models.Item{TenantID: "t1", TypeID: "type-1", StatusID: "draft"}
		d, err := e.RequestStatusChange(ctx, item, "approved", NewRoleSet("approver"))
		assert.ErrorIs(t, err, ErrNoSuchTransition)
		assert.Equal(t, ReasonNoSuchTransition, d.Reason)
		assert.Equal(t, "draft", item.StatusID)
	})
}

func TestRequestStatusChange_Unconfigured(t *testing.T) {
	ctx := context.Background()

	t.Run("no item type", func(t *testing.T) {
		g := new(MockGraph)
		e := NewEngine(g, nil)
		item := &models.Item{TenantID: "t1", StatusID: "draft"}
		d, err := e.RequestStatusChange(ctx, item, "review", NewRoleSet("admin"))
		assert.ErrorIs(t, err, ErrUnconfigured)
		assert.Equal(t, ReasonUnconfigured, d.Reason)
		g.AssertNotCalled(t, "GetItemType", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("item type without workflow", func(t *testing.T) {
		g := new(MockGraph)
		g.On("GetItemType", mock.Anything, "t1", "type-1").
			Return(&models.ItemType{ID: "type-1", TenantID: "t1"}, nil)
		e := NewEngine(g, nil)
		item := &models.Item{TenantID: "t1", TypeID: "type-1", StatusID: "draft"}
		_, err := e.RequestStatusChange(ctx, item, "review", NewRoleSet())
		assert.ErrorIs(t, err, ErrUnconfigured)
		assert.Equal(t, "draft", item.StatusID)
	})

	t.Run("inactive workflow", func(t *testing.T) {
		g := new(MockGraph)
		g.On("GetItemType", mock.Anything, "t1", "type-1").
			Return(&models.ItemType{ID: "type-1", TenantID: "t1", WorkflowID: "W"}, nil)
		g.On("GetWorkflow", mock.Anything, "t1", "W").
			Return(&models.Workflow{ID: "W", TenantID: "t1", Active: false}, nil)
		e := NewEngine(g, nil)
		item := &models.Item{TenantID: "t1", TypeID: "type-1", StatusID: "draft"}
		_, err := e.RequestStatusChange(ctx, item, "review", NewRoleSet())
		assert.ErrorIs(t, err, ErrUnconfigured)
		g.AssertNotCalled(t, "ListTransitions", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestRequestStatusChange_LookupFailure(t *testing.T) {
	g := new(MockGraph)
	g.On("GetItemType", mock.Anything, "t1", "type-1").Return(nil, errNotFound)
	e := NewEngine(g, nil)
	item := &models.Item{TenantID: "t1", TypeID: "type-1", StatusID: "draft"}

	_, err := e.RequestStatusChange(context.Background(), item, "review", NewRoleSet())
	assert.ErrorIs(t, err, errNotFound)
	var denied *DeniedError
	assert.False(t, errors.As(err, &denied))
}

func TestRequestStatusChange_NullStatus(t *testing.T) {
	e := NewEngine(new(MockGraph), nil)

	_, err := e.RequestStatusChange(context.Background(), &models.Item{TenantID: "t1", StatusID: "draft"}, "", NewRoleSet())
	assert.ErrorIs(t, err, models.ErrNullStatus)

	_, err = e.RequestStatusChange(context.Background(), &models.Item{TenantID: "t1"}, "review", NewRoleSet())
	assert.ErrorIs(t, err, models.ErrNullStatus)
}

func TestEngineNextStatuses(t *testing.T) {
	e := NewEngine(graphWithEdges(
		edge("W", "draft", "review", ""),
		edge("W", "draft", "cancelled", "manager"),
	), nil)
	item := &riskItem{tenant: "t1", typeID: "type-1", status: "draft"}

	next, err := e.NextStatuses(context.Background(), item, NewRoleSet())
	require.NoError(t, err)
	assert.Equal(t, []string{"draft", "review"}, next)

	_, err = e.NextStatuses(context.Background(), &riskItem{tenant: "t1", status: "draft"}, NewRoleSet())
	assert.ErrorIs(t, err, ErrUnconfigured)
}
