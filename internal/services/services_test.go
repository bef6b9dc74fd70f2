package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"derbent-workflow/backend/internal/logging"
	"derbent-workflow/backend/internal/repository"
	"derbent-workflow/backend/internal/workflow"
	"derbent-workflow/backend/pkg/models"
)

type env struct {
	store     *repository.Store
	statuses  *StatusService
	access    *AccessService
	workflows *WorkflowService
	items     *ItemService

	admin       models.Actor
	contributor models.Actor
	approver    models.Actor

	draft, review, approved *models.Status
	approverRole            *models.Role
	contributorRole         *models.Role
	wf                      *models.Workflow
	itemType                *models.ItemType
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	store, err := repository.OpenSQLite(filepath.Join(t.TempDir(), "services.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(ctx))

	logger := logging.NewNop()
	e := &env{
		store:     store,
		statuses:  NewStatusService(store, logger),
		access:    NewAccessService(store, logger),
		workflows: NewWorkflowService(store, logger),
		items:     NewItemService(store, workflow.NewEngine(store, logger), logger),
	}

	tenant := &models.Tenant{Name: "Acme", Domain: "acme.com"}
	require.NoError(t, store.CreateTenant(ctx, tenant))
	e.admin = models.Actor{TenantID: tenant.ID, UserID: "admin@acme.com"}
	e.contributor = models.Actor{TenantID: tenant.ID, UserID: "carl@acme.com"}
	e.approver = models.Actor{TenantID: tenant.ID, UserID: "ann@acme.com"}

	for i, target := range []**models.Status{&e.draft, &e.review, &e.approved} {
		name := []string{"Draft", "Review", "Approved"}[i]
		st, err := e.statuses.CreateStatus(ctx, e.admin, StatusInput{Name: name, SortOrder: (i + 1) * 10})
		require.NoError(t, err)
		*target = st
	}

	e.approverRole, err = e.access.CreateRole(ctx, e.admin, "Approver")
	require.NoError(t, err)
	e.contributorRole, err = e.access.CreateRole(ctx, e.admin, "Contributor")
	require.NoError(t, err)
	require.NoError(t, e.access.AssignRole(ctx, e.admin, e.approver.UserID, e.approverRole.ID))
	require.NoError(t, e.access.AssignRole(ctx, e.admin, e.contributor.UserID, e.contributorRole.ID))

	e.wf, err = e.workflows.CreateWorkflow(ctx, e.admin, WorkflowInput{Name: "W"})
	require.NoError(t, err)
	e.itemType, err = e.workflows.CreateItemType(ctx, e.admin, ItemTypeInput{Name: "Change request", Kind: models.KindDecision, WorkflowID: e.wf.ID})
	require.NoError(t, err)
	return e
}

func (e *env) addEdge(t *testing.T, from, to *models.Status, roleID string) *models.Transition {
	t.Helper()
	edge, err := e.workflows.AddStatusTransition(context.Background(), e.admin, TransitionInput{
		WorkflowID: e.wf.ID, FromStatusID: from.ID, ToStatusID: to.ID, RoleID: roleID,
	})
	require.NoError(t, err)
	return edge
}

func (e *env) newItem(t *testing.T, status *models.Status) *models.Item {
	t.Helper()
	item, err := e.items.CreateItem(context.Background(), e.admin, ItemInput{
		Title: "Item", ItemTypeID: e.itemType.ID, StatusID: status.ID,
	})
	require.NoError(t, err)
	return item
}

func TestScenario_WildcardEdgeAllowsEmptyRoles(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addEdge(t, e.draft, e.review, "")
	item := e.newItem(t, e.draft)

	// The admin holds no roles at all.
	moved, d, err := e.items.ChangeStatus(ctx, e.admin, item.ID, e.review.ID)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, e.review.ID, moved.StatusID)

	stored, err := e.items.GetItem(ctx, e.admin, item.ID)
	require.NoError(t, err)
	assert.Equal(t, e.review.ID, stored.StatusID)
}

func TestScenario_RoleRestrictedEdge(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addEdge(t, e.review, e.approved, e.approverRole.ID)
	item := e.newItem(t, e.review)

	_, d, err := e.items.ChangeStatus(ctx, e.contributor, item.ID, e.approved.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, workflow.ErrRoleDenied)
	assert.Equal(t, workflow.ReasonRoleDenied, d.Reason)
	assert.Equal(t, []string{e.approverRole.ID}, d.RequiredRoles)

	stored, err := e.items.GetItem(ctx, e.admin, item.ID)
	require.NoError(t, err)
	assert.Equal(t, e.review.ID, stored.StatusID, "denied change must not be persisted")

	_, d, err = e.items.ChangeStatus(ctx, e.approver, item.ID, e.approved.ID)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestScenario_UndefinedMove(t *testing.T) {
	e := newEnv(t)
	e.addEdge(t, e.draft, e.review, "")
	item := e.newItem(t, e.draft)

	_, d, err := e.items.ChangeStatus(context.Background(), e.approver, item.ID, e.approved.ID)
	assert.ErrorIs(t, err, workflow.ErrNoSuchTransition)
	assert.Equal(t, workflow.ReasonNoSuchTransition, d.Reason)
}

func TestScenario_AddTwiceKeepsOneEdge(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	first := e.addEdge(t, e.draft, e.review, "")
	second := e.addEdge(t, e.draft, e.review, "")
	assert.Equal(t, first.ID, second.ID)

	edges, err := e.workflows.FindByWorkflow(ctx, e.admin, e.wf.ID)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.True(t, edges[0].Wildcard())
}

func TestScenario_RemovedEdgeDenies(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addEdge(t, e.draft, e.review, "")
	e.addEdge(t, e.draft, e.review, e.approverRole.ID)
	item := e.newItem(t, e.draft)

	removed, err := e.workflows.DeleteByWorkflowAndStatuses(ctx, e.admin, e.wf.ID, e.draft.ID, e.review.ID, "")
	require.NoError(t, err)
	assert.True(t, removed)

	edges, err := e.workflows.FindByWorkflow(ctx, e.admin, e.wf.ID)
	require.NoError(t, err)
	require.Len(t, edges, 1, "edge with a different role must remain")
	assert.Equal(t, e.approverRole.ID, edges[0].RoleID)

	removed, err = e.workflows.DeleteByWorkflowAndStatuses(ctx, e.admin, e.wf.ID, e.draft.ID, e.review.ID, e.approverRole.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	_, d, err := e.items.ChangeStatus(ctx, e.admin, item.ID, e.review.ID)
	assert.ErrorIs(t, err, workflow.ErrNoSuchTransition)
	assert.False(t, d.Allowed)

	removed, err = e.workflows.DeleteByWorkflowAndStatuses(ctx, e.admin, e.wf.ID, e.draft.ID, e.review.ID, "")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestDeleteTransition_RequiresStatuses(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addEdge(t, e.draft, e.review, "")

	for _, tc := range []struct{ from, to string }{
		{"", e.review.ID},
		{e.draft.ID, ""},
		{" ", " "},
	} {
		_, err := e.workflows.DeleteByWorkflowAndStatuses(ctx, e.admin, e.wf.ID, tc.from, tc.to, "")
		assert.ErrorIs(t, err, ErrInvalidInput)
	}

	edges, err := e.workflows.FindByWorkflow(ctx, e.admin, e.wf.ID)
	require.NoError(t, err)
	assert.Len(t, edges, 1)
}

func TestInitialStatus_FollowsSortOrder(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	// Ids sort the opposite way to sort_order.
	open := &models.Status{ID: "zzz-open", TenantID: e.admin.TenantID, Name: "Open", SortOrder: 1}
	done := &models.Status{ID: "aaa-done", TenantID: e.admin.TenantID, Name: "Done", SortOrder: 99}
	require.NoError(t, e.store.CreateStatus(ctx, open))
	require.NoError(t, e.store.CreateStatus(ctx, done))
	e.addEdge(t, e.draft, done, "")
	e.addEdge(t, e.draft, open, "")

	initial, err := e.workflows.InitialStatus(ctx, e.admin, e.wf.ID)
	require.NoError(t, err)
	assert.Equal(t, open.ID, initial)

	item, err := e.items.CreateItem(ctx, e.admin, ItemInput{Title: "Defaulted", ItemTypeID: e.itemType.ID})
	require.NoError(t, err)
	assert.Equal(t, open.ID, item.StatusID)

	item = e.newItem(t, e.draft)
	next, err := e.items.NextStatuses(ctx, e.admin, item.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{e.draft.ID, open.ID, done.ID}, next)
}

func TestChangeStatus_Unconfigured(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addEdge(t, e.draft, e.review, "")
	item := e.newItem(t, e.draft)

	_, err := e.workflows.BindItemType(ctx, e.admin, e.itemType.ID, "")
	require.NoError(t, err)

	_, d, err := e.items.ChangeStatus(ctx, e.approver, item.ID, e.review.ID)
	assert.ErrorIs(t, err, workflow.ErrUnconfigured)
	assert.Equal(t, workflow.ReasonUnconfigured, d.Reason)

	_, err = e.items.NextStatuses(ctx, e.approver, item.ID)
	assert.ErrorIs(t, err, workflow.ErrUnconfigured)
}

func TestChangeStatus_InactiveWorkflowIsUnconfigured(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	inactive := false
	wf, err := e.workflows.CreateWorkflow(ctx, e.admin, WorkflowInput{Name: "Retired", Active: &inactive})
	require.NoError(t, err)
	_, err = e.workflows.AddStatusTransition(ctx, e.admin, TransitionInput{WorkflowID: wf.ID, FromStatusID: e.draft.ID, ToStatusID: e.review.ID})
	require.NoError(t, err)
	item := e.newItem(t, e.draft)
	_, err = e.workflows.BindItemType(ctx, e.admin, e.itemType.ID, wf.ID)
	require.NoError(t, err)

	_, _, err = e.items.ChangeStatus(ctx, e.admin, item.ID, e.review.ID)
	assert.ErrorIs(t, err, workflow.ErrUnconfigured)
}

func TestChangeStatus_Validation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	item := e.newItem(t, e.draft)

	_, _, err := e.items.ChangeStatus(ctx, e.admin, item.ID, "")
	assert.ErrorIs(t, err, models.ErrNullStatus)

	_, _, err = e.items.ChangeStatus(ctx, e.admin, item.ID, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, _, err = e.items.ChangeStatus(ctx, e.admin, "missing", e.review.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, _, err = e.items.ChangeStatus(ctx, models.Actor{}, item.ID, e.review.ID)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCreateItem_InitialStatus(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	_, err := e.items.CreateItem(ctx, e.admin, ItemInput{Title: "No graph", ItemTypeID: e.itemType.ID})
	assert.ErrorIs(t, err, workflow.ErrUnconfigured)

	e.addEdge(t, e.draft, e.review, "")
	_, err = e.workflows.AddStatusTransition(ctx, e.admin, TransitionInput{
		WorkflowID: e.wf.ID, FromStatusID: e.approved.ID, ToStatusID: e.draft.ID, Initial: true,
	})
	require.NoError(t, err)

	initial, err := e.workflows.InitialStatus(ctx, e.admin, e.wf.ID)
	require.NoError(t, err)
	assert.Equal(t, e.draft.ID, initial)

	item, err := e.items.CreateItem(ctx, e.admin, ItemInput{Title: "Defaulted", ItemTypeID: e.itemType.ID})
	require.NoError(t, err)
	assert.Equal(t, e.draft.ID, item.StatusID)
	assert.Equal(t, models.KindDecision, item.Kind)
	assert.Equal(t, e.admin.UserID, item.CreatedBy)

	// An explicit first status is accepted even without an edge into it.
	item, err = e.items.CreateItem(ctx, e.admin, ItemInput{Title: "Explicit", ItemTypeID: e.itemType.ID, StatusID: e.approved.ID})
	require.NoError(t, err)
	assert.Equal(t, e.approved.ID, item.StatusID)

	_, err = e.items.CreateItem(ctx, e.admin, ItemInput{ItemTypeID: e.itemType.ID})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestNextStatuses(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addEdge(t, e.draft, e.review, "")
	e.addEdge(t, e.draft, e.approved, e.approverRole.ID)
	item := e.newItem(t, e.draft)

	next, err := e.items.NextStatuses(ctx, e.contributor, item.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{e.draft.ID, e.review.ID}, next)

	next, err = e.items.NextStatuses(ctx, e.approver, item.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{e.draft.ID, e.review.ID, e.approved.ID}, next)
	assert.Equal(t, e.draft.ID, next[0])
}

func TestSetItemType(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	item := e.newItem(t, e.draft)
	other, err := e.workflows.CreateItemType(ctx, e.admin, ItemTypeInput{Name: "Untyped", Kind: models.KindRisk})
	require.NoError(t, err)

	moved, err := e.items.SetItemType(ctx, e.admin, item.ID, other.ID)
	require.NoError(t, err)
	assert.Equal(t, other.ID, moved.TypeID)
	assert.Equal(t, e.draft.ID, moved.StatusID)

	_, _, err = e.items.ChangeStatus(ctx, e.admin, item.ID, e.review.ID)
	assert.ErrorIs(t, err, workflow.ErrUnconfigured)
}

func TestStatusService(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	_, err := e.statuses.CreateStatus(ctx, e.admin, StatusInput{Name: "Draft"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	_, err = e.statuses.CreateStatus(ctx, e.admin, StatusInput{Name: "  "})
	assert.ErrorIs(t, err, ErrInvalidInput)

	list, err := e.statuses.ListStatuses(ctx, e.admin)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "Draft", list[0].Name)

	closed, err := e.statuses.CreateStatus(ctx, e.admin, StatusInput{Name: "Closed", NonDeletable: true,
		Flags: models.StatusFlags{Closed: true, Final: true}})
	require.NoError(t, err)
	assert.ErrorIs(t, e.statuses.DeleteStatus(ctx, e.admin, closed.ID), repository.ErrProtected)

	e.addEdge(t, e.draft, e.review, "")
	assert.ErrorIs(t, e.statuses.DeleteStatus(ctx, e.admin, e.review.ID), repository.ErrInUse)
	assert.NoError(t, e.statuses.DeleteStatus(ctx, e.admin, e.approved.ID))

	_, err = e.statuses.GetStatus(ctx, e.admin, e.approved.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestWorkflowService_Lookups(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addEdge(t, e.draft, e.review, "")
	e.addEdge(t, e.review, e.approved, e.approverRole.ID)
	e.addEdge(t, e.review, e.draft, "")

	from, err := e.workflows.FindByFromStatus(ctx, e.admin, e.review.ID)
	require.NoError(t, err)
	assert.Len(t, from, 2)

	to, err := e.workflows.FindByToStatus(ctx, e.admin, e.draft.ID)
	require.NoError(t, err)
	require.Len(t, to, 1)
	assert.Equal(t, e.review.ID, to[0].FromStatusID)

	byRole, err := e.workflows.FindByRole(ctx, e.admin, e.approverRole.ID)
	require.NoError(t, err)
	require.Len(t, byRole, 1)
	assert.Equal(t, e.approved.ID, byRole[0].ToStatusID)

	_, err = e.workflows.FindByWorkflow(ctx, e.admin, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = e.workflows.AddStatusTransition(ctx, e.admin, TransitionInput{WorkflowID: e.wf.ID, FromStatusID: e.draft.ID})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = e.workflows.AddStatusTransition(ctx, e.admin, TransitionInput{WorkflowID: e.wf.ID, FromStatusID: e.draft.ID, ToStatusID: e.draft.ID})
	assert.ErrorIs(t, err, repository.ErrSelfLoop)

	workflows, err := e.workflows.ListWorkflows(ctx, e.admin)
	require.NoError(t, err)
	assert.Len(t, workflows, 1)
}

func TestCrossTenantIsolation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addEdge(t, e.draft, e.review, "")
	item := e.newItem(t, e.draft)

	tenant := &models.Tenant{Name: "Other", Domain: "other.com"}
	require.NoError(t, e.store.CreateTenant(ctx, tenant))
	outsider := models.Actor{TenantID: tenant.ID, UserID: "eve@other.com"}

	_, err := e.items.GetItem(ctx, outsider, item.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = e.workflows.AddStatusTransition(ctx, outsider, TransitionInput{
		WorkflowID: e.wf.ID, FromStatusID: e.review.ID, ToStatusID: e.draft.ID,
	})
	assert.ErrorIs(t, err, models.ErrCrossTenant)

	_, err = e.access.CreateRole(ctx, outsider, "Approver")
	require.NoError(t, err, "role names are unique per tenant only")

	roles, err := e.access.MyRoles(ctx, e.approver)
	require.NoError(t, err)
	assert.Equal(t, []string{e.approverRole.ID}, roles)
}
