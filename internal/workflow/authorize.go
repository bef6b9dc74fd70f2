package workflow

import (
	"sort"

	"derbent-workflow/backend/pkg/models"
)

// Reason classifies a denied status change.
type Reason string

const (
	ReasonUnconfigured     Reason = "UNCONFIGURED"
	ReasonNoSuchTransition Reason = "NO_SUCH_TRANSITION"
	ReasonRoleDenied       Reason = "ROLE_DENIED"
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed       bool     `json:"allowed"`
	Reason        Reason   `json:"reason,omitempty"`
	WorkflowID    string   `json:"workflow_id,omitempty"`
	FromStatusID  string   `json:"from_status_id"`
	ToStatusID    string   `json:"to_status_id"`
	RequiredRoles []string `json:"required_roles,omitempty"` // set only for ROLE_DENIED
}

// Err returns nil for an allowed decision and a *DeniedError otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &DeniedError{Decision: d}
}

// Authorize decides whether a caller holding roles may move an item of
// workflow wf from status from to status to. A nil workflow is denied.
// It only reads its arguments.
func Authorize(wf *models.Workflow, edges []*models.Transition, from, to string, roles RoleSet) Decision {
	d := Decision{FromStatusID: from, ToStatusID: to}
	if wf == nil {
		d.Reason = ReasonUnconfigured
		return d
	}
	d.WorkflowID = wf.ID

	matched := false
	required := make(map[string]struct{})
	for _, e := range edges {
		if e == nil || e.WorkflowID != wf.ID || e.FromStatusID != from || e.ToStatusID != to {
			continue
		}
		matched = true
		if e.Wildcard() || roles.Has(e.RoleID) {
			d.Allowed = true
			d.RequiredRoles = nil
			return d
		}
		required[e.RoleID] = struct{}{}
	}
	if !matched {
		d.Reason = ReasonNoSuchTransition
		return d
	}

	d.Reason = ReasonRoleDenied
	for id := range required {
		d.RequiredRoles = append(d.RequiredRoles, id)
	}
	sort.Strings(d.RequiredRoles)
	return d
}
