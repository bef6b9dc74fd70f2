package models

import "time"

// Item kinds that share the workflow engine.
const (
	KindActivity  = "activity"
	KindBudget    = "budget"
	KindComponent = "component"
	KindDecision  = "decision"
	KindMeeting   = "meeting"
	KindOrder     = "order"
	KindProject   = "project"
	KindProvider  = "provider"
	KindRisk      = "risk"
	KindSprint    = "sprint"
	KindTicket    = "ticket"
)

// Item is the stored form of any workflow-aware item. Its workflow is
// derived through TypeID.
type Item struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	TypeID    string    `json:"item_type_id"`
	StatusID  string    `json:"status_id"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (i *Item) TenantScope() string   { return i.TenantID }
func (i *Item) CurrentStatus() string { return i.StatusID }
func (i *Item) ItemTypeID() string    { return i.TypeID }

// SetItemType moves the item to another type of the same tenant.
func (i *Item) SetItemType(t ItemType) error {
	if t.ID == "" {
		return ErrInvalidReference
	}
	if t.TenantID != i.TenantID {
		return ErrCrossTenant
	}
	i.TypeID = t.ID
	return nil
}

// InitializeStatus assigns the first status of a new item. It does not
// consult the workflow graph.
func (i *Item) InitializeStatus(s Status) error {
	if s.ID == "" {
		return ErrNullStatus
	}
	if s.TenantID != i.TenantID {
		return ErrCrossTenant
	}
	if i.StatusID != "" {
		return ErrStatusAlreadySet
	}
	i.StatusID = s.ID
	return nil
}

// AssignStatus records a status change that has already been authorized.
func (i *Item) AssignStatus(statusID string) {
	i.StatusID = statusID
	i.UpdatedAt = time.Now().UTC()
}
