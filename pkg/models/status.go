package models

import "time"

// StatusFlags classify a status for callers. The flags are independent of
// each other.
type StatusFlags struct {
	Cancelled  bool `json:"is_cancelled"`
	Closed     bool `json:"is_closed"`
	Completed  bool `json:"is_completed"`
	InProgress bool `json:"is_in_progress"`
	Paused     bool `json:"is_paused"`
	Final      bool `json:"is_final"`
}

// Status is a named lifecycle state. Names are unique within a tenant.
type Status struct {
	ID           string      `json:"id"`
	TenantID     string      `json:"tenant_id"`
	Name         string      `json:"name"`
	Color        string      `json:"color,omitempty"`
	SortOrder    int         `json:"sort_order"`
	NonDeletable bool        `json:"non_deletable"`
	Flags        StatusFlags `json:"flags"`
	CreatedAt    time.Time   `json:"created_at"`
}
