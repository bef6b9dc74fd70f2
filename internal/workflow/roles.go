package workflow

import (
	"context"
	"sort"
)

// RoleSet is the set of role IDs held by a caller.
type RoleSet map[string]struct{}

// NewRoleSet builds a set from role IDs. Empty IDs are ignored.
func NewRoleSet(ids ...string) RoleSet {
	set := make(RoleSet, len(ids))
	for _, id := range ids {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}

// Has reports whether the set contains the role.
func (s RoleSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// IDs returns the role IDs in sorted order.
func (s RoleSet) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RoleResolver returns the roles a user holds in a scope (tenant or project).
type RoleResolver interface {
	RolesOf(ctx context.Context, userID, scope string) (RoleSet, error)
}
