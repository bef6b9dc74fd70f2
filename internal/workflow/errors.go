package workflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnconfigured     = errors.New("no workflow configured")
	ErrNoSuchTransition = errors.New("transition not defined by workflow")
	ErrRoleDenied       = errors.New("caller lacks a role permitted for this transition")
)

// DeniedError is returned by RequestStatusChange when the engine refuses a
// change. errors.Is matches it against the sentinel for its reason.
type DeniedError struct {
	Decision Decision
}

func (e *DeniedError) Error() string {
	d := e.Decision
	switch d.Reason {
	case ReasonUnconfigured:
		return "status change denied: item type has no workflow"
	case ReasonRoleDenied:
		return fmt.Sprintf("status change %s -> %s denied: requires one of roles [%s]",
			d.FromStatusID, d.ToStatusID, strings.Join(d.RequiredRoles, ", "))
	default:
		return fmt.Sprintf("status change %s -> %s denied: %s",
			d.FromStatusID, d.ToStatusID, strings.ToLower(string(d.Reason)))
	}
}

func (e *DeniedError) Is(target error) bool {
	switch e.Decision.Reason {
	case ReasonUnconfigured:
		return target == ErrUnconfigured
	case ReasonNoSuchTransition:
		return target == ErrNoSuchTransition
	case ReasonRoleDenied:
		return target == ErrRoleDenied
	}
	return false
}
