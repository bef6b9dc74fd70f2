package models

import "errors"

var (
	// ErrCrossTenant is returned when a reference points outside the tenant
	// scope of its owner.
	ErrCrossTenant = errors.New("reference crosses tenant scope")
	// ErrNullStatus is returned when an item would be left without a status.
	ErrNullStatus = errors.New("status is required")
	// ErrStatusAlreadySet is returned when the privileged initial assignment
	// is attempted on an item that already has a status.
	ErrStatusAlreadySet = errors.New("initial status already assigned")
)

// ErrInvalidReference is returned when a reference is empty or names nothing.
var ErrInvalidReference = errors.New("invalid reference")
