// Package services holds the tenant-scoped use cases behind the REST API,
// the MCP tools and the seed command.
package services

import (
	"errors"
	"fmt"
	"strings"

	"derbent-workflow/backend/pkg/models"
)

// ErrInvalidInput reports a missing or malformed request field.
var ErrInvalidInput = errors.New("invalid input")

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required: %w", field, ErrInvalidInput)
	}
	return nil
}

func checkActor(actor models.Actor) error {
	if actor.TenantID == "" {
		return fmt.Errorf("actor has no tenant: %w", ErrInvalidInput)
	}
	return nil
}
