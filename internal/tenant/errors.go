package tenant

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no document exists for the requested tenant id.
var ErrNotFound = errors.New("tenant config not found")

// ValidationError reports a structural problem in a tenant document.
// Loading never returns a document that failed any check.
type ValidationError struct {
	TenantID string
	Path     string
	Reason   string
}

func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("tenant config %q invalid at %s: %s", e.TenantID, e.Path, e.Reason)
	}
	return fmt.Sprintf("tenant config %q invalid: %s", e.TenantID, e.Reason)
}

// MissingSecretError reports an enabled integration whose environment
// variable is unset or empty at resolution time.
type MissingSecretError struct {
	Integration string
	Param       string
	EnvVar      string
}

func (e *MissingSecretError) Error() string {
	return fmt.Sprintf("integration %q is enabled but env variable %q (for param %q) is not set",
		e.Integration, e.EnvVar, e.Param)
}
