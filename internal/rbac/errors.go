package rbac

import (
	"fmt"

	"github.com/roster-app/roster/internal/platform/httpx"
)

var (
	// ErrUnauthenticated indicates the request carries no valid session.
	ErrUnauthenticated = fmt.Errorf("%w: authentication required", httpx.ErrUnauthorized)
	// ErrPermissionDenied indicates the actor lacks the required permission.
	ErrPermissionDenied = fmt.Errorf("%w: permission denied", httpx.ErrForbidden)
	// ErrOwnershipDenied indicates the actor neither owns the record nor holds
	// admin. The message never reveals the owner.
	ErrOwnershipDenied = fmt.Errorf("%w: access denied", httpx.ErrForbidden)
)

// PermissionError names the permission that was missing.
type PermissionError struct {
	Required Permission
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s. Requires: %s", ErrPermissionDenied, e.Required)
}

func (e *PermissionError) Unwrap() error {
	return ErrPermissionDenied
}
