package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the caller may not perform the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrSystemRoleImmutable occurs on attempts to edit built-in roles.
	ErrSystemRoleImmutable = errors.New("system role is immutable")
	// ErrDuplicateRole occurs when a role name already exists in a practice.
	ErrDuplicateRole = errors.New("role name already exists")
	// ErrValidation wraps input validation failures so handlers can map
	// them to 400 responses.
	ErrValidation = errors.New("validation failed")
)
