package roles

import "errors"

// Repository errors.
var (
	ErrRoleNotFound = errors.New("role not found")
	ErrRoleExists   = errors.New("role name already exists")
)

// Validation errors.
var (
	ErrInvalidRoleID   = errors.New("invalid role id")
	ErrInvalidRoleName = errors.New("role name must start with a letter and contain only letters, digits and underscores")
	ErrNoRoleNames     = errors.New("at least one role name is required")
)

// ErrRolesNotFound is returned when an assignment names roles that do not exist.
// It is wrapped with the missing names.
var ErrRolesNotFound = errors.New("roles not found")
