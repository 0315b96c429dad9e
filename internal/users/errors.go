package users

import "errors"

// Repository errors.
var (
	ErrUserNotFound   = errors.New("user not found")
	ErrUsernameExists = errors.New("username already exists")
)

// Validation errors.
var (
	ErrInvalidUserID   = errors.New("invalid user id")
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")
)
