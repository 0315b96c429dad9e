package identity

import "errors"

// Authentication errors.
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserInactive       = errors.New("user is inactive")
)

// Token errors.
var (
	ErrInvalidToken    = errors.New("invalid token")
	ErrTokenExpired    = errors.New("token expired")
	ErrNotRefreshToken = errors.New("not a refresh token")
	ErrNotAccessToken  = errors.New("not an access token")
	ErrTokenRevoked    = errors.New("token revoked")
)
