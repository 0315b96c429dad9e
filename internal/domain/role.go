package domain

import "time"

// Built-in role names seeded by migrations.
const (
	RoleNameAdmin = "ADMIN"
	RoleNameUser  = "USER"
)

// AuthorityPrefix is prepended to role names inside access tokens.
const AuthorityPrefix = "ROLE_"

// Role is a named permission group. Only active roles grant authority.
type Role struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Active        bool      `json:"active"`
	TransactionID string    `json:"transaction_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
