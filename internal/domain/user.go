// Package domain contains the core entities shared by the identity, users, roles and audit modules.
package domain

import "time"

// User represents an account that can authenticate and hold roles.
type User struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	PasswordHash  string    `json:"-"`
	Active        bool      `json:"active"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Roles         []Role    `json:"roles"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// RoleNames returns the names of all roles attached to the user, active or not.
func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}

// EffectiveRoles returns the names of the user's active roles.
// A user without any active role is treated as a plain USER.
func (u *User) EffectiveRoles() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		if r.Active {
			names = append(names, r.Name)
		}
	}
	if len(names) == 0 {
		names = append(names, RoleNameUser)
	}
	return names
}

// Authorities returns the effective roles in granted-authority form (ROLE_<NAME>).
func (u *User) Authorities() []string {
	roles := u.EffectiveRoles()
	authorities := make([]string, 0, len(roles))
	for _, r := range roles {
		authorities = append(authorities, AuthorityPrefix+r)
	}
	return authorities
}

// HasRole reports whether the user holds an active role with the given name.
func (u *User) HasRole(name string) bool {
	for _, r := range u.EffectiveRoles() {
		if r == name {
			return true
		}
	}
	return false
}
