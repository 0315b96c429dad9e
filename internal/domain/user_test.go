package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUser_EffectiveRoles(t *testing.T) {
	tests := []struct {
		name  string
		roles []Role
		want  []string
	}{
		{
			name:  "no roles defaults to USER",
			roles: nil,
			want:  []string{RoleNameUser},
		},
		{
			name:  "only inactive roles defaults to USER",
			roles: []Role{{Name: "AUDITOR", Active: false}},
			want:  []string{RoleNameUser},
		},
		{
			name: "inactive roles are skipped",
			roles: []Role{
				{Name: RoleNameAdmin, Active: true},
				{Name: "AUDITOR", Active: false},
			},
			want: []string{RoleNameAdmin},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &User{Roles: tt.roles}
			assert.Equal(t, tt.want, u.EffectiveRoles())
		})
	}
}

func TestUser_Authorities(t *testing.T) {
	u := &User{Roles: []Role{{Name: RoleNameAdmin, Active: true}, {Name: RoleNameUser, Active: true}}}

	assert.Equal(t, []string{"ROLE_ADMIN", "ROLE_USER"}, u.Authorities())
	assert.True(t, u.HasRole(RoleNameAdmin))
	assert.False(t, u.HasRole("AUDITOR"))
}

func TestUser_RoleNamesIncludesInactive(t *testing.T) {
	u := &User{Roles: []Role{{Name: "A", Active: true}, {Name: "B", Active: false}}}

	assert.Equal(t, []string{"A", "B"}, u.RoleNames())
}

func TestPrincipal_HasAnyRole(t *testing.T) {
	p := &Principal{Roles: []string{RoleNameUser}}

	assert.True(t, p.HasAnyRole(RoleNameAdmin, RoleNameUser))
	assert.False(t, p.HasAnyRole(RoleNameAdmin))
	assert.False(t, p.HasAnyRole())
}
