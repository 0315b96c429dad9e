package testutil

import (
	"net/http"
	"testing"

	"github.com/bissquit/identity-ledger/api/openapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOpenAPIValidator_Documents(t *testing.T) {
	v, err := LoadOpenAPIValidator(openapi.Spec)
	require.NoError(t, err)

	assert.True(t, v.Documents(http.MethodPost, "/api/auth/login"))
	assert.True(t, v.Documents(http.MethodGet, "/api/roles/users/0b6f6a8e-1b2c-4d3e-8f90-123456789abc/has-role/ADMIN"))
	assert.False(t, v.Documents(http.MethodDelete, "/api/auth/login"))
	assert.False(t, v.Documents(http.MethodGet, "/api/unknown"))
}

func TestLoadOpenAPIValidator_InvalidDocument(t *testing.T) {
	_, err := LoadOpenAPIValidator([]byte("not: [valid"))
	assert.Error(t, err)
}
