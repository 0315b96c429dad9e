//go:build integration

package app_test

import (
	"net/http"
	"testing"

	"github.com/bissquit/identity-ledger/internal/testutil"
	"github.com/stretchr/testify/require"
)

type userData struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Active        bool   `json:"active"`
	TransactionID string `json:"transaction_id"`
	Roles         []struct {
		Name string `json:"name"`
	} `json:"roles"`
}

type roleData struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Active        bool   `json:"active"`
	TransactionID string `json:"transaction_id"`
}

// createTestUser creates a user through the admin API and registers its deletion.
func createTestUser(t *testing.T, admin *testutil.Client, username, password string) userData {
	t.Helper()

	resp, err := admin.POST("/api/users", map[string]interface{}{
		"username": username,
		"password": password,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		Data userData `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)

	t.Cleanup(func() {
		resp, err := admin.WithoutValidation().DELETE("/api/users/" + result.Data.ID)
		if err == nil {
			_ = resp.Body.Close()
		}
	})
	return result.Data
}

// createTestRole creates an active role and registers its deletion.
func createTestRole(t *testing.T, admin *testutil.Client, name string) roleData {
	t.Helper()

	resp, err := admin.POST("/api/roles", map[string]interface{}{
		"name":        name,
		"description": "integration test role",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		Data roleData `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)

	t.Cleanup(func() {
		resp, err := admin.WithoutValidation().DELETE("/api/roles/" + result.Data.ID)
		if err == nil {
			_ = resp.Body.Close()
		}
	})
	return result.Data
}

func roleNames(u userData) []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}
