//go:build integration

package app_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/bissquit/identity-ledger/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsers_CRUD(t *testing.T) {
	admin := newTestClient(t)
	admin.LoginAsAdmin(t)

	username := testutil.RandomUsername("crud")
	txnID := testutil.RandomTransactionID("CRUD")
	admin.Headers["X-Transaction-ID"] = txnID

	created := createTestUser(t, admin, username, "password123")
	assert.Equal(t, username, created.Username)
	assert.True(t, created.Active)
	assert.Equal(t, txnID, created.TransactionID)
	assert.Empty(t, created.Roles)
	delete(admin.Headers, "X-Transaction-ID")

	t.Run("get by id", func(t *testing.T) {
		admin.SetT(t)
		resp, err := admin.GET("/api/users/" + created.ID)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var result struct {
			Data userData `json:"data"`
		}
		testutil.DecodeJSON(t, resp, &result)
		assert.Equal(t, username, result.Data.Username)
	})

	t.Run("get by username", func(t *testing.T) {
		admin.SetT(t)
		resp, err := admin.GET("/api/users/username/" + username)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var result struct {
			Data userData `json:"data"`
		}
		testutil.DecodeJSON(t, resp, &result)
		assert.Equal(t, created.ID, result.Data.ID)
	})

	t.Run("check username", func(t *testing.T) {
		admin.SetT(t)
		resp, err := admin.GET("/api/users/check-username/" + username)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var result struct {
			Data struct {
				Username string `json:"username"`
				Exists   bool   `json:"exists"`
			} `json:"data"`
		}
		testutil.DecodeJSON(t, resp, &result)
		assert.True(t, result.Data.Exists)
	})

	t.Run("update deactivates user", func(t *testing.T) {
		admin.SetT(t)
		resp, err := admin.PUT("/api/users/"+created.ID, map[string]interface{}{
			"active": false,
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var result struct {
			Data userData `json:"data"`
		}
		testutil.DecodeJSON(t, resp, &result)
		assert.False(t, result.Data.Active)
		assert.NotEqual(t, txnID, result.Data.TransactionID)

		login := newTestClientWithoutValidation()
		resp, err = login.POST("/api/auth/login", map[string]string{
			"username": username,
			"password": "password123",
		})
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("list filters by active", func(t *testing.T) {
		admin.SetT(t)
		resp, err := admin.GET("/api/users?active=false")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var result struct {
			Data []userData `json:"data"`
		}
		testutil.DecodeJSON(t, resp, &result)

		found := false
		for _, u := range result.Data {
			assert.False(t, u.Active)
			if u.ID == created.ID {
				found = true
			}
		}
		assert.True(t, found)
	})

	t.Run("delete", func(t *testing.T) {
		admin.SetT(t)
		resp, err := admin.DELETE("/api/users/" + created.ID)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		_ = resp.Body.Close()

		resp, err = admin.GET("/api/users/" + created.ID)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		_ = resp.Body.Close()
	})
}

func TestUsers_Create_DuplicateUsername(t *testing.T) {
	admin := newTestClient(t)
	admin.LoginAsAdmin(t)

	username := testutil.RandomUsername("taken")
	createTestUser(t, admin, username, "password123")

	resp, err := admin.POST("/api/users", map[string]interface{}{
		"username": username,
		"password": "password123",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestUsers_InvalidID(t *testing.T) {
	admin := newTestClient(t)
	admin.LoginAsAdmin(t)

	resp, err := admin.GET("/api/users/not-a-uuid")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = admin.GET("/api/users/00000000-0000-0000-0000-000000000000")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestUsers_List_InvalidActiveFilter(t *testing.T) {
	admin := newTestClient(t)
	admin.LoginAsAdmin(t)

	resp, err := admin.GET("/api/users?active=maybe")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestUsers_Create_LongCorrelationID(t *testing.T) {
	admin := newTestClient(t)
	admin.LoginAsAdmin(t)

	for _, size := range []int{100, 4096} {
		correlationID := strings.Repeat("c", size)
		admin.Headers["X-Correlation-ID"] = correlationID

		username := testutil.RandomUsername("longid")
		resp, err := admin.POST("/api/users", map[string]interface{}{
			"username": username,
			"password": "password123",
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode, "correlation id of %d chars", size)
		assert.Equal(t, correlationID, resp.Header.Get("X-Transaction-ID"))

		var result struct {
			Data userData `json:"data"`
		}
		testutil.DecodeJSON(t, resp, &result)
		assert.Equal(t, correlationID, result.Data.TransactionID)

		delete(admin.Headers, "X-Correlation-ID")
		resp, err = admin.WithoutValidation().DELETE("/api/users/" + result.Data.ID)
		require.NoError(t, err)
		_ = resp.Body.Close()
	}
}
