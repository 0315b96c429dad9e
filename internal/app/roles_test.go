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

func TestRoles_CRUD(t *testing.T) {
	admin := newTestClient(t)
	admin.LoginAsAdmin(t)

	name := testutil.RandomRoleName("crud")
	role := createTestRole(t, admin, strings.ToLower(name))
	assert.Equal(t, name, role.Name, "names are stored upper-cased")
	assert.True(t, role.Active)

	resp, err := admin.GET("/api/roles/name/" + strings.ToLower(name))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var byName struct {
		Data roleData `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &byName)
	assert.Equal(t, role.ID, byName.Data.ID)

	resp, err = admin.GET("/api/roles/check-name/" + name)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var check struct {
		Data struct {
			Exists bool `json:"exists"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &check)
	assert.True(t, check.Data.Exists)

	resp, err = admin.PUT("/api/roles/"+role.ID, map[string]interface{}{
		"description": "updated",
		"active":      false,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated struct {
		Data roleData `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &updated)
	assert.Equal(t, "updated", updated.Data.Description)
	assert.False(t, updated.Data.Active)

	resp, err = admin.GET("/api/roles/active")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var active struct {
		Data []roleData `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &active)
	for _, r := range active.Data {
		assert.NotEqual(t, role.ID, r.ID)
	}

	resp, err = admin.DELETE("/api/roles/" + role.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = admin.GET("/api/roles/" + role.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestRoles_Create_Invalid(t *testing.T) {
	admin := newTestClient(t)
	admin.LoginAsAdmin(t)

	resp, err := admin.POST("/api/roles", map[string]string{"name": "ADMIN"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = admin.POST("/api/roles", map[string]string{"name": "1-bad name"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestRoles_AssignAndRemove(t *testing.T) {
	admin := newTestClient(t)
	admin.LoginAsAdmin(t)

	editor := createTestRole(t, admin, testutil.RandomRoleName("editor"))
	viewer := createTestRole(t, admin, testutil.RandomRoleName("viewer"))
	user := createTestUser(t, admin, testutil.RandomUsername("member"), "password123")

	txnID := testutil.RandomTransactionID("ASSIGN")
	admin.Headers["X-Transaction-ID"] = txnID
	resp, err := admin.POST("/api/roles/users/"+user.ID+"/assign", map[string]interface{}{
		"role_names": []string{editor.Name, strings.ToLower(viewer.Name), editor.Name},
	})
	delete(admin.Headers, "X-Transaction-ID")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var assigned struct {
		Data userData `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &assigned)
	assert.ElementsMatch(t, []string{editor.Name, viewer.Name}, roleNames(assigned.Data))
	assert.Equal(t, txnID, assigned.Data.TransactionID)

	resp, err = admin.GET("/api/roles/users/" + user.ID + "/has-role/" + editor.Name)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var hasRole struct {
		Data struct {
			HasRole bool `json:"has_role"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &hasRole)
	assert.True(t, hasRole.Data.HasRole)

	resp, err = admin.GET("/api/roles/name/" + editor.Name + "/count")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var count struct {
		Data struct {
			RoleName  string `json:"role_name"`
			UserCount int64  `json:"user_count"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &count)
	assert.Equal(t, editor.Name, count.Data.RoleName)
	assert.Equal(t, int64(1), count.Data.UserCount)

	resp, err = admin.GET("/api/users?role=" + viewer.Name)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var members struct {
		Data []userData `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &members)
	require.Len(t, members.Data, 1)
	assert.Equal(t, user.ID, members.Data[0].ID)

	resp, err = admin.POST("/api/roles/users/"+user.ID+"/remove", map[string]interface{}{
		"role_names": []string{editor.Name},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var removed struct {
		Data userData `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &removed)
	assert.Equal(t, []string{viewer.Name}, roleNames(removed.Data))

	resp, err = admin.GET("/api/roles/users/" + user.ID + "/names")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var names struct {
		Data []string `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &names)
	assert.Equal(t, []string{viewer.Name}, names.Data)
}

func TestRoles_Assign_UnknownRole(t *testing.T) {
	admin := newTestClient(t)
	admin.LoginAsAdmin(t)

	user := createTestUser(t, admin, testutil.RandomUsername("lonely"), "password123")

	resp, err := admin.POST("/api/roles/users/"+user.ID+"/assign", map[string]interface{}{
		"role_names": []string{"NO_SUCH_ROLE_EVER"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = admin.GET("/api/roles/users/" + user.ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var roles struct {
		Data []roleData `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &roles)
	assert.Empty(t, roles.Data)
}

func TestRoles_Assign_UnknownUser(t *testing.T) {
	admin := newTestClient(t)
	admin.LoginAsAdmin(t)

	resp, err := admin.POST("/api/roles/users/00000000-0000-0000-0000-000000000000/assign", map[string]interface{}{
		"role_names": []string{"ADMIN"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestRoles_AssignedRoleAppearsInToken(t *testing.T) {
	admin := newTestClient(t)
	admin.LoginAsAdmin(t)

	role := createTestRole(t, admin, testutil.RandomRoleName("token"))
	username := testutil.RandomUsername("holder")
	user := createTestUser(t, admin, username, "password123")

	resp, err := admin.POST("/api/roles/users/"+user.ID+"/assign", map[string]interface{}{
		"role_names": []string{role.Name},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	client := newTestClient(t)
	resp, err = client.POST("/api/auth/login", map[string]string{
		"username": username,
		"password": "password123",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var login struct {
		Data authData `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &login)
	assert.Equal(t, []string{role.Name}, login.Data.Roles)
}
