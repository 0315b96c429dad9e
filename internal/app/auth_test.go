//go:build integration

package app_test

import (
	"net/http"
	"testing"

	"github.com/bissquit/identity-ledger/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authData struct {
	AccessToken   string   `json:"access_token"`
	RefreshToken  string   `json:"refresh_token"`
	TokenType     string   `json:"token_type"`
	ExpiresIn     int64    `json:"expires_in"`
	Username      string   `json:"username"`
	Roles         []string `json:"roles"`
	TransactionID string   `json:"transaction_id"`
}

func TestAuth_Register_Login_Flow(t *testing.T) {
	client := newTestClient(t)
	username := testutil.RandomUsername("reg")
	password := "password123"

	resp, err := client.POST("/api/auth/register", map[string]string{
		"username": username,
		"password": password,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var registered struct {
		Data authData `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &registered)
	assert.Equal(t, username, registered.Data.Username)
	assert.Equal(t, "Bearer", registered.Data.TokenType)
	assert.NotEmpty(t, registered.Data.AccessToken)
	assert.NotEmpty(t, registered.Data.RefreshToken)
	assert.Equal(t, []string{"USER"}, registered.Data.Roles)

	resp, err = client.POST("/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var loggedIn struct {
		Data authData `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &loggedIn)
	assert.Equal(t, username, loggedIn.Data.Username)
	assert.Equal(t, resp.Header.Get("X-Transaction-ID"), loggedIn.Data.TransactionID)
}

func TestAuth_Login_InvalidCredentials(t *testing.T) {
	client := newTestClient(t)

	resp, err := client.POST("/api/auth/login", map[string]string{
		"username": "nobody_here",
		"password": "wrongpassword",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestAuth_Register_DuplicateUsername(t *testing.T) {
	client := newTestClient(t)
	username := testutil.RandomUsername("dup")

	resp, err := client.POST("/api/auth/register", map[string]string{
		"username": username,
		"password": "password123",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = client.POST("/api/auth/register", map[string]string{
		"username": username,
		"password": "password456",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestAuth_Register_ValidationError(t *testing.T) {
	client := newTestClient(t)

	resp, err := client.POST("/api/auth/register", map[string]string{
		"username": "ab",
		"password": "123",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestAuth_ProtectedRoutes_RequireToken(t *testing.T) {
	client := newTestClient(t)

	resp, err := client.GET("/api/users")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()

	client.Token = "not-a-jwt"
	resp, err = client.GET("/api/roles")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestAuth_AdminRoutes_ForbiddenForRegularUser(t *testing.T) {
	client := newTestClient(t)
	username := testutil.RandomUsername("plain")

	resp, err := client.POST("/api/auth/register", map[string]string{
		"username": username,
		"password": "password123",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	client.LoginAs(t, username, "password123")

	resp, err = client.GET("/api/roles")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = client.POST("/api/roles", map[string]string{"name": testutil.RandomRoleName("nope")})
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestAuth_Refresh_RotatesRefreshToken(t *testing.T) {
	client := newTestClient(t)
	refreshToken := client.LoginAsAdmin(t)

	resp, err := client.POST("/api/auth/refresh", map[string]string{"refresh_token": refreshToken})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var refreshed struct {
		Data authData `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &refreshed)
	assert.NotEmpty(t, refreshed.Data.AccessToken)
	assert.NotEqual(t, refreshToken, refreshed.Data.RefreshToken)
	assert.Contains(t, refreshed.Data.Roles, "ADMIN")

	resp, err = client.POST("/api/auth/refresh", map[string]string{"refresh_token": refreshToken})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()

	client.Token = refreshed.Data.AccessToken
	resp, err = client.GET("/api/users")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestAuth_Refresh_RejectsAccessToken(t *testing.T) {
	client := newTestClient(t)
	client.LoginAsAdmin(t)

	resp, err := client.POST("/api/auth/refresh", map[string]string{"refresh_token": client.Token})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestAuth_Logout_RevokesRefreshToken(t *testing.T) {
	client := newTestClient(t)
	refreshToken := client.LoginAsAdmin(t)

	resp, err := client.POST("/api/auth/logout", map[string]string{"refresh_token": refreshToken})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = client.POST("/api/auth/refresh", map[string]string{"refresh_token": refreshToken})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestAuth_Logout_WithoutBody(t *testing.T) {
	client := newTestClient(t)

	resp, err := client.POST("/api/auth/logout", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestAuth_Health(t *testing.T) {
	client := newTestClient(t)

	resp, err := client.GET("/api/auth/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data struct {
			Status  string `json:"status"`
			Service string `json:"service"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	assert.Equal(t, "UP", result.Data.Status)
	assert.Equal(t, "authentication", result.Data.Service)
}
