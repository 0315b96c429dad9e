package identity

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/bissquit/identity-ledger/internal/pkg/ctxlog"
	"github.com/bissquit/identity-ledger/internal/pkg/httputil"
	"github.com/bissquit/identity-ledger/internal/pkg/txn"
	"github.com/bissquit/identity-ledger/internal/users"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler handles HTTP requests for the identity module.
type Handler struct {
	service   *Service
	validator *validator.Validate
	now       func() time.Time
}

// NewHandler creates a new identity handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: httputil.NewValidator(),
		now:       time.Now,
	}
}

// RegisterRoutes registers the public /auth routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/register", h.Register)
		r.Post("/refresh", h.Refresh)
		r.Post("/logout", h.Logout)
		r.Get("/health", h.Health)
	})
}

// CredentialsRequest is the body of login and register requests.
type CredentialsRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=6,bcryptmax"`
}

// RefreshRequest is the body of refresh and logout requests.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// AuthResponse is returned by login, register and refresh.
type AuthResponse struct {
	AccessToken      string   `json:"access_token"`
	RefreshToken     string   `json:"refresh_token"`
	TokenType        string   `json:"token_type"`
	ExpiresIn        int64    `json:"expires_in"`
	RefreshExpiresIn int64    `json:"refresh_expires_in"`
	Username         string   `json:"username"`
	Roles            []string `json:"roles"`
	TransactionID    string   `json:"transaction_id"`
}

func newAuthResponse(res *AuthResult) AuthResponse {
	return AuthResponse{
		AccessToken:      res.Tokens.AccessToken,
		RefreshToken:     res.Tokens.RefreshToken,
		TokenType:        TokenType,
		ExpiresIn:        res.Tokens.ExpiresIn,
		RefreshExpiresIn: res.Tokens.RefreshExpiresIn,
		Username:         res.Username,
		Roles:            res.Roles,
		TransactionID:    res.Tokens.TransactionID,
	}
}

// Login handles POST /auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !httputil.DecodeJSON(w, r, h.validator, &req) {
		return
	}

	res, err := h.service.Login(r.Context(), LoginInput(req))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, newAuthResponse(res))
}

// Register handles POST /auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !httputil.DecodeJSON(w, r, h.validator, &req) {
		return
	}

	res, err := h.service.Register(r.Context(), RegisterInput(req))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusCreated, newAuthResponse(res))
}

// Refresh handles POST /auth/refresh.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := readRefreshToken(r)
	if token == "" {
		httputil.Error(w, http.StatusBadRequest, "missing refresh token")
		return
	}

	res, err := h.service.Refresh(r.Context(), token)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, newAuthResponse(res))
}

// Logout handles POST /auth/logout. It always succeeds.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := readRefreshToken(r); token != "" {
		if err := h.service.Logout(r.Context(), token); err != nil {
			ctxlog.FromContext(r.Context()).Warn("logout error", "error", err)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// Health handles GET /auth/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.Success(w, http.StatusOK, map[string]interface{}{
		"status":         "UP",
		"service":        "authentication",
		"transaction_id": txn.FromContext(r.Context()),
		"timestamp":      h.now().UTC(),
	})
}

func readRefreshToken(r *http.Request) string {
	var body RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return ""
	}
	return strings.TrimSpace(body.RefreshToken)
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.HandleError(r.Context(), w, err, []httputil.ErrorMapping{
		{Error: ErrTokenExpired, Status: http.StatusUnauthorized, Message: "token expired"},
		{Error: ErrInvalidToken, Status: http.StatusUnauthorized, Message: "invalid token"},
		{Error: ErrInvalidCredentials, Status: http.StatusUnauthorized},
		{Error: ErrUserInactive, Status: http.StatusForbidden},
		{Error: ErrNotRefreshToken, Status: http.StatusUnauthorized, Message: "invalid refresh token"},
		{Error: ErrTokenRevoked, Status: http.StatusUnauthorized},
		{Error: users.ErrUsernameExists, Status: http.StatusConflict},
		{Error: users.ErrPasswordTooLong, Status: http.StatusBadRequest},
	})
}
