package roles

import (
	"net/http"

	"github.com/bissquit/identity-ledger/internal/pkg/httputil"
	"github.com/bissquit/identity-ledger/internal/pkg/txn"
	"github.com/bissquit/identity-ledger/internal/users"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler handles HTTP requests for the roles module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new roles handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: httputil.NewValidator(),
	}
}

// RegisterRoutes registers read routes available to any authenticated caller.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/roles", h.ListRoles)
	r.Get("/roles/active", h.ListActiveRoles)
	r.Get("/roles/{id}", h.GetRole)
	r.Get("/roles/name/{name}", h.GetRoleByName)
	r.Get("/roles/name/{name}/users", h.FindUsersByRoleName)
	r.Get("/roles/name/{name}/count", h.CountUsersByRoleName)
	r.Get("/roles/check-name/{name}", h.CheckName)
	r.Get("/roles/users/{userId}", h.GetUserRoles)
	r.Get("/roles/users/{userId}/names", h.GetUserRoleNames)
	r.Get("/roles/users/{userId}/has-role/{name}", h.UserHasRole)
}

// RegisterAdminRoutes registers write routes that require the ADMIN role.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/roles", h.CreateRole)
	r.Put("/roles/{id}", h.UpdateRole)
	r.Delete("/roles/{id}", h.DeleteRole)
	r.Post("/roles/users/{userId}/assign", h.AssignRoles)
	r.Post("/roles/users/{userId}/remove", h.RemoveRoles)
}

// CreateRoleRequest represents the request body for creating a role.
type CreateRoleRequest struct {
	Name        string `json:"name" validate:"required,max=50"`
	Description string `json:"description" validate:"max=255"`
	Active      *bool  `json:"active"`
}

// UpdateRoleRequest represents the request body for updating a role.
type UpdateRoleRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=50"`
	Description *string `json:"description" validate:"omitempty,max=255"`
	Active      *bool   `json:"active"`
}

// RoleNamesRequest represents the request body for assigning or removing roles.
type RoleNamesRequest struct {
	RoleNames []string `json:"role_names" validate:"required,min=1,dive,required,max=50"`
}

// CreateRole handles POST /roles.
func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req CreateRoleRequest
	if !httputil.DecodeJSON(w, r, h.validator, &req) {
		return
	}

	role, err := h.service.CreateRole(r.Context(), CreateRoleInput(req))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusCreated, role)
}

// GetRole handles GET /roles/{id}.
func (h *Handler) GetRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.service.GetRoleByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, role)
}

// GetRoleByName handles GET /roles/name/{name}.
func (h *Handler) GetRoleByName(w http.ResponseWriter, r *http.Request) {
	role, err := h.service.GetRoleByName(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, role)
}

// ListRoles handles GET /roles.
func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, roles)
}

// ListActiveRoles handles GET /roles/active.
func (h *Handler) ListActiveRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListActiveRoles(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, roles)
}

// UpdateRole handles PUT /roles/{id}.
func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req UpdateRoleRequest
	if !httputil.DecodeJSON(w, r, h.validator, &req) {
		return
	}

	role, err := h.service.UpdateRole(r.Context(), chi.URLParam(r, "id"), UpdateRoleInput(req))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, role)
}

// DeleteRole handles DELETE /roles/{id}.
func (h *Handler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteRole(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CheckName handles GET /roles/check-name/{name}.
func (h *Handler) CheckName(w http.ResponseWriter, r *http.Request) {
	name := CanonicalName(chi.URLParam(r, "name"))

	exists, err := h.service.ExistsByName(r.Context(), name)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, map[string]interface{}{
		"name":   name,
		"exists": exists,
	})
}

// AssignRoles handles POST /roles/users/{userId}/assign.
func (h *Handler) AssignRoles(w http.ResponseWriter, r *http.Request) {
	var req RoleNamesRequest
	if !httputil.DecodeJSON(w, r, h.validator, &req) {
		return
	}

	user, err := h.service.AssignRolesToUser(r.Context(), chi.URLParam(r, "userId"), req.RoleNames)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, user)
}

// RemoveRoles handles POST /roles/users/{userId}/remove.
func (h *Handler) RemoveRoles(w http.ResponseWriter, r *http.Request) {
	var req RoleNamesRequest
	if !httputil.DecodeJSON(w, r, h.validator, &req) {
		return
	}

	user, err := h.service.RemoveRolesFromUser(r.Context(), chi.URLParam(r, "userId"), req.RoleNames)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, user)
}

// GetUserRoles handles GET /roles/users/{userId}.
func (h *Handler) GetUserRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.GetUserRoles(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, roles)
}

// GetUserRoleNames handles GET /roles/users/{userId}/names.
func (h *Handler) GetUserRoleNames(w http.ResponseWriter, r *http.Request) {
	names, err := h.service.GetUserRoleNames(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, names)
}

// UserHasRole handles GET /roles/users/{userId}/has-role/{name}.
func (h *Handler) UserHasRole(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	name := CanonicalName(chi.URLParam(r, "name"))

	has, err := h.service.UserHasRole(r.Context(), userID, name)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, map[string]interface{}{
		"user_id":   userID,
		"role_name": name,
		"has_role":  has,
	})
}

// FindUsersByRoleName handles GET /roles/name/{name}/users.
func (h *Handler) FindUsersByRoleName(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.FindUsersByRoleName(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, list)
}

// CountUsersByRoleName handles GET /roles/name/{name}/count.
func (h *Handler) CountUsersByRoleName(w http.ResponseWriter, r *http.Request) {
	name := CanonicalName(chi.URLParam(r, "name"))

	count, err := h.service.CountUsersByRoleName(r.Context(), name)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, map[string]interface{}{
		"role_name":      name,
		"user_count":     count,
		"transaction_id": txn.FromContext(r.Context()),
	})
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.HandleError(r.Context(), w, err, []httputil.ErrorMapping{
		{Error: ErrRoleNotFound, Status: http.StatusNotFound},
		{Error: ErrRoleExists, Status: http.StatusConflict},
		{Error: ErrInvalidRoleID, Status: http.StatusBadRequest},
		{Error: ErrInvalidRoleName, Status: http.StatusBadRequest},
		{Error: ErrNoRoleNames, Status: http.StatusBadRequest},
		{Error: ErrRolesNotFound, Status: http.StatusBadRequest},
		{Error: users.ErrUserNotFound, Status: http.StatusNotFound},
		{Error: users.ErrInvalidUserID, Status: http.StatusBadRequest},
	})
}
