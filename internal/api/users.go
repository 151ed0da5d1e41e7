package api

import (
	"net/http"

	"github.com/erazemk/zaloga/internal/cache"
	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/service"
)

// UsersHandler handles account management endpoints (superadmin only).
type UsersHandler struct {
	Service *service.Service
}

type updateRoleRequest struct {
	Role model.Role `json:"role"`
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

// List handles GET /api/users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	if notModified(w, r, h.Service.Versions(), cache.Users) {
		return
	}
	users, err := h.Service.ListUsers(r.Context(), session(r))
	if err != nil {
		serviceError(w, r, err)
		return
	}
	listResponse(w, users)
}

// Create handles POST /api/users.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.UserInput
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.Service.CreateUser(r.Context(), session(r), req)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, user)
}

// UpdateRole handles PUT /api/users/{id}/role.
func (h *UsersHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req updateRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.Service.SetUserRole(r.Context(), session(r), r.PathValue("id"), req.Role)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, user)
}

// ResetPassword handles PUT /api/users/{id}/password.
func (h *UsersHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Service.ResetPassword(r.Context(), session(r), r.PathValue("id"), req.Password); err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password reset"})
}

// Delete handles DELETE /api/users/{id}.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteUser(r.Context(), session(r), r.PathValue("id")); err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "user deleted"})
}
