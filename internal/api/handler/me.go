package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/daap14/signon/internal/api/middleware"
	"github.com/daap14/signon/internal/api/response"
	"github.com/daap14/signon/internal/auth"
)

type meResponse struct {
	ID          int64    `json:"id"`
	UserName    string   `json:"userName"`
	FullName    string   `json:"fullName"`
	Admin       bool     `json:"admin"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

type permissionResponse struct {
	Permission string `json:"permission"`
	Allowed    bool   `json:"allowed"`
}

// MeHandler serves the signed-in user. Routes are expected behind
// middleware.RequireAuth.
type MeHandler struct{}

// NewMeHandler creates a new MeHandler.
func NewMeHandler() *MeHandler {
	return &MeHandler{}
}

// Get handles GET /me.
func (h *MeHandler) Get(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	user, ok := h.user(w, r)
	if !ok {
		return
	}

	response.Success(w, http.StatusOK, toMeResponse(user), requestID)
}

// Permission handles GET /me/permissions/{name}.
func (h *MeHandler) Permission(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	name := chi.URLParam(r, "name")

	if _, ok := h.user(w, r); !ok {
		return
	}

	allowed, err := auth.FromContext(r.Context()).IsAllowed(r.Context(), name)
	if err != nil {
		slog.Error("permission check failed", "error", err, "permission", name, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to check permission", requestID)
		return
	}

	response.Success(w, http.StatusOK, permissionResponse{Permission: name, Allowed: allowed}, requestID)
}

func (h *MeHandler) user(w http.ResponseWriter, r *http.Request) (*auth.User, bool) {
	requestID := middleware.GetRequestID(r.Context())

	svc := auth.FromContext(r.Context())
	if svc == nil {
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Authentication is not configured", requestID)
		return nil, false
	}

	user, err := svc.User(r.Context())
	if err != nil {
		slog.Error("resolving user failed", "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to resolve user", requestID)
		return nil, false
	}
	if user == nil {
		response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Sign in required", requestID)
		return nil, false
	}
	return user, true
}

func toMeResponse(u *auth.User) meResponse {
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}
	perms := u.Permissions
	if perms == nil {
		perms = []string{}
	}
	return meResponse{
		ID:          u.ID,
		UserName:    u.UserName,
		FullName:    u.FullName,
		Admin:       u.Admin,
		Roles:       roles,
		Permissions: perms,
	}
}
