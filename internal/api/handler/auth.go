package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/daap14/signon/internal/api/middleware"
	"github.com/daap14/signon/internal/api/response"
	"github.com/daap14/signon/internal/auth"
)

// AuthHandler is the controller behind the transient sign-in and sign-out
// routes. It submits the matching form and redirects to the form's target.
type AuthHandler struct{}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler() *AuthHandler {
	return &AuthHandler{}
}

// SignIn handles the sign-in route.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, (*auth.Service).SignInForm)
}

// SignOut handles the sign-out route.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, (*auth.Service).SignOutForm)
}

func (h *AuthHandler) submit(w http.ResponseWriter, r *http.Request, build func(*auth.Service, context.Context) (auth.Form, error)) {
	requestID := middleware.GetRequestID(r.Context())

	svc := auth.FromContext(r.Context())
	if svc == nil {
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Authentication is not configured", requestID)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := r.ParseForm(); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_FORM", "Request body must be a valid form", requestID)
		return
	}

	form, err := build(svc, r.Context())
	if err != nil {
		slog.Error("building auth form failed", "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to process request", requestID)
		return
	}

	sub, err := form.Submit(r.Context(), r.Form)
	if err != nil {
		slog.Error("auth form submission failed", "error", err, "form", form.ID(), "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to process request", requestID)
		return
	}

	slog.Debug("auth form submitted", "form", form.ID(), "result", sub.Result.String(), "requestId", requestID)
	http.Redirect(w, r, form.RedirectURL(), http.StatusSeeOther)
}
