package handler

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/daap14/signon/internal/api/middleware"
	"github.com/daap14/signon/internal/api/response"
	"github.com/daap14/signon/internal/auth"
)

// FormHandler handles the GET /auth/form endpoint. It renders the sign-out
// form for a signed-in user and the sign-in form otherwise.
type FormHandler struct{}

// NewFormHandler creates a new FormHandler.
func NewFormHandler() *FormHandler {
	return &FormHandler{}
}

// ServeHTTP renders the current auth form.
func (h *FormHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	svc := auth.FromContext(r.Context())
	if svc == nil {
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Authentication is not configured", requestID)
		return
	}

	form, err := svc.Form(r.Context())
	if err != nil {
		slog.Error("building auth form failed", "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to render form", requestID)
		return
	}

	var buf bytes.Buffer
	if err := form.Render(&buf); err != nil {
		slog.Error("rendering auth form failed", "error", err, "form", form.ID(), "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to render form", requestID)
		return
	}

	response.HTML(w, http.StatusOK, buf.Bytes())
}
