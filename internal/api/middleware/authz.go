package middleware

import (
	"log/slog"
	"net/http"

	"github.com/daap14/signon/internal/api/response"
	"github.com/daap14/signon/internal/auth"
)

// RequireAuth returns middleware that rejects anonymous requests with 401.
func RequireAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := currentUser(w, r); !ok {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission returns middleware that rejects users who do not hold
// permission with 403. Anonymous requests get 401.
func RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			svc, ok := currentUser(w, r)
			if !ok {
				return
			}

			allowed, err := svc.IsAllowed(r.Context(), permission)
			if err != nil {
				slog.Error("permission check failed", "error", err, "permission", permission, "requestId", requestID)
				response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Authorization failed", requestID)
				return
			}
			if !allowed {
				response.Err(w, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions", requestID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// currentUser writes an error response and reports false unless the request
// has a signed-in user.
func currentUser(w http.ResponseWriter, r *http.Request) (*auth.Service, bool) {
	requestID := GetRequestID(r.Context())

	svc := auth.FromContext(r.Context())
	if svc == nil {
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Authentication is not configured", requestID)
		return nil, false
	}

	user, err := svc.User(r.Context())
	if err != nil {
		slog.Error("resolving user failed", "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Authentication failed", requestID)
		return nil, false
	}
	if user == nil {
		response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Sign in required", requestID)
		return nil, false
	}
	return svc, true
}
