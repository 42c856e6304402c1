package middleware

import (
	"log/slog"
	"net/http"

	"github.com/daap14/signon/internal/api/response"
	"github.com/daap14/signon/internal/auth"
	"github.com/daap14/signon/internal/routing"
	"github.com/daap14/signon/internal/session"
)

// Auth creates the request-scoped auth service, wires the sign-in or sign-out
// route for the current user and dispatches a matching request to the auth
// controller. Other requests continue with the service in their context.
// It must run inside the session middleware.
func Auth(module *auth.Module) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			sess := session.FromContext(r.Context())
			if sess == nil {
				slog.Error("auth middleware without session", "requestId", requestID)
				response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Session is not available", requestID)
				return
			}

			router := routing.NewRouter()
			svc := module.NewService(r, sess, router)
			ctx := auth.NewContext(r.Context(), svc)
			r = r.WithContext(ctx)

			if err := svc.PrepareRoutes(ctx); err != nil {
				slog.Error("preparing auth routes failed", "error", err, "requestId", requestID)
				response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Authentication failed", requestID)
				return
			}

			if route, ok := router.Match(r); ok && module.Dispatch(w, r, route) {
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
