package handler

import (
	"context"
	"net/http"

	"github.com/daap14/signon/internal/api/middleware"
	"github.com/daap14/signon/internal/api/response"
)

// DBPinger checks database connectivity. *pgxpool.Pool satisfies it.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles the GET /health endpoint.
type HealthHandler struct {
	db      DBPinger
	version string
}

// NewHealthHandler creates a new HealthHandler. db may be nil when no
// database is configured.
func NewHealthHandler(db DBPinger, version string) *HealthHandler {
	return &HealthHandler{
		db:      db,
		version: version,
	}
}

type databaseStatus struct {
	Configured bool `json:"configured"`
	Connected  bool `json:"connected"`
}

type healthData struct {
	Status   string         `json:"status"`
	Version  string         `json:"version"`
	Database databaseStatus `json:"database"`
}

// ServeHTTP handles the health check request.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	status := "healthy"
	db := databaseStatus{}

	if h.db != nil {
		db.Configured = true
		db.Connected = h.db.Ping(r.Context()) == nil
		if !db.Connected {
			status = "degraded"
		}
	}

	data := healthData{
		Status:   status,
		Version:  h.version,
		Database: db,
	}

	response.Success(w, http.StatusOK, data, requestID)
}
