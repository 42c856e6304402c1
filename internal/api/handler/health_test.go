package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/daap14/signon/internal/api/handler"
)

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error {
	return m.err
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name           string
		db             handler.DBPinger
		wantStatus     string
		wantConfigured bool
		wantConnected  bool
	}{
		{"no database", nil, "healthy", false, false},
		{"database up", &mockPinger{}, "healthy", true, true},
		{"database down", &mockPinger{err: errors.New("refused")}, "degraded", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler.NewHealthHandler(tt.db, "0.1.0")
			w := httptest.NewRecorder()

			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			data := decodeData(t, w)
			assert.Equal(t, tt.wantStatus, data["status"])
			assert.Equal(t, "0.1.0", data["version"])

			db := data["database"].(map[string]interface{})
			assert.Equal(t, tt.wantConfigured, db["configured"])
			assert.Equal(t, tt.wantConnected, db["connected"])
		})
	}
}
