package session

import (
	"context"
	"errors"
	"time"
)

// ErrStoreClosed is returned when operations are attempted on a closed store.
var ErrStoreClosed = errors.New("session store is closed")

// Store persists serialized sessions keyed by session ID.
// Implementations must be safe for concurrent use.
type Store interface {
	// Load returns (nil, nil) if the session does not exist or has expired.
	Load(ctx context.Context, sessionID string) ([]byte, error)

	// Save overwrites any existing record for sessionID.
	Save(ctx context.Context, sessionID string, data []byte, expiresAt time.Time) error

	// Delete does not fail when the session does not exist.
	Delete(ctx context.Context, sessionID string) error

	// Close releases resources held by the store.
	Close() error
}
