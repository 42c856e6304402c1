package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Dialect selects placeholder and column type syntax for SQLStore.
type Dialect int

const (
	// DialectSQLite uses ? placeholders and BLOB data.
	DialectSQLite Dialect = iota
	// DialectPostgreSQL uses $n placeholders and BYTEA data.
	DialectPostgreSQL
)

// SQLStore is a database/sql backed session store.
// Expiry is stored as unix milliseconds so both dialects compare integers.
type SQLStore struct {
	db        *sql.DB
	tableName string
	dialect   Dialect
	now       func() time.Time

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// SQLStoreOption configures SQLStore behavior.
type SQLStoreOption func(*sqlStoreConfig)

type sqlStoreConfig struct {
	tableName       string
	dialect         Dialect
	cleanupInterval time.Duration
	now             func() time.Time
}

// WithSQLTableName sets the table name. Default: "auth_sessions".
func WithSQLTableName(name string) SQLStoreOption {
	return func(c *sqlStoreConfig) {
		c.tableName = name
	}
}

// WithSQLDialect sets the SQL dialect. Default: DialectSQLite.
func WithSQLDialect(d Dialect) SQLStoreOption {
	return func(c *sqlStoreConfig) {
		c.dialect = d
	}
}

// WithSQLCleanupInterval sets how often expired rows are deleted.
// Zero disables the background cleanup. Default: 5 minutes.
func WithSQLCleanupInterval(d time.Duration) SQLStoreOption {
	return func(c *sqlStoreConfig) {
		c.cleanupInterval = d
	}
}

// WithSQLClock replaces time.Now, for tests.
func WithSQLClock(now func() time.Time) SQLStoreOption {
	return func(c *sqlStoreConfig) {
		c.now = now
	}
}

// OpenSQLite opens (or creates) a sqlite database at path and ensures its
// directory exists. Use ":memory:" for a private in-process database.
func OpenSQLite(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// a single connection keeps ":memory:" databases alive and serializes writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return db, nil
}

// NewSQLStore creates a SQL-backed session store. Call Init before use if
// the table may not exist yet.
func NewSQLStore(db *sql.DB, opts ...SQLStoreOption) *SQLStore {
	cfg := &sqlStoreConfig{
		tableName:       "auth_sessions",
		dialect:         DialectSQLite,
		cleanupInterval: 5 * time.Minute,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	store := &SQLStore{
		db:        db,
		tableName: cfg.tableName,
		dialect:   cfg.dialect,
		now:       cfg.now,
		done:      make(chan struct{}),
	}

	if cfg.cleanupInterval > 0 {
		go store.cleanupLoop(cfg.cleanupInterval)
	}
	return store
}

// Init creates the sessions table if it does not exist.
func (s *SQLStore) Init(ctx context.Context) error {
	dataType := "BLOB"
	if s.dialect == DialectPostgreSQL {
		dataType = "BYTEA"
	}

	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	data %s NOT NULL,
	expires_at BIGINT NOT NULL
)`, s.tableName, dataType)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}
	return nil
}

// Load retrieves session data if it exists and hasn't expired.
func (s *SQLStore) Load(ctx context.Context, sessionID string) ([]byte, error) {
	if s.isClosed() {
		return nil, ErrStoreClosed
	}

	query := fmt.Sprintf(`SELECT data FROM %s WHERE id = %s AND expires_at > %s`,
		s.tableName, s.placeholder(1), s.placeholder(2))

	var data []byte
	err := s.db.QueryRowContext(ctx, query, sessionID, s.now().UnixMilli()).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}
	return data, nil
}

// Save upserts session data with an expiration time.
func (s *SQLStore) Save(ctx context.Context, sessionID string, data []byte, expiresAt time.Time) error {
	if s.isClosed() {
		return ErrStoreClosed
	}

	query := fmt.Sprintf(`
INSERT INTO %s (id, data, expires_at)
VALUES (%s, %s, %s)
ON CONFLICT (id) DO UPDATE SET
	data = excluded.data,
	expires_at = excluded.expires_at`,
		s.tableName, s.placeholder(1), s.placeholder(2), s.placeholder(3))

	if _, err := s.db.ExecContext(ctx, query, sessionID, data, expiresAt.UnixMilli()); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// Delete removes a session row.
func (s *SQLStore) Delete(ctx context.Context, sessionID string) error {
	if s.isClosed() {
		return ErrStoreClosed
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = %s`, s.tableName, s.placeholder(1))
	if _, err := s.db.ExecContext(ctx, query, sessionID); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteExpired removes every expired row and returns how many were removed.
func (s *SQLStore) DeleteExpired(ctx context.Context) (int64, error) {
	if s.isClosed() {
		return 0, ErrStoreClosed
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= %s`, s.tableName, s.placeholder(1))
	res, err := s.db.ExecContext(ctx, query, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted sessions: %w", err)
	}
	return n, nil
}

// Close stops the cleanup loop. The *sql.DB is left open for its owner.
func (s *SQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	return nil
}

func (s *SQLStore) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *SQLStore) placeholder(n int) string {
	if s.dialect == DialectPostgreSQL {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *SQLStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			_, _ = s.DeleteExpired(ctx)
			cancel()
		case <-s.done:
			return
		}
	}
}
