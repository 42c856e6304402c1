package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

type contextKey struct{}

// Manager loads sessions from a cookie, exposes them to handlers through
// the request context and commits them before the response is written.
type Manager struct {
	store      Store
	cookieName string
	secure     bool
	defaultTTL time.Duration
	now        func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithCookieName sets the session cookie name. Default: "sid".
func WithCookieName(name string) ManagerOption {
	return func(m *Manager) {
		if name != "" {
			m.cookieName = name
		}
	}
}

// WithSecureCookie forces the Secure cookie attribute even without TLS.
func WithSecureCookie(secure bool) ManagerOption {
	return func(m *Manager) {
		m.secure = secure
	}
}

// WithDefaultTTL sets the TTL of namespaces that never set their own.
// Default: 30 minutes.
func WithDefaultTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		if ttl > 0 {
			m.defaultTTL = ttl
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a session Manager over store.
func NewManager(store Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:      store,
		cookieName: "sid",
		defaultTTL: 30 * time.Minute,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CookieName returns the name of the session cookie.
func (m *Manager) CookieName() string {
	return m.cookieName
}

// Load returns the session referenced by the request cookie or a new one.
// Unknown or expired IDs yield a new session with a fresh ID.
func (m *Manager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return New(m.defaultTTL, m.now), nil
	}

	data, err := m.store.Load(ctx, cookie.Value)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if data == nil {
		return New(m.defaultTTL, m.now), nil
	}

	sess, err := Decode(cookie.Value, data, m.defaultTTL, m.now)
	if err != nil {
		// a corrupt record is treated as an expired one
		slog.Warn("discarding unreadable session", "error", err)
		return New(m.defaultTTL, m.now), nil
	}
	return sess, nil
}

// Commit persists a dirty session and sets or clears the cookie.
func (m *Manager) Commit(ctx context.Context, w http.ResponseWriter, r *http.Request, sess *Session) error {
	if !sess.dirty {
		return nil
	}

	if sess.previousID != "" {
		if err := m.store.Delete(ctx, sess.previousID); err != nil {
			return fmt.Errorf("deleting previous session: %w", err)
		}
	}

	if sess.Empty() {
		if !sess.isNew {
			if err := m.store.Delete(ctx, sess.id); err != nil {
				return fmt.Errorf("deleting session: %w", err)
			}
			m.clearCookie(w, r)
		}
		sess.dirty = false
		return nil
	}

	data, err := sess.Encode()
	if err != nil {
		return err
	}
	if err := m.store.Save(ctx, sess.id, data, sess.ExpiresAt()); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	if sess.isNew || sess.previousID != "" {
		m.setCookie(w, r, sess.id)
	}
	sess.dirty = false
	sess.isNew = false
	sess.previousID = ""
	return nil
}

// Middleware attaches the session to the request context and commits it
// before the first header or body byte is written.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := m.Load(r.Context(), r)
		if err != nil {
			slog.Error("session load failed", "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		ctx := NewContext(r.Context(), sess)
		r = r.WithContext(ctx)

		cw := &commitWriter{ResponseWriter: w}
		cw.commit = func() {
			if err := m.Commit(ctx, w, r, sess); err != nil {
				slog.Error("session commit failed", "error", err, "sessionId", sess.ID())
			}
		}

		next.ServeHTTP(cw, r)
		cw.commitOnce()
	})
}

func (m *Manager) setCookie(w http.ResponseWriter, r *http.Request, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure || r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) clearCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure || r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// NewContext returns a copy of ctx carrying sess.
func NewContext(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

// FromContext returns the session attached by Middleware, or nil.
func FromContext(ctx context.Context) *Session {
	if sess, ok := ctx.Value(contextKey{}).(*Session); ok {
		return sess
	}
	return nil
}

type commitWriter struct {
	http.ResponseWriter
	once   sync.Once
	commit func()
}

func (cw *commitWriter) commitOnce() {
	cw.once.Do(cw.commit)
}

func (cw *commitWriter) WriteHeader(status int) {
	cw.commitOnce()
	cw.ResponseWriter.WriteHeader(status)
}

func (cw *commitWriter) Write(b []byte) (int, error) {
	cw.commitOnce()
	return cw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (cw *commitWriter) Unwrap() http.ResponseWriter {
	return cw.ResponseWriter
}
