package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/daap14/signon/internal/password"
	"github.com/daap14/signon/internal/session"
)

// SessionNamespace is the session namespace holding the authentication state.
const SessionNamespace = "auth"

const (
	keyUserName      = "userName"
	keyAuthenticated = "authenticated"
)

var tracer = otel.Tracer("github.com/daap14/signon/internal/auth")

// SessionState keeps the signed-in user name and flag in the auth session
// namespace and resolves them to a User. Resolution runs at most once per
// instance; create one per request.
type SessionState struct {
	ns     *session.Namespace
	users  UserStore
	hasher *password.Hasher
	decoy  string

	initialized bool
	user        *User
}

// StateOption configures a SessionState.
type StateOption func(*SessionState)

// WithDecoyHash sets a hash that is verified against when the user name is
// unknown, so both failure paths cost one bcrypt comparison.
func WithDecoyHash(hash string) StateOption {
	return func(s *SessionState) {
		s.decoy = hash
	}
}

// NewSessionState opens the auth namespace of sess and applies ttl to it.
func NewSessionState(sess *session.Session, ttl time.Duration, users UserStore, hasher *password.Hasher, opts ...StateOption) *SessionState {
	ns := sess.Namespace(SessionNamespace)
	ns.SetExpiration(ttl)

	s := &SessionState{ns: ns, users: users, hasher: hasher}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TryLoadCurrentUser returns the signed-in user, or nil when the session is
// anonymous or the stored user no longer resolves. The result is memoized.
func (s *SessionState) TryLoadCurrentUser(ctx context.Context) (*User, error) {
	if s.initialized {
		return s.user, nil
	}

	userName, _ := s.ns.String(keyUserName)
	authenticated, _ := s.ns.Bool(keyAuthenticated)
	if userName == "" || !authenticated {
		s.initialized = true
		return nil, nil
	}

	ctx, span := tracer.Start(ctx, "auth.ResolveUser",
		trace.WithAttributes(attribute.String("auth.user_name", userName)))
	defer span.End()

	u, err := s.users.GetByUserName(ctx, userName)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.initialized = true
			return nil, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("resolving session user: %w", err)
	}
	if u == nil {
		s.initialized = true
		return nil, nil
	}

	u.PasswordHash = ""
	s.user = u
	s.initialized = true
	return u, nil
}

// Login checks the credentials and, on success, marks the session as
// authenticated for the user. A wrong password or unknown user yields nil
// without touching the session.
func (s *SessionState) Login(ctx context.Context, userName, pw string) (*User, error) {
	ctx, span := tracer.Start(ctx, "auth.Login",
		trace.WithAttributes(attribute.String("auth.user_name", userName)))
	defer span.End()

	u, err := s.users.GetByUserName(ctx, userName)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	hash := s.decoy
	if u != nil {
		hash = u.PasswordHash
	}

	ok := false
	if hash != "" {
		ok, err = s.hasher.Verify(pw, hash, password.HashOptions{})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}
	if u == nil || !ok {
		span.SetAttributes(attribute.Bool("auth.success", false))
		return nil, nil
	}

	u.PasswordHash = ""
	s.ns.Set(keyUserName, u.UserName)
	s.ns.Set(keyAuthenticated, true)
	s.user = u
	s.initialized = true

	span.SetAttributes(attribute.Bool("auth.success", true))
	return u, nil
}

// Logout signs the user out. With destroyWholeSession the namespace is
// removed; otherwise only the authenticated flag is cleared and the user name
// stays as a hint for the next sign-in.
func (s *SessionState) Logout(destroyWholeSession bool) {
	if destroyWholeSession {
		s.ns.Destroy()
	} else {
		s.ns.Set(keyAuthenticated, false)
	}
	s.user = nil
	s.initialized = true
}

// SetUser overrides resolution for the rest of the request. A nil user forces
// the request to be anonymous.
func (s *SessionState) SetUser(u *User) {
	s.user = u
	s.initialized = true
}

// LastUserName returns the user name stored in the session, if any, whether
// or not it is still authenticated.
func (s *SessionState) LastUserName() string {
	name, _ := s.ns.String(keyUserName)
	return name
}
