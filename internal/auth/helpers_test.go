package auth_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/daap14/signon/internal/auth"
	"github.com/daap14/signon/internal/password"
	"github.com/daap14/signon/internal/routing"
	"github.com/daap14/signon/internal/session"
)

const testSalt = "abc123"

func testHasher(t *testing.T) *password.Hasher {
	t.Helper()
	h, err := password.NewHasher(testSalt, password.MinCost)
	require.NoError(t, err)
	return h
}

func hashFor(t *testing.T, pw string) string {
	t.Helper()
	hash, err := testHasher(t).Hash(pw, password.HashOptions{})
	require.NoError(t, err)
	return hash
}

// countingStore wraps a UserStore and counts lookups.
type countingStore struct {
	inner auth.UserStore
	calls atomic.Int32
}

func (s *countingStore) GetByUserName(ctx context.Context, userName string) (*auth.User, error) {
	s.calls.Add(1)
	return s.inner.GetByUserName(ctx, userName)
}

func newUsers(t *testing.T) *countingStore {
	t.Helper()
	return &countingStore{inner: auth.NewStaticUserStore([]auth.Credential{
		{
			UserName:     "admin",
			FullName:     "Admin User",
			PasswordHash: hashFor(t, "secret"),
			Roles:        []string{"editor"},
			Permissions:  []string{"dashboard.view"},
		},
	})}
}

type stubController struct {
	signIns  atomic.Int32
	signOuts atomic.Int32
}

func (c *stubController) SignIn(w http.ResponseWriter, _ *http.Request) {
	c.signIns.Add(1)
	w.WriteHeader(http.StatusNoContent)
}

func (c *stubController) SignOut(w http.ResponseWriter, _ *http.Request) {
	c.signOuts.Add(1)
	w.WriteHeader(http.StatusNoContent)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() auth.Config {
	cfg := auth.DefaultConfig()
	cfg.PasswordSalt = testSalt
	cfg.BcryptCost = password.MinCost
	cfg.InvalidCredentialsTimeout = 0
	return cfg
}

type moduleFixture struct {
	module     *auth.Module
	users      *countingStore
	controller *stubController
}

func newFixture(t *testing.T, mutate ...func(*auth.Config, *auth.Dependencies)) moduleFixture {
	t.Helper()

	f := moduleFixture{users: newUsers(t), controller: &stubController{}}
	cfg := testConfig()
	deps := auth.Dependencies{
		Users:      f.users,
		Controller: f.controller,
		Logger:     discardLogger(),
	}
	for _, fn := range mutate {
		fn(&cfg, &deps)
	}

	m, err := auth.NewModule(cfg, deps)
	require.NoError(t, err)
	f.module = m
	return f
}

func newSession() *session.Session {
	return session.New(30*time.Minute, nil)
}

// authenticatedSession returns a session that is signed in as userName.
func authenticatedSession(userName string) *session.Session {
	sess := newSession()
	ns := sess.Namespace(auth.SessionNamespace)
	ns.Set("userName", userName)
	ns.Set("authenticated", true)
	return sess
}

func (f moduleFixture) service(method, target string, sess *session.Session) (*auth.Service, *routing.Router) {
	router := routing.NewRouter()
	r := httptest.NewRequest(method, target, nil)
	return f.module.NewService(r, sess, router), router
}
