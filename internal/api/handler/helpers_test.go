package handler_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/daap14/signon/internal/api/handler"
	"github.com/daap14/signon/internal/auth"
	"github.com/daap14/signon/internal/password"
	"github.com/daap14/signon/internal/routing"
	"github.com/daap14/signon/internal/session"
)

const testSalt = "handler-salt"

func setupModule(t *testing.T) *auth.Module {
	t.Helper()

	hasher, err := password.NewHasher(testSalt, password.MinCost)
	require.NoError(t, err)
	hash, err := hasher.Hash("secret", password.HashOptions{})
	require.NoError(t, err)

	cfg := auth.DefaultConfig()
	cfg.PasswordSalt = testSalt
	cfg.BcryptCost = password.MinCost
	cfg.InvalidCredentialsTimeout = 0

	module, err := auth.NewModule(cfg, auth.Dependencies{
		Users: auth.NewStaticUserStore([]auth.Credential{{
			UserName:     "alice",
			FullName:     "Alice Liddell",
			PasswordHash: hash,
			Roles:        []string{"editor"},
		}}),
		Roles:      auth.NewStaticRoleStore([]auth.Role{{Name: "editor", Permissions: []string{"posts.edit"}}}),
		Controller: handler.NewAuthHandler(),
	})
	require.NoError(t, err)
	return module
}

func anonymous() *session.Session {
	return session.New(time.Hour, nil)
}

func signedIn(userName string) *session.Session {
	sess := anonymous()
	ns := sess.Namespace(auth.SessionNamespace)
	ns.Set("userName", userName)
	ns.Set("authenticated", true)
	return sess
}

// withService returns req carrying a request-scoped auth service.
func withService(module *auth.Module, req *http.Request, sess *session.Session) *http.Request {
	svc := module.NewService(req, sess, routing.NewRouter())
	return req.WithContext(auth.NewContext(req.Context(), svc))
}

func formRequest(target string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}
