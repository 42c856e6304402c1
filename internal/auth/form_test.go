package auth_test

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daap14/signon/internal/auth"
)

func signInValues(user, pw string) url.Values {
	return url.Values{
		"username":   {user},
		"password":   {pw},
		"successUrl": {"http://example.com/home"},
		"errorUrl":   {"http://example.com/login"},
	}
}

func TestSignInForm_Success(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sess := newSession()
	svc, _ := f.service(http.MethodPost, "http://example.com/signin", sess)

	form, err := svc.SignInForm(ctx)
	require.NoError(t, err)

	sub, err := form.Submit(ctx, signInValues("admin", "secret"))
	require.NoError(t, err)

	assert.Equal(t, auth.ResultSuccess, sub.Result)
	assert.Empty(t, sub.Errors)
	assert.Equal(t, "admin", sub.Data["username"])
	assert.NotContains(t, sub.Data, "password")
	assert.Equal(t, "http://example.com/home", form.RedirectURL())

	authenticated, _ := sess.Namespace(auth.SessionNamespace).Bool("authenticated")
	assert.True(t, authenticated)
}

func TestSignInForm_SourceURLOverridesSuccessURL(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc, _ := f.service(http.MethodPost, "http://example.com/signin", newSession())

	form, err := svc.SignInForm(ctx)
	require.NoError(t, err)

	values := signInValues("admin", "secret")
	values.Set("sourceUrl", "http://example.com/reports?id=7")
	_, err = form.Submit(ctx, values)
	require.NoError(t, err)

	assert.Equal(t, "http://example.com/reports?id=7", form.RedirectURL())
}

func TestSignInForm_WrongPassword(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sess := newSession()
	svc, _ := f.service(http.MethodPost, "http://example.com/signin", sess)

	form, err := svc.SignInForm(ctx)
	require.NoError(t, err)

	sub, err := form.Submit(ctx, signInValues("admin", "wrong"))
	require.NoError(t, err)

	assert.Equal(t, auth.ResultFailure, sub.Result)
	require.Len(t, sub.Errors, 1)
	assert.Equal(t, auth.IncorrectCredentialsMessage, sub.Errors[0].Message)
	assert.Equal(t, []string{"username", "password"}, sub.Errors[0].Fields)
	assert.Equal(t, "http://example.com/login", form.RedirectURL())
	assert.False(t, sess.HasNamespace(auth.SessionNamespace))
}

func TestSignInForm_ValidationFailureIsThrottledWithoutLookup(t *testing.T) {
	const timeout = 30 * time.Millisecond
	ctx := context.Background()
	f := newFixture(t, func(c *auth.Config, _ *auth.Dependencies) {
		c.InvalidCredentialsTimeout = timeout
	})
	svc, _ := f.service(http.MethodPost, "http://example.com/signin", newSession())

	form, err := svc.SignInForm(ctx)
	require.NoError(t, err)

	start := time.Now()
	sub, err := form.Submit(ctx, signInValues("admin", ""))
	elapsed := time.Since(start)
	require.NoError(t, err)

	assert.Equal(t, auth.ResultFailure, sub.Result)
	require.Len(t, sub.Errors, 1)
	assert.Equal(t, []string{"password"}, sub.Errors[0].Fields)
	assert.Equal(t, int32(0), f.users.calls.Load())
	assert.GreaterOrEqual(t, elapsed, timeout)
}

func TestSignInForm_InvalidRedirectField(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc, _ := f.service(http.MethodPost, "http://example.com/signin", newSession())

	form, err := svc.SignInForm(ctx)
	require.NoError(t, err)

	values := signInValues("admin", "secret")
	values.Set("successUrl", "not a url")
	sub, err := form.Submit(ctx, values)
	require.NoError(t, err)

	assert.Equal(t, auth.ResultFailure, sub.Result)
	require.Len(t, sub.Errors, 1)
	assert.Equal(t, []string{"successUrl"}, sub.Errors[0].Fields)
}

func TestSignInForm_RefusesForeignRedirect(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc, _ := f.service(http.MethodPost, "http://example.com/signin", newSession())

	form, err := svc.SignInForm(ctx)
	require.NoError(t, err)

	values := signInValues("admin", "secret")
	values.Set("successUrl", "http://evil.example.net/")
	_, err = form.Submit(ctx, values)
	require.NoError(t, err)

	assert.Equal(t, "/", form.RedirectURL())
}

func TestSignInForm_Render(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, func(c *auth.Config, _ *auth.Dependencies) {
		c.Translator = func(key string) string {
			if key == "Sign In" {
				return "Anmelden"
			}
			return key
		}
	})
	svc, _ := f.service(http.MethodGet, "http://example.com/page?sourceUrl=http%3A%2F%2Fexample.com%2Fback", newSession())

	form, err := svc.SignInForm(ctx)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, form.Render(&buf))
	html := buf.String()

	assert.Contains(t, html, `id="authentication_signin"`)
	assert.Contains(t, html, `class="authentication signin"`)
	assert.Contains(t, html, `action="/signin"`)
	assert.Contains(t, html, `method="post"`)
	assert.Contains(t, html, `name="username"`)
	assert.Contains(t, html, `name="password"`)
	assert.Contains(t, html, `value="http://example.com/back"`)
	assert.Contains(t, html, `value="http://example.com/page?sourceUrl=`)
	assert.Contains(t, html, "Anmelden")
}

func TestSignInForm_DropsInvalidSourceURL(t *testing.T) {
	f := newFixture(t)
	svc, _ := f.service(http.MethodGet, "http://example.com/page?sourceUrl=javascript", newSession())

	form, err := svc.SignInForm(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, form.Render(&buf))
	assert.Contains(t, buf.String(), `name="sourceUrl" value=""`)
}

func TestSignInForm_PrefillsRememberedUserName(t *testing.T) {
	f := newFixture(t)
	sess := authenticatedSession("admin")
	sess.Namespace(auth.SessionNamespace).Set("authenticated", false)
	svc, _ := f.service(http.MethodGet, "http://example.com/", sess)

	form, err := svc.Form(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, form.Render(&buf))
	assert.Contains(t, buf.String(), `name="username" placeholder="User" value="admin"`)
}

func TestSignOutForm_RenderAndSubmit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sess := authenticatedSession("admin")
	svc, _ := f.service(http.MethodPost, "http://example.com/signout", sess)
	require.NoError(t, svc.PrepareRoutes(ctx))

	form, err := svc.SignOutForm(ctx)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, form.Render(&buf))
	html := buf.String()
	assert.Contains(t, html, `id="authentication_signout"`)
	assert.Contains(t, html, `action="/signout"`)
	assert.Contains(t, html, "<span>Admin User</span>")
	assert.False(t, strings.Contains(html, `name="password"`))

	sub, err := form.Submit(ctx, url.Values{
		"successUrl": {"http://example.com/bye"},
		"errorUrl":   {"http://example.com/"},
	})
	require.NoError(t, err)
	assert.Equal(t, auth.ResultSuccess, sub.Result)
	assert.Equal(t, "http://example.com/bye", form.RedirectURL())

	ns := sess.Namespace(auth.SessionNamespace)
	authenticated, _ := ns.Bool("authenticated")
	assert.False(t, authenticated)
	name, _ := ns.String("userName")
	assert.Equal(t, "admin", name)
}

func TestSignOutForm_DestroysSessionWhenConfigured(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, func(c *auth.Config, _ *auth.Dependencies) {
		c.SignOutDestroysSession = true
	})
	sess := authenticatedSession("admin")
	svc, _ := f.service(http.MethodPost, "http://example.com/signout", sess)

	form, err := svc.SignOutForm(ctx)
	require.NoError(t, err)

	sub, err := form.Submit(ctx, url.Values{})
	require.NoError(t, err)
	assert.Equal(t, auth.ResultSuccess, sub.Result)
	assert.False(t, sess.HasNamespace(auth.SessionNamespace))
	assert.Equal(t, "/", form.RedirectURL())
}
