package auth

import (
	"context"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/daap14/signon/internal/metrics"
	"github.com/daap14/signon/internal/routing"
	"github.com/daap14/signon/internal/session"
)

type contextKey struct{}

// Service is the request-scoped face of the Module. It resolves the current
// user, signs users in and out, builds the auth forms and wires the auth
// routes for the request. It is not safe for concurrent use.
type Service struct {
	module *Module
	req    *http.Request
	sess   *session.Session
	router *routing.Router
	state  *SessionState
	form   Form
	logger *slog.Logger

	signedInURL  string
	signedOutURL string
	signErrorURL string
}

// NewContext returns a copy of ctx carrying s.
func NewContext(ctx context.Context, s *Service) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the Service stored in ctx, or nil.
func FromContext(ctx context.Context) *Service {
	s, _ := ctx.Value(contextKey{}).(*Service)
	return s
}

// User returns the signed-in user or nil. The session is consulted once per
// request.
func (s *Service) User(ctx context.Context) (*User, error) {
	resolving := !s.state.initialized

	u, err := s.state.TryLoadCurrentUser(ctx)
	if resolving {
		switch {
		case err != nil:
			s.module.metrics.Resolution(metrics.StateError)
		case u != nil:
			s.module.metrics.Resolution(metrics.StateAuthenticated)
		default:
			s.module.metrics.Resolution(metrics.StateAnonymous)
		}
	}
	return u, err
}

// IsAuthenticated reports whether the request has a signed-in user.
func (s *Service) IsAuthenticated(ctx context.Context) (bool, error) {
	u, err := s.User(ctx)
	if err != nil {
		return false, err
	}
	return u != nil, nil
}

// SetUser overrides the current user for the rest of the request. A nil user
// makes the request anonymous.
func (s *Service) SetUser(u *User) {
	s.state.SetUser(u)
}

// LastUserName returns the user name remembered by the session, even after a
// partial sign-out.
func (s *Service) LastUserName() string {
	return s.state.LastUserName()
}

// IsAllowed reports whether the current user holds permission.
func (s *Service) IsAllowed(ctx context.Context, permission string) (bool, error) {
	u, err := s.User(ctx)
	if err != nil {
		return false, err
	}
	return IsAllowed(ctx, u, permission, s.module.roles)
}

// Login checks the credentials and signs the user in. On a wrong user name
// or password it returns nil after the invalid-credentials timeout. The
// session id is renewed on success.
func (s *Service) Login(ctx context.Context, userName, pw string) (*User, error) {
	u, err := s.state.Login(ctx, userName, pw)
	if err != nil {
		s.module.metrics.SignIn(metrics.ResultError)
		s.logger.Error("sign-in failed", "user", userName, "error", err)
		return nil, err
	}

	if u == nil {
		s.module.metrics.SignIn(metrics.ResultFailure)
		s.logger.Warn("invalid credentials", "user", userName)
		if err := s.Throttle(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	}

	s.sess.RenewID()
	s.module.metrics.SignIn(metrics.ResultSuccess)
	s.logger.Info("user signed in", "user", u.UserName)
	return u, nil
}

// Logout signs the current user out; see SessionState.Logout.
func (s *Service) Logout(ctx context.Context, destroyWholeSession bool) {
	_, span := tracer.Start(ctx, "auth.Logout",
		trace.WithAttributes(attribute.Bool("auth.destroy_session", destroyWholeSession)))
	defer span.End()

	userName := s.state.LastUserName()
	s.state.Logout(destroyWholeSession)

	mode := metrics.ModePartial
	if destroyWholeSession {
		mode = metrics.ModeFull
	}
	s.module.metrics.SignOut(mode)
	s.logger.Info("user signed out", "user", userName, "mode", mode)
}

// Throttle waits for the invalid-credentials timeout. It returns early with
// the context error when ctx is done.
func (s *Service) Throttle(ctx context.Context) error {
	return s.module.throttle(ctx)
}

// Form returns the form matching the authentication state: the sign-out form
// for a signed-in user, the sign-in form otherwise. The result is memoized.
func (s *Service) Form(ctx context.Context) (Form, error) {
	if s.form != nil {
		return s.form, nil
	}
	authenticated, err := s.IsAuthenticated(ctx)
	if err != nil {
		return nil, err
	}
	if authenticated {
		return s.SignOutForm(ctx)
	}
	return s.SignInForm(ctx)
}

// SignInForm builds and initializes a new sign-in form bound to the sign-in
// route. It replaces the form returned by Form.
func (s *Service) SignInForm(ctx context.Context) (Form, error) {
	f := s.module.forms.SignInForm(s)
	settings := s.formSettings(s.SignInRoute(), s.SignedInURL())
	settings.UserNameHint = s.state.LastUserName()
	if err := f.Init(settings); err != nil {
		return nil, err
	}
	s.form = f
	return f, nil
}

// SignOutForm builds and initializes a new sign-out form bound to the
// sign-out route. It replaces the form returned by Form.
func (s *Service) SignOutForm(ctx context.Context) (Form, error) {
	u, err := s.User(ctx)
	if err != nil {
		return nil, err
	}

	f := s.module.forms.SignOutForm(s)
	settings := s.formSettings(s.SignOutRoute(), s.SignedOutURL())
	settings.User = u
	if err := f.Init(settings); err != nil {
		return nil, err
	}
	s.form = f
	return f, nil
}

func (s *Service) formSettings(route *routing.Route, successURL string) FormSettings {
	cfg := s.module.Configuration()
	current := fullURL(s.req)

	errorURL := s.SignErrorURL()
	if successURL == "" {
		successURL = current
	}
	if errorURL == "" {
		errorURL = current
	}
	return FormSettings{
		Action:     routing.URLFor(route),
		Method:     route.Method,
		SuccessURL: successURL,
		ErrorURL:   errorURL,
		SourceURL:  s.req.URL.Query().Get("sourceUrl"),
		Host:       s.req.Host,
		Translator: cfg.Translator,
	}
}

// PrepareRoutes wires the auth route for this request. It runs for POST
// requests, or for every request when an auth route uses another method.
// Unset redirect URLs default to the current request URL, and only the route
// matching the authentication state is added, ahead of all other routes.
func (s *Service) PrepareRoutes(ctx context.Context) error {
	if s.req.Method != http.MethodPost && !s.module.wiresAnyMethod() {
		return nil
	}
	authenticated, err := s.IsAuthenticated(ctx)
	if err != nil {
		return err
	}

	current := fullURL(s.req)
	if s.signedInURL == "" {
		s.signedInURL = current
	}
	if s.signedOutURL == "" {
		s.signedOutURL = current
	}
	if s.signErrorURL == "" {
		s.signErrorURL = current
	}

	signIn, signOut := s.SignInRoute(), s.SignOutRoute()
	if authenticated {
		s.router.RemoveRoute(signIn.Name)
		s.router.AddRoute(signOut, true)
	} else {
		s.router.RemoveRoute(signOut.Name)
		s.router.AddRoute(signIn, true)
	}
	return nil
}

// SignInRoute returns the sign-in route, building it from the configuration
// on first use.
func (s *Service) SignInRoute() *routing.Route {
	return s.module.route(ActionSignIn)
}

// SignOutRoute returns the sign-out route, building it from the
// configuration on first use.
func (s *Service) SignOutRoute() *routing.Route {
	return s.module.route(ActionSignOut)
}

// SignedInURL returns where to redirect after signing in.
func (s *Service) SignedInURL() string {
	return s.signedInURL
}

// SignedOutURL returns where to redirect after signing out.
func (s *Service) SignedOutURL() string {
	return s.signedOutURL
}

// SignErrorURL returns where to redirect after a failed sign-in or sign-out.
func (s *Service) SignErrorURL() string {
	return s.signErrorURL
}

// Configuration returns the module configuration.
func (s *Service) Configuration() Config {
	return s.module.Configuration()
}

func fullURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
