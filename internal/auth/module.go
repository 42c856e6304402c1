package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/daap14/signon/internal/metrics"
	"github.com/daap14/signon/internal/password"
	"github.com/daap14/signon/internal/routing"
	"github.com/daap14/signon/internal/session"
)

// Controller handles submissions of the sign-in and sign-out forms.
type Controller interface {
	SignIn(w http.ResponseWriter, r *http.Request)
	SignOut(w http.ResponseWriter, r *http.Request)
}

// Dependencies are the collaborators bound into a Module.
type Dependencies struct {
	Users      UserStore
	Roles      RoleStore // optional
	Controller Controller
	Forms      FormFactory   // defaults to DefaultForms
	Metrics    *metrics.Auth // optional
	Logger     *slog.Logger  // defaults to slog.Default()
}

// Module is the process-wide part of authentication: validated
// configuration, stores and the sign-in and sign-out routes. Per-request
// state lives in a Service created by NewService.
type Module struct {
	users      UserStore
	roles      RoleStore
	controller Controller
	forms      FormFactory
	metrics    *metrics.Auth
	logger     *slog.Logger

	mu     sync.RWMutex
	cfg    Config
	hasher *password.Hasher
	decoy  string
	routes map[string]*routing.Route
}

// NewModule validates cfg and binds deps. Configuration problems are
// reported as ErrConfiguration.
func NewModule(cfg Config, deps Dependencies) (*Module, error) {
	if deps.Users == nil {
		return nil, fmt.Errorf("%w: user store is required", ErrConfiguration)
	}
	if deps.Controller == nil {
		return nil, fmt.Errorf("%w: controller is required", ErrConfiguration)
	}
	if deps.Forms == nil {
		deps.Forms = DefaultForms{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	m := &Module{
		users:      deps.Users,
		roles:      deps.Roles,
		controller: deps.Controller,
		forms:      deps.Forms,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
	}
	if err := m.apply(cfg); err != nil {
		return nil, err
	}
	return m, nil
}

// Configure applies named options on top of the current configuration. On
// error the configuration is left unchanged.
func (m *Module) Configure(options map[string]any, strict bool) error {
	cfg := m.Configuration()
	if err := cfg.ApplyOptions(options, strict); err != nil {
		return err
	}
	return m.apply(cfg)
}

func (m *Module) apply(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	hasher, err := password.NewHasher(cfg.PasswordSalt, cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	decoy, err := hasher.Hash(uuid.NewString(), password.HashOptions{})
	if err != nil {
		return fmt.Errorf("computing decoy hash: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
	m.hasher = hasher
	m.decoy = decoy
	m.routes = make(map[string]*routing.Route, 2)
	return nil
}

// Configuration returns a copy of the current configuration.
func (m *Module) Configuration() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Hasher returns the password hasher built from the configuration.
func (m *Module) Hasher() *password.Hasher {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hasher
}

// Roles returns the bound role store, which may be nil.
func (m *Module) Roles() RoleStore {
	return m.roles
}

// NewService creates the request-scoped service for r. sess must be the
// request's session; router receives the transient auth routes.
func (m *Module) NewService(r *http.Request, sess *session.Session, router *routing.Router) *Service {
	m.mu.RLock()
	cfg, hasher, decoy := m.cfg, m.hasher, m.decoy
	m.mu.RUnlock()

	return &Service{
		module:       m,
		req:          r,
		sess:         sess,
		router:       router,
		state:        NewSessionState(sess, cfg.Expiration(), m.users, hasher, WithDecoyHash(decoy)),
		signedInURL:  cfg.SignedInURL,
		signedOutURL: cfg.SignedOutURL,
		signErrorURL: cfg.SignErrorURL,
		logger:       m.logger,
	}
}

// Dispatch runs the controller action of a matched auth route. It reports
// false when the route does not belong to the module.
func (m *Module) Dispatch(w http.ResponseWriter, r *http.Request, route *routing.Route) bool {
	switch route.Action {
	case ActionSignIn:
		m.controller.SignIn(w, r)
	case ActionSignOut:
		m.controller.SignOut(w, r)
	default:
		return false
	}
	return true
}

// route returns the route for action, building and caching it from the
// configuration on first use. A configured *routing.Route is returned as is.
func (m *Module) route(action string) *routing.Route {
	m.mu.RLock()
	r, ok := m.routes[action]
	m.mu.RUnlock()
	if ok {
		return r
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.routes[action]; ok {
		return r
	}

	rc, name := m.cfg.SignInRoute, SignInRouteName
	if action == ActionSignOut {
		rc, name = m.cfg.SignOutRoute, SignOutRouteName
	}

	r = rc.Route
	if r == nil {
		if rc.Name != "" {
			name = rc.Name
		}
		method := strings.ToUpper(rc.Method)
		if method == "" {
			method = http.MethodPost
		}
		r = &routing.Route{
			Name:       name,
			Pattern:    rc.Pattern,
			Method:     method,
			Controller: fmt.Sprintf("%T", m.controller),
			Action:     action,
		}
	}
	m.routes[action] = r
	return r
}

// wiresAnyMethod reports whether routes are wired for every request method,
// which is the case when either auth route is not a POST route.
func (m *Module) wiresAnyMethod() bool {
	for _, action := range []string{ActionSignIn, ActionSignOut} {
		method := m.route(action).Method
		if method != "" && !strings.EqualFold(method, http.MethodPost) {
			return true
		}
	}
	return false
}

// throttle blocks for the invalid-credentials timeout or until ctx is done.
func (m *Module) throttle(ctx context.Context) error {
	d := m.Configuration().InvalidCredentialsTimeout
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
