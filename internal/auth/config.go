package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/daap14/signon/internal/password"
	"github.com/daap14/signon/internal/routing"
)

// Route names and actions of the sign-in and sign-out endpoints.
const (
	SignInRouteName  = "auth_signin"
	SignOutRouteName = "auth_signout"

	ActionSignIn  = "SignIn"
	ActionSignOut = "SignOut"
)

// Translator translates user-facing form text.
type Translator func(key string) string

// RouteConfig configures a sign-in or sign-out route. When Route is set it is
// used verbatim; otherwise a route is built from Name, Pattern and Method.
type RouteConfig struct {
	Route   *routing.Route
	Name    string
	Pattern string
	Method  string
}

// Config configures the auth module.
type Config struct {
	ExpirationSeconds         int
	PasswordSalt              string
	BcryptCost                int
	InvalidCredentialsTimeout time.Duration

	// Redirect targets. Empty values default to the current request URL.
	SignedInURL  string
	SignedOutURL string
	SignErrorURL string

	SignInRoute  RouteConfig
	SignOutRoute RouteConfig

	// SignOutDestroysSession removes the whole auth namespace on sign-out
	// instead of only clearing the authenticated flag.
	SignOutDestroysSession bool

	Translator Translator
}

// DefaultConfig returns the configuration defaults. PasswordSalt has no
// default and must be provided.
func DefaultConfig() Config {
	return Config{
		ExpirationSeconds:         600,
		BcryptCost:                password.DefaultCost,
		InvalidCredentialsTimeout: 3 * time.Second,
		SignInRoute:               RouteConfig{Name: SignInRouteName, Pattern: "/signin", Method: http.MethodPost},
		SignOutRoute:              RouteConfig{Name: SignOutRouteName, Pattern: "/signout", Method: http.MethodPost},
	}
}

// Expiration returns the session namespace TTL.
func (c Config) Expiration() time.Duration {
	return time.Duration(c.ExpirationSeconds) * time.Second
}

// Validate checks the configuration for values the module cannot run with.
func (c Config) Validate() error {
	if c.PasswordSalt == "" {
		return fmt.Errorf("%w: password salt is required", ErrConfiguration)
	}
	if c.ExpirationSeconds <= 0 {
		return fmt.Errorf("%w: expiration seconds must be positive", ErrConfiguration)
	}
	if c.InvalidCredentialsTimeout < 0 {
		return fmt.Errorf("%w: invalid credentials timeout must not be negative", ErrConfiguration)
	}
	for _, rc := range []RouteConfig{c.SignInRoute, c.SignOutRoute} {
		if rc.Route == nil && !strings.HasPrefix(rc.Pattern, "/") {
			return fmt.Errorf("%w: route pattern %q must start with /", ErrConfiguration, rc.Pattern)
		}
	}
	return nil
}

// ApplyOptions sets configuration values by option name. Unknown names are
// skipped unless strict is set, in which case they fail with
// ErrInvalidConfiguration. A value of the wrong type always fails.
func (c *Config) ApplyOptions(options map[string]any, strict bool) error {
	for key, value := range options {
		var err error
		switch key {
		case "expirationSeconds":
			c.ExpirationSeconds, err = asInt(key, value)
		case "passwordHashSalt":
			c.PasswordSalt, err = asString(key, value)
		case "bcryptCost":
			c.BcryptCost, err = asInt(key, value)
		case "invalidCredentialsTimeout":
			c.InvalidCredentialsTimeout, err = asDuration(key, value)
		case "signedInUrl":
			c.SignedInURL, err = asString(key, value)
		case "signedOutUrl":
			c.SignedOutURL, err = asString(key, value)
		case "signErrorUrl":
			c.SignErrorURL, err = asString(key, value)
		case "signInRoute":
			c.SignInRoute, err = asRoute(key, value, c.SignInRoute)
		case "signOutRoute":
			c.SignOutRoute, err = asRoute(key, value, c.SignOutRoute)
		case "signOutDestroysSession":
			v, ok := value.(bool)
			if !ok {
				err = typeError(key, "bool", value)
			}
			c.SignOutDestroysSession = v
		case "translator":
			switch t := value.(type) {
			case Translator:
				c.Translator = t
			case func(string) string:
				c.Translator = t
			case nil:
				c.Translator = nil
			default:
				err = typeError(key, "func(string) string", value)
			}
		default:
			if strict {
				err = fmt.Errorf("%w: unknown option %q", ErrInvalidConfiguration, key)
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func asString(key string, value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", typeError(key, "string", value)
	}
	return s, nil
}

func asInt(key string, value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	}
	return 0, typeError(key, "int", value)
}

// asDuration accepts a time.Duration, a duration string or a number of seconds.
func asDuration(key string, value any) (time.Duration, error) {
	switch v := value.(type) {
	case time.Duration:
		return v, nil
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("%w: option %q: %v", ErrInvalidConfiguration, key, err)
		}
		return d, nil
	case int, int64, float64:
		n, _ := asInt(key, v)
		return time.Duration(n) * time.Second, nil
	}
	return 0, typeError(key, "duration", value)
}

// asRoute accepts a *routing.Route, a pattern string or a map with pattern,
// method and name keys merged over current.
func asRoute(key string, value any, current RouteConfig) (RouteConfig, error) {
	switch v := value.(type) {
	case *routing.Route:
		current.Route = v
		return current, nil
	case string:
		current.Route = nil
		current.Pattern = v
		return current, nil
	case map[string]any:
		current.Route = nil
		for k, raw := range v {
			s, ok := raw.(string)
			if !ok {
				return current, typeError(key+"."+k, "string", raw)
			}
			switch k {
			case "pattern":
				current.Pattern = s
			case "method":
				current.Method = strings.ToUpper(s)
			case "name":
				current.Name = s
			default:
				return current, fmt.Errorf("%w: unknown route option %q", ErrInvalidConfiguration, key+"."+k)
			}
		}
		return current, nil
	}
	return current, typeError(key, "route", value)
}

func typeError(key, want string, got any) error {
	return fmt.Errorf("%w: option %q must be %s, got %T", ErrInvalidConfiguration, key, want, got)
}
