package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/daap14/signon/internal/auth"
)

// Store kinds accepted by USER_STORE, ROLE_STORE and SESSION_STORE.
const (
	StoreStatic   = "static"
	StoreDatabase = "database"
	StoreNone     = "none"
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Port        int    `envconfig:"PORT" default:"8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	Version     string `envconfig:"VERSION" default:"dev"`
	DatabaseURL string `envconfig:"DATABASE_URL" default:""`

	UserStore       string `envconfig:"USER_STORE" default:"static"`
	StaticUsersFile string `envconfig:"STATIC_USERS_FILE" default:"users.yaml"`
	RoleStore       string `envconfig:"ROLE_STORE" default:"none"`
	StaticRolesFile string `envconfig:"STATIC_ROLES_FILE" default:"roles.yaml"`

	SessionStore        string `envconfig:"SESSION_STORE" default:"memory"`
	SessionSQLitePath   string `envconfig:"SESSION_SQLITE_PATH" default:"sessions.db"`
	SessionCookieName   string `envconfig:"SESSION_COOKIE_NAME" default:"sid"`
	SessionCookieSecure bool   `envconfig:"SESSION_COOKIE_SECURE" default:"false"`

	AuthExpirationSeconds         int               `envconfig:"AUTH_EXPIRATION_SECONDS" default:"600"`
	AuthPasswordSalt              string            `envconfig:"AUTH_PASSWORD_SALT" required:"true"`
	AuthInvalidCredentialsTimeout time.Duration     `envconfig:"AUTH_INVALID_CREDENTIALS_TIMEOUT" default:"3s"`
	AuthSignedInURL               string            `envconfig:"AUTH_SIGNED_IN_URL" default:""`
	AuthSignedOutURL              string            `envconfig:"AUTH_SIGNED_OUT_URL" default:""`
	AuthSignErrorURL              string            `envconfig:"AUTH_SIGN_ERROR_URL" default:""`
	AuthSignInPattern             string            `envconfig:"AUTH_SIGN_IN_PATTERN" default:"/signin"`
	AuthSignInMethod              string            `envconfig:"AUTH_SIGN_IN_METHOD" default:"POST"`
	AuthSignOutPattern            string            `envconfig:"AUTH_SIGN_OUT_PATTERN" default:"/signout"`
	AuthSignOutMethod             string            `envconfig:"AUTH_SIGN_OUT_METHOD" default:"POST"`
	AuthSignOutDestroysSession    bool              `envconfig:"AUTH_SIGN_OUT_DESTROYS_SESSION" default:"false"`
	AuthUsersTable                string            `envconfig:"AUTH_USERS_TABLE" default:"users"`
	AuthUsersColumns              map[string]string `envconfig:"AUTH_USERS_COLUMNS"`

	BcryptCost int `envconfig:"BCRYPT_COST" default:"10"`
}

// Load reads configuration from environment variables into a Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.UserStore {
	case StoreStatic:
	case StoreDatabase:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when USER_STORE=%s", StoreDatabase)
		}
	default:
		return fmt.Errorf("unknown USER_STORE %q", c.UserStore)
	}

	switch c.RoleStore {
	case StoreNone, StoreStatic:
	case StoreDatabase:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when ROLE_STORE=%s", StoreDatabase)
		}
	default:
		return fmt.Errorf("unknown ROLE_STORE %q", c.RoleStore)
	}

	switch c.SessionStore {
	case StoreMemory, StoreSQLite:
	default:
		return fmt.Errorf("unknown SESSION_STORE %q", c.SessionStore)
	}
	return nil
}

// Auth builds the auth module configuration from the environment values.
func (c *Config) Auth() auth.Config {
	cfg := auth.DefaultConfig()
	cfg.ExpirationSeconds = c.AuthExpirationSeconds
	cfg.PasswordSalt = c.AuthPasswordSalt
	cfg.BcryptCost = c.BcryptCost
	cfg.InvalidCredentialsTimeout = c.AuthInvalidCredentialsTimeout
	cfg.SignedInURL = c.AuthSignedInURL
	cfg.SignedOutURL = c.AuthSignedOutURL
	cfg.SignErrorURL = c.AuthSignErrorURL
	cfg.SignInRoute.Pattern = c.AuthSignInPattern
	cfg.SignInRoute.Method = c.AuthSignInMethod
	cfg.SignOutRoute.Pattern = c.AuthSignOutPattern
	cfg.SignOutRoute.Method = c.AuthSignOutMethod
	cfg.SignOutDestroysSession = c.AuthSignOutDestroysSession
	return cfg
}

// UsersTable returns the users table layout for the database user store.
func (c *Config) UsersTable() (auth.UsersTable, error) {
	table := auth.DefaultUsersTable()
	if c.AuthUsersTable != "" {
		table.Name = c.AuthUsersTable
	}
	return table.WithColumns(c.AuthUsersColumns)
}
