package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/daap14/signon/internal/api"
	"github.com/daap14/signon/internal/api/handler"
	"github.com/daap14/signon/internal/auth"
	"github.com/daap14/signon/internal/config"
	"github.com/daap14/signon/internal/metrics"
	"github.com/daap14/signon/internal/session"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long: `Run the HTTP server.

Environment:
  PORT, LOG_LEVEL, VERSION, DATABASE_URL
  USER_STORE (static|database), STATIC_USERS_FILE
  ROLE_STORE (none|static|database), STATIC_ROLES_FILE
  SESSION_STORE (memory|sqlite), SESSION_SQLITE_PATH
  SESSION_COOKIE_NAME, SESSION_COOKIE_SECURE
  AUTH_PASSWORD_SALT (required), AUTH_EXPIRATION_SECONDS,
  AUTH_INVALID_CREDENTIALS_TIMEOUT, AUTH_SIGNED_IN_URL, AUTH_SIGNED_OUT_URL,
  AUTH_SIGN_ERROR_URL, AUTH_SIGN_IN_PATTERN, AUTH_SIGN_IN_METHOD,
  AUTH_SIGN_OUT_PATTERN, AUTH_SIGN_OUT_METHOD, AUTH_SIGN_OUT_DESTROYS_SESSION,
  AUTH_USERS_TABLE, AUTH_USERS_COLUMNS, BCRYPT_COST`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	setupLogger(cfg.LogLevel)

	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer pool.Close()
	}

	users, err := newUserStore(cfg, pool)
	if err != nil {
		return err
	}
	roles, err := newRoleStore(cfg, pool)
	if err != nil {
		return err
	}

	store, closeStore, err := newSessionStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	authCfg := cfg.Auth()
	module, err := auth.NewModule(authCfg, auth.Dependencies{
		Users:      users,
		Roles:      roles,
		Controller: handler.NewAuthHandler(),
		Metrics:    metrics.NewAuth(reg),
		Logger:     slog.Default(),
	})
	if err != nil {
		return fmt.Errorf("configuring auth: %w", err)
	}

	sessions := session.NewManager(store,
		session.WithCookieName(cfg.SessionCookieName),
		session.WithSecureCookie(cfg.SessionCookieSecure),
		session.WithDefaultTTL(authCfg.Expiration()),
	)

	var pinger handler.DBPinger
	if pool != nil {
		pinger = pool
	}

	router := api.NewRouter(api.RouterDeps{
		Auth:     module,
		Sessions: sessions,
		DBPinger: pinger,
		Gatherer: reg,
		Version:  cfg.Version,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting signon server",
			"port", cfg.Port,
			"version", cfg.Version,
			"userStore", cfg.UserStore,
			"sessionStore", cfg.SessionStore,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutting down server", "signal", sig.String())
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

func newUserStore(cfg *config.Config, pool *pgxpool.Pool) (auth.UserStore, error) {
	switch cfg.UserStore {
	case config.StoreDatabase:
		table, err := cfg.UsersTable()
		if err != nil {
			return nil, err
		}
		return auth.NewDatabaseUserStore(pool, table), nil
	default:
		users, err := auth.LoadStaticUsers(cfg.StaticUsersFile)
		if err != nil {
			return nil, err
		}
		return users, nil
	}
}

func newRoleStore(cfg *config.Config, pool *pgxpool.Pool) (auth.RoleStore, error) {
	switch cfg.RoleStore {
	case config.StoreDatabase:
		return auth.NewDatabaseRoleStore(pool), nil
	case config.StoreStatic:
		roles, err := auth.LoadStaticRoles(cfg.StaticRolesFile)
		if err != nil {
			return nil, err
		}
		return roles, nil
	default:
		return nil, nil
	}
}

func newSessionStore(ctx context.Context, cfg *config.Config) (session.Store, func(), error) {
	if cfg.SessionStore != config.StoreSQLite {
		store := session.NewMemoryStore()
		return store, func() { _ = store.Close() }, nil
	}

	db, err := session.OpenSQLite(cfg.SessionSQLitePath)
	if err != nil {
		return nil, nil, err
	}
	store := session.NewSQLStore(db)
	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		_ = db.Close()
		return nil, nil, fmt.Errorf("initializing session store: %w", err)
	}
	return store, func() {
		_ = store.Close()
		_ = db.Close()
	}, nil
}
