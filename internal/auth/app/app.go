package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/workbench/internal/auth/http"
	"github.com/aussiebroadwan/workbench/internal/auth/lockout"
	"github.com/aussiebroadwan/workbench/internal/auth/policy"
	"github.com/aussiebroadwan/workbench/internal/auth/service"
	"github.com/aussiebroadwan/workbench/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/workbench/pkg/cryptox"
	"github.com/aussiebroadwan/workbench/pkg/jwtx"
	"github.com/aussiebroadwan/workbench/pkg/slogx"
	"github.com/redis/go-redis/v9"
)

// BuildVersion is overridden at build time with
// -ldflags "-X github.com/aussiebroadwan/workbench/internal/auth/app.BuildVersion=...".
var BuildVersion = "v0.1.0"

// Application owns every long-lived dependency of the auth service.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db      *sqlite.Store
	keys    *jwtx.KeyManager
	redis   *redis.Client
	limiter lockout.Limiter

	services     httpapi.Services
	bootstrap    *service.BootstrapService
	housekeeping *service.HousekeepingService

	server *http.Server
}

// New wires the application. Nothing is served until Run.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "auth-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	keys, err := InitAuthKeys(cfg, app.logger)
	if err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.keys = keys

	if err := app.initLimiter(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	if err := app.initServices(); err != nil {
		_ = app.closeBackends()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Run bootstraps the first admin if asked to, then serves until SIGINT or
// SIGTERM.
func (app *Application) Run() error {
	ctx := slogx.WithContext(context.Background(), app.logger)
	if err := app.ensureAdmin(ctx); err != nil {
		return err
	}

	app.housekeeping.Start()

	app.logger.Info("auth service starting",
		slog.Int("port", app.cfg.Port),
		slog.String("version", BuildVersion),
		slog.String("algorithm", app.keys.Algorithm()),
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		app.housekeeping.Stop()
		_ = app.closeBackends()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}
	return nil
}

// Shutdown drains in-flight requests, stops housekeeping and closes the
// backends.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", slog.Any("error", err))
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", slog.Any("error", err))
		}
	}

	app.housekeeping.Stop()
	if err := app.closeBackends(); err != nil {
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

func (app *Application) closeBackends() error {
	var errs []error
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis", slog.Any("error", err))
			errs = append(errs, err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", slog.Any("error", err))
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (app *Application) initDatabase() error {
	db, err := sqlite.NewStore(sqlite.DSN(app.cfg.DatabaseFile))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.db = db
	app.logger.Info("database ready", slog.String("file", app.cfg.DatabaseFile))
	return nil
}

// initLimiter prefers Redis so lockouts are shared between replicas; the
// sqlite counter covers single-node deployments.
func (app *Application) initLimiter() error {
	if app.cfg.RedisURL == "" {
		app.limiter = lockout.NewStoreLimiter(app.db.MFAAttempts(), app.cfg.MFALockout)
		app.logger.Info("mfa lockout backed by the database")
		return nil
	}

	client, err := lockout.NewRedisClient(app.cfg.RedisURL)
	if err != nil {
		return err
	}
	limiter := lockout.NewRedisLimiter(client, app.cfg.MFALockout)

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.StoreTimeout)
	defer cancel()
	if err := limiter.Ping(ctx); err != nil {
		// readiness reports it; lockout fails closed until redis answers
		app.logger.Warn("redis not reachable at startup", slog.Any("error", err))
	}

	app.redis = client
	app.limiter = limiter
	app.logger.Info("mfa lockout backed by redis")
	return nil
}

func (app *Application) initServices() error {
	cfg := app.cfg

	pepper, err := cryptox.LoadOrGeneratePepper(cfg.PepperFile)
	if err != nil {
		return fmt.Errorf("failed to load pepper: %w", err)
	}
	hasher := cryptox.NewPasswordHasher(pepper)

	sealer, err := initSealer(cfg, app.logger)
	if err != nil {
		return fmt.Errorf("failed to init mfa sealer: %w", err)
	}

	var extra []string
	if cfg.PasswordBlocklistFile != "" {
		if extra, err = policy.LoadBlocklist(cfg.PasswordBlocklistFile); err != nil {
			return err
		}
		app.logger.Info("password blocklist loaded", slog.Int("entries", len(extra)))
	}
	pol := policy.New(extra...)

	tokens := &service.TokenService{
		Keys:          app.keys,
		Store:         app.db,
		Issuer:        cfg.Issuer,
		Audience:      cfg.Audience,
		AccessTTL:     cfg.AccessTokenTTL,
		SessionTTL:    cfg.SessionTTL,
		StrictBinding: cfg.StrictSessionBinding,
		SingleSession: cfg.SingleSession,
		StoreTimeout:  cfg.StoreTimeout,
	}
	passwords := &service.PasswordService{
		Store:        app.db,
		Hasher:       hasher,
		Policy:       pol,
		Tokens:       tokens,
		HistoryDepth: cfg.PasswordHistoryDepth,
		StoreTimeout: cfg.StoreTimeout,
	}
	skew := cfg.MFASkew
	mfa := &service.MFAService{
		Store:        app.db,
		Sealer:       sealer,
		Limiter:      app.limiter,
		Passwords:    passwords,
		Issuer:       cfg.MFAIssuer,
		Skew:         &skew,
		StoreTimeout: cfg.StoreTimeout,
	}

	app.services = httpapi.Services{
		Tokens: tokens,
		Login: &service.LoginService{
			Store:        app.db,
			Hasher:       hasher,
			Policy:       pol,
			Tokens:       tokens,
			MFA:          mfa,
			StoreTimeout: cfg.StoreTimeout,
		},
		Passwords: passwords,
		MFA:       mfa,
		Users:     &service.UserService{Store: app.db, Tokens: tokens, StoreTimeout: cfg.StoreTimeout},
	}
	app.bootstrap = &service.BootstrapService{Store: app.db, Hasher: hasher, Policy: pol}

	window := cfg.MFALockout.Window
	if window <= 0 {
		window = lockout.DefaultWindow
	}
	app.housekeeping = service.NewHousekeepingService(app.db, app.logger, cfg.HousekeepingInterval, window)
	return nil
}

// ensureAdmin creates the first admin from BOOTSTRAP_ADMIN_* on an empty
// store. Later starts leave the store alone.
func (app *Application) ensureAdmin(ctx context.Context) error {
	if app.cfg.BootstrapAdminEmail == "" {
		return nil
	}

	u, err := app.bootstrap.EnsureAdmin(ctx, app.cfg.BootstrapAdminEmail, app.cfg.BootstrapAdminPassword)
	switch {
	case errors.Is(err, service.ErrBootstrapAlready):
		app.logger.Debug("bootstrap skipped, users already exist")
		return nil
	case err != nil:
		return fmt.Errorf("bootstrap admin: %w", err)
	}

	app.logger.Info("bootstrap admin created", slog.String("user_id", u.ID), slog.String("email", u.Email))
	return nil
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keys,
		app.db,
		app.services,
		app.limiter,
		app.cfg.rateLimits,
		app.cfg.trustedProxies,
		BuildVersion,
		app.logger,
	)
	router.ApplyRoutes()

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
