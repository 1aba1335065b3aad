package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/directory/internal/directory/http"
	"github.com/aussiebroadwan/directory/internal/directory/metrics"
	"github.com/aussiebroadwan/directory/internal/directory/provider"
	"github.com/aussiebroadwan/directory/internal/directory/service"
	"github.com/aussiebroadwan/directory/internal/directory/store/drivers/sqlite"
	"github.com/aussiebroadwan/directory/internal/directory/view"
	"github.com/aussiebroadwan/directory/pkg/cryptox"
	"github.com/aussiebroadwan/directory/pkg/jwtx"
	"github.com/aussiebroadwan/directory/pkg/slogx"
)

// BuildVersion is overridden at build time via -ldflags.
var BuildVersion = "v0.1.0"

const flowIssuer = "directory"

// Application encapsulates the directory service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db      *sqlite.Store
	metrics *metrics.Metrics

	identityService     *service.IdentityService
	sessionService      *service.SessionService
	credentialService   *service.CredentialService
	federatedService    *service.FederatedService // nil when federation is disabled
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates a new Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "directory",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		metrics: metrics.New(),
	}

	cryptox.SetPepperPath(cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initServices(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	if err := app.initHTTP(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	return app, nil
}

// Handler returns the fully wired HTTP handler.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("directory starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"federation", app.cfg.FederationEnabled(),
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.housekeepingService.Stop()
			_ = app.db.Close()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down directory...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("directory stopped")
	return nil
}

func (app *Application) initDatabase() error {
	db, err := sqlite.NewStore(sqlite.FileDSN(app.cfg.DatabaseFile))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "file", app.cfg.DatabaseFile)
	return nil
}

func (app *Application) initServices() error {
	app.identityService = &service.IdentityService{Store: app.db, Metrics: app.metrics}
	app.sessionService = &service.SessionService{
		Store:   app.db,
		TTL:     app.cfg.SessionTTL,
		Metrics: app.metrics,
	}
	app.credentialService = &service.CredentialService{
		Store:      app.db,
		Identities: app.identityService,
		Sessions:   app.sessionService,
		Metrics:    app.metrics,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.sessionService,
		app.logger,
		app.cfg.HousekeepingInterval,
	)

	if !app.cfg.FederationEnabled() {
		app.logger.Info("federated sign-in disabled (CLIENT_ID not set)")
		return nil
	}

	p, err := provider.New(provider.Config{
		Name:         app.cfg.OAuthProvider,
		ClientID:     app.cfg.ClientID,
		ClientSecret: app.cfg.ClientSecret,
		AuthURL:      app.cfg.OAuthAuthURL,
		TokenURL:     app.cfg.OAuthTokenURL,
		UserInfoURL:  app.cfg.OAuthUserInfoURL,
		RedirectURL:  app.cfg.OAuthRedirectURL,
		Scopes:       app.cfg.OAuthScopes,
	})
	if err != nil {
		return fmt.Errorf("failed to configure identity provider: %w", err)
	}

	app.federatedService = &service.FederatedService{
		Provider:      p,
		Identities:    app.identityService,
		Sessions:      app.sessionService,
		DefaultScopes: app.cfg.OAuthScopes,
		Metrics:       app.metrics,
	}
	app.logger.Info("federated sign-in enabled", "provider", p.Name())
	return nil
}

func (app *Application) initHTTP() error {
	views, err := view.New()
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	signer, err := app.flowSigner()
	if err != nil {
		return err
	}

	router := httpapi.NewRouter(BuildVersion, app.db, app.logger)
	router.Views = views
	router.Identities = app.identityService
	router.Credentials = app.credentialService
	router.Sessions = app.sessionService
	router.Federated = app.federatedService
	router.FlowSigner = signer
	router.Metrics = app.metrics
	router.Cookies = httpapi.CookieConfig{Secure: app.cfg.CookieSecure, TTL: app.cfg.SessionTTL}
	router.MaxAvatarBytes = app.cfg.MaxAvatarBytes
	router.TrustProxy = app.cfg.TrustProxyHeaders
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
	return nil
}

// flowSigner uses FLOW_SIGNING_KEY when set. Otherwise in-flight federated
// sign-ins do not survive a restart.
func (app *Application) flowSigner() (*jwtx.FlowSigner, error) {
	key := []byte(app.cfg.FlowSigningKey)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate flow signing key: %w", err)
		}
	}

	signer, err := jwtx.NewFlowSigner(key, flowIssuer)
	if err != nil {
		return nil, fmt.Errorf("invalid FLOW_SIGNING_KEY: %w", err)
	}
	return signer, nil
}

// Migrate applies pending migrations to the configured database and reports
// the resulting schema version.
func Migrate(cfg Config) (version uint, dirty bool, err error) {
	db, err := sqlite.NewStore(sqlite.FileDSN(cfg.DatabaseFile))
	if err != nil {
		return 0, false, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.ApplyMigrations(); err != nil {
		return 0, false, fmt.Errorf("failed to apply database migrations: %w", err)
	}
	return db.MigrationVersion()
}
