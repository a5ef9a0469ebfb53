package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/clock"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	graphadapter "github.com/ericfisherdev/credwatch/internal/adapter/driven/graph"
	msaladapter "github.com/ericfisherdev/credwatch/internal/adapter/driven/msal"
	sqliteadapter "github.com/ericfisherdev/credwatch/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/credwatch/internal/adapter/driving/http"
	webhandler "github.com/ericfisherdev/credwatch/internal/adapter/driving/web"
	"github.com/ericfisherdev/credwatch/internal/application"
	"github.com/ericfisherdev/credwatch/internal/config"
	"github.com/ericfisherdev/credwatch/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"authority", cfg.Authority,
		"refresh_interval", cfg.RefreshInterval,
		"default_threshold_days", cfg.DefaultThresholdDays,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	schemaVersion, err := sqliteadapter.RunMigrations(db.Writer)
	if err != nil {
		return err
	}
	slog.Info("migrations complete", "schema_version", schemaVersion)

	// 5. Token cache: encrypted in SQLite when a key is configured,
	// otherwise memory only and every restart signs in again.
	var store driven.SecretStore
	if cfg.HasSecretKey() {
		store = sqliteadapter.NewSecretRepo(db, cfg.SecretKey)
	} else {
		slog.Warn("CREDWATCH_SECRET_KEY not set, token cache will not survive restarts")
	}
	tokenCache := msaladapter.NewTokenCache(store, slog.Default())

	// 6. Create the token session and restore any cached account.
	factory := msaladapter.Factory(msaladapter.Config{
		ClientID:    cfg.ClientID,
		Authority:   cfg.Authority,
		RedirectURI: cfg.RedirectURI,
	}, tokenCache, slog.Default())
	session := application.NewTokenSession(factory, application.SessionConfig{
		InteractiveTimeout: cfg.InteractiveTimeout,
	}, slog.Default())
	if err := session.Initialize(ctx); err != nil {
		slog.Error("token session initialization failed", "error", err, "state", session.State())
	}

	// 7. Create Graph client; tokens are pulled from the session per request.
	graphClient, err := graphadapter.NewClient(session, graphadapter.Options{
		BaseURL:  cfg.GraphBaseURL,
		MaxPages: cfg.GraphMaxPages,
		Logger:   slog.Default(),
	})
	if err != nil {
		return err
	}

	// 8. Create and start refresh service.
	aggregator := application.NewAggregator(cfg.GraphConcurrency, slog.Default())
	refreshSvc := application.NewRefreshService(
		session,
		graphClient,
		aggregator,
		clock.WallClock,
		cfg.RefreshInterval,
		slog.Default(),
	)
	go refreshSvc.Start(ctx)

	viewModel := application.NewExpiryViewModel(clock.WallClock, cfg.DefaultThresholdDays)

	// 9. Create HTTP handler and register API routes.
	apiHandler := httphandler.NewHandler(session, refreshSvc, viewModel, slog.Default())
	mux := http.NewServeMux()
	httphandler.RegisterAPIRoutes(mux, apiHandler)

	// 10. Create web handler and register GUI routes.
	webHandler := webhandler.NewHandler(session, refreshSvc, viewModel, slog.Default())
	webhandler.RegisterRoutes(mux, webHandler)

	// Apply middleware.
	handler := httphandler.ApplyMiddleware(mux, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("credwatch started",
		"listen_addr", cfg.ListenAddr,
		"session_state", session.State(),
	)

	// 11. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
