// Package app initializes and runs the shop API service.
// It configures logging, storage, authentication, metrics and routing,
// and handles graceful shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/patric-chuzhbe/shop/internal/auth"
	"github.com/patric-chuzhbe/shop/internal/config"
	"github.com/patric-chuzhbe/shop/internal/db/memorystorage"
	"github.com/patric-chuzhbe/shop/internal/db/postgresdb"
	"github.com/patric-chuzhbe/shop/internal/db/storage"
	"github.com/patric-chuzhbe/shop/internal/ipchecker"
	"github.com/patric-chuzhbe/shop/internal/logger"
	"github.com/patric-chuzhbe/shop/internal/metrics"
	"github.com/patric-chuzhbe/shop/internal/models"
	"github.com/patric-chuzhbe/shop/internal/passwordhasher"
	"github.com/patric-chuzhbe/shop/internal/router"
	"github.com/patric-chuzhbe/shop/internal/service"
)

const shutdownTimeout = 10 * time.Second

// App encapsulates the configuration, HTTP handler and storage backend
// needed to run the shop API.
type App struct {
	cfg         *config.Config
	db          storage.Storage
	httpHandler http.Handler
}

type initOptions struct {
	cfg *config.Config
}

type InitOption func(*initOptions)

// WithConfig skips config.New and uses cfg instead.
func WithConfig(cfg *config.Config) InitOption {
	return func(options *initOptions) {
		options.cfg = cfg
	}
}

// New initializes a new instance of App by:
// - loading configuration
// - initializing logger
// - selecting and setting up storage
// - building the token service, the password hasher and the service layer
// - setting up the router and middleware
func New(optionsProto ...InitOption) (*App, error) {
	options := &initOptions{}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	var err error
	app := &App{cfg: options.cfg}

	if app.cfg == nil {
		app.cfg, err = config.New()
		if err != nil {
			return nil, err
		}
	}

	err = logger.Init(app.cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	signingKey, err := app.cfg.SigningKey()
	if err != nil {
		return nil, err
	}

	tokens, err := auth.NewTokenService(signingKey, auth.WithTTL(app.cfg.TokenTTL))
	if err != nil {
		return nil, err
	}

	checker, err := ipchecker.New(
		app.cfg.TrustedSubnet,
		ipchecker.WithTrustProxyHeaders(app.cfg.TrustProxyHeaders),
	)
	if err != nil {
		return nil, err
	}

	app.db, err = getStorageByType(app.cfg)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	app.httpHandler = router.New(
		service.New(app.db, passwordhasher.New(), tokens),
		auth.New(
			tokens,
			auth.WithFailureRecorder(collector),
			auth.WithErrorResponder(router.WriteError),
		),
		collector,
		checker,
		router.WithCartRoutesRequireAuth(app.cfg.CartRoutesRequireAuth),
		router.WithCORSAllowedOrigins(app.cfg.CORSAllowedOrigins),
	)

	return app, nil
}

// Handler returns the fully wired HTTP handler.
func (a *App) Handler() http.Handler {
	return a.httpHandler
}

// Run starts the HTTP server with graceful shutdown support.
// It listens for system signals and cleans up resources upon termination.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Log.Infoln("server running", "RunAddr", a.cfg.RunAddr)

	server := &http.Server{
		Addr:              a.cfg.RunAddr,
		Handler:           a.httpHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Log.Infoln("Received shutdown signal. Closing the storage and exiting...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Join(fmt.Errorf("server shutdown error: %w", err), a.db.Close())
		}

		return a.db.Close()

	case err := <-serverErrCh:
		closeErr := a.db.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return closeErr
		}
		return errors.Join(fmt.Errorf("server error: %w", err), closeErr)
	}
}

// Close finalizes resources used by App such as logging.
func (a *App) Close() {
	if err := logger.Sync(); err != nil {
		fmt.Println("Logger sync error:", err)
	}
}

func getAvailableStorageType(cfg *config.Config) int {
	if cfg.DatabaseDSN != "" {
		return models.StorageTypePostgresql
	}

	return models.StorageTypeMemory
}

func getStorageByType(cfg *config.Config) (storage.Storage, error) {
	if getAvailableStorageType(cfg) == models.StorageTypePostgresql {
		return postgresdb.New(
			context.Background(),
			cfg.DatabaseDSN,
			cfg.DBConnectionTimeout,
		)
	}

	logger.Log.Infoln("DATABASE_DSN is empty, using the in-memory storage")
	return memorystorage.New()
}
