// Package cli provides the initialization shared by cmd/financeiro and
// cmd/financeiro-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"financeiro/internal/backend"
	"financeiro/internal/cache"
	"financeiro/internal/config"
	"financeiro/internal/log"
	"financeiro/internal/services"
)

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// makes it the slog default.
func SetupLogger(component string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(os.Getenv("LOG_LEVEL"))
	if f := os.Getenv("LOG_FORMAT"); f != "" {
		cfg.Format = f
	}
	cfg.Component = component
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and runs Validate plus any extra
// checks. It exits the process on failure.
func LoadAndValidateConfig(logger *log.Logger, extra ...func(*config.Config) error) *config.Config {
	cfg := config.Load()
	checks := append([]func(*config.Config) error{(*config.Config).Validate}, extra...)
	for _, check := range checks {
		if err := check(cfg); err != nil {
			logger.Error("Configuration validation failed", log.FieldError, err.Error())
			os.Exit(1)
		}
	}
	return cfg
}

// InitBackend creates the data backend and event client. It exits the
// process on failure. queue is the AMQP queue this process consumes.
func InitBackend(ctx context.Context, logger *log.Logger, cfg *config.Config, queue string) *backend.Result {
	bcfg, err := backend.FromAppConfig(cfg, queue)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err.Error())
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err.Error(), "backend", cfg.DataBackend)
		os.Exit(1)
	}
	return res
}

// NewServices wires the services layer and registers its caches for
// periodic cleanup. Stop the returned manager on shutdown.
func NewServices(cfg *config.Config, res *backend.Result, logger *log.Logger) (*services.Service, *cache.Manager) {
	opts := services.DefaultOptions()
	if cfg.LookupTTL > 0 {
		opts.LookupTTL = cfg.LookupTTL
	}
	if cfg.SessionTTL > 0 {
		opts.SessionTTL = cfg.SessionTTL
	}
	if cfg.MaxSessions > 0 {
		opts.MaxSessions = cfg.MaxSessions
	}
	if cfg.FetchConcurrency > 0 {
		opts.Concurrency = cfg.FetchConcurrency
	}

	var events services.EventPublisher
	if res.Events != nil {
		events = res.Events
	}
	svc := services.New(res.Backend, events, logger, opts)

	caches := cache.NewManager(logger)
	for _, c := range svc.Cleaners() {
		caches.Register(c)
	}
	caches.StartCleanup(cfg.CleanupInterval)
	return svc, caches
}

// GracefulShutdown returns a context cancelled on SIGINT, SIGTERM or a call
// to stop. Then cleanup runs with a context bounded by timeout; done is
// closed when it returns.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (ctx context.Context, stop context.CancelFunc, done <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
			return
		}
		logger.Info("Shutdown complete")
	}()

	return ctx, cancel, finished
}
