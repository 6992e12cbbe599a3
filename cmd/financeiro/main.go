package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"financeiro/internal/amqp"
	"financeiro/internal/auth"
	"financeiro/internal/cli"
	"financeiro/internal/core"
	apphttp "financeiro/internal/http"
	"financeiro/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	res := cli.InitBackend(context.Background(), logger, cfg, cfg.AMQPInvalidationQueue)
	svc, caches := cli.NewServices(cfg, res, logger)

	verifier := auth.NewVerifier(cfg.AuthSecret, cfg.AuthIssuer, core.ID(cfg.DevUserID))
	if !verifier.Enabled() {
		logger.Warn("AUTH_JWT_SECRET not set, every request acts as the development user", log.FieldUserID, cfg.DevUserID)
	}

	srv := apphttp.NewServer(apphttp.Config{
		Addr:        ":" + cfg.Port,
		CORSOrigins: cfg.CORSOrigins,
		RateLimit:   cfg.RateLimit,
		RateBurst:   cfg.RateBurst,
	}, svc, verifier, logger)

	ctx, _, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
		caches.Stop()
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err.Error())
		}
	})

	// Other instances and the worker publish changes too; drop the cached
	// summaries they touch.
	if res.Events != nil && cfg.AMQPInvalidationQueue != "" {
		go func() {
			err := res.Events.ConsumePeriodChanged(ctx, func(_ context.Context, msg *amqp.PeriodChangedMessage) error {
				svc.InvalidatePeriod(msg.UserID, msg.PeriodID)
				return nil
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Invalidation consumer stopped", log.FieldError, err.Error())
			}
		}()
	}

	logger.Info("Starting financeiro server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
