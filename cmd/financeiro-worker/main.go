package main

import (
	"context"
	"errors"
	"os"
	"time"

	"financeiro/internal/cli"
	"financeiro/internal/config"
	"financeiro/internal/core"
	"financeiro/internal/log"
	gsheet "financeiro/internal/sheets/google"
	"financeiro/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting financeiro-worker")

	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateWorker)

	res := cli.InitBackend(context.Background(), logger, cfg, cfg.AMQPQueue)
	if res.Events == nil {
		logger.Error("AMQP broker unreachable, the worker has nothing to consume")
		os.Exit(1)
	}
	svc, caches := cli.NewServices(cfg, res, logger)

	exporter, err := gsheet.NewFromEnv(context.Background(), logger)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	exportWorker := worker.NewExportWorker(svc, exporter, logger)

	ctx, stop, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		caches.Stop()
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err.Error())
		}
	})

	// Catch up on changes made while the worker was down.
	if len(cfg.ExportUsers) > 0 {
		users := make([]core.ID, 0, len(cfg.ExportUsers))
		for _, u := range cfg.ExportUsers {
			users = append(users, core.ID(u))
		}
		if err := exportWorker.ExportAll(ctx, users, time.Now().Year()); err != nil {
			logger.Error("Startup export incomplete", log.FieldError, err.Error())
		}
	}

	err = res.Events.ConsumePeriodChanged(ctx, exportWorker.HandlePeriodChanged)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err.Error())
	}
	stop()

	<-done
	logger.Info("Worker shutdown complete")
}
