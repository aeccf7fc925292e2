package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"despesas/internal/cli"
	"despesas/internal/core"
	"despesas/internal/export"
	"despesas/internal/log"
)

func main() {
	runOnce := flag.Bool("once", false, "export the previous month immediately and exit")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentScheduler)
	cfg := cli.LoadAndValidateConfig(logger)

	if !cfg.ExportEnabled() {
		logger.Error("Sheet export is not configured, set GOOGLE_SPREADSHEET_ID")
		os.Exit(1)
	}

	result := cli.OpenBackend(context.Background(), logger, cfg)

	sheets, err := export.NewSheetsClient(context.Background(), cfg)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	exporter := export.NewExporter(result.Store, sheets, logger.WithComponent(log.ComponentExport))

	exportPreviousMonth := func(ctx context.Context) error {
		month := core.MonthKeyOf(time.Now()).AddMonths(-1)
		logger.InfoContext(ctx, "Exporting monthly rollup", log.FieldMonth, month)
		return exporter.ExportMonth(ctx, month)
	}

	if *runOnce {
		err := exportPreviousMonth(context.Background())
		cleanup(logger, result.Cleanup)
		if err != nil {
			logger.Error("Export failed", log.FieldError, err)
			os.Exit(1)
		}
		return
	}

	c := cron.New()
	_, err = c.AddFunc(cfg.ExportSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := exportPreviousMonth(ctx); err != nil {
			logger.Error("Scheduled export failed", log.FieldError, err)
		}
	})
	if err != nil {
		logger.Error("Invalid export schedule", log.FieldError, err, "schedule", cfg.ExportSchedule)
		os.Exit(1)
	}
	c.Start()
	logger.Info("Export worker started", "schedule", cfg.ExportSchedule)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		stopCtx := c.Stop()
		<-stopCtx.Done()
		cleanup(logger, result.Cleanup)
	})
	cli.WaitForShutdown(ctx, done)
}

func cleanup(logger *log.Logger, fn func() error) {
	if fn == nil {
		return
	}
	if err := fn(); err != nil {
		logger.Error("Backend cleanup failed", log.FieldError, err)
	}
}
