package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ftpadapter "github.com/lakewx/nwp-blend/internal/adapter/ftp"
	httpadapter "github.com/lakewx/nwp-blend/internal/adapter/http"
	"github.com/lakewx/nwp-blend/internal/adapter/notify"
	"github.com/lakewx/nwp-blend/internal/adapter/nwpstore"
	"github.com/lakewx/nwp-blend/internal/config"
	"github.com/lakewx/nwp-blend/internal/observability"
	"github.com/lakewx/nwp-blend/internal/pipeline"
	"github.com/lakewx/nwp-blend/internal/scheduler"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration")
	initShort := flag.String("init-short", "", "short-range init id, bypassing discovery (requires -init-mid)")
	initMid := flag.String("init-mid", "", "mid-range init id, bypassing discovery (requires -init-short)")
	daemon := flag.Bool("daemon", false, "run on the configured schedule with the HTTP endpoints (default: one batch, then exit)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	store := nwpstore.New(cfg.Storage.Root, cfg.Storage.DateLayout, logger)
	uploader := ftpadapter.NewUploader(cfg, logger, metrics)

	// Kafka notifications are feature-flagged.
	var notifier pipeline.Notifier
	var publisher *notify.Publisher
	if cfg.Kafka.Enabled {
		publisher = notify.NewPublisher(cfg, logger)
		notifier = publisher
		logger.Info("kafka notifications enabled", "topic", cfg.Kafka.Topic)
	} else {
		logger.Info("kafka notifications disabled")
	}

	p := pipeline.New(store, uploader, notifier, cfg, logger, metrics)

	if *daemon {
		runDaemon(cfg, p, publisher, logger)
		return
	}
	runOnce(cfg, p, publisher, logger, *initShort, *initMid)
}

// runOnce executes a single batch and exits. Item errors are scoped inside
// the batch; only setup failures exit non-zero.
func runOnce(cfg *config.Config, p *pipeline.Pipeline, publisher *notify.Publisher, logger *slog.Logger, initShort, initMid string) {
	if (initShort == "") != (initMid == "") {
		logger.Error("-init-short and -init-mid must be given together")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.BatchTimeout())
	defer cancel()

	var err error
	if initShort != "" {
		err = p.RunInits(ctx, initShort, initMid)
	} else {
		err = p.Run(ctx)
	}
	closePublisher(publisher, logger)
	if err != nil {
		logger.Error("batch failed", "error", err)
		os.Exit(1)
	}
}

func runDaemon(cfg *config.Config, p *pipeline.Pipeline, publisher *notify.Publisher, logger *slog.Logger) {
	sched, err := scheduler.New(cfg.Schedule, cfg.BatchTimeout(), p, logger)
	if err != nil {
		logger.Error("failed to set up schedule", "error", err)
		os.Exit(1)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	sched.Start()
	logger.Info("daemon running", "schedule", cfg.Schedule)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()

	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Error("scheduler stop error", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	closePublisher(publisher, logger)

	logger.Info("shutdown complete")
}

func closePublisher(publisher *notify.Publisher, logger *slog.Logger) {
	if publisher == nil {
		return
	}
	if err := publisher.Close(); err != nil {
		logger.Error("kafka publisher close error", "error", err)
	}
}
