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

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/pdf-orders/internal/common"
	"github.com/joseph-ayodele/pdf-orders/internal/dispatch"
	"github.com/joseph-ayodele/pdf-orders/internal/export"
	"github.com/joseph-ayodele/pdf-orders/internal/extract"
	"github.com/joseph-ayodele/pdf-orders/internal/queue"
	"github.com/joseph-ayodele/pdf-orders/internal/server"
	"github.com/joseph-ayodele/pdf-orders/internal/service"
	"github.com/joseph-ayodele/pdf-orders/internal/store"
	"github.com/joseph-ayodele/pdf-orders/internal/watch"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.Store.Path, logger)
	if err != nil {
		logger.Error("failed to open store", "path", cfg.Store.Path, "error", err)
		os.Exit(1)
	}
	defer func() { _ = st.Close() }()

	// One ledger instance shared by every producer.
	ledger := dispatch.NewLedger()
	extractor := extract.NewInvoiceExtractor(logger)
	q := queue.New(st, extractor, ledger, logger,
		queue.WithWorkers(cfg.Queue.Workers),
		queue.WithQueueSize(cfg.Queue.Size),
		queue.WithProcessTimeout(cfg.Queue.ProcessTimeout),
		queue.WithMaxAttempts(cfg.Queue.MaxAttempts),
		queue.WithRetryBackoff(cfg.Queue.RetryBackoff),
	)
	dispatcher := dispatch.NewDispatcher(ledger, q, st, logger)

	events, watchErrs, err := watch.Start(ctx, watch.Config{
		Folder:      cfg.Watch.Folder,
		InitialScan: cfg.Watch.InitialScan,
		Debounce:    cfg.Watch.Debounce,
	}, logger)
	if err != nil {
		logger.Error("failed to start watcher", "folder", cfg.Watch.Folder, "error", err)
		os.Exit(1)
	}
	go watch.Forward(ctx, events, dispatcher, logger)
	go func() {
		for err := range watchErrs {
			logger.Error("watcher reported error", "error", err)
		}
	}()

	svc := service.New(st, dispatcher, ledger, logger)
	exp := export.NewService(st, logger)
	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           server.New(svc, exp, logger).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server listening", "addr", cfg.Server.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "error", err)
	}
	q.Shutdown(shutdownCtx)
	logger.Info("bye")
}
