package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/pdf-orders/constants"
	"github.com/joseph-ayodele/pdf-orders/internal/common"
	"github.com/joseph-ayodele/pdf-orders/internal/dispatch"
	"github.com/joseph-ayodele/pdf-orders/internal/extract"
	"github.com/joseph-ayodele/pdf-orders/internal/queue"
	"github.com/joseph-ayodele/pdf-orders/internal/store"
)

// One-shot utility: submit every PDF already sitting in the watched folder
// and wait for the pool to drain. Useful after deploys or when the watcher
// was down while files arrived.
func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		folder = flag.String("dir", "", "folder to scan (defaults to PDF_FOLDER)")
		dbPath = flag.String("db", "", "database path (defaults to DB_PATH)")
	)
	flag.Parse()

	cfg := common.LoadConfig()
	if *folder != "" {
		cfg.Watch.Folder = *folder
	}
	if *dbPath != "" {
		cfg.Store.Path = *dbPath
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	st, err := store.Open(cfg.Store.Path, logger)
	if err != nil {
		logger.Error("failed to open store", "path", cfg.Store.Path, "error", err)
		os.Exit(1)
	}
	defer func() { _ = st.Close() }()

	ledger := dispatch.NewLedger()
	q := queue.New(st, extract.NewInvoiceExtractor(logger), ledger, logger,
		queue.WithWorkers(cfg.Queue.Workers),
		queue.WithMaxAttempts(cfg.Queue.MaxAttempts),
		queue.WithRetryBackoff(cfg.Queue.RetryBackoff),
		queue.WithProcessTimeout(cfg.Queue.ProcessTimeout),
	)
	dispatcher := dispatch.NewDispatcher(ledger, q, st, logger)

	entries, err := os.ReadDir(cfg.Watch.Folder)
	if err != nil {
		logger.Error("failed to read folder", "folder", cfg.Watch.Folder, "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	var submitted, skipped, failed int
	for _, e := range entries {
		if e.IsDir() || !constants.ExtAllowed(filepath.Ext(e.Name()), nil) {
			continue
		}
		path := filepath.Join(cfg.Watch.Folder, e.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			logger.Error("failed to read file", "path", path, "error", err)
			failed++
			continue
		}
		sub, err := dispatcher.Submit(ctx, e.Name(), content)
		if err != nil {
			logger.Error("failed to submit file", "path", path, "error", err)
			failed++
			continue
		}
		if sub.Duplicate {
			skipped++
			continue
		}
		submitted++
	}

	if submitted == 0 {
		logger.Info("no existing PDFs to process", "folder", cfg.Watch.Folder)
	}

	drainCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()
	q.Shutdown(drainCtx)

	logger.Info("done", "submitted", submitted, "skipped", skipped, "failed", failed)
	if failed > 0 {
		os.Exit(1)
	}
}
