package watch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/joseph-ayodele/pdf-orders/constants"
	"github.com/joseph-ayodele/pdf-orders/internal/dispatch"
)

type Config struct {
	Folder      string        // directory to watch (non-recursive)
	AllowedExts map[string]struct{}
	InitialScan bool          // if true, emit files already in the folder
	Debounce    time.Duration // coalesce rapid create/write bursts
}

// Start watches cfg.Folder and produces a lazy, unbounded sequence of file
// paths. Events before the watcher starts are lost unless InitialScan is
// set; delivery is at-least-once and duplicates are expected - dedup is the
// dispatcher's job, not the watcher's. The event loop never blocks on
// consumers: emits into a full channel are dropped and recovered by later
// write events.
func Start(ctx context.Context, cfg Config, logger *slog.Logger) (<-chan string, <-chan error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Folder == "" {
		logger.Error("watcher start failed: no folder provided")
		return nil, nil, errors.New("no folder provided")
	}
	if err := os.MkdirAll(cfg.Folder, 0o755); err != nil {
		return nil, nil, err
	}

	evCh := make(chan string, 256)
	errCh := make(chan error, 1)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("failed to create fsnotify watcher", "error", err)
		return nil, nil, err
	}
	if err := w.Add(cfg.Folder); err != nil {
		logger.Error("failed to add watch folder", "folder", cfg.Folder, "error", err)
		_ = w.Close()
		return nil, nil, err
	}

	if cfg.InitialScan {
		entries, err := os.ReadDir(cfg.Folder)
		if err != nil {
			_ = w.Close()
			return nil, nil, err
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			path := filepath.Join(cfg.Folder, e.Name())
			if constants.ExtAllowed(filepath.Ext(path), cfg.AllowedExts) {
				select {
				case evCh <- path:
				default:
				}
			}
		}
	}

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func() { _ = w.Close() }()

		var (
			mu      sync.Mutex // guards pending; the debounce timer fires on its own goroutine
			timer   *time.Timer
			pending = map[string]struct{}{}
		)

		sendPending := func() {
			mu.Lock()
			defer mu.Unlock()
			for p := range pending {
				select {
				case evCh <- p:
				default:
				}
				delete(pending, p)
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if !constants.ExtAllowed(filepath.Ext(e.Name), cfg.AllowedExts) {
					continue
				}
				if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				mu.Lock()
				pending[e.Name] = struct{}{}
				mu.Unlock()
				if cfg.Debounce > 0 {
					if timer != nil {
						timer.Stop()
					}
					timer = time.AfterFunc(cfg.Debounce, sendPending)
				} else {
					sendPending()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("watcher error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	logger.Info("watching folder", "folder", cfg.Folder, "debounce", cfg.Debounce)
	return evCh, errCh, nil
}

// Submitter is the dispatcher behavior the forward loop depends on.
type Submitter interface {
	Submit(ctx context.Context, filename string, content []byte) (dispatch.Submission, error)
}

// Forward consumes watcher events, reads each file and submits it for
// processing. Dispatch is fire-and-forget relative to the event stream: the
// read and submit happen on their own goroutine so a slow store never stalls
// event detection.
func Forward(ctx context.Context, events <-chan string, d Submitter, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case path, ok := <-events:
			if !ok {
				return
			}
			go func(path string) {
				content, err := os.ReadFile(path)
				if err != nil {
					logger.Error("failed to read detected file", "path", path, "error", err)
					return
				}
				sub, err := d.Submit(ctx, filepath.Base(path), content)
				if err != nil {
					logger.Error("failed to submit detected file", "path", path, "error", err)
					return
				}
				if sub.Duplicate {
					logger.Debug("detected file already in flight", "path", path, "task_id", sub.TaskID)
					return
				}
				logger.Info("detected file submitted", "path", path, "task_id", sub.TaskID)
			}(path)
		}
	}
}
