package dispatch

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/pdf-orders/constants"
	"github.com/joseph-ayodele/pdf-orders/internal/common"
	"github.com/joseph-ayodele/pdf-orders/internal/store"
)

// Job is the unit handed to the worker queue.
type Job struct {
	TaskID      uuid.UUID
	Filename    string
	Content     []byte
	Attempt     int
	SubmittedAt time.Time
}

// Enqueuer is the queue behavior the dispatcher depends on.
type Enqueuer interface {
	Enqueue(ctx context.Context, job Job) error
}

// Submission is the outcome of a submit call.
type Submission struct {
	TaskID    uuid.UUID `json:"task_id"`
	Filename  string    `json:"filename"`
	Duplicate bool      `json:"duplicate"`
}

// Dispatcher is the single entry point for new work. Both the folder
// watcher and the upload endpoint submit through the same instance so that
// the dedup ledger sees every producer.
type Dispatcher struct {
	ledger *Ledger
	queue  Enqueuer
	store  *store.Store
	logger *slog.Logger
}

func NewDispatcher(ledger *Ledger, queue Enqueuer, st *store.Store, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{ledger: ledger, queue: queue, store: st, logger: logger}
}

// Submit validates and enqueues one (filename, content) pair. A filename
// with a task already in flight is skipped as a duplicate; the existing
// task stays authoritative and no error is returned. Submit never waits
// for extraction.
func (d *Dispatcher) Submit(ctx context.Context, filename string, content []byte) (Submission, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." {
		return Submission{}, common.ValidationError("filename is required")
	}
	if !constants.ExtAllowed(filepath.Ext(filename), nil) {
		return Submission{}, common.ValidationErrorf("unsupported file type: %q", filename)
	}
	if len(content) == 0 {
		return Submission{}, common.ValidationError("content is empty")
	}

	taskID := uuid.New()
	if existing, ok := d.ledger.Acquire(filename, taskID); !ok {
		d.logger.Info("duplicate submission skipped", "filename", filename, "task_id", existing)
		return Submission{TaskID: existing, Filename: filename, Duplicate: true}, nil
	}

	if _, err := d.store.InsertTask(ctx, taskID, filename); err != nil {
		d.ledger.Release(filename)
		return Submission{}, err
	}

	job := Job{
		TaskID:      taskID,
		Filename:    filename,
		Content:     content,
		SubmittedAt: time.Now().UTC(),
	}
	if err := d.queue.Enqueue(ctx, job); err != nil {
		d.ledger.Release(filename)
		_ = d.store.MarkTaskFailure(ctx, taskID, err.Error())
		return Submission{}, common.WrapError(err, "enqueue task")
	}

	d.logger.Info("submission accepted", "filename", filename, "task_id", taskID)
	return Submission{TaskID: taskID, Filename: filename}, nil
}

// Release clears the ledger entry for filename once its task is terminal.
func (d *Dispatcher) Release(filename string) {
	d.ledger.Release(filename)
}
