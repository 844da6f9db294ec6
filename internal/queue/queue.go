package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/pdf-orders/internal/dispatch"
	"github.com/joseph-ayodele/pdf-orders/internal/extract"
	"github.com/joseph-ayodele/pdf-orders/internal/store"
)

// Queue runs the worker pool. Tasks for distinct filenames execute in
// parallel, bounded by pool size; the dedup ledger guarantees no two jobs
// exist concurrently for the same filename. Failed extractions are retried
// with backoff until maxAttempts, then marked as terminal failures.
type Queue struct {
	store     *store.Store
	extractor extract.Extractor
	ledger    *dispatch.Ledger
	logger    *slog.Logger

	workers     int
	timeout     time.Duration
	maxAttempts int
	backoff     time.Duration

	ch   chan dispatch.Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*Queue)

func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.ch = make(chan dispatch.Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.maxAttempts = n
		}
	}
}

func WithRetryBackoff(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.backoff = d
		}
	}
}

func New(st *store.Store, extractor extract.Extractor, ledger *dispatch.Ledger, logger *slog.Logger, opts ...Option) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		store:       st,
		extractor:   extractor,
		ledger:      ledger,
		logger:      logger,
		workers:     4,
		timeout:     3 * time.Minute,
		maxAttempts: 3,
		backoff:     time.Minute,
		ch:          make(chan dispatch.Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *Queue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for job := range q.ch {
					q.process(workerID, job)
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *Queue) process(workerID int, job dispatch.Job) {
	attempt := job.Attempt + 1
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	if err := q.store.MarkTaskRunning(ctx, job.TaskID, attempt); err != nil {
		q.logger.Error("task state update failed", "worker_id", workerID, "task_id", job.TaskID, "error", err)
	}

	rec, err := q.extractor.Extract(ctx, job.Content, job.Filename)
	if err == nil {
		err = q.store.UpsertRecord(ctx, rec)
	}
	if err != nil {
		q.fail(ctx, job, attempt, err)
		return
	}

	payload, merr := json.Marshal(rec)
	if merr != nil {
		q.logger.Error("result encode failed", "task_id", job.TaskID, "error", merr)
	}
	if err := q.store.MarkTaskSuccess(ctx, job.TaskID, payload); err != nil {
		q.logger.Error("task state update failed", "task_id", job.TaskID, "error", err)
	}
	q.ledger.Release(job.Filename)
	q.logger.Info("processed file successfully",
		"worker_id", workerID, "task_id", job.TaskID, "filename", job.Filename, "attempt", attempt)
}

func (q *Queue) fail(ctx context.Context, job dispatch.Job, attempt int, cause error) {
	if attempt < q.maxAttempts {
		if err := q.store.MarkTaskQueued(ctx, job.TaskID, cause.Error()); err != nil {
			q.logger.Error("task state update failed", "task_id", job.TaskID, "error", err)
		}
		q.logger.Warn("processing failed, scheduling retry",
			"task_id", job.TaskID, "filename", job.Filename,
			"attempt", attempt, "max_attempts", q.maxAttempts, "error", cause)

		retry := job
		retry.Attempt = attempt
		time.AfterFunc(q.backoff, func() {
			if err := q.Enqueue(context.Background(), retry); err != nil {
				q.logger.Error("retry enqueue failed", "task_id", job.TaskID, "error", err)
			}
		})
		return
	}

	if err := q.store.MarkTaskFailure(ctx, job.TaskID, cause.Error()); err != nil {
		q.logger.Error("task state update failed", "task_id", job.TaskID, "error", err)
	}
	// Terminal: clear the ledger so a fresh upload can retry from scratch.
	q.ledger.Release(job.Filename)
	q.logger.Error("processing failed permanently",
		"task_id", job.TaskID, "filename", job.Filename, "attempts", attempt, "error", cause)
}

// Enqueue hands a job to the pool. It never blocks past the channel send
// and never waits for extraction. Enqueueing into a queue that is shutting
// down drops the job.
func (q *Queue) Enqueue(_ context.Context, job dispatch.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "task_id", job.TaskID, "filename", job.Filename)
		return nil
	}
	select {
	case q.ch <- job:
		q.logger.Info("queued file for processing", "task_id", job.TaskID, "filename", job.Filename, "attempt", job.Attempt)
	default:
		q.logger.Warn("queue full, applying backpressure", "task_id", job.TaskID, "filename", job.Filename)
		q.ch <- job
	}
	return nil
}

// Shutdown stops accepting jobs and waits for the pool to drain, bounded
// by ctx.
func (q *Queue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
