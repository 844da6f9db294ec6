package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/pdf-orders/constants"
	"github.com/joseph-ayodele/pdf-orders/internal/common"
	"github.com/joseph-ayodele/pdf-orders/internal/dispatch"
	"github.com/joseph-ayodele/pdf-orders/internal/entity"
	"github.com/joseph-ayodele/pdf-orders/internal/store"
)

// Service is the core facade the transport layer talks to. It owns the
// status state machine and the staging workflow; all persistence goes
// through the shared store and all new work through the shared dispatcher.
type Service struct {
	store      *store.Store
	dispatcher *dispatch.Dispatcher
	ledger     *dispatch.Ledger
	logger     *slog.Logger
}

func New(st *store.Store, d *dispatch.Dispatcher, ledger *dispatch.Ledger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, dispatcher: d, ledger: ledger, logger: logger}
}

// SubmitUpload accepts a direct upload and dispatches it for processing.
func (s *Service) SubmitUpload(ctx context.Context, filename string, content []byte) (dispatch.Submission, error) {
	return s.dispatcher.Submit(ctx, filename, content)
}

// FilenameStatus is the answer to a lifecycle-state query.
type FilenameStatus struct {
	Filename string                 `json:"filename"`
	State    constants.DocStatus    `json:"status"`
	Record   *entity.DocumentRecord `json:"record,omitempty"`
}

// GetStatusByFilename derives the lifecycle state of a filename:
// an in-flight ledger entry wins, then an open pending draft, then a
// committed record, then a terminally failed task; otherwise not_found.
func (s *Service) GetStatusByFilename(ctx context.Context, filename string) (FilenameStatus, error) {
	status := FilenameStatus{Filename: filename, State: constants.DocStatusNotFound}

	if _, inFlight := s.ledger.InFlight(filename); inFlight {
		status.State = constants.DocStatusProcessing
		return status, nil
	}

	hasPending, err := s.store.PendingExistsForFilename(ctx, filename)
	if err != nil {
		return status, err
	}

	rec, err := s.store.GetRecord(ctx, filename)
	switch {
	case err == nil:
		// Last-committed snapshot; an open draft still takes precedence.
		status.Record = rec
		if hasPending {
			status.State = constants.DocStatusPending
		} else {
			status.State = constants.DocStatusCompleted
		}
		return status, nil
	case !errors.Is(err, common.ErrNotFound):
		return status, err
	}

	if hasPending {
		status.State = constants.DocStatusPending
		return status, nil
	}

	task, err := s.store.LatestTaskForFilename(ctx, filename)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return status, nil
		}
		return status, err
	}
	switch task.State {
	case constants.TaskStateFailure:
		status.State = constants.DocStatusFailed
	case constants.TaskStateQueued, constants.TaskStateRunning:
		// Task log says in flight even if the ledger was already cleared
		// (e.g. during a restart the log is the durable source).
		status.State = constants.DocStatusProcessing
	}
	return status, nil
}

// GetStatusByTask returns the durable task-log row for a task id.
func (s *Service) GetStatusByTask(ctx context.Context, id uuid.UUID) (*entity.Task, error) {
	return s.store.GetTask(ctx, id)
}

// SendToPending snapshots the committed record for filename into a new
// editable draft. The committed row is untouched.
func (s *Service) SendToPending(ctx context.Context, filename string) (*entity.PendingOrder, error) {
	rec, err := s.store.GetRecord(ctx, filename)
	if err != nil {
		return nil, err
	}
	order, err := s.store.CreatePending(ctx, *rec)
	if err != nil {
		return nil, err
	}
	s.logger.Info("record sent to pending", "filename", filename, "order_id", order.ID)
	return order, nil
}

// ListPending returns all open drafts.
func (s *Service) ListPending(ctx context.Context) ([]*entity.PendingOrder, error) {
	return s.store.ListPending(ctx)
}

// PendingCount returns the number of open drafts.
func (s *Service) PendingCount(ctx context.Context) (int, error) {
	return s.store.PendingCount(ctx)
}

// UpdatePending validates a field patch against the editable-field schema
// and applies it to the draft snapshot.
func (s *Service) UpdatePending(ctx context.Context, id uuid.UUID, patch map[string]any) (*entity.PendingOrder, error) {
	if len(patch) == 0 {
		return nil, common.ValidationError("patch is empty")
	}
	for key := range entity.SystemFields {
		if _, ok := patch[key]; ok {
			return nil, common.ValidationErrorf("field %q is not editable", key)
		}
	}
	if err := entity.ValidatePatch(patch); err != nil {
		return nil, common.WrapError(common.ErrValidation, err.Error())
	}
	return s.store.UpdatePending(ctx, id, patch)
}

// DeletePending discards a draft without committing it.
func (s *Service) DeletePending(ctx context.Context, id uuid.UUID) error {
	return s.store.DeletePending(ctx, id)
}

// Commit resolves ref as a pending order id or as a filename and commits
// the draft into the committed table. A filename with no open draft but an
// existing committed record commits trivially to itself (the original
// upload flow already wrote it).
func (s *Service) Commit(ctx context.Context, ref string) (*entity.DocumentRecord, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return s.store.CommitPending(ctx, id)
	}

	order, err := s.store.LatestPendingForFilename(ctx, ref)
	if err == nil {
		return s.store.CommitPending(ctx, order.ID)
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}
	return s.store.GetRecord(ctx, ref)
}

// ListCommitted returns every committed record, newest first.
func (s *Service) ListCommitted(ctx context.Context) ([]*entity.DocumentRecord, error) {
	return s.store.ListRecords(ctx)
}
