package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/pdf-orders/constants"
	"github.com/joseph-ayodele/pdf-orders/internal/common"
	"github.com/joseph-ayodele/pdf-orders/internal/entity"
)

const selectPendingSQL = `
SELECT id, filename, snapshot, status, created_at, updated_at FROM pending_orders`

// CreatePending stores a new editable draft of rec. The draft gets its own
// surrogate id and does not affect the committed table.
func (s *Store) CreatePending(ctx context.Context, rec entity.DocumentRecord) (*entity.PendingOrder, error) {
	if rec.Filename == "" {
		return nil, common.ValidationError("filename is required")
	}
	snapshot, err := rec.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("serialize snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	order := &entity.PendingOrder{
		ID:        uuid.New(),
		Filename:  rec.Filename,
		Snapshot:  snapshot,
		Status:    constants.OrderStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pending_orders (id, filename, snapshot, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		order.ID.String(), order.Filename, string(order.Snapshot), string(order.Status),
		formatTime(order.CreatedAt), formatTime(order.UpdatedAt),
	)
	if err != nil {
		s.log.Error("pending order create failed", "filename", rec.Filename, "error", err)
		return nil, fmt.Errorf("create pending order: %w", err)
	}
	s.log.Info("pending order created", "order_id", order.ID, "filename", order.Filename)
	return order, nil
}

// GetPending returns the pending order with the given id, or ErrNotFound.
func (s *Store) GetPending(ctx context.Context, id uuid.UUID) (*entity.PendingOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getPendingLocked(ctx, s.db, id)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) getPendingLocked(ctx context.Context, q querier, id uuid.UUID) (*entity.PendingOrder, error) {
	row := q.QueryRowContext(ctx, selectPendingSQL+" WHERE id = ?", id.String())
	order, err := scanPending(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.NotFoundErrorf("pending order %s", id)
		}
		return nil, fmt.Errorf("get pending order: %w", err)
	}
	return order, nil
}

// ListPending returns all open drafts, newest first. Committed drafts are
// kept for history but not listed here.
func (s *Store) ListPending(ctx context.Context) ([]*entity.PendingOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		selectPendingSQL+" WHERE status = ? ORDER BY created_at DESC, id",
		string(constants.OrderStatusPending))
	if err != nil {
		return nil, fmt.Errorf("list pending orders: %w", err)
	}
	defer rows.Close()

	var out []*entity.PendingOrder
	for rows.Next() {
		order, err := scanPending(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending order: %w", err)
		}
		out = append(out, order)
	}
	return out, rows.Err()
}

// PendingCount returns the number of open drafts.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM pending_orders WHERE status = ?",
		string(constants.OrderStatusPending)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending orders: %w", err)
	}
	return n, nil
}

// PendingExistsForFilename reports whether any open draft references filename.
func (s *Store) PendingExistsForFilename(ctx context.Context, filename string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM pending_orders WHERE filename = ? AND status = ?",
		filename, string(constants.OrderStatusPending)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count pending orders: %w", err)
	}
	return n > 0, nil
}

// LatestPendingForFilename returns the most recent open draft for filename,
// or ErrNotFound when the filename has no open draft.
func (s *Store) LatestPendingForFilename(ctx context.Context, filename string) (*entity.PendingOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx,
		selectPendingSQL+" WHERE filename = ? AND status = ? ORDER BY created_at DESC, id LIMIT 1",
		filename, string(constants.OrderStatusPending))
	order, err := scanPending(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.NotFoundErrorf("pending order for %q", filename)
		}
		return nil, fmt.Errorf("get pending order: %w", err)
	}
	return order, nil
}

// UpdatePending applies a partial field patch to the draft snapshot and
// refreshes updated_at. created_at never changes. Committed drafts reject
// further edits.
func (s *Store) UpdatePending(ctx context.Context, id uuid.UUID, patch map[string]any) (*entity.PendingOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := s.getPendingLocked(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if order.Status != constants.OrderStatusPending {
		return nil, common.ValidationErrorf("pending order %s is already %s", id, order.Status)
	}

	var snapshot map[string]any
	if err := json.Unmarshal(order.Snapshot, &snapshot); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	for key, value := range patch {
		if value == nil {
			continue
		}
		if _, system := entity.SystemFields[key]; system {
			continue
		}
		snapshot[key] = value
	}
	merged, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		"UPDATE pending_orders SET snapshot = ?, updated_at = ? WHERE id = ?",
		string(merged), formatTime(now), id.String())
	if err != nil {
		s.log.Error("pending order update failed", "order_id", id, "error", err)
		return nil, fmt.Errorf("update pending order: %w", err)
	}

	order.Snapshot = merged
	order.UpdatedAt = now
	s.log.Info("pending order updated", "order_id", id, "fields", len(patch))
	return order, nil
}

// CommitPending moves the draft into the committed table under its filename
// and marks the draft committed, in a single transaction so readers never
// observe a half-committed state. Re-committing an already committed draft
// is a no-op upsert of the same data.
func (s *Store) CommitPending(ctx context.Context, id uuid.UUID) (*entity.DocumentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin commit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	order, err := s.getPendingLocked(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	rec, err := order.Record()
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	if err := upsertDocument(ctx, tx, rec); err != nil {
		s.log.Error("commit upsert failed", "order_id", id, "filename", rec.Filename, "error", err)
		return nil, fmt.Errorf("upsert document: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		"UPDATE pending_orders SET status = ?, updated_at = ? WHERE id = ?",
		string(constants.OrderStatusCommitted), formatTime(time.Now()), id.String())
	if err != nil {
		return nil, fmt.Errorf("mark committed: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	s.log.Info("pending order committed", "order_id", id, "filename", rec.Filename)
	return &rec, nil
}

// DeletePending removes a draft entirely. ErrNotFound when id is absent.
func (s *Store) DeletePending(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM pending_orders WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("delete pending order: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.NotFoundErrorf("pending order %s", id)
	}
	s.log.Info("pending order deleted", "order_id", id)
	return nil
}

func scanPending(sc scanner) (*entity.PendingOrder, error) {
	var (
		order     entity.PendingOrder
		id        string
		snapshot  string
		status    string
		createdAt string
		updatedAt string
	)
	if err := sc.Scan(&id, &order.Filename, &snapshot, &status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse order id: %w", err)
	}
	order.ID = parsed
	order.Snapshot = json.RawMessage(snapshot)
	order.Status = constants.OrderStatus(status)
	order.CreatedAt = parseTime(createdAt)
	order.UpdatedAt = parseTime(updatedAt)
	return &order, nil
}
