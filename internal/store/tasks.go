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

const selectTaskSQL = `
SELECT id, filename, state, attempts, error_message, result, created_at, updated_at FROM tasks`

// InsertTask records a freshly accepted task in state queued.
func (s *Store) InsertTask(ctx context.Context, id uuid.UUID, filename string) (*entity.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	task := &entity.Task{
		ID:        id,
		Filename:  filename,
		State:     constants.TaskStateQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, filename, state, attempts, error_message, result, created_at, updated_at)
		VALUES (?, ?, ?, 0, '', NULL, ?, ?)`,
		id.String(), filename, string(task.State), formatTime(now), formatTime(now))
	if err != nil {
		s.log.Error("task insert failed", "task_id", id, "filename", filename, "error", err)
		return nil, fmt.Errorf("insert task: %w", err)
	}
	s.log.Info("task recorded", "task_id", id, "filename", filename)
	return task, nil
}

// MarkTaskRunning transitions the task to running for the given attempt.
func (s *Store) MarkTaskRunning(ctx context.Context, id uuid.UUID, attempt int) error {
	return s.updateTask(ctx, id,
		"UPDATE tasks SET state = ?, attempts = ?, updated_at = ? WHERE id = ?",
		string(constants.TaskStateRunning), attempt, formatTime(time.Now()), id.String())
}

// MarkTaskQueued re-queues a task after a failed attempt, keeping the
// attempt count and recording the last error.
func (s *Store) MarkTaskQueued(ctx context.Context, id uuid.UUID, lastErr string) error {
	return s.updateTask(ctx, id,
		"UPDATE tasks SET state = ?, error_message = ?, updated_at = ? WHERE id = ?",
		string(constants.TaskStateQueued), lastErr, formatTime(time.Now()), id.String())
}

// MarkTaskSuccess records the terminal success state and the result payload.
func (s *Store) MarkTaskSuccess(ctx context.Context, id uuid.UUID, result json.RawMessage) error {
	return s.updateTask(ctx, id,
		"UPDATE tasks SET state = ?, error_message = '', result = ?, updated_at = ? WHERE id = ?",
		string(constants.TaskStateSuccess), string(result), formatTime(time.Now()), id.String())
}

// MarkTaskFailure records the terminal failure state.
func (s *Store) MarkTaskFailure(ctx context.Context, id uuid.UUID, message string) error {
	return s.updateTask(ctx, id,
		"UPDATE tasks SET state = ?, error_message = ?, updated_at = ? WHERE id = ?",
		string(constants.TaskStateFailure), message, formatTime(time.Now()), id.String())
}

func (s *Store) updateTask(ctx context.Context, id uuid.UUID, query string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		s.log.Error("task update failed", "task_id", id, "error", err)
		return fmt.Errorf("update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.NotFoundErrorf("task %s", id)
	}
	return nil
}

// GetTask returns the task with the given id, or ErrNotFound.
func (s *Store) GetTask(ctx context.Context, id uuid.UUID) (*entity.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, selectTaskSQL+" WHERE id = ?", id.String())
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.NotFoundErrorf("task %s", id)
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// LatestTaskForFilename returns the most recently created task for a
// filename, or ErrNotFound when the filename was never submitted.
func (s *Store) LatestTaskForFilename(ctx context.Context, filename string) (*entity.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx,
		selectTaskSQL+" WHERE filename = ? ORDER BY created_at DESC, id LIMIT 1", filename)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.NotFoundErrorf("task for %q", filename)
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

func scanTask(sc scanner) (*entity.Task, error) {
	var (
		task      entity.Task
		id        string
		state     string
		result    sql.NullString
		createdAt string
		updatedAt string
	)
	if err := sc.Scan(&id, &task.Filename, &state, &task.Attempts, &task.ErrorMessage,
		&result, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse task id: %w", err)
	}
	task.ID = parsed
	task.State = constants.TaskState(state)
	if result.Valid {
		task.Result = json.RawMessage(result.String)
	}
	task.CreatedAt = parseTime(createdAt)
	task.UpdatedAt = parseTime(updatedAt)
	return &task, nil
}
