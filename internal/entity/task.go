package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/pdf-orders/constants"
)

// Task is one row in the durable task log. It tracks a single processing
// attempt chain for a filename from queued through a terminal state. On
// success Result holds the serialized DocumentRecord the worker produced.
type Task struct {
	ID           uuid.UUID           `json:"task_id"`
	Filename     string              `json:"filename"`
	State        constants.TaskState `json:"state"`
	Attempts     int                 `json:"attempts"`
	ErrorMessage string              `json:"error,omitempty"`
	Result       json.RawMessage     `json:"result,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}
