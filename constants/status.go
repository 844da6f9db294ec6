package constants

// TaskState is the canonical state for rows in tasks.
type TaskState string

// Stable values (store these exact strings in DB).
const (
	TaskStateQueued  TaskState = "queued"  // accepted, waiting for a worker
	TaskStateRunning TaskState = "running" // extraction in progress
	TaskStateSuccess TaskState = "success" // record written
	TaskStateFailure TaskState = "failure" // terminal failure (retries exhausted)
)

// Terminal reports whether a task state is terminal.
func (s TaskState) Terminal() bool {
	return s == TaskStateSuccess || s == TaskStateFailure
}

// OrderStatus is the lifecycle status of a pending order row.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCommitted OrderStatus = "committed"
)

// DocStatus is the queryable lifecycle state of a filename, derived from
// the dedup ledger, the tasks log, the pending table and the committed table.
type DocStatus string

const (
	DocStatusNotFound   DocStatus = "not_found"
	DocStatusProcessing DocStatus = "processing"
	DocStatusPending    DocStatus = "pending"
	DocStatusCompleted  DocStatus = "completed"
	DocStatusFailed     DocStatus = "failed"
)
