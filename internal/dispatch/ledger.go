package dispatch

import (
	"sync"

	"github.com/google/uuid"
)

// Ledger tracks in-flight filenames so that concurrent submissions from the
// folder watcher and the upload endpoint collapse to a single task. Entries
// are ephemeral and process-wide; every producer must share one instance.
type Ledger struct {
	mu      sync.Mutex
	entries map[string]uuid.UUID // filename -> in-flight task id
}

func NewLedger() *Ledger {
	return &Ledger{entries: make(map[string]uuid.UUID)}
}

// Acquire claims filename for taskID. When another task is already in
// flight it returns that task's id and false, and the claim is not taken.
func (l *Ledger) Acquire(filename string, taskID uuid.UUID) (uuid.UUID, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.entries[filename]; ok {
		return existing, false
	}
	l.entries[filename] = taskID
	return taskID, true
}

// Release clears the in-flight entry for filename. Called when its task
// reaches a terminal state; a later submission is then accepted again.
func (l *Ledger) Release(filename string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, filename)
}

// InFlight reports whether filename currently has an in-flight task.
func (l *Ledger) InFlight(filename string) (uuid.UUID, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.entries[filename]
	return id, ok
}
