package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/pdf-orders/constants"
)

// PendingOrder is an editable draft of a DocumentRecord awaiting review.
// One filename may accumulate several historical drafts; each has its own
// surrogate id. CreatedAt is immutable once set; UpdatedAt is refreshed on
// every edit.
type PendingOrder struct {
	ID        uuid.UUID             `json:"id"`
	Filename  string                `json:"filename"`
	Snapshot  json.RawMessage       `json:"pdf_data"`
	Status    constants.OrderStatus `json:"status"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// Record decodes the draft snapshot.
func (o *PendingOrder) Record() (DocumentRecord, error) {
	return RecordFromSnapshot(o.Snapshot)
}
