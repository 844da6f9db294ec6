package extract

import (
	"context"
	"errors"
	"fmt"

	"github.com/joseph-ayodele/pdf-orders/internal/entity"
)

// ErrExtraction marks a collaborator failure. Tasks failing with it are
// retried by the queue and become terminal failures after the configured
// number of attempts.
var ErrExtraction = errors.New("extraction failed")

// Extractor turns raw document content into a structured record.
type Extractor interface {
	Extract(ctx context.Context, content []byte, filename string) (entity.DocumentRecord, error)
}

// Func adapts a plain function to the Extractor interface.
type Func func(ctx context.Context, content []byte, filename string) (entity.DocumentRecord, error)

func (f Func) Extract(ctx context.Context, content []byte, filename string) (entity.DocumentRecord, error) {
	return f(ctx, content, filename)
}

func extractionError(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrExtraction)
}
