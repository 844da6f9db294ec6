package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/ledongthuc/pdf"

	"github.com/joseph-ayodele/pdf-orders/internal/entity"
)

// InvoiceExtractor is the default extraction collaborator: PDF plain text
// followed by the regex field heuristics.
type InvoiceExtractor struct {
	logger *slog.Logger
}

func NewInvoiceExtractor(logger *slog.Logger) *InvoiceExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &InvoiceExtractor{logger: logger}
}

func (e *InvoiceExtractor) Extract(ctx context.Context, content []byte, filename string) (entity.DocumentRecord, error) {
	if err := ctx.Err(); err != nil {
		return entity.DocumentRecord{}, err
	}
	text, err := pdfText(content)
	if err != nil {
		e.logger.Warn("pdf text extraction failed", "filename", filename, "error", err)
		return entity.DocumentRecord{}, extractionError("read pdf %q: %v", filename, err)
	}
	rec := ParseFields(text, filename)
	e.logger.Debug("fields parsed",
		"filename", filename,
		"text_bytes", len(text),
		"invoice_number", rec.InvoiceNumber,
	)
	return rec, nil
}

func pdfText(content []byte) (text string, err error) {
	if len(content) == 0 {
		return "", fmt.Errorf("empty document")
	}
	// The pdf package panics on some malformed xref tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}
