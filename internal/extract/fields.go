package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/pdf-orders/internal/entity"
)

const previewLen = 200

var (
	reInvoice = regexp.MustCompile(`(?i)invoice[#\s]+([A-Z0-9-]+)`)
	reTotal   = regexp.MustCompile(`(?i)total[:\s]*\$?([0-9,]+\.?[0-9]*)`)
	reEmail   = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	reDate    = regexp.MustCompile(`\d{1,2}[/-]\d{1,2}[/-]\d{2,4}`)
)

// ParseFields applies the field heuristics to extracted text and builds a
// record. It never fails: fields that cannot be located stay empty and the
// preview notes when no text was recovered at all.
func ParseFields(text, filename string) entity.DocumentRecord {
	preview := text
	if len(preview) > previewLen {
		preview = preview[:previewLen]
	}
	if strings.TrimSpace(preview) == "" {
		preview = "No content extracted"
	}

	rec := entity.DocumentRecord{
		Filename:       filename,
		Currency:       "USD",
		ContentPreview: preview,
		FullText:       text,
		DateExtracted:  time.Now().UTC(),
	}

	if m := reInvoice.FindStringSubmatch(text); m != nil {
		rec.InvoiceNumber = m[1]
	}
	if m := reTotal.FindStringSubmatch(text); m != nil {
		raw := strings.ReplaceAll(m[1], ",", "")
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			rec.TotalAmount = &v
		}
	}
	if m := reEmail.FindString(text); m != "" {
		rec.CustomerEmail = m
	}
	if m := reDate.FindString(text); m != "" {
		rec.OrderDate = m
	}
	return rec
}
