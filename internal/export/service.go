package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/pdf-orders/internal/store"
)

// Service is a tiny façade over the store that produces XLSX bytes for
// committed records.
type Service struct {
	store  *store.Store
	logger *slog.Logger
}

func NewService(st *store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, logger: logger}
}

// ExportRecordsXLSX returns an XLSX workbook (as bytes) for committed
// records extracted in the given date window.
// If only from is provided -> from..today (inclusive).
// If only to is provided   -> beginning..to (inclusive).
// If neither is provided   -> all committed records.
func (s *Service) ExportRecordsXLSX(ctx context.Context, from, to *time.Time) ([]byte, error) {
	start := time.Now()

	var fromDate, toDate *time.Time
	if from != nil {
		f := dateOnly(*from)
		fromDate = &f
	}
	if to != nil {
		t := dateOnly(*to).Add(24*time.Hour - time.Nanosecond)
		toDate = &t
	}
	if fromDate != nil && toDate == nil {
		t := dateOnly(time.Now().UTC()).Add(24*time.Hour - time.Nanosecond)
		toDate = &t
	}

	recs, err := s.store.ListRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Orders"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	headers := []string{
		"Filename",
		"Invoice Number",
		"Customer Name",
		"Customer Email",
		"Order Date",
		"Total Amount",
		"Tax Amount",
		"Currency",
		"Vendor",
		"Extracted At",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, r := range recs {
		if fromDate != nil && r.DateExtracted.Before(*fromDate) {
			continue
		}
		if toDate != nil && r.DateExtracted.After(*toDate) {
			continue
		}
		values := []any{
			r.Filename,
			r.InvoiceNumber,
			r.CustomerName,
			r.CustomerEmail,
			r.OrderDate,
			amount(r.TotalAmount),
			amount(r.TaxAmount),
			r.Currency,
			r.VendorName,
			r.DateExtracted.UTC().Format(time.RFC3339),
		}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		row++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	s.logger.Info("export completed", "rows", row-2, "elapsed", time.Since(start))
	return buf.Bytes(), nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func amount(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
