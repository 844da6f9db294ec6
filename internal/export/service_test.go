package export

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/pdf-orders/internal/entity"
	"github.com/joseph-ayodele/pdf-orders/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedRecord(t *testing.T, st *store.Store, filename string, extracted time.Time) {
	t.Helper()
	total := 42.50
	err := st.UpsertRecord(context.Background(), entity.DocumentRecord{
		Filename:      filename,
		InvoiceNumber: "INV-" + filename,
		TotalAmount:   &total,
		Currency:      "USD",
		DateExtracted: extracted,
	})
	require.NoError(t, err)
}

func sheetRows(t *testing.T, data []byte) [][]string {
	t.Helper()
	wb, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer wb.Close()
	rows, err := wb.GetRows("Orders")
	require.NoError(t, err)
	return rows
}

func TestExportAllRecords(t *testing.T) {
	st := newTestStore(t)
	now := time.Now().UTC()
	seedRecord(t, st, "a.pdf", now)
	seedRecord(t, st, "b.pdf", now.Add(-time.Hour))

	svc := NewService(st, testLogger())
	data, err := svc.ExportRecordsXLSX(context.Background(), nil, nil)
	require.NoError(t, err)

	rows := sheetRows(t, data)
	require.Len(t, rows, 3, "header plus one row per record")
	require.Equal(t, "Filename", rows[0][0])
	require.Equal(t, "Invoice Number", rows[0][1])
}

func TestExportEmptyStoreHasOnlyHeader(t *testing.T) {
	svc := NewService(newTestStore(t), testLogger())

	data, err := svc.ExportRecordsXLSX(context.Background(), nil, nil)
	require.NoError(t, err)

	rows := sheetRows(t, data)
	require.Len(t, rows, 1)
}

func TestExportDateWindowFilters(t *testing.T) {
	st := newTestStore(t)
	day := func(s string) time.Time {
		d, err := time.Parse("2006-01-02", s)
		require.NoError(t, err)
		return d
	}
	seedRecord(t, st, "old.pdf", day("2024-01-05"))
	seedRecord(t, st, "mid.pdf", day("2024-02-10").Add(13*time.Hour))
	seedRecord(t, st, "new.pdf", day("2024-03-20"))

	svc := NewService(st, testLogger())
	from, to := day("2024-02-01"), day("2024-02-28")
	data, err := svc.ExportRecordsXLSX(context.Background(), &from, &to)
	require.NoError(t, err)

	rows := sheetRows(t, data)
	require.Len(t, rows, 2)
	require.Equal(t, "mid.pdf", rows[1][0])
}

func TestExportToBoundaryIsInclusive(t *testing.T) {
	st := newTestStore(t)
	edge, err := time.Parse(time.RFC3339, "2024-02-28T23:45:00Z")
	require.NoError(t, err)
	seedRecord(t, st, "edge.pdf", edge)

	svc := NewService(st, testLogger())
	to := time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC)
	data, err := svc.ExportRecordsXLSX(context.Background(), nil, &to)
	require.NoError(t, err)

	rows := sheetRows(t, data)
	require.Len(t, rows, 2, "records late on the to-day are still included")
}
