package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/pdf-orders/constants"
	"github.com/joseph-ayodele/pdf-orders/internal/dispatch"
	"github.com/joseph-ayodele/pdf-orders/internal/entity"
	"github.com/joseph-ayodele/pdf-orders/internal/export"
	"github.com/joseph-ayodele/pdf-orders/internal/extract"
	"github.com/joseph-ayodele/pdf-orders/internal/queue"
	"github.com/joseph-ayodele/pdf-orders/internal/service"
	"github.com/joseph-ayodele/pdf-orders/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	extractor := extract.Func(func(_ context.Context, content []byte, filename string) (entity.DocumentRecord, error) {
		return extract.ParseFields(string(content), filename), nil
	})
	ledger := dispatch.NewLedger()
	q := queue.New(st, extractor, ledger, testLogger(), queue.WithWorkers(2))
	t.Cleanup(func() { q.Shutdown(context.Background()) })
	d := dispatch.NewDispatcher(ledger, q, st, testLogger())

	svc := service.New(st, d, ledger, testLogger())
	srv := New(svc, export.NewService(st, testLogger()), testLogger())

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func uploadPDF(t *testing.T, ts *httptest.Server, filename string, content []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(ts.URL+"/api/upload-pdf", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func waitForCompleted(t *testing.T, ts *httptest.Server, filename string) {
	t.Helper()
	require.Eventually(t, func() bool {
		resp, err := http.Get(ts.URL + "/api/processing-status/" + filename)
		if err != nil {
			return false
		}
		var status struct {
			Status string `json:"status"`
		}
		decodeJSON(t, resp, &status)
		return status.Status == string(constants.DocStatusCompleted)
	}, 5*time.Second, 10*time.Millisecond)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUploadFlow(t *testing.T) {
	ts := newTestServer(t)

	resp := uploadPDF(t, ts, "inv.pdf", []byte("Invoice# INV-200 Total: $30.00"))
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var accepted struct {
		Filename  string `json:"filename"`
		TaskID    string `json:"task_id"`
		Duplicate bool   `json:"duplicate"`
	}
	decodeJSON(t, resp, &accepted)
	require.Equal(t, "inv.pdf", accepted.Filename)
	require.NotEmpty(t, accepted.TaskID)
	require.False(t, accepted.Duplicate)

	waitForCompleted(t, ts, "inv.pdf")

	resp, err := http.Get(ts.URL + "/api/task-status/" + accepted.TaskID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var task struct {
		State string `json:"state"`
	}
	decodeJSON(t, resp, &task)
	require.Equal(t, string(constants.TaskStateSuccess), task.State)

	resp, err = http.Get(ts.URL + "/api/pdfs")
	require.NoError(t, err)
	var listing struct {
		Records []entity.DocumentRecord `json:"records"`
	}
	decodeJSON(t, resp, &listing)
	require.Len(t, listing.Records, 1)
	require.Equal(t, "INV-200", listing.Records[0].InvoiceNumber)
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	ts := newTestServer(t)

	resp := uploadPDF(t, ts, "notes.txt", []byte("plain text"))
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadWithoutFileIsBadRequest(t *testing.T) {
	ts := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("name", "x"))
	require.NoError(t, mw.Close())

	resp, err := http.Post(ts.URL+"/api/upload-pdf", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPendingEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp := uploadPDF(t, ts, "edit.pdf", []byte("Invoice# INV-300 Total: $50.00"))
	resp.Body.Close()
	waitForCompleted(t, ts, "edit.pdf")

	resp, err := http.Post(ts.URL+"/api/pending/edit.pdf", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var order struct {
		ID string `json:"id"`
	}
	decodeJSON(t, resp, &order)
	require.NotEmpty(t, order.ID)

	resp, err = http.Get(ts.URL + "/api/pending/count")
	require.NoError(t, err)
	var count struct {
		Count int `json:"count"`
	}
	decodeJSON(t, resp, &count)
	require.Equal(t, 1, count.Count)

	patch := bytes.NewBufferString(`{"customer_name":"Acme Corp"}`)
	req, err := http.NewRequest(http.MethodPut, ts.URL+"/api/pending/"+order.ID, patch)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Post(ts.URL+"/api/commit/"+order.ID, "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var committed entity.DocumentRecord
	decodeJSON(t, resp, &committed)
	require.Equal(t, "Acme Corp", committed.CustomerName)

	resp, err = http.Get(ts.URL + "/api/pending/count")
	require.NoError(t, err)
	decodeJSON(t, resp, &count)
	require.Zero(t, count.Count)
}

func TestPendingValidation(t *testing.T) {
	ts := newTestServer(t)

	resp := uploadPDF(t, ts, "guard.pdf", []byte("Invoice# INV-400"))
	resp.Body.Close()
	waitForCompleted(t, ts, "guard.pdf")

	resp, err := http.Post(ts.URL+"/api/pending/guard.pdf", "application/json", nil)
	require.NoError(t, err)
	var order struct {
		ID string `json:"id"`
	}
	decodeJSON(t, resp, &order)

	// Editing a system field is rejected.
	patch := bytes.NewBufferString(`{"filename":"hijack.pdf"}`)
	req, err := http.NewRequest(http.MethodPut, ts.URL+"/api/pending/"+order.ID, patch)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatusUnknownFilename(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/processing-status/missing.pdf")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var status struct {
		Status string `json:"status"`
	}
	decodeJSON(t, resp, &status)
	require.Equal(t, string(constants.DocStatusNotFound), status.Status)
}

func TestTaskStatusBadID(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/task-status/not-a-uuid")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSendToPendingUnknownFilenameIs404(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/pending/none.pdf", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestModelSchemaExcludesSystemFields(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/model-schema")
	require.NoError(t, err)
	var schema struct {
		Fields map[string]any `json:"fields"`
	}
	decodeJSON(t, resp, &schema)
	require.Contains(t, schema.Fields, "customer_name")
	require.NotContains(t, schema.Fields, "filename")
	require.NotContains(t, schema.Fields, "full_text")
}

func TestExportXLSX(t *testing.T) {
	ts := newTestServer(t)

	resp := uploadPDF(t, ts, "exp.pdf", []byte("Invoice# INV-500 Total: $10.00"))
	resp.Body.Close()
	waitForCompleted(t, ts, "exp.pdf")

	resp, err := http.Get(ts.URL + "/api/export.xlsx")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		resp.Header.Get("Content-Type"))

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	// XLSX files are zip archives.
	require.True(t, bytes.HasPrefix(data, []byte("PK")), "export is not a valid xlsx payload")
}

func TestExportRejectsBadDate(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/export.xlsx?from=March-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
