package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/pdf-orders/internal/common"
	"github.com/joseph-ayodele/pdf-orders/internal/entity"
	"github.com/joseph-ayodele/pdf-orders/internal/export"
	"github.com/joseph-ayodele/pdf-orders/internal/extract"
	"github.com/joseph-ayodele/pdf-orders/internal/service"
)

const maxUploadBytes = 32 << 20 // 32 MiB

// Server is the thin HTTP boundary. Handlers translate requests and errors;
// every semantic decision lives in the service facade.
type Server struct {
	svc    *service.Service
	export *export.Service
	logger *slog.Logger
}

func New(svc *service.Service, exp *export.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{svc: svc, export: exp, logger: logger}
}

// Router builds the API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "service": "pdf-orders"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/upload-pdf", s.handleUpload)
		r.Get("/pdfs", s.handleListCommitted)
		r.Get("/database", s.handleListCommitted)
		r.Get("/model-schema", s.handleModelSchema)
		r.Get("/processing-status/{filename}", s.handleStatusByFilename)
		r.Get("/task-status/{taskID}", s.handleStatusByTask)
		r.Post("/pending/{filename}", s.handleSendToPending)
		r.Get("/pending", s.handleListPending)
		r.Get("/pending/count", s.handlePendingCount)
		r.Put("/pending/{orderID}", s.handleUpdatePending)
		r.Delete("/pending/{orderID}", s.handleDeletePending)
		r.Post("/commit/{ref}", s.handleCommit)
		r.Get("/export.xlsx", s.handleExport)
	})

	return r
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, common.ValidationError("file too large or invalid form"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, common.ValidationError("file is required"))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, err)
		return
	}

	sub, err := s.svc.SubmitUpload(r.Context(), header.Filename, content)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusAccepted
	message := "PDF uploaded and submitted for processing"
	if sub.Duplicate {
		status = http.StatusOK
		message = "PDF already being processed"
	}
	writeJSON(w, status, map[string]any{
		"message":   message,
		"filename":  sub.Filename,
		"task_id":   sub.TaskID,
		"duplicate": sub.Duplicate,
	})
}

func (s *Server) handleListCommitted(w http.ResponseWriter, r *http.Request) {
	records, err := s.svc.ListCommitted(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []*entity.DocumentRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func (s *Server) handleModelSchema(w http.ResponseWriter, _ *http.Request) {
	// Field metadata for dynamic form generation; system fields excluded.
	writeJSON(w, http.StatusOK, map[string]any{"fields": entity.BuildPatchJSONSchema()["properties"]})
}

func (s *Server) handleStatusByFilename(w http.ResponseWriter, r *http.Request) {
	status, err := s.svc.GetStatusByFilename(r.Context(), chi.URLParam(r, "filename"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleStatusByTask(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "taskID"))
	if err != nil {
		writeError(w, common.ValidationError("task id must be a UUID"))
		return
	}
	task, err := s.svc.GetStatusByTask(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleSendToPending(w http.ResponseWriter, r *http.Request) {
	order, err := s.svc.SendToPending(r.Context(), chi.URLParam(r, "filename"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request) {
	orders, err := s.svc.ListPending(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if orders == nil {
		orders = []*entity.PendingOrder{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (s *Server) handlePendingCount(w http.ResponseWriter, r *http.Request) {
	count, err := s.svc.PendingCount(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": count})
}

func (s *Server) handleUpdatePending(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, common.ValidationError("order id must be a UUID"))
		return
	}
	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, common.ValidationError("request body must be a JSON object"))
		return
	}
	order, err := s.svc.UpdatePending(r.Context(), id, patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleDeletePending(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, common.ValidationError("order id must be a UUID"))
		return
	}
	if err := s.svc.DeletePending(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "pending order deleted"})
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.Commit(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var from, to *time.Time
	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, common.ValidationError("from must be YYYY-MM-DD"))
			return
		}
		from = &parsed
	}
	if v := r.URL.Query().Get("to"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, common.ValidationError("to must be YYYY-MM-DD"))
			return
		}
		to = &parsed
	}

	data, err := s.export.ExportRecordsXLSX(r.Context(), from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="orders.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, common.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, common.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, extract.ErrExtraction):
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, map[string]any{"error": err.Error()})
}
