package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/joseph-ayodele/invoice-extractor/internal/acquire"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/ingest"
	"github.com/joseph-ayodele/invoice-extractor/internal/metrics"
)

type extractResponse struct {
	Record       *entity.StoredRecord `json:"record"`
	Deduplicated bool                 `json:"deduplicated"`
	Remediation  string               `json:"remediation,omitempty"`
}

type errorResponse struct {
	Error       string               `json:"error"`
	Remediation string               `json:"remediation,omitempty"`
	Record      *entity.StoredRecord `json:"record,omitempty"`
}

type ingestResponse struct {
	SourcePath   string `json:"source_path"`
	RecordID     string `json:"record_id,omitempty"`
	Deduplicated bool   `json:"deduplicated"`
	Queued       bool   `json:"queued"`
	HashHex      string `json:"content_hash"`
	Channel      string `json:"channel,omitempty"`
	Error        string `json:"error,omitempty"`
}

func ingestResult(r ingest.IngestionResult) ingestResponse {
	return ingestResponse{
		SourcePath:   r.SourcePath,
		RecordID:     r.RecordID,
		Deduplicated: r.Deduplicated,
		Queued:       r.Queued,
		HashHex:      r.HashHex,
		Channel:      string(r.Channel),
		Error:        r.Err,
	}
}

func ingestDirectoryResponse(results []ingest.IngestionResult, stats ingest.DirStats) map[string]any {
	items := make([]ingestResponse, 0, len(results))
	for _, r := range results {
		items = append(items, ingestResult(r))
	}
	return map[string]any{
		"scanned":      stats.Scanned,
		"matched":      stats.Matched,
		"succeeded":    stats.Succeeded,
		"deduplicated": stats.Deduplicated,
		"failed":       stats.Failed,
		"results":      items,
	}
}

// NewRouter builds the HTTP API:
//
//	POST /v1/extract          multipart upload, field "file"
//	GET  /v1/records          ?status=&limit=
//	GET  /v1/records/{id}
//	PUT  /v1/records/{id}     corrected record JSON
//	GET  /v1/export           ?format=xlsx|csv&status=
//	GET  /healthz
//	GET  /metrics
func NewRouter(svc *Service) http.Handler {
	h := &httpHandlers{svc: svc, logger: svc.logger}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.observe)

	r.Post("/v1/extract", h.extract)
	r.Get("/v1/records", h.listRecords)
	r.Get("/v1/records/{id}", h.getRecord)
	r.Put("/v1/records/{id}", h.updateRecord)
	r.Get("/v1/export", h.export)
	r.Get("/healthz", h.health)
	if svc.metrics != nil {
		r.Handle("/metrics", svc.metrics.Handler())
	}
	return r
}

type httpHandlers struct {
	svc    *Service
	logger *slog.Logger
}

// observe carries the chi request ID into the context and records the route and status.
func (h *httpHandlers) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := middleware.GetReqID(ctx); id != "" {
			ctx = common.WithRequestID(ctx, id)
		}
		rec := &metrics.StatusRecorder{ResponseWriter: w, Status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(ctx))

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		h.svc.metrics.ObserveHTTP(route, rec.Status)
		h.logger.Debug("http.request", "method", r.Method, "route", route, "status", rec.Status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

func (h *httpHandlers) extract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.svc.maxUpload+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, errorResponse{Error: "multipart field \"file\" is required: " + err.Error()})
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, h.svc.maxUpload+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	out, err := h.svc.ExtractDocument(r.Context(), header.Filename, header.Header.Get("Content-Type"), data, force)
	if err != nil {
		writeError(w, httpStatus(err), errorResponse{
			Error:       err.Error(),
			Remediation: remediation(err),
			Record:      out.Record,
		})
		return
	}
	writeJSON(w, http.StatusOK, extractResponse{Record: out.Record, Deduplicated: out.Deduplicated, Remediation: out.Remediation})
}

func (h *httpHandlers) listRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, errorResponse{Error: "limit must be an integer"})
			return
		}
		limit = n
	}
	recs, err := h.svc.ListRecords(r.Context(), q.Get("status"), limit)
	if err != nil {
		writeError(w, httpStatus(err), errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": recs})
}

func (h *httpHandlers) getRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.GetRecord(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, httpStatus(err), errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *httpHandlers) updateRecord(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	rec, err := h.svc.UpdateRecord(r.Context(), chi.URLParam(r, "id"), body)
	if err != nil {
		writeError(w, httpStatus(err), errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *httpHandlers) export(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data, contentType, err := h.svc.Export(r.Context(), q.Get("format"), q.Get("status"))
	if err != nil {
		writeError(w, httpStatus(err), errorResponse{Error: err.Error()})
		return
	}
	ext := FormatXLSX
	if contentType == contentTypeCSV {
		ext = FormatCSV
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="records.`+ext+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *httpHandlers) health(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Ping(r.Context()); err != nil {
		h.logger.Error("health check failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, errorResponse{Error: "store unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// remediation points at the server setup when a scan failed only because
// no OCR backend could serve it.
func remediation(err error) string {
	if acquire.IsOCRUnavailable(err) {
		return "OCR is unavailable on this server; upload a text-based PDF or set OCR_BACKEND"
	}
	return common.Remediation(err)
}

// httpStatus maps the error taxonomy onto HTTP status codes.
func httpStatus(err error) int {
	switch {
	case acquire.IsOCRUnavailable(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, common.ErrInvalidInput), errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrUnsupportedChannel):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, common.ErrScannedDocumentUnreadable), errors.Is(err, common.ErrAcquisitionFailed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, body errorResponse) {
	writeJSON(w, status, body)
}
