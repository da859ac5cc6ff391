// Package api exposes ingestion and stored QC reports over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/sports-qc/internal/ingest"
	"github.com/sells-group/sports-qc/internal/model"
	"github.com/sells-group/sports-qc/internal/report"
	"github.com/sells-group/sports-qc/internal/reportstore"
)

const (
	defaultListLimit = 20
	maxListLimit     = 500
)

// Ingester runs a batch through QC and forwards it.
type Ingester interface {
	Ingest(ctx context.Context, batch model.Batch) (*ingest.Result, error)
}

// Handler wires HTTP routes to the ingestor and report store.
type Handler struct {
	ing   Ingester
	store reportstore.Store
}

// NewHandler constructs a Handler.
func NewHandler(ing Ingester, store reportstore.Store) *Handler {
	return &Handler{ing: ing, store: store}
}

// Health reports the service health.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ingestError is the body for a run that produced a report but was not
// forwarded. Counts, report id and timing are always included.
type ingestError struct {
	Error string `json:"error"`
	*ingest.Result
	MaxRejectRate float64 `json:"max_reject_rate,omitempty"`
}

// Ingest validates a submitted batch and forwards what survives.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	var batch model.Batch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.ing.Ingest(r.Context(), batch)
	var gate *ingest.RejectRateError
	switch {
	case errors.As(err, &gate):
		if res == nil {
			res = &ingest.Result{ReportID: gate.ReportID, RejectionRate: gate.Rate, Recommendations: gate.Recommendations}
		}
		writeJSON(w, http.StatusUnprocessableEntity, ingestError{
			Error:         "rejection rate exceeds limit",
			Result:        res,
			MaxRejectRate: gate.Limit,
		})
	case err != nil && res != nil:
		zap.L().Error("api: forward failed", zap.String("report_id", res.ReportID), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, ingestError{
			Error:  "forwarding to warehouse failed",
			Result: res,
		})
	case err != nil:
		zap.L().Error("api: ingest failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "qc run failed")
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

// GetReport returns a stored report, rendered per the format query
// parameter.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rep, err := h.store.Get(r.Context(), id)
	if err != nil {
		zap.L().Error("api: load report", zap.String("report_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load report")
		return
	}
	if rep == nil {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}

	body, err := report.Render(rep, format)
	if err != nil {
		zap.L().Error("api: render report", zap.String("report_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to render report")
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	if format == report.FormatXLSX {
		w.Header().Set("Content-Disposition", `attachment; filename="`+id+`.xlsx"`)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// ListReports returns recent report ids, newest first.
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := defaultListLimit
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	ids, err := h.store.ListRecent(r.Context(), q.Get("prefix"), limit)
	if err != nil {
		zap.L().Error("api: list reports", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"report_ids": ids})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
