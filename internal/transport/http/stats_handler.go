package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "qcpulse/internal/errors"
	"qcpulse/internal/operations"
)

// StatsHandler serves computed statistics and the intermediate
// per-stage snapshots for completed or in-flight batches.
type StatsHandler struct {
	store        operations.JobStore
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewStatsHandler creates a stats handler.
func NewStatsHandler(store operations.JobStore, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *StatsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsHandler{
		store:        store,
		logger:       logger.With(slog.String("component", "stats_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the stats routes.
func (h *StatsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/{id}", h.GetStats)
	r.Get("/{id}/extraction", h.GetExtraction)
	r.Get("/{id}/validation", h.GetValidation)

	return r
}

// GetStats handles GET /stats/{id}: the full statistics snapshot for a
// completed batch.
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	job, ok := h.jobFor(w, r)
	if !ok {
		return
	}

	if job.Stats == nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrStatsNotFound)
		return
	}

	render.JSON(w, r, job.Stats)
}

// GetExtraction handles GET /stats/{id}/extraction: the post-extraction
// per-file summaries grouped by category.
func (h *StatsHandler) GetExtraction(w http.ResponseWriter, r *http.Request) {
	job, ok := h.jobFor(w, r)
	if !ok {
		return
	}

	if job.Extraction == nil {
		h.errorHandler.HandleError(w, r, apierrors.NotFoundError("Extraction snapshot"))
		return
	}

	render.JSON(w, r, job.Extraction)
}

// GetValidation handles GET /stats/{id}/validation: the bounded
// validation summary.
func (h *StatsHandler) GetValidation(w http.ResponseWriter, r *http.Request) {
	job, ok := h.jobFor(w, r)
	if !ok {
		return
	}

	if job.Validation == nil {
		h.errorHandler.HandleError(w, r, apierrors.NotFoundError("Validation snapshot"))
		return
	}

	render.JSON(w, r, job.Validation)
}

func (h *StatsHandler) jobFor(w http.ResponseWriter, r *http.Request) (*operations.Job, bool) {
	id := chi.URLParam(r, "id")

	job, err := h.store.GetJob(id)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrBatchNotFound)
		return nil, false
	}
	return job, true
}
