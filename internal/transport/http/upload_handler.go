// Package http holds the thin HTTP surface around the pipeline:
// upload intake, status polling, and statistics retrieval. Everything
// here is an I/O wrapper; the pipeline's correctness lives in the
// dataprocessing, validation and operations packages.
package http

import (
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"qcpulse/internal/config"
	apierrors "qcpulse/internal/errors"
	"qcpulse/internal/operations"
)

// UploadResponse is returned after a successful upload.
type UploadResponse struct {
	UploadID      string               `json:"upload_id"`
	Message       string               `json:"message"`
	FilesReceived int                  `json:"files_received"`
	Status        operations.JobStatus `json:"status"`
}

// Render implements render.Renderer.
func (u *UploadResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, http.StatusAccepted)
	return nil
}

// StatusResponse is the polling view of a job.
type StatusResponse struct {
	UploadID        string               `json:"upload_id"`
	Status          operations.JobStatus `json:"status"`
	ProgressPercent int                  `json:"progress_percent"`
	CurrentStage    string               `json:"current_stage"`
	FilesProcessed  int                  `json:"files_processed"`
	TotalFiles      int                  `json:"total_files"`
	Errors          []string             `json:"errors"`
	StartedAt       time.Time            `json:"started_at"`
	CompletedAt     *time.Time           `json:"completed_at,omitempty"`
}

// Render implements render.Renderer.
func (s *StatusResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

func statusFromJob(job *operations.Job) *StatusResponse {
	errs := job.Errors
	if errs == nil {
		errs = []string{}
	}
	return &StatusResponse{
		UploadID:        job.ID,
		Status:          job.Status,
		ProgressPercent: job.ProgressPercent,
		CurrentStage:    job.CurrentStage,
		FilesProcessed:  job.FilesProcessed,
		TotalFiles:      job.FilesReceived,
		Errors:          errs,
		StartedAt:       job.StartedAt,
		CompletedAt:     job.CompletedAt,
	}
}

// UploadHandler handles upload intake and job status polling.
type UploadHandler struct {
	manager      *operations.BatchManager
	store        operations.JobStore
	cfg          config.UploadConfig
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewUploadHandler creates an upload handler.
func NewUploadHandler(manager *operations.BatchManager, store operations.JobStore, cfg config.UploadConfig, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *UploadHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadHandler{
		manager:      manager,
		store:        store,
		cfg:          cfg,
		logger:       logger.With(slog.String("component", "upload_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the upload routes.
func (h *UploadHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/upload", h.Upload)
	r.Get("/process/{id}", h.GetStatus)
	r.Get("/uploads", h.ListUploads)
	r.Delete("/upload/{id}", h.CancelUpload)

	return r
}

// Upload handles POST /upload: saves the spreadsheet files under a
// fresh batch directory and starts the pipeline asynchronously.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	maxBytes := h.cfg.MaxFileSizeMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes*int64(h.cfg.MaxFiles))

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("files", "No files provided"))
		return
	}
	if len(files) > h.cfg.MaxFiles {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("files",
			fmt.Sprintf("Maximum %d files allowed", h.cfg.MaxFiles)))
		return
	}

	for _, file := range files {
		if !h.allowedExtension(file.Filename) {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("files",
				fmt.Sprintf("Invalid file extension: %s. Allowed: %s",
					filepath.Ext(file.Filename), strings.Join(h.cfg.AllowedExtensions, ", "))))
			return
		}
		if file.Size > maxBytes {
			h.errorHandler.HandleError(w, r, apierrors.ErrPayloadTooLarge)
			return
		}
	}

	uploadID := uuid.New().String()
	uploadDir := filepath.Join(h.cfg.Dir, uploadID)
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrFileSystem)
		return
	}

	savedPaths, err := h.saveFiles(files, uploadDir)
	if err != nil {
		os.RemoveAll(uploadDir)
		h.errorHandler.HandleError(w, r, apierrors.ErrFileSystem)
		return
	}

	job, err := h.manager.StartBatch(uploadID, savedPaths, uploadDir)
	if err != nil {
		os.RemoveAll(uploadDir)
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.Info("upload accepted",
		slog.String("upload_id", job.ID),
		slog.Int("files", len(savedPaths)))

	render.Render(w, r, &UploadResponse{
		UploadID:      job.ID,
		Message:       fmt.Sprintf("Upload successful. Processing %d files.", len(savedPaths)),
		FilesReceived: len(savedPaths),
		Status:        job.Status,
	})
}

// GetStatus handles GET /process/{id}.
func (h *UploadHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	job, err := h.store.GetJob(id)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrBatchNotFound)
		return
	}

	render.Render(w, r, statusFromJob(job))
}

// ListUploads handles GET /uploads: recent jobs, newest first.
func (h *UploadHandler) ListUploads(w http.ResponseWriter, r *http.Request) {
	jobs := h.store.ListJobs(50)

	responses := make([]render.Renderer, 0, len(jobs))
	for _, job := range jobs {
		responses = append(responses, statusFromJob(job))
	}

	render.RenderList(w, r, responses)
}

// CancelUpload handles DELETE /upload/{id}: cancels the batch and
// removes its uploaded files.
func (h *UploadHandler) CancelUpload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.store.GetJob(id); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrBatchNotFound)
		return
	}

	if err := h.manager.Cancel(id); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]string{
		"message":   "Upload cancelled",
		"upload_id": id,
	})
}

func (h *UploadHandler) allowedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range h.cfg.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func (h *UploadHandler) saveFiles(files []*multipart.FileHeader, dir string) ([]string, error) {
	saved := make([]string, 0, len(files))

	for _, header := range files {
		src, err := header.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open uploaded file %s: %w", header.Filename, err)
		}

		destPath := filepath.Join(dir, filepath.Base(header.Filename))
		dest, err := os.Create(destPath)
		if err != nil {
			src.Close()
			return nil, fmt.Errorf("failed to create %s: %w", destPath, err)
		}

		_, err = io.Copy(dest, src)
		src.Close()
		dest.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to save %s: %w", destPath, err)
		}

		saved = append(saved, destPath)
	}

	return saved, nil
}
