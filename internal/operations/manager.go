package operations

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"qcpulse/internal/config"
	"qcpulse/internal/dataprocessing"
	"qcpulse/internal/validation"
	"qcpulse/pkg/contracts/domain"
)

// StatusListener receives a job copy whenever its status or progress
// changes. Advisory only; listener failures never affect the batch.
type StatusListener func(job Job)

// BatchManager runs upload batches through the three pipeline stages.
// Stages execute strictly sequentially within a batch, on a worker
// goroutine so that status-polling consumers stay responsive. Each
// batch owns its own aggregator; nothing is shared between concurrent
// batches.
type BatchManager struct {
	store     JobStore
	extractor *dataprocessing.Extractor
	validator *validation.RowValidator
	analyzer  *dataprocessing.Analyzer
	cfg       config.PipelineConfig
	logger    *slog.Logger

	mu        sync.Mutex
	cancels   map[string]context.CancelFunc
	listeners []StatusListener
}

// NewBatchManager creates a batch manager with the given store and
// pipeline configuration.
func NewBatchManager(store JobStore, cfg config.PipelineConfig, logger *slog.Logger) *BatchManager {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "batch_manager"))

	return &BatchManager{
		store:     store,
		extractor: dataprocessing.NewExtractor(cfg, logger),
		validator: validation.NewRowValidator(cfg, logger),
		analyzer:  dataprocessing.NewAnalyzer(cfg, logger),
		cfg:       cfg,
		logger:    logger,
		cancels:   make(map[string]context.CancelFunc),
	}
}

// OnStatusChange registers a listener notified on every job update.
func (m *BatchManager) OnStatusChange(listener StatusListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, listener)
}

// StartBatch creates a job for the uploaded files and starts the
// pipeline on a worker goroutine. filePaths are owned by the upload
// collaborator; the pipeline reads but never moves or deletes them.
// An empty id gets a fresh UUID.
func (m *BatchManager) StartBatch(id string, filePaths []string, uploadDir string) (*Job, error) {
	if id == "" {
		id = uuid.New().String()
	}
	job := &Job{
		ID:            id,
		Status:        JobStatusUploading,
		CurrentStage:  "Upload received",
		FilesReceived: len(filePaths),
		StartedAt:     time.Now().UTC(),
		UploadDir:     uploadDir,
	}

	m.pruneJobs()

	if err := m.store.CreateJob(job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.cancels[job.ID] = cancel
	m.mu.Unlock()

	go m.run(ctx, job.ID, filePaths)

	jobCopy := *job
	return &jobCopy, nil
}

// maxRetainedJobs bounds the in-memory job history. Finished jobs
// beyond the cap are dropped, oldest first, when a new batch starts.
const maxRetainedJobs = 50

// pruneJobs deletes terminal jobs past the retention cap. Running
// jobs are never pruned regardless of age.
func (m *BatchManager) pruneJobs() {
	jobs := m.store.ListJobs(0)
	for i, job := range jobs {
		if i < maxRetainedJobs || !job.Status.Terminal() {
			continue
		}
		if err := m.store.DeleteJob(job.ID); err != nil {
			m.logger.Warn("failed to prune job",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()))
		}
	}
}

// Cancel terminates a running batch. The accumulator is job-private,
// so cancellation never leaves partially-applied aggregation visible.
func (m *BatchManager) Cancel(id string) error {
	m.mu.Lock()
	cancel, ok := m.cancels[id]
	m.mu.Unlock()

	if ok {
		cancel()
	}

	job, err := m.store.GetJob(id)
	if err != nil {
		return err
	}
	if !job.Status.Terminal() {
		m.updateJob(id, func(j *Job) {
			now := time.Now().UTC()
			j.Status = JobStatusFailed
			j.CurrentStage = "Cancelled"
			j.ProgressPercent = 100
			j.CompletedAt = &now
		})
	}

	if job.UploadDir != "" {
		if err := os.RemoveAll(job.UploadDir); err != nil {
			m.logger.Warn("failed to remove upload directory",
				slog.String("job_id", id),
				slog.String("error", err.Error()))
		}
	}

	return nil
}

// run executes the three pipeline stages for one batch. Any panic is
// caught here, at the orchestration boundary, and marks the job
// failed; this is the last line of defense, not a designed error path.
func (m *BatchManager) run(ctx context.Context, jobID string, filePaths []string) {
	defer func() {
		m.mu.Lock()
		delete(m.cancels, jobID)
		m.mu.Unlock()

		if r := recover(); r != nil {
			msg := fmt.Sprintf("%v", r)
			if len(msg) > 100 {
				msg = msg[:100]
			}
			m.logger.Error("batch panicked",
				slog.String("job_id", jobID),
				slog.String("panic", msg))
			m.failJob(jobID, "Error: "+msg, []string{msg})
		}
	}()

	logger := m.logger.With(slog.String("job_id", jobID))

	// Stage 1: extraction.
	m.updateJob(jobID, func(j *Job) {
		j.Status = JobStatusParsing
		j.ProgressPercent = 10
		j.CurrentStage = "Parsing Excel files"
	})

	tracker := NewProgressTracker("parsing", len(filePaths))
	parsed := make(map[domain.ReportCategory][]*domain.FileParseResult)
	for _, category := range domain.AllCategories() {
		parsed[category] = nil
	}

	filesParsed := 0
	for _, path := range filePaths {
		if ctx.Err() != nil {
			logger.Info("batch cancelled during extraction")
			m.failJob(jobID, "Cancelled", nil)
			return
		}

		result := m.extractor.ExtractFile(path)
		parsed[result.Category] = append(parsed[result.Category], result)
		if result.Success {
			filesParsed++
		}
		tracker.Increment(result.FileName)

		current, total, _, _ := tracker.GetProgress()
		m.updateJob(jobID, func(j *Job) {
			j.ProgressPercent = 10 + 30*current/total
			j.CurrentStage = fmt.Sprintf("Parsing file %d/%d", current, total)
		})
	}

	extraction := make(map[domain.ReportCategory][]domain.FileSummary)
	for category, results := range parsed {
		for _, result := range results {
			extraction[category] = append(extraction[category], result.Summarize())
		}
	}

	m.updateJob(jobID, func(j *Job) {
		j.ProgressPercent = 40
		j.CurrentStage = fmt.Sprintf("Parsed %d/%d files", filesParsed, len(filePaths))
		j.FilesProcessed = filesParsed
		j.Extraction = extraction
	})

	// Stage 2: validation.
	if ctx.Err() != nil {
		logger.Info("batch cancelled before validation")
		m.failJob(jobID, "Cancelled", nil)
		return
	}
	m.updateJob(jobID, func(j *Job) {
		j.Status = JobStatusValidating
		j.ProgressPercent = 50
		j.CurrentStage = "Validating data consistency"
	})

	validationResult := m.validator.Validate(parsed)

	if m.validator.ShouldAbort(validationResult) {
		messages := make([]string, 0, 10)
		for _, finding := range validationResult.Errors {
			messages = append(messages, finding.Message)
			if len(messages) == 10 {
				break
			}
		}
		logger.Warn("batch aborted by validation",
			slog.Int("error_rows", validationResult.ErrorRows),
			slog.Int("total_rows", validationResult.TotalRows))
		m.failJob(jobID, "Validation failed - too many errors", messages)
		return
	}

	summary := validationResult.Summarize(m.cfg.MaxReportedFindings)
	m.updateJob(jobID, func(j *Job) {
		j.ProgressPercent = 70
		j.CurrentStage = fmt.Sprintf("Validated %d/%d rows", validationResult.ValidRows, validationResult.TotalRows)
		j.Validation = &summary
	})

	// Stage 3: computation.
	if ctx.Err() != nil {
		logger.Info("batch cancelled before computation")
		m.failJob(jobID, "Cancelled", nil)
		return
	}
	m.updateJob(jobID, func(j *Job) {
		j.Status = JobStatusComputing
		j.ProgressPercent = 80
		j.CurrentStage = "Computing statistics and trends"
	})

	stats := m.analyzer.ComputeStatistics(parsed)

	if ctx.Err() != nil {
		logger.Info("batch cancelled before publishing results")
		m.failJob(jobID, "Cancelled", nil)
		return
	}

	m.updateJob(jobID, func(j *Job) {
		now := time.Now().UTC()
		j.Status = JobStatusCompleted
		j.ProgressPercent = 100
		j.CurrentStage = "Processing complete"
		j.FilesProcessed = len(filePaths)
		j.CompletedAt = &now
		j.Stats = stats
	})

	logger.Info("batch completed",
		slog.Int("files", len(filePaths)),
		slog.Int("rows", validationResult.TotalRows))
}

func (m *BatchManager) failJob(id, stage string, errors []string) {
	m.updateJob(id, func(j *Job) {
		now := time.Now().UTC()
		j.Status = JobStatusFailed
		j.ProgressPercent = 100
		j.CurrentStage = stage
		j.Errors = errors
		j.CompletedAt = &now
	})
}

// updateJob applies the update unless the job is already terminal, so
// a cancellation racing the pipeline can never be overwritten by a
// later stage transition.
func (m *BatchManager) updateJob(id string, update func(*Job)) {
	applied := false
	job, err := m.store.UpdateJob(id, func(j *Job) {
		if j.Status.Terminal() {
			return
		}
		update(j)
		applied = true
	})
	if err != nil {
		m.logger.Error("failed to update job",
			slog.String("job_id", id),
			slog.String("error", err.Error()))
		return
	}
	if !applied {
		return
	}

	m.mu.Lock()
	listeners := append([]StatusListener(nil), m.listeners...)
	m.mu.Unlock()

	for _, listener := range listeners {
		listener(*job)
	}
}
