// Package operations orchestrates batch processing: it owns the job
// lifecycle (upload → extraction → validation → computation), runs the
// pipeline stages off the caller's goroutine, tracks coarse progress
// for polling consumers, and keeps the per-stage snapshots the
// transport layer serves.
package operations

import (
	"time"

	"qcpulse/pkg/contracts/domain"
)

// JobStatus is the coarse state of one upload batch.
type JobStatus string

const (
	JobStatusUploading  JobStatus = "uploading"
	JobStatusParsing    JobStatus = "parsing"
	JobStatusValidating JobStatus = "validating"
	JobStatusComputing  JobStatus = "computing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status can no longer change.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is one upload batch moving through the pipeline. The store hands
// out copies; only the manager mutates the stored instance.
type Job struct {
	ID              string     `json:"upload_id"`
	Status          JobStatus  `json:"status"`
	ProgressPercent int        `json:"progress_percent"`
	CurrentStage    string     `json:"current_stage"`
	FilesReceived   int        `json:"files_received"`
	FilesProcessed  int        `json:"files_processed"`
	Errors          []string   `json:"errors"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	UploadDir       string     `json:"-"`

	// Per-stage snapshots, populated as stages complete.
	Extraction map[domain.ReportCategory][]domain.FileSummary `json:"-"`
	Validation *domain.ValidationSummary                      `json:"-"`
	Stats      *domain.StatsSnapshot                          `json:"-"`
}
