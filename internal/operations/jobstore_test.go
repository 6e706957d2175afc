package operations

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryJobStore_CreateAndGet(t *testing.T) {
	store := NewMemoryJobStore()

	job := &Job{ID: "job-1", Status: JobStatusUploading, StartedAt: time.Now().UTC()}
	require.NoError(t, store.CreateJob(job))

	got, err := store.GetJob("job-1")
	require.NoError(t, err)
	assert.Equal(t, JobStatusUploading, got.Status)

	// The store hands out copies.
	got.Status = JobStatusFailed
	again, err := store.GetJob("job-1")
	require.NoError(t, err)
	assert.Equal(t, JobStatusUploading, again.Status)
}

func TestMemoryJobStore_CreateDuplicateFails(t *testing.T) {
	store := NewMemoryJobStore()

	require.NoError(t, store.CreateJob(&Job{ID: "job-1"}))
	err := store.CreateJob(&Job{ID: "job-1"})
	assert.Error(t, err)
}

func TestMemoryJobStore_GetMissing(t *testing.T) {
	store := NewMemoryJobStore()

	_, err := store.GetJob("nope")
	assert.Error(t, err)
}

func TestMemoryJobStore_UpdateJob(t *testing.T) {
	store := NewMemoryJobStore()
	require.NoError(t, store.CreateJob(&Job{ID: "job-1", Status: JobStatusUploading}))

	updated, err := store.UpdateJob("job-1", func(j *Job) {
		j.Status = JobStatusParsing
		j.ProgressPercent = 10
	})
	require.NoError(t, err)
	assert.Equal(t, JobStatusParsing, updated.Status)
	assert.Equal(t, 10, updated.ProgressPercent)

	stored, err := store.GetJob("job-1")
	require.NoError(t, err)
	assert.Equal(t, JobStatusParsing, stored.Status)

	_, err = store.UpdateJob("nope", func(j *Job) {})
	assert.Error(t, err)
}

func TestMemoryJobStore_ListJobsNewestFirst(t *testing.T) {
	store := NewMemoryJobStore()

	base := time.Now().UTC()
	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, store.CreateJob(&Job{
			ID:        id,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	jobs := store.ListJobs(0)
	require.Len(t, jobs, 3)
	assert.Equal(t, "new", jobs[0].ID)
	assert.Equal(t, "old", jobs[2].ID)

	limited := store.ListJobs(2)
	require.Len(t, limited, 2)
	assert.Equal(t, "new", limited[0].ID)
}

func TestMemoryJobStore_DeleteJob(t *testing.T) {
	store := NewMemoryJobStore()
	require.NoError(t, store.CreateJob(&Job{ID: "job-1"}))

	require.NoError(t, store.DeleteJob("job-1"))
	_, err := store.GetJob("job-1")
	assert.Error(t, err)

	assert.Error(t, store.DeleteJob("job-1"))
}

func TestJobStatus_Terminal(t *testing.T) {
	assert.True(t, JobStatusCompleted.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
	assert.False(t, JobStatusParsing.Terminal())
	assert.False(t, JobStatusValidating.Terminal())
}

func TestProgressTracker(t *testing.T) {
	tracker := NewProgressTracker("parsing", 4)

	tracker.Increment("first.xlsx")
	tracker.Increment("second.xlsx")

	current, total, percentage, message := tracker.GetProgress()
	assert.Equal(t, 2, current)
	assert.Equal(t, 4, total)
	assert.Equal(t, 50.0, percentage)
	assert.Equal(t, "second.xlsx", message)
}
