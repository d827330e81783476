package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobLifecycleHappyPath(t *testing.T) {
	job := NewDocumentJob("sources/act-1.pdf", 1024)
	assert.Equal(t, StatusPending, job.Status)
	assert.Empty(t, job.ExternalJobID)

	job.MarkUploaded("ext-123")
	assert.Equal(t, StatusUploaded, job.Status)
	assert.Equal(t, "ext-123", job.ExternalJobID)
	require.NotNil(t, job.SubmittedAt)

	job.MarkProcessing()
	assert.Equal(t, StatusProcessing, job.Status)

	job.Complete(&StructuredResult{FullText: "text", ExtractionMethod: ExtractionRaw})
	assert.Equal(t, StatusCompleted, job.Status)
	require.NotNil(t, job.CompletedAt)
	require.NotNil(t, job.Result)
	assert.Empty(t, job.Error)
	assert.False(t, job.CompletedAt.Before(*job.SubmittedAt))
}

func TestJobNeverCompletesAfterFailure(t *testing.T) {
	job := NewDocumentJob("sources/act-2.pdf", 0)
	job.MarkUploaded("ext-1")
	job.Fail(errors.New("poll_error: boom"))

	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, "poll_error: boom", job.Error)

	job.Complete(&StructuredResult{FullText: "late"})
	assert.Equal(t, StatusFailed, job.Status)
	assert.Nil(t, job.Result)
}

func TestJobNeverFailsAfterCompletion(t *testing.T) {
	job := NewDocumentJob("sources/act-3.pdf", 0)
	job.MarkUploaded("ext-1")
	job.Complete(&StructuredResult{FullText: "done"})

	job.Fail(errors.New("late failure"))
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Empty(t, job.Error)
}

func TestJobCannotSkipSubmission(t *testing.T) {
	job := NewDocumentJob("sources/act-4.pdf", 0)

	// completion from pending is rejected
	job.Complete(&StructuredResult{FullText: "x"})
	assert.Equal(t, StatusPending, job.Status)

	// processing from pending is rejected
	job.MarkProcessing()
	assert.Equal(t, StatusPending, job.Status)
}

func TestJobFailureFromPending(t *testing.T) {
	job := NewDocumentJob("sources/act-5.pdf", 0)
	job.Fail(errors.New("submission_error: 500"))

	assert.Equal(t, StatusFailed, job.Status)
	assert.Empty(t, job.ExternalJobID)
	assert.Nil(t, job.SubmittedAt)

	// first failure reason wins
	job.Fail(errors.New("second reason"))
	assert.Equal(t, "submission_error: 500", job.Error)
}

func TestJobUploadIsMonotonic(t *testing.T) {
	job := NewDocumentJob("sources/act-6.pdf", 0)
	job.MarkUploaded("ext-1")
	job.MarkUploaded("ext-2")

	assert.Equal(t, "ext-1", job.ExternalJobID)
}

func TestJobDuration(t *testing.T) {
	job := NewDocumentJob("sources/act-7.pdf", 0)
	assert.Zero(t, job.Duration())

	start := time.Now().Add(-3 * time.Second)
	end := time.Now()
	job.SubmittedAt = &start
	job.CompletedAt = &end

	assert.InDelta(t, 3.0, job.Duration().Seconds(), 0.1)
}
