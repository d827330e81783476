package model

import (
	"time"
)

// JobStatus represents the current state of a document job
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusUploaded   JobStatus = "uploaded"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition is possible from s
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// DocumentJob tracks one source document through the remote structuring
// service. Transitions are monotonic: pending -> uploaded -> processing ->
// completed, with failed reachable from any non-terminal state. Each job is
// owned by exactly one goroutine at a time (the submission worker, then the
// polling worker), so no locking is needed on the record itself.
type DocumentJob struct {
	SourceKey       string
	SourceSizeBytes int64
	ExternalJobID   string
	Status          JobStatus
	SubmittedAt     *time.Time
	CompletedAt     *time.Time
	Error           string
	Result          *StructuredResult
}

// NewDocumentJob creates a pending job for one source document
func NewDocumentJob(sourceKey string, sizeBytes int64) *DocumentJob {
	return &DocumentJob{
		SourceKey:       sourceKey,
		SourceSizeBytes: sizeBytes,
		Status:          StatusPending,
	}
}

// MarkUploaded records a successful submission and the id the remote
// service assigned. No-op if the job is already terminal.
func (j *DocumentJob) MarkUploaded(externalJobID string) {
	if j.Status != StatusPending {
		return
	}
	now := time.Now()
	j.ExternalJobID = externalJobID
	j.SubmittedAt = &now
	j.Status = StatusUploaded
}

// MarkProcessing records that the remote service is still working on the
// job. Valid only while the job is uploaded or already processing.
func (j *DocumentJob) MarkProcessing() {
	if j.Status == StatusUploaded || j.Status == StatusProcessing {
		j.Status = StatusProcessing
	}
}

// Complete attaches the merged result and moves the job to completed.
// No-op from a terminal state or before submission.
func (j *DocumentJob) Complete(result *StructuredResult) {
	if j.Status.Terminal() || j.Status == StatusPending || result == nil {
		return
	}
	now := time.Now()
	j.CompletedAt = &now
	j.Result = result
	j.Status = StatusCompleted
}

// Fail records the failure reason and moves the job to failed. A completed
// job can never fail afterwards; the first failure reason wins.
func (j *DocumentJob) Fail(err error) {
	if j.Status.Terminal() || err == nil {
		return
	}
	j.Error = err.Error()
	j.Status = StatusFailed
}

// Duration returns the submit-to-complete duration, or zero if either
// timestamp is unset
func (j *DocumentJob) Duration() time.Duration {
	if j.SubmittedAt == nil || j.CompletedAt == nil {
		return 0
	}
	return j.CompletedAt.Sub(*j.SubmittedAt)
}
