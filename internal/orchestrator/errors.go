package orchestrator

import (
	"errors"
	"fmt"
)

// Failure kinds recorded on a job when it fails. All of them are caught at
// the job level; none abort a batch or the run.
const (
	KindSubmission    = "submission_error"
	KindPoll          = "poll_error"
	KindRemoteFailure = "remote_processing_failure"
	KindPollTimeout   = "poll_timeout"
	KindMerge         = "merge_error"
)

// JobError is a job-level failure with a classified kind
type JobError struct {
	kind    string
	message string
	wrapped error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

func (e *JobError) Kind() string {
	return e.kind
}

func (e *JobError) Unwrap() error {
	return e.wrapped
}

// NewSubmissionError wraps a transport failure or non-success response
// during submit
func NewSubmissionError(err error) *JobError {
	return &JobError{kind: KindSubmission, message: err.Error(), wrapped: err}
}

// NewPollError wraps a transport failure or malformed payload during a
// status check or result fetch
func NewPollError(err error) *JobError {
	return &JobError{kind: KindPoll, message: err.Error(), wrapped: err}
}

// NewRemoteFailure records an explicit failure reported by the service
func NewRemoteFailure(detail string) *JobError {
	if detail == "" {
		detail = "remote service reported job failure"
	}
	return &JobError{kind: KindRemoteFailure, message: detail}
}

// NewPollTimeout records that the poll iteration ceiling was exceeded
func NewPollTimeout(maxPolls int) *JobError {
	return &JobError{kind: KindPollTimeout, message: fmt.Sprintf("job did not finish within %d polls", maxPolls)}
}

// NewMergeError wraps a malformed or inconsistent tree/OCR payload
func NewMergeError(err error) *JobError {
	return &JobError{kind: KindMerge, message: err.Error(), wrapped: err}
}

// KindOf returns the failure kind of err, or "" when err carries none
func KindOf(err error) string {
	var jobErr *JobError
	if errors.As(err, &jobErr) {
		return jobErr.Kind()
	}
	return ""
}
