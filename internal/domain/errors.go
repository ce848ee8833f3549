package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation  = errors.New("invalid generation request")
	ErrSubmission  = errors.New("submission failed")
	ErrPolling     = errors.New("polling failed")
	ErrJobFailed   = errors.New("job failed")
	ErrPersistence = errors.New("persistence failed")
	ErrSuperseded  = errors.New("superseded by a newer job")
	ErrNotFound    = errors.New("not found")
)

// ValidationError reports a request parameter that is missing or out of bounds.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// SubmissionError wraps a backend rejection or transport failure at creation time.
type SubmissionError struct {
	StatusCode int
	Err        error
}

func (e *SubmissionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("submission failed (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("submission failed: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

func (e *SubmissionError) Is(target error) bool { return target == ErrSubmission }

// PollingError is a transient status query failure. The poll loop keeps running.
type PollingError struct {
	JobID string
	Err   error
}

func (e *PollingError) Error() string {
	return fmt.Sprintf("poll job %s: %v", e.JobID, e.Err)
}

func (e *PollingError) Unwrap() error { return e.Err }

func (e *PollingError) Is(target error) bool { return target == ErrPolling }

// JobFailure is the terminal failure reported by the backend.
type JobFailure struct {
	JobID  string
	Reason string
}

func (e *JobFailure) Error() string {
	return fmt.Sprintf("job %s failed: %s", e.JobID, e.Reason)
}

func (e *JobFailure) Is(target error) bool { return target == ErrJobFailed }

// PersistenceError reports a failed completion side effect. It never alters job status.
type PersistenceError struct {
	JobID string
	Stage string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist job %s (%s): %v", e.JobID, e.Stage, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }
