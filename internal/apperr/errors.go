// Package apperr defines the failure kinds the audit pipeline returns to callers.
// Callers match them with errors.As to decide between retrying and surfacing a
// permanent failure.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyText is returned when a blank transcript is submitted for analysis.
var ErrEmptyText = errors.New("text must not be empty")

// DecodeError means the input bytes could not be decoded into a supported sample format.
type DecodeError struct {
	Filename string
	Reason   string
	Err      error
}

func (e *DecodeError) Error() string {
	msg := "decode audio"
	if e.Filename != "" {
		msg += " " + e.Filename
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ServiceUnavailableError means one or more required models failed to load.
type ServiceUnavailableError struct {
	Models []string
}

func (e *ServiceUnavailableError) Error() string {
	return fmt.Sprintf("service unavailable: model(s) not loaded: %s", strings.Join(e.Models, ", "))
}

// TranscriptionError carries the index of the chunk whose transcription failed.
type TranscriptionError struct {
	ChunkIndex int
	Err        error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcribe chunk %d: %v", e.ChunkIndex, e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

// AnalysisError means one of the analysis model calls failed.
type AnalysisError struct {
	Model string
	Err   error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis %s: %v", e.Model, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// UnrecognizedLabelError means a model returned a label outside the fixed mapping table.
type UnrecognizedLabelError struct {
	Model string
	Label string
}

func (e *UnrecognizedLabelError) Error() string {
	if e.Label == "" {
		return fmt.Sprintf("model %s returned no label", e.Model)
	}
	return fmt.Sprintf("model %s returned unrecognized label %q", e.Model, e.Label)
}

// TimeoutError means a stage exceeded its deadline. Results of workers still
// running at that point are discarded.
type TimeoutError struct {
	Stage string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("stage %s timed out", e.Stage)
}

// CacheError wraps a cache backend failure. It is logged and downgraded to a
// miss, never returned from the pipeline.
type CacheError struct {
	Op  string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s: %v", e.Op, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }

// Retryable reports whether err is a failure kind a caller may reasonably retry.
// Decode and label failures are permanent.
func Retryable(err error) bool {
	var (
		unavailable *ServiceUnavailableError
		timeout     *TimeoutError
		transcribe  *TranscriptionError
		analysis    *AnalysisError
	)
	switch {
	case errors.As(err, &unavailable), errors.As(err, &timeout):
		return true
	case errors.As(err, &transcribe), errors.As(err, &analysis):
		return true
	default:
		return false
	}
}
