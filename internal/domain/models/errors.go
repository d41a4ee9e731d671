package models

import (
	"errors"
	"fmt"
)

// ErrQueueFull is reported when an outcome record could not be queued for append.
var ErrQueueFull = errors.New("audit: queue full")

// ValidationError is returned for bad caller input before any cache or upstream work.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// UpstreamKind classifies a failed upstream fetch.
type UpstreamKind string

const (
	UpstreamUnreachable UpstreamKind = "UNREACHABLE"
	UpstreamBadStatus   UpstreamKind = "BAD_STATUS"
	UpstreamInvalidData UpstreamKind = "INVALID_DATA"
	UpstreamCancelled   UpstreamKind = "CANCELLED"
)

// UpstreamError is the only error the price client returns.
type UpstreamError struct {
	Kind   UpstreamKind
	Status int // HTTP status when one was received, otherwise UpstreamNotAttempted
	Err    error
}

func (e *UpstreamError) Error() string {
	switch e.Kind {
	case UpstreamBadStatus:
		return fmt.Sprintf("upstream status %d", e.Status)
	case UpstreamInvalidData:
		return "invalid upstream data"
	case UpstreamCancelled:
		return "request cancelled"
	default:
		if e.Err != nil {
			return fmt.Sprintf("upstream unreachable: %v", e.Err)
		}
		return "upstream unreachable"
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// SinkError wraps a failure of the audit store.
type SinkError struct {
	Op  string
	Err error
}

func (e *SinkError) Error() string { return fmt.Sprintf("audit sink %s: %v", e.Op, e.Err) }

func (e *SinkError) Unwrap() error { return e.Err }

// AsUpstreamError extracts an *UpstreamError from err, if any.
func AsUpstreamError(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

// ErrLoggerClosed is reported for records submitted after shutdown began.
var ErrLoggerClosed = errors.New("audit: logger closed")
