package models

import (
	"fmt"
	"sort"
	"strings"
)

// ParseError marks one inbound message as unusable. It never aborts a batch.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse event: %s: %v", e.Reason, e.Err)
	}
	return "parse event: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// BatchFailure means a batch must not be acknowledged: either every message
// failed to parse, or the storage write failed.
type BatchFailure struct {
	Received int
	Failed   int
	Err      error
}

func (e *BatchFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("batch of %d rejected: %v", e.Received, e.Err)
	}
	return fmt.Sprintf("batch of %d rejected: all %d messages failed to parse", e.Received, e.Failed)
}

func (e *BatchFailure) Unwrap() error { return e.Err }

// AllFailed reports whether the batch was rejected for parse failures alone.
func (e *BatchFailure) AllFailed() bool {
	return e.Err == nil && e.Received > 0 && e.Failed == e.Received
}

// StorageError wraps a failed backend write or delete.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// SearchError wraps a failed backend read.
type SearchError struct {
	Err error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("search events: %v", e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }

// ValidationError carries per-field messages for a rejected client request.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
