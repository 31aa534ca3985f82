package coachmem

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/zero-day-ai/coachmem/config"
	"github.com/zero-day-ai/coachmem/filter"
	"github.com/zero-day-ai/coachmem/memory"
	"github.com/zero-day-ai/coachmem/store"
)

// Error kinds categorize errors by their type.
const (
	// KindNotFound represents errors where a thread was not found.
	KindNotFound = "not_found"

	// KindValidation represents errors related to caller input.
	KindValidation = "validation"

	// KindConflict represents a concurrent modification of the same record.
	KindConflict = "conflict"

	// KindPermission represents operations refused by configuration, such as
	// a disabled flush.
	KindPermission = "permission"

	// KindConfiguration represents errors related to configuration.
	KindConfiguration = "configuration"

	// KindNetwork represents errors talking to the backend.
	KindNetwork = "network"

	// KindTimeout represents errors related to operation timeouts.
	KindTimeout = "timeout"

	// KindInternal represents everything else, including corrupt records.
	KindInternal = "internal"
)

// Error wraps an underlying error with the operation that failed and its
// category.
//
// Error supports errors.Is and errors.As through Unwrap:
//
//	err := &Error{Op: "coachmem.Open", Kind: KindNetwork, Err: cause}
//	errors.Is(err, cause) // true
type Error struct {
	// Op is the operation that failed (e.g., "coachmem.Open").
	Op string

	// Kind categorizes the error (e.g., KindNotFound, KindValidation).
	Kind string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("coachmem: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("coachmem: %s (%s): %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by Kind, and by Op when the target sets one.
// Otherwise it delegates to the wrapped error.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok && t.Kind != "" && t.Kind == e.Kind {
		if t.Op == "" || t.Op == e.Op {
			return true
		}
	}
	return errors.Is(e.Err, target)
}

// KindOf returns the category of err, or "" for a nil error.
func KindOf(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) && e.Kind != "" {
		return e.Kind
	}

	switch {
	case errors.Is(err, store.ErrThreadNotFound):
		return KindNotFound
	case errors.Is(err, store.ErrInvalidRole),
		errors.Is(err, memory.ErrInvalidSelectBy),
		errors.Is(err, filter.ErrInvalidExpression):
		return KindValidation
	case errors.Is(err, store.ErrConflict):
		return KindConflict
	case errors.Is(err, memory.ErrFlushDisabled):
		return KindPermission
	case errors.Is(err, memory.ErrSemanticRecallUnsupported),
		errors.Is(err, config.ErrFlushInProduction):
		return KindConfiguration
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}
	return KindInternal
}

func wrap(op, kind string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}
