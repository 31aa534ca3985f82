package store

import (
	"errors"

	"github.com/zero-day-ai/coachmem/backend"
)

var (
	// ErrThreadNotFound is returned by AddMessage when the target thread does
	// not exist.
	ErrThreadNotFound = errors.New("store: thread not found")

	// ErrInvalidRole is returned by AddMessage for a role other than user,
	// assistant or system.
	ErrInvalidRole = errors.New("store: invalid role")

	// ErrMalformedRecord is returned when a stored hash cannot be decoded.
	ErrMalformedRecord = errors.New("store: malformed record")

	// ErrConflict is returned by UpdateThread when the thread record changed
	// between its read and its write.
	ErrConflict = backend.ErrConflict
)
