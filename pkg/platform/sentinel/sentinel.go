// Package sentinel holds the facts stores report. Services translate them
// into domain errors; handlers never see them.
package sentinel

import "errors"

var (
	// ErrNotFound means the employee, override or user row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a uniqueness constraint rejected the write.
	ErrConflict = errors.New("conflict")
	// ErrInvalidState means the row cannot make the requested transition,
	// e.g. revoking an override that is no longer active.
	ErrInvalidState = errors.New("invalid state")
)
