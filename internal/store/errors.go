package store

import "errors"

var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists (unique constraint).
	ErrAlreadyExists = errors.New("already exists")

	// ErrEmptyContext is returned when saving an empty customer context.
	// Absence of a context is represented by ErrNotFound on load.
	ErrEmptyContext = errors.New("customer context must not be empty")
)
