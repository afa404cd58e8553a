package store

import "errors"

// Predefined errors for the store layer.
var (
	// ErrNotFound indicates that a requested row was not found.
	ErrNotFound = errors.New("record not found")

	// ErrConflict indicates a uniqueness violation, e.g. inserting a row
	// that already exists.
	ErrConflict = errors.New("conflict")
)
