package repository

import "errors"

// Common repository errors
var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateRun is returned when a run with the same id was already stored
	ErrDuplicateRun = errors.New("run with this id already exists")
)
