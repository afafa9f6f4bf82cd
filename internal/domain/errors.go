package domain

import "errors"

// common domain errors that cross entity boundaries.
var (
	ErrNotFound     = errors.New("entity not found")
	ErrInvalidInput = errors.New("invalid input")
)

// scoring failure taxonomy. none of these ever reach the caller of a scoring
// cycle: each one is recovered with a documented default and reported as a Fallback.
var (
	// ErrProviderUnavailable means the obligation schedule could not be fetched in time.
	ErrProviderUnavailable = errors.New("obligation schedule provider unavailable")

	// ErrStorageRead means a goal record, momentum state or reset marker could not be read.
	ErrStorageRead = errors.New("storage read failed")

	// ErrStorageWrite means scores, momentum state or goal records could not be persisted.
	ErrStorageWrite = errors.New("storage write failed")

	// ErrInvalidGoalRecord marks a malformed goal component. the component is treated as disabled.
	ErrInvalidGoalRecord = errors.New("invalid goal record")
)
