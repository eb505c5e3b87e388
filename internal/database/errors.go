package database

import "errors"

var (
	// ErrNotFound is returned when a booking or payment does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRoomNotAvailable is returned when the requested room already has
	// an occupying booking overlapping the requested date range.
	ErrRoomNotAvailable = errors.New("room is not available for the requested dates")

	// ErrConcurrentModification is returned when a versioned update loses
	// the race against another writer.
	ErrConcurrentModification = errors.New("booking was modified concurrently")
)
