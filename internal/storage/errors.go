package storage

import "errors"

var (
	// ErrNotFound is returned when a requested signal does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
