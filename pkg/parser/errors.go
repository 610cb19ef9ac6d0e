package parser

import "errors"

var (
	// ErrUnknownParser is returned when no profile is registered under an id.
	ErrUnknownParser = errors.New("parser: unknown parser")

	// ErrEmptyOpenMarker is returned when the block open marker is empty.
	ErrEmptyOpenMarker = errors.New("parser: open marker must not be empty")

	// ErrEmptyCloseMarker is returned when the block close marker is empty.
	ErrEmptyCloseMarker = errors.New("parser: close marker must not be empty")

	// ErrEmptyIdentifierKey is returned when the identifier key is empty.
	ErrEmptyIdentifierKey = errors.New("parser: identifier key must not be empty")

	// ErrContextCanceled is returned when the context is canceled.
	ErrContextCanceled = errors.New("parser: context canceled")
)
