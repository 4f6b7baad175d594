package recycling

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned for malformed metadata or a missing region
	ErrInvalidInput = errors.New("invalid input")

	// ErrPayloadTooLarge is returned when the image exceeds the configured maximum
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrInstructionNotFound is returned when no instruction document exists for a region key
	ErrInstructionNotFound = errors.New("instruction not found")

	// ErrUpstream is returned when the external model call fails
	ErrUpstream = errors.New("upstream model error")

	// ErrBadRequest is any client error reported over HTTP. The wire format carries only
	// the detail message, so the specific kind is not recoverable on the client side.
	ErrBadRequest = errors.New("bad request")
)

// IsClientError reports whether err should be reported to the caller as a 400
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrPayloadTooLarge) ||
		errors.Is(err, ErrInstructionNotFound) ||
		errors.Is(err, ErrBadRequest)
}

// DetailError pairs a sentinel with a message that is safe to return to the caller
type DetailError struct {
	Err    error
	Detail string
}

func (e *DetailError) Error() string {
	return e.Detail
}

func (e *DetailError) Unwrap() error {
	return e.Err
}

// Detailf wraps kind with a caller-facing message
func Detailf(kind error, format string, args ...any) error {
	return &DetailError{Err: kind, Detail: fmt.Sprintf(format, args...)}
}

// DetailOf returns the caller-facing message carried by err, or fallback
func DetailOf(err error, fallback string) string {
	var de *DetailError
	if errors.As(err, &de) && de.Detail != "" {
		return de.Detail
	}
	return fallback
}
