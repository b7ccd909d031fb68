package store

import (
	"errors"
	"fmt"

	"github.com/UNCWMixedReality/NounExtractor/internal/fingerprint"
	"github.com/UNCWMixedReality/NounExtractor/internal/record"
)

var (
	// ErrInvalidFingerprint is returned before any backend access when a key
	// is not a 64-character lowercase hex string.
	ErrInvalidFingerprint = fingerprint.ErrInvalid

	// ErrNotFound is returned by Get when no row exists for the fingerprint.
	ErrNotFound = errors.New("classification result not found")

	// ErrBackendUnavailable covers configuration, connection and I/O failures.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrSerialization is returned when a stored payload cannot be decoded
	// or a record cannot be encoded.
	ErrSerialization = record.ErrSerialization
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

// Outcome names the error kind of err, for metrics labels and CLI output.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidFingerprint):
		return "invalid_fingerprint"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrBackendUnavailable):
		return "backend_unavailable"
	case errors.Is(err, ErrSerialization):
		return "serialization"
	default:
		return "error"
	}
}
