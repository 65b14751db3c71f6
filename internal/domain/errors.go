package domain

import "errors"

// Error taxonomy shared by services and the HTTP layer.
// Callers wrap these with fmt.Errorf("...: %w", ErrX) and match with errors.Is.
var (
	// ErrExtraction means the image could not be decoded or the descriptor model was unavailable.
	ErrExtraction = errors.New("descriptor extraction failed")

	// ErrNotFound covers missing submissions, catalog entries, fish types and images.
	ErrNotFound = errors.New("not found")

	// ErrInvalidStateTransition is returned when a submission is no longer pending.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrPersistence wraps durable store failures; the enclosing transaction was rolled back.
	ErrPersistence = errors.New("persistence failure")

	// ErrIndexInconsistency marks a committed catalog entry that could not be indexed.
	// It is logged, never returned to the approving caller.
	ErrIndexInconsistency = errors.New("index inconsistency")

	// ErrInvalidInput is returned for malformed client input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrIndexNotReady is returned while the vector index is still being populated.
	ErrIndexNotReady = errors.New("index not ready")
)

// IsClientError reports whether err is caused by the caller's input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrExtraction) || errors.Is(err, ErrInvalidInput)
}
