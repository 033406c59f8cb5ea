package types

import (
	"errors"
	"fmt"
)

// ErrorKind is the normalized failure taxonomy for the assistant path.
type ErrorKind string

const (
	// KindClassificationAmbiguous exists for completeness; the classifier is total and never raises it.
	KindClassificationAmbiguous   ErrorKind = "classification_ambiguous"
	KindProviderUnavailable       ErrorKind = "provider_unavailable"
	KindMalformedProviderResponse ErrorKind = "malformed_provider_response"
	KindGenerationFailed          ErrorKind = "generation_failed"
	KindTimeout                   ErrorKind = "timeout"
	KindRecordingUnavailable      ErrorKind = "recording_unavailable"
)

// Error carries a taxonomy kind plus the operation that failed.
// Provider-specific error shapes are kept only as the wrapped cause.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Kind, so errors.Is(err, ErrTimeout) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrProviderUnavailable       = &Error{Kind: KindProviderUnavailable}
	ErrMalformedProviderResponse = &Error{Kind: KindMalformedProviderResponse}
	ErrGenerationFailed          = &Error{Kind: KindGenerationFailed}
	ErrTimeout                   = &Error{Kind: KindTimeout}
	ErrRecordingUnavailable      = &Error{Kind: KindRecordingUnavailable}
)

// NewError builds a taxonomy error.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the taxonomy kind from err, or "" when err carries none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
