package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a point operation targets a ride that doesn't exist.
	ErrNotFound = errors.New("ridestore: ride not found")

	// ErrAlreadyExists is returned when a generated ID collides with an existing ride.
	ErrAlreadyExists = errors.New("ridestore: ride already exists")

	// ErrUnprocessed is returned when a batch request still has unprocessed items
	// after Config.MaxBatchRetries re-submissions.
	ErrUnprocessed = errors.New("ridestore: batch request left unprocessed items")

	// ErrInvalidCursor is returned when a scan cursor cannot be decoded.
	ErrInvalidCursor = errors.New("ridestore: invalid cursor")
)

// Kind classifies store failures for callers that need to map them to a status.
type Kind int

const (
	// KindServer covers backend failures and anything unclassified.
	KindServer Kind = iota

	// KindValidation covers caller-supplied input that was rejected.
	KindValidation

	// KindNotFound covers point lookups that missed.
	KindNotFound
)

// String returns the machine-readable type tag for the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindNotFound:
		return "NotFound"
	default:
		return "ServerError"
	}
}

// KindOf classifies err. A nil error is reported as KindServer; callers only
// classify failures.
func KindOf(err error) Kind {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindServer
	}
}

// FieldError describes a single violated field rule.
type FieldError struct {
	// Field is the JSON path of the offending field (e.g. "carMark", "[2].carYear").
	Field string `json:"field"`

	// Rule is the validation rule that failed (e.g. "min", "required").
	Rule string `json:"rule"`

	// Param is the rule parameter, if any (e.g. "3" for min=3).
	Param string `json:"param,omitempty"`

	// Message is a human readable description.
	Message string `json:"message"`
}

// ValidationError reports caller input that was rejected. It is always safe to
// return verbatim to the caller.
type ValidationError struct {
	Message string
	Errors  []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %d field error(s)", e.Message, len(e.Errors))
}

// newValidationError builds a ValidationError with a plain message.
func newValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ServerError wraps a backend or internal failure with the operation that hit it.
type ServerError struct {
	Op  string
	Err error
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("ridestore: %s: %v", e.Op, e.Err)
}

func (e *ServerError) Unwrap() error { return e.Err }

// serverError wraps err unless it is already classified.
func serverError(op string, err error) error {
	if err == nil {
		return nil
	}
	var verr *ValidationError
	var serr *ServerError
	if errors.As(err, &verr) || errors.As(err, &serr) || errors.Is(err, ErrNotFound) {
		return err
	}
	return &ServerError{Op: op, Err: err}
}
