package failure

import (
	"errors"
	"fmt"
)

// Kind tags why a transaction could not complete.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindTimeout
	KindNetwork
	KindHTTPStatus
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTimeout:
		return "timeout"
	case KindNetwork:
		return "network"
	case KindHTTPStatus:
		return "http_status"
	default:
		return "unknown"
	}
}

// Error is a classified failure. The transport layer sets Kind itself so
// callers never have to inspect error messages.
type Error struct {
	Kind Kind
	// Attempts is the number of attempts made before giving up (transport only).
	Attempts int
	// StatusCode is set for KindHTTPStatus.
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindHTTPStatus && e.Attempts > 0:
		return fmt.Sprintf("http status %d after %d attempt(s)", e.StatusCode, e.Attempts)
	case e.Attempts > 0:
		return fmt.Sprintf("%s after %d attempt(s): %v", e.Kind, e.Attempts, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Validation returns a KindValidation failure with a formatted reason.
func Validation(format string, a ...any) *Error {
	return &Error{Kind: KindValidation, Err: fmt.Errorf(format, a...)}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// IsTimeout reports whether err was classified as a timeout.
func IsTimeout(err error) bool { return KindOf(err) == KindTimeout }

// IsValidation reports whether err was classified as a validation failure.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }
