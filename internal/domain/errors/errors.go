package errors

import (
	"errors"
	"fmt"
)

// Pipeline sentinel errors. Anything occurring before the webhook
// acknowledgment maps to an HTTP status; anything after is terminal for
// that event and only logged/counted.
var (
	// ErrSignatureInvalid indicates the callback failed signature
	// verification. Never retried; yields 401.
	ErrSignatureInvalid = errors.New("invalid request signature")

	// ErrMalformedPayload indicates the callback body could not be
	// parsed. Yields 400.
	ErrMalformedPayload = errors.New("malformed event payload")

	// ErrDuplicateEvent marks a redelivered event that was suppressed.
	// Not a failure; the delivery is acknowledged without reprocessing.
	ErrDuplicateEvent = errors.New("duplicate event suppressed")
)

// TransientError wraps errors that may succeed on retry (network
// failures, rate limits, server errors).
type TransientError struct {
	msg   string
	cause error
}

// NewTransientError creates a transient error with the given message and cause.
func NewTransientError(msg string, cause error) *TransientError {
	return &TransientError{msg: msg, cause: cause}
}

func (e *TransientError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *TransientError) Unwrap() error {
	return e.cause
}

// PermanentError wraps errors that will not succeed on retry (auth
// failures, missing channels, bad requests).
type PermanentError struct {
	msg   string
	cause error
}

// NewPermanentError creates a permanent error with the given message and cause.
func NewPermanentError(msg string, cause error) *PermanentError {
	return &PermanentError{msg: msg, cause: cause}
}

func (e *PermanentError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *PermanentError) Unwrap() error {
	return e.cause
}

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// IsPermanent reports whether err is (or wraps) a PermanentError.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}
