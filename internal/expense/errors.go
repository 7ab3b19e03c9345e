package expense

import (
	"errors"
	"fmt"
)

// Error kinds raised while turning a receipt into a Result
var (
	// ErrImageLoad is returned when the input cannot be decoded as an image. It aborts extraction.
	ErrImageLoad = errors.New("image could not be loaded")

	// ErrOCRFailed is returned when the OCR engine produced no text.
	ErrOCRFailed = errors.New("text recognition failed")

	// ErrMissingCredential is returned when escalation is required but no AI service credential is configured.
	ErrMissingCredential = errors.New("ai service credential is not configured")

	// ErrServiceRateLimited is returned once the AI service keeps answering "too many requests" after every retry.
	ErrServiceRateLimited = errors.New("ai service rate limit exceeded")

	// ErrServiceAuth is returned when the AI service rejects the credential.
	ErrServiceAuth = errors.New("ai service rejected the credential")

	// ErrServicePermission is returned when the credential is valid but lacks access or credits.
	ErrServicePermission = errors.New("ai service denied access")

	// ErrServiceResponseFormat is returned when the AI service answers with something other than the expected object.
	ErrServiceResponseFormat = errors.New("ai service returned a malformed response")

	// ErrServiceUnavailable covers transport failures, timeouts and unexpected status codes.
	ErrServiceUnavailable = errors.New("ai service call failed")
)

// Error wraps a failure with the operation that hit it and its kind from the list above.
type Error struct {
	// Op is the operation that failed (e.g., "LoadDocument", "ExtractFields").
	Op string

	// Kind is one of the Err* sentinels.
	Kind error

	// Err is the underlying cause, if any.
	Err error

	// Details provides additional context about the failure.
	Details string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Op, e.Kind)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is this error's kind
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

// NewError creates an Error of the given kind
func NewError(op string, kind error, err error, details string) *Error {
	return &Error{
		Op:      op,
		Kind:    kind,
		Err:     err,
		Details: details,
	}
}

// IsFatal reports whether err must propagate to the caller instead of degrading to a basic result
func IsFatal(err error) bool {
	return errors.Is(err, ErrImageLoad) || errors.Is(err, ErrMissingCredential) || errors.Is(err, ErrOCRFailed)
}
