package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// AppError is the error type every engine failure is reported as.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// Is reports whether target is an AppError with the same code, so that
// errors.Is(err, apperrors.Cancelled()) matches any cancellation.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// TransportFailure wraps a connection or I/O error reported by the transport.
func TransportFailure(cause error) *AppError {
	return New(ErrCodeTransportFailure, "transport failed").WithCause(cause)
}

// ProtocolViolation reports events delivered in an order the engine cannot accept.
func ProtocolViolation(reason string) *AppError {
	return New(ErrCodeProtocolViolation, reason)
}

// ExtractionFailure wraps an error returned by an extraction function.
func ExtractionFailure(cause error) *AppError {
	return New(ErrCodeExtractionFailure, "extraction failed").WithCause(cause)
}

// Cancelled reports a cancelled operation.
func Cancelled() *AppError {
	return New(ErrCodeCancelled, "operation cancelled")
}

// Timeout reports a wait that elapsed before the operation resolved.
func Timeout(operation string, after time.Duration) *AppError {
	return New(ErrCodeTimeout, fmt.Sprintf("%s did not complete within %s", operation, after)).
		WithDetail("operation", operation)
}

// ChannelClosed reports an offer to a channel that was closed or failed.
func ChannelClosed() *AppError {
	return New(ErrCodeChannelClosed, "chunk channel closed")
}

// Rejected reports that no extraction slot could be acquired.
func Rejected(cause error) *AppError {
	return New(ErrCodeRejected, "extraction pool rejected the task").WithCause(cause)
}

// InvalidInput reports a malformed request or configuration value.
func InvalidInput(field, reason string) *AppError {
	e := New(ErrCodeInvalidInput, fmt.Sprintf("Invalid input: %s", reason))
	if field != "" {
		e.WithDetail("field", field)
	}
	return e
}

// Internal wraps an unexpected error.
func Internal(cause error) *AppError {
	return New(ErrCodeInternal, "unexpected engine error").WithCause(cause)
}

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Code returns the code of the outermost AppError in err's chain, or "".
func Code(err error) ErrorCode {
	if e, ok := AsAppError(err); ok {
		return e.Code
	}
	return ""
}

// HasCode reports whether the outermost AppError in err's chain has the given code.
func HasCode(err error, code ErrorCode) bool {
	return err != nil && Code(err) == code
}

// IsCancelled checks if an error is a cancellation.
func IsCancelled(err error) bool { return HasCode(err, ErrCodeCancelled) }

// IsTimeout checks if an error is a timeout.
func IsTimeout(err error) bool { return HasCode(err, ErrCodeTimeout) }

// IsTransportFailure checks if an error is a transport failure.
func IsTransportFailure(err error) bool { return HasCode(err, ErrCodeTransportFailure) }

// IsProtocolViolation checks if an error is a protocol violation.
func IsProtocolViolation(err error) bool { return HasCode(err, ErrCodeProtocolViolation) }

// IsExtractionFailure checks if an error is an extraction failure.
func IsExtractionFailure(err error) bool { return HasCode(err, ErrCodeExtractionFailure) }

// IsChannelClosed checks if an error is a closed-channel error.
func IsChannelClosed(err error) bool { return HasCode(err, ErrCodeChannelClosed) }

// IsRejected checks if an error is an extraction pool rejection.
func IsRejected(err error) bool { return HasCode(err, ErrCodeRejected) }
