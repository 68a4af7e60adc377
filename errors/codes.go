package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Failures surfaced to callers of an operation.
const (
	// ErrCodeTransportFailure indicates a connection or I/O error below the engine.
	ErrCodeTransportFailure ErrorCode = "TRANSPORT_FAILURE"
	// ErrCodeProtocolViolation indicates events arrived out of order (e.g. content before headers).
	ErrCodeProtocolViolation ErrorCode = "PROTOCOL_VIOLATION"
	// ErrCodeExtractionFailure indicates the caller's extraction function failed.
	ErrCodeExtractionFailure ErrorCode = "EXTRACTION_FAILURE"
	// ErrCodeCancelled indicates the operation was cancelled.
	ErrCodeCancelled ErrorCode = "CANCELLED"
	// ErrCodeTimeout indicates a wait elapsed before the operation resolved.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
)

// Engine-level errors
const (
	// ErrCodeChannelClosed is raised by a chunk channel that no longer accepts chunks.
	// It never crosses the channel boundary untranslated.
	ErrCodeChannelClosed ErrorCode = "CHANNEL_CLOSED"
	// ErrCodeRejected indicates the extraction pool had no free slot.
	ErrCodeRejected ErrorCode = "REJECTED"
	// ErrCodeInvalidInput indicates a malformed request or configuration.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeInternal indicates an unexpected engine error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeTransportFailure: true,
	ErrCodeTimeout:          true,
	ErrCodeRejected:         true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
