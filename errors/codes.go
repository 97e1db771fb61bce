package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Availability errors (retryable)
const (
	// ErrCodeServiceUnavailable indicates an external feature service is temporarily unavailable.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// Resource errors
const (
	// ErrCodeNotFound indicates the requested pipeline, job or artifact was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeConflict indicates a conflict with the current state of the resource.
	ErrCodeConflict ErrorCode = "CONFLICT"
)

// Validation errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeInvalidConfiguration indicates a pipeline or engine configuration
	// that cannot be built (cycles, unknown operators, ambiguous merges).
	ErrCodeInvalidConfiguration ErrorCode = "INVALID_CONFIGURATION"
)

// Execution errors
const (
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	// ErrCodeStorage indicates a descriptor store failure.
	ErrCodeStorage ErrorCode = "STORAGE_ERROR"
	// ErrCodeExternalService indicates an error from an external feature service.
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
	// ErrCodeCancelled indicates the operation was cancelled on request.
	ErrCodeCancelled ErrorCode = "CANCELLED"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeServiceUnavailable: true,
	ErrCodeStorage:            true,
	ErrCodeExternalService:    true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
