// Package errors provides the standardized error taxonomy for tech-pack generation.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	ErrCodeStageRequestFailed     ErrorCode = "STAGE_REQUEST_FAILED"
	ErrCodeStageRejected          ErrorCode = "STAGE_REJECTED"
	ErrCodeStageTimeout           ErrorCode = "STAGE_TIMEOUT"
	ErrCodeStageDecodeFailed      ErrorCode = "STAGE_DECODE_FAILED"
	ErrCodeStageContractViolation ErrorCode = "STAGE_CONTRACT_VIOLATION"

	ErrCodeExistingFilesLoadFailed ErrorCode = "EXISTING_FILES_LOAD_FAILED"

	ErrCodeInsufficientCredits ErrorCode = "INSUFFICIENT_CREDITS"

	ErrCodeGenerationCancelled  ErrorCode = "GENERATION_CANCELLED"
	ErrCodeGenerationInProgress ErrorCode = "GENERATION_IN_PROGRESS"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
}

// Unwrap exposes the underlying cause so errors.Is works against stage sentinels.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// UserMessage is the text surfaced in GenerationStatus.Error and to toasts.
func (e *StandardError) UserMessage() string {
	if e.Details == "" {
		return e.Message
	}
	return e.Message + ": " + e.Details
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationError creates a non-retryable precondition error.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Missing required generation input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStageRequestFailedError creates a retryable transport error for a stage call.
func NewStageRequestFailedError(stage string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStageRequestFailed,
		Message:   fmt.Sprintf("Stage '%s' request failed", stage),
		Details:   err.Error(),
		Retryable: true,
		Metadata:  map[string]interface{}{"stage": stage},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewStageRejectedError wraps an application-level success:false response.
func NewStageRejectedError(stage, message string, cause error) *StandardError {
	if message == "" {
		message = "generation service returned no error message"
	}
	return &StandardError{
		Code:      ErrCodeStageRejected,
		Message:   fmt.Sprintf("Stage '%s' failed", stage),
		Details:   message,
		Retryable: true,
		Metadata:  map[string]interface{}{"stage": stage},
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewStageTimeoutError creates a retryable timeout error.
func NewStageTimeoutError(stage string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStageTimeout,
		Message:   fmt.Sprintf("Stage '%s' timed out", stage),
		Details:   err.Error(),
		Retryable: true,
		Metadata:  map[string]interface{}{"stage": stage},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewStageDecodeFailedError creates an error for an unreadable response body.
func NewStageDecodeFailedError(stage string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStageDecodeFailed,
		Message:   fmt.Sprintf("Stage '%s' returned an unreadable response", stage),
		Details:   err.Error(),
		Retryable: true,
		Metadata:  map[string]interface{}{"stage": stage},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewStageContractViolationError reports a payload that does not match the stage schema.
func NewStageContractViolationError(stage string, violations []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeStageContractViolation,
		Message:   fmt.Sprintf("Stage '%s' returned unexpected data", stage),
		Details:   strings.Join(violations, "; "),
		Retryable: true,
		Metadata:  map[string]interface{}{"stage": stage},
		Timestamp: time.Now().UTC(),
	}
}

// NewExistingFilesLoadFailedError creates a retryable persistence lookup error.
func NewExistingFilesLoadFailedError(productID, revisionID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExistingFilesLoadFailed,
		Message:   "Failed to load existing tech files",
		Details:   err.Error(),
		Retryable: true,
		Metadata: map[string]interface{}{
			"productId":  productID,
			"revisionId": revisionID,
		},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewInsufficientCreditsError creates a non-retryable balance error.
func NewInsufficientCreditsError(required, available int) *StandardError {
	return &StandardError{
		Code:      ErrCodeInsufficientCredits,
		Message:   "Insufficient credits",
		Details:   fmt.Sprintf("required: %d, available: %d", required, available),
		Retryable: false,
		Metadata: map[string]interface{}{
			"required":  required,
			"available": available,
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewGenerationCancelledError reports a run stopped by CancelGeneration.
func NewGenerationCancelledError(cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeGenerationCancelled,
		Message:   "Generation cancelled",
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewGenerationInProgressError rejects a second concurrent run.
func NewGenerationInProgressError() *StandardError {
	return &StandardError{
		Code:      ErrCodeGenerationInProgress,
		Message:   "A generation is already in progress",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// AsStandardError returns the first StandardError in err's chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandardError(err)
	return ok && stdErr.Code == code
}

// IsRetryable reports whether the user may retry the failed action.
func IsRetryable(err error) bool {
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr.Retryable
	}
	return false
}

// UserMessage extracts the message to surface for any error.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr.UserMessage()
	}
	return err.Error()
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	case strings.HasPrefix(codeStr, "STAGE"):
		return "STAGE"
	case strings.Contains(codeStr, "EXISTING_FILES"):
		return "PERSISTENCE"
	case strings.Contains(codeStr, "CREDITS"):
		return "CREDITS"
	case strings.HasPrefix(codeStr, "GENERATION"):
		return "LIFECYCLE"
	default:
		return "OTHER"
	}
}
