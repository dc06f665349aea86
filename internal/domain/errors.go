package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Workflow outcomes. Every failure a workflow reports wraps exactly one of these.
var (
	ErrMalformedInput  = errors.New("malformed input")
	ErrConflict        = errors.New("patient already exists")
	ErrNotFound        = errors.New("not found")
	ErrEmptyCollection = errors.New("no patients stored")
	ErrStorage         = errors.New("storage failure")
	ErrClassification  = errors.New("classification failure")
)

// APIError represents a standardized error response
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	CodeMalformedInput  = "MALFORMED_INPUT"
	CodeConflict        = "CONFLICT"
	CodeNotFound        = "NOT_FOUND"
	CodeEmptyCollection = "EMPTY_COLLECTION"
	CodeStorage         = "STORAGE_ERROR"
	CodeClassification  = "CLASSIFICATION_ERROR"
	CodeInternalServer  = "INTERNAL_SERVER_ERROR"
	CodeRequestTimeout  = "REQUEST_TIMEOUT"
)

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrMalformedInput.
func (e *ValidationError) Unwrap() error {
	return ErrMalformedInput
}

// NewAPIError creates a new APIError with timestamp
func NewAPIError(code, message, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// ErrorCode maps a workflow error to its stable wire code.
// A passed request deadline wins over the failure it caused.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return CodeRequestTimeout
	case errors.Is(err, ErrMalformedInput):
		return CodeMalformedInput
	case errors.Is(err, ErrConflict):
		return CodeConflict
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrEmptyCollection):
		return CodeEmptyCollection
	case errors.Is(err, ErrStorage):
		return CodeStorage
	case errors.Is(err, ErrClassification):
		return CodeClassification
	default:
		return CodeInternalServer
	}
}

// UserMessage returns the user-facing text for a workflow error. Only validation
// errors contribute their own detail; everything else gets a fixed message.
func UserMessage(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return fmt.Sprintf("Invalid field '%s': %s", verr.Field, verr.Message)
	}

	switch ErrorCode(err) {
	case CodeMalformedInput:
		return "Malformed patient submission"
	case CodeConflict:
		return "A patient with the same name is already stored"
	case CodeNotFound:
		return "Patient not found"
	case CodeEmptyCollection:
		return "No patients stored"
	case CodeStorage:
		return "Could not complete the operation on the patient store"
	case CodeClassification:
		return "Could not compute a diagnosis for the patient"
	case CodeRequestTimeout:
		return "Request timeout"
	default:
		return "Internal server error"
	}
}
