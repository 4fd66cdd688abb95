// Package errors provides standardized error handling for the styling pipeline.
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
	// Model-service errors. ErrCodeValidation means the model answered but
	// the output failed the stage schema; it is recovered locally with one
	// stricter-prompt retry. ErrCodeInvocation covers transport, quota and
	// timeout failures at the model service and is never retried.
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvocation ErrorCode = "INVOCATION_ERROR"

	// Collaborator errors.
	ErrCodeProvider     ErrorCode = "PROVIDER_ERROR"
	ErrCodeUserNotFound ErrorCode = "USER_NOT_FOUND"

	// Request/response plumbing.
	ErrCodeParse    ErrorCode = "PARSE_ERROR"
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Stage     string                 `json:"stage,omitempty"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("StandardError[%s/%s]: %s", e.Code, e.Stage, e.Message)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationError reports a model output that failed schema validation.
// Retryable: the calling stage gets exactly one stricter-prompt retry.
func NewValidationError(stage, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidation,
		Stage:     stage,
		Message:   "Model output failed schema validation",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvocationError reports a transport, quota or service-level failure at
// the model service. Never retried.
func NewInvocationError(stage string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvocation,
		Stage:     stage,
		Message:   "Model service invocation failed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStageTimeoutError reports a stage that exceeded its configured budget.
// Surfaced as an invocation error per the stage failure policy.
func NewStageTimeoutError(stage string, budget time.Duration) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvocation,
		Stage:     stage,
		Message:   "Stage exceeded its time budget",
		Details:   fmt.Sprintf("budget: %s", budget),
		Retryable: false,
		Metadata:  map[string]interface{}{"timeout": true},
		Timestamp: time.Now().UTC(),
	}
}

// NewProviderError reports a failure in an external collaborator (wardrobe
// store, image store).
func NewProviderError(provider string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeProvider,
		Message:   fmt.Sprintf("Collaborator '%s' error", provider),
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUserNotFoundError reports an unknown user identifier.
func NewUserNotFoundError(userID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUserNotFound,
		Message:   "User not found",
		Details:   fmt.Sprintf("userId: %s", userID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewParseError reports a malformed payload from the client.
func NewParseError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeParse,
		Message:   "Request payload could not be parsed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Retry Policy
// ==========================

// GetRetryCount returns the retry budget for an error code. Only schema
// validation earns a retry; everything else escalates immediately.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeValidation:
		return 1
	default:
		return 0
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// ==========================
// 4. Utility Functions
// ==========================

// AsStandard unwraps err looking for a *StandardError.
func AsStandard(err error) (*StandardError, bool) {
	var se *StandardError
	if stderrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsValidation reports whether err is a schema validation failure.
func IsValidation(err error) bool {
	se, ok := AsStandard(err)
	return ok && se.Code == ErrCodeValidation
}

// IsInvocation reports whether err is a model-service invocation failure.
func IsInvocation(err error) bool {
	se, ok := AsStandard(err)
	return ok && se.Code == ErrCodeInvocation
}

// IsTimeout reports whether err is a stage timeout.
func IsTimeout(err error) bool {
	se, ok := AsStandard(err)
	if !ok || se.Metadata == nil {
		return false
	}
	timeout, _ := se.Metadata["timeout"].(bool)
	return timeout
}

// IsUserNotFound reports whether err identifies an unknown user.
func IsUserNotFound(err error) bool {
	se, ok := AsStandard(err)
	return ok && se.Code == ErrCodeUserNotFound
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	case strings.Contains(codeStr, "INVOCATION"):
		return "MODEL"
	case strings.Contains(codeStr, "PROVIDER") || strings.Contains(codeStr, "USER"):
		return "COLLABORATOR"
	case strings.Contains(codeStr, "PARSE"):
		return "REQUEST"
	default:
		return "OTHER"
	}
}
