// internal/common/errors/handler.go
package errors

import (
	"net/http"
	"time"
)

// ErrorHandler normalizes pipeline failures and maps them onto HTTP
// responses and log records.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle normalizes err, logs it and returns the HTTP status plus the
// response fields the API layer should emit.
func (h *ErrorHandler) Handle(requestID string, err error) (int, map[string]interface{}) {
	stdErr := h.normalizeError(err)
	h.logError(requestID, stdErr)
	return HTTPStatusFor(stdErr), ResponseFields(stdErr)
}

// normalizeError ensures we always have a StandardError.
func (h *ErrorHandler) normalizeError(err error) *StandardError {
	if stdErr, ok := AsStandard(err); ok {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// HTTPStatusFor maps an error code to the status the API returns. Pipeline
// failures (validation, invocation) still answer 200 with status "failed" in
// the body; only request-shape and lookup problems surface as 4xx/5xx.
func HTTPStatusFor(stdErr *StandardError) int {
	switch stdErr.Code {
	case ErrCodeParse:
		return http.StatusBadRequest
	case ErrCodeUserNotFound:
		return http.StatusNotFound
	case ErrCodeValidation, ErrCodeInvocation, ErrCodeProvider:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

// ResponseFields builds the error portion of an API response body.
func ResponseFields(stdErr *StandardError) map[string]interface{} {
	fields := map[string]interface{}{
		"code":    string(stdErr.Code),
		"message": stdErr.Message,
	}
	if stdErr.Stage != "" {
		fields["stage"] = stdErr.Stage
	}
	if stdErr.Details != "" {
		fields["details"] = stdErr.Details
	}
	return fields
}

func (h *ErrorHandler) logError(requestID string, stdErr *StandardError) {
	h.logger.Error("Request failed", map[string]interface{}{
		"requestId":     requestID,
		"errorCode":     string(stdErr.Code),
		"stage":         stdErr.Stage,
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"retries":       GetRetryCount(stdErr.Code),
		"errorCategory": GetErrorCategory(stdErr.Code),
	})
}
