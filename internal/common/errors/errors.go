// Package errors provides the standardized error type used across the HTTP API,
// the research pipeline and the Zeebe job workers.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	ErrCodeKnowledgeBaseLoadFailed ErrorCode = "KNOWLEDGE_BASE_LOAD_FAILED"

	ErrCodeTemplateNotFound     ErrorCode = "TEMPLATE_NOT_FOUND"
	ErrCodeTemplateRenderFailed ErrorCode = "TEMPLATE_RENDER_FAILED"

	ErrCodeGenerationFailed  ErrorCode = "GENERATION_FAILED"
	ErrCodeGenerationTimeout ErrorCode = "GENERATION_TIMEOUT"

	ErrCodeWebSearchFailed  ErrorCode = "WEB_SEARCH_FAILED"
	ErrCodeWebSearchTimeout ErrorCode = "WEB_SEARCH_TIMEOUT"

	ErrCodeSynthesisFailed ErrorCode = "SYNTHESIS_FAILED"

	ErrCodeEmailSendFailed ErrorCode = "EMAIL_SEND_FAILED"

	ErrCodeCacheUnavailable ErrorCode = "CACHE_UNAVAILABLE"

	ErrCodeWorkflowEngine ErrorCode = "WORKFLOW_ENGINE_ERROR"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause so errors.Is works through a StandardError.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a key to the error metadata and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message string, cause error, retryable bool) *StandardError {
	se := &StandardError{
		Code:      code,
		Message:   message,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
	if cause != nil {
		se.Details = cause.Error()
	}
	return se
}

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for job fail/throw variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// NewInvalidInputError creates a non-retryable validation error.
func NewInvalidInputError(details string) *StandardError {
	se := newError(ErrCodeInvalidInput, "Invalid input", nil, false)
	se.Details = details
	return se
}

// NewKnowledgeBaseLoadFailedError is raised when the knowledge base cannot be read at startup.
func NewKnowledgeBaseLoadFailedError(source string, err error) *StandardError {
	return newError(ErrCodeKnowledgeBaseLoadFailed, fmt.Sprintf("Knowledge base could not be loaded from %s", source), err, false)
}

// NewTemplateNotFoundError creates a non-retryable template error.
func NewTemplateNotFoundError(templateID string) *StandardError {
	se := newError(ErrCodeTemplateNotFound, "Template not found in registry", nil, false)
	se.Details = fmt.Sprintf("templateId: %s", templateID)
	return se
}

// NewTemplateRenderFailedError creates a non-retryable template rendering error.
func NewTemplateRenderFailedError(templateID string, err error) *StandardError {
	return newError(ErrCodeTemplateRenderFailed, fmt.Sprintf("Template %s could not be rendered", templateID), err, false)
}

// NewGenerationFailedError creates a retryable text generation error.
func NewGenerationFailedError(err error) *StandardError {
	return newError(ErrCodeGenerationFailed, "Text generation API error", err, true)
}

// NewGenerationTimeoutError creates a retryable text generation timeout error.
func NewGenerationTimeoutError(err error) *StandardError {
	return newError(ErrCodeGenerationTimeout, "Text generation timeout", err, true)
}

// NewWebSearchFailedError is soft: callers log it and continue with empty results.
func NewWebSearchFailedError(err error) *StandardError {
	return newError(ErrCodeWebSearchFailed, "Web search API error", err, false)
}

// NewWebSearchTimeoutError creates a non-retryable (returns empty) web search timeout error.
func NewWebSearchTimeoutError(err error) *StandardError {
	return newError(ErrCodeWebSearchTimeout, "Web search API timeout", err, false)
}

// NewSynthesisFailedError covers transport failures and unparseable report output.
func NewSynthesisFailedError(err error) *StandardError {
	return newError(ErrCodeSynthesisFailed, "Report synthesis failed", err, true)
}

// NewEmailSendFailedError creates a retryable email delivery error.
func NewEmailSendFailedError(recipient string, err error) *StandardError {
	se := newError(ErrCodeEmailSendFailed, "Email delivery failed", err, true)
	return se.WithMetadata("recipient", recipient)
}

// NewCacheUnavailableError is never surfaced to callers; it is logged by the cache layer.
func NewCacheUnavailableError(err error) *StandardError {
	return newError(ErrCodeCacheUnavailable, "Result cache unavailable", err, true)
}

// NewWorkflowEngineError wraps a failed Zeebe command.
func NewWorkflowEngineError(operation string, err error, retryable bool) *StandardError {
	return newError(ErrCodeWorkflowEngine, fmt.Sprintf("Zeebe operation '%s' failed", operation), err, retryable)
}

// NewInternalError wraps an unexpected error.
func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err, false)
}

// BPMNErrorMapping maps internal error codes to BPMN error codes.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidInput:            "INVALID_INPUT",
	ErrCodeKnowledgeBaseLoadFailed: "KNOWLEDGE_BASE_LOAD_FAILED",
	ErrCodeTemplateNotFound:        "TEMPLATE_NOT_FOUND",
	ErrCodeTemplateRenderFailed:    "TEMPLATE_RENDER_FAILED",
	ErrCodeGenerationFailed:        "GENERATION_FAILED",
	ErrCodeGenerationTimeout:       "GENERATION_TIMEOUT",
	ErrCodeWebSearchFailed:         "WEB_SEARCH_FAILED",
	ErrCodeWebSearchTimeout:        "WEB_SEARCH_TIMEOUT",
	ErrCodeSynthesisFailed:         "SYNTHESIS_FAILED",
	ErrCodeEmailSendFailed:         "EMAIL_SEND_FAILED",
	ErrCodeCacheUnavailable:        "CACHE_UNAVAILABLE",
}

// GetRetryCount returns the recommended job retry count for an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeGenerationFailed,
		ErrCodeSynthesisFailed,
		ErrCodeEmailSendFailed:
		return 3

	case ErrCodeCacheUnavailable:
		return 2

	case ErrCodeGenerationTimeout:
		return 1

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// coded is implemented by failures that know their own StandardError, such as generation failures.
type coded interface {
	StandardError() *StandardError
}

// AsStandardError finds a StandardError in the chain, then a coded failure, and otherwise
// wraps err as an internal error.
func AsStandardError(err error) *StandardError {
	var se *StandardError
	if stderrors.As(err, &se) {
		return se
	}
	var c coded
	if stderrors.As(err, &c) {
		return c.StandardError()
	}
	return NewInternalError(err)
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "TEMPLATE"):
		return "TEMPLATE"
	case strings.Contains(codeStr, "KNOWLEDGE"):
		return "KNOWLEDGE"
	case strings.Contains(codeStr, "GENERATION") || strings.Contains(codeStr, "SYNTHESIS"):
		return "AI"
	case strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "EMAIL"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "CACHE"):
		return "CACHE"
	case strings.Contains(codeStr, "WORKFLOW"):
		return "WORKFLOW"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
