package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name          string
		err           *StandardError
		wantCode      string
		wantRetryable bool
		wantRetries   int
	}{
		{
			name:          "generation failure is retried three times",
			err:           NewGenerationFailedError(fmt.Errorf("status 503")),
			wantCode:      "GENERATION_FAILED",
			wantRetryable: true,
			wantRetries:   3,
		},
		{
			name:          "invalid input is thrown",
			err:           NewInvalidInputError("condition.name is required"),
			wantCode:      "INVALID_INPUT",
			wantRetryable: false,
			wantRetries:   0,
		},
		{
			name:          "web search failure never retries",
			err:           NewWebSearchFailedError(fmt.Errorf("quota")),
			wantCode:      "WEB_SEARCH_FAILED",
			wantRetryable: false,
			wantRetries:   0,
		},
		{
			name:          "unknown code passes through",
			err:           NewInternalError(fmt.Errorf("nil pointer")),
			wantCode:      "INTERNAL_ERROR",
			wantRetryable: false,
			wantRetries:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmn := ConvertToBPMNError(tt.err)
			assert.Equal(t, tt.wantCode, bpmn.Code)
			assert.Equal(t, tt.wantRetryable, bpmn.Retryable)
			assert.Equal(t, tt.wantRetries, bpmn.Retries)

			vars := bpmn.ToErrorVariables()
			assert.Equal(t, tt.wantCode, vars["errorCode"])
			assert.Equal(t, string(tt.err.Code), vars["originalErrorCode"])
		})
	}
}

func TestStandardError_UnwrapAndMetadata(t *testing.T) {
	cause := fmt.Errorf("ses throttled")
	err := NewEmailSendFailedError("pasient@example.no", cause)

	assert.True(t, stderrors.Is(err, cause))
	assert.Equal(t, "ses throttled", err.Details)
	assert.Equal(t, "pasient@example.no", err.Metadata["recipient"])
	assert.Contains(t, err.Error(), "EMAIL_SEND_FAILED")
}

func TestAsStandardError(t *testing.T) {
	wrapped := fmt.Errorf("pipeline: %w", NewSynthesisFailedError(fmt.Errorf("no json")))
	se := AsStandardError(wrapped)
	require.NotNil(t, se)
	assert.Equal(t, ErrCodeSynthesisFailed, se.Code)

	plain := AsStandardError(fmt.Errorf("boom"))
	assert.Equal(t, ErrCodeInternal, plain.Code)
	assert.Equal(t, "boom", plain.Details)
}

type codedFailure struct{}

func (codedFailure) Error() string { return "generation chat: timeout" }

func (f codedFailure) StandardError() *StandardError {
	return NewGenerationTimeoutError(f)
}

func TestAsStandardError_CodedFailure(t *testing.T) {
	se := AsStandardError(fmt.Errorf("stage researching: %w", codedFailure{}))
	assert.Equal(t, ErrCodeGenerationTimeout, se.Code)
	assert.True(t, se.Retryable)
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "TEMPLATE", GetErrorCategory(ErrCodeTemplateNotFound))
	assert.Equal(t, "KNOWLEDGE", GetErrorCategory(ErrCodeKnowledgeBaseLoadFailed))
	assert.Equal(t, "AI", GetErrorCategory(ErrCodeGenerationTimeout))
	assert.Equal(t, "AI", GetErrorCategory(ErrCodeSynthesisFailed))
	assert.Equal(t, "SEARCH", GetErrorCategory(ErrCodeWebSearchTimeout))
	assert.Equal(t, "NOTIFICATION", GetErrorCategory(ErrCodeEmailSendFailed))
	assert.Equal(t, "CACHE", GetErrorCategory(ErrCodeCacheUnavailable))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInvalidInput))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
}

func TestRemainingRetries(t *testing.T) {
	assert.Equal(t, int32(2), RemainingRetries(3, 3))
	assert.Equal(t, int32(0), RemainingRetries(1, 3))
	assert.Equal(t, int32(1), RemainingRetries(5, 2))
	assert.True(t, IsRetryableErrorCode(ErrCodeCacheUnavailable))
	assert.False(t, IsRetryableErrorCode(ErrCodeTemplateRenderFailed))
}
