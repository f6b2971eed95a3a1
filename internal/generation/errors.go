// internal/generation/errors.go
package generation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	apperrors "kiro-assistant/internal/common/errors"
)

var (
	ErrGenerationFailed  = errors.New("GENERATION_FAILED")
	ErrGenerationTimeout = errors.New("GENERATION_TIMEOUT")
)

// GenerationFailure is returned by every failed call. Err wraps one of the sentinels above.
type GenerationFailure struct {
	Op        string
	Retryable bool
	Err       error
}

func (f *GenerationFailure) Error() string {
	return fmt.Sprintf("generation %s: %v", f.Op, f.Err)
}

func (f *GenerationFailure) Unwrap() error {
	return f.Err
}

// StandardError maps the failure onto the shared error codes.
func (f *GenerationFailure) StandardError() *apperrors.StandardError {
	if errors.Is(f.Err, ErrGenerationTimeout) {
		return apperrors.NewGenerationTimeoutError(f)
	}
	return apperrors.NewGenerationFailedError(f)
}

func newFailure(op string, err error) *GenerationFailure {
	if isTimeout(err) {
		return &GenerationFailure{Op: op, Retryable: true, Err: fmt.Errorf("%w: %v", ErrGenerationTimeout, err)}
	}
	return &GenerationFailure{Op: op, Retryable: isTransient(err), Err: fmt.Errorf("%w: %v", ErrGenerationFailed, err)}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// isTransient covers 5xx, 429 and network errors.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
