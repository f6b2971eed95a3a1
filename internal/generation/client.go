// internal/generation/client.go
package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/semaphore"

	commonhttp "kiro-assistant/internal/common/http"
	"kiro-assistant/internal/common/logger"
	"kiro-assistant/internal/common/metrics"
	"kiro-assistant/internal/models"
	"kiro-assistant/internal/prompt"
)

// Completion is the final text of one call.
type Completion struct {
	Text   string `json:"text"`
	Tokens int    `json:"tokens"`
	Model  string `json:"model"`
}

// Generator is implemented by Client and by test fakes.
type Generator interface {
	Generate(ctx context.Context, payload prompt.Payload, opts Options) (Completion, error)
	Stream(ctx context.Context, payload prompt.Payload, opts Options, onDelta func(string) error) (Completion, error)
}

// Client talks to an OpenAI-compatible chat completions API.
type Client struct {
	config *Config
	api    *openai.Client
	sem    *semaphore.Weighted
	logger logger.Logger
}

func NewClient(cfg *Config, log logger.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid generation config: %w", err)
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	// no client-level timeout; each call is bounded by its context
	apiCfg.HTTPClient = commonhttp.NewClient(0).HTTPClient()

	return &Client{
		config: cfg,
		api:    openai.NewClientWithConfig(apiCfg),
		sem:    semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		logger: log.With(map[string]interface{}{"component": "generation"}),
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.config.Model
}

// Generate returns the full completion in one response.
func (c *Client) Generate(ctx context.Context, payload prompt.Payload, opts Options) (Completion, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	if err := c.acquire(ctx, opts.Op); err != nil {
		return Completion{}, err
	}
	defer c.sem.Release(1)

	req := c.buildRequest(payload, opts)

	var resp openai.ChatCompletionResponse
	err := c.withRetry(ctx, opts.Op, func() error {
		var callErr error
		resp, callErr = c.api.CreateChatCompletion(ctx, req)
		return callErr
	})
	if err != nil {
		c.observe(opts.Op, "error", start, 0)
		return Completion{}, err
	}

	if len(resp.Choices) == 0 {
		c.observe(opts.Op, "error", start, 0)
		return Completion{}, &GenerationFailure{Op: opts.Op, Err: fmt.Errorf("%w: no choices in response", ErrGenerationFailed)}
	}

	out := Completion{
		Text:   resp.Choices[0].Message.Content,
		Tokens: resp.Usage.TotalTokens,
		Model:  c.modelName(resp.Model),
	}
	c.observe(opts.Op, "success", start, out.Tokens)
	return out, nil
}

// Stream calls onDelta with each token chunk as it arrives and returns the concatenated text.
// Retries happen only before the first chunk has been delivered.
func (c *Client) Stream(ctx context.Context, payload prompt.Payload, opts Options, onDelta func(string) error) (Completion, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	if err := c.acquire(ctx, opts.Op); err != nil {
		return Completion{}, err
	}
	defer c.sem.Release(1)

	req := c.buildRequest(payload, opts)
	req.Stream = true
	req.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

	var (
		text    strings.Builder
		tokens  int
		model   string
		started bool
	)

	attempt := func() error {
		stream, err := c.api.CreateChatCompletionStream(ctx, req)
		if err != nil {
			return err
		}
		defer stream.Close()

		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				if started {
					return &midStreamError{err: err}
				}
				return err
			}
			if chunk.Model != "" {
				model = chunk.Model
			}
			if chunk.Usage != nil {
				tokens = chunk.Usage.TotalTokens
			}
			for _, choice := range chunk.Choices {
				delta := choice.Delta.Content
				if delta == "" {
					continue
				}
				started = true
				text.WriteString(delta)
				if err := onDelta(delta); err != nil {
					return &midStreamError{err: err}
				}
			}
		}
	}

	if err := c.withRetry(ctx, opts.Op, attempt); err != nil {
		c.observe(opts.Op, "error", start, tokens)
		return Completion{Text: text.String()}, err
	}

	out := Completion{Text: text.String(), Tokens: tokens, Model: c.modelName(model)}
	c.observe(opts.Op, "success", start, out.Tokens)
	return out, nil
}

// midStreamError marks a failure after output was already delivered; it is never retried.
type midStreamError struct {
	err error
}

func (e *midStreamError) Error() string { return e.err.Error() }
func (e *midStreamError) Unwrap() error { return e.err }

func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	var failure *GenerationFailure

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return newFailure(op, ctx.Err())
			}
		}

		err := fn()
		if err == nil {
			return nil
		}

		failure = newFailure(op, err)
		var mid *midStreamError
		if errors.As(err, &mid) {
			failure.Retryable = false
		}

		c.logger.Warn("generation attempt failed", map[string]interface{}{
			"op":        op,
			"attempt":   attempt + 1,
			"retryable": failure.Retryable,
			"error":     err.Error(),
		})

		if !failure.Retryable || ctx.Err() != nil {
			return failure
		}
	}
	return failure
}

func (c *Client) acquire(ctx context.Context, op string) error {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return newFailure(op, err)
	}
	return nil
}

func (c *Client) buildRequest(payload prompt.Payload, opts Options) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(payload.Messages)+1)
	if payload.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: payload.System})
	}
	for _, turn := range payload.Messages {
		role := openai.ChatMessageRoleUser
		if turn.Role == models.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Text})
	}

	return openai.ChatCompletionRequest{
		Model:       c.config.Model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
}

func (c *Client) modelName(reported string) string {
	if reported != "" {
		return reported
	}
	return c.config.Model
}

func (c *Client) observe(op, status string, start time.Time, tokens int) {
	metrics.GenerationDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
	if tokens > 0 {
		metrics.GenerationTokens.WithLabelValues(op).Add(float64(tokens))
	}
}
