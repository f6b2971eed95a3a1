// internal/assistant/service.go
package assistant

import (
	"context"
	"fmt"
	"time"

	"kiro-assistant/internal/common/logger"
	"kiro-assistant/internal/common/metrics"
	"kiro-assistant/internal/generation"
	"kiro-assistant/internal/knowledge"
	"kiro-assistant/internal/models"
	"kiro-assistant/internal/normalizer"
	"kiro-assistant/internal/prompt"
)

// Answer is a normalized assistant reply.
type Answer struct {
	Text     string                    `json:"text"`
	Articles []models.ArticleReference `json:"articles"`
	Tokens   int                       `json:"-"`
	Model    string                    `json:"-"`
}

// Service answers patient questions: retrieve, assemble, generate, normalize.
type Service struct {
	store     *knowledge.Store
	scorer    *knowledge.Scorer
	assembler *prompt.Assembler
	generator generation.Generator
	opts      generation.Options
	logger    logger.Logger
}

func NewService(store *knowledge.Store, scorer *knowledge.Scorer, assembler *prompt.Assembler,
	gen generation.Generator, opts generation.Options, log logger.Logger) *Service {
	return &Service{
		store:     store,
		scorer:    scorer,
		assembler: assembler,
		generator: gen,
		opts:      opts,
		logger:    log,
	}
}

// Prepare builds the generation payload for one message.
func (s *Service) Prepare(history []models.ConversationTurn, message string) (prompt.Payload, error) {
	retrieval := s.scorer.Retrieve(message, s.store.Documents())
	metrics.ChatRetrievalHits.Observe(float64(len(retrieval.Documents)))

	payload, err := s.assembler.Assemble(retrieval, history, message)
	if err != nil {
		return prompt.Payload{}, fmt.Errorf("assemble prompt: %w", err)
	}
	return payload, nil
}

// Answer returns a complete reply without streaming.
func (s *Service) Answer(ctx context.Context, history []models.ConversationTurn, message string) (*Answer, error) {
	start := time.Now()
	payload, err := s.Prepare(history, message)
	if err != nil {
		return nil, s.failed(err)
	}

	completion, err := s.generator.Generate(ctx, payload, s.opts)
	if err != nil {
		return nil, s.failed(err)
	}
	return s.finish(completion, start), nil
}

// Stream forwards raw deltas to onDelta and returns the normalized reply once generation ends.
func (s *Service) Stream(ctx context.Context, history []models.ConversationTurn, message string, onDelta func(string) error) (*Answer, error) {
	start := time.Now()
	payload, err := s.Prepare(history, message)
	if err != nil {
		return nil, s.failed(err)
	}

	completion, err := s.generator.Stream(ctx, payload, s.opts, onDelta)
	if err != nil {
		return nil, s.failed(err)
	}
	return s.finish(completion, start), nil
}

func (s *Service) finish(completion generation.Completion, start time.Time) *Answer {
	result := normalizer.Normalize(completion.Text)
	metrics.ChatRequests.WithLabelValues("success").Inc()

	s.logger.Info("chat answered", map[string]interface{}{
		"articles":   len(result.Articles),
		"tokens":     completion.Tokens,
		"model":      completion.Model,
		"durationMs": time.Since(start).Milliseconds(),
	})
	return &Answer{
		Text:     result.Text,
		Articles: result.Articles,
		Tokens:   completion.Tokens,
		Model:    completion.Model,
	}
}

func (s *Service) failed(err error) error {
	metrics.ChatRequests.WithLabelValues("failed").Inc()
	s.logger.Error("chat failed", map[string]interface{}{"error": err.Error()})
	return err
}
