package assistant

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kiro-assistant/internal/common/config"
	"kiro-assistant/internal/common/logger"
	"kiro-assistant/internal/generation"
	"kiro-assistant/internal/generation/generationtest"
	"kiro-assistant/internal/knowledge"
	"kiro-assistant/internal/models"
	"kiro-assistant/internal/prompt"
	"kiro-assistant/pkg/registry"
)

const rawReply = "Hei!Ryggsmerter er vanlig.Les mer her [ARTICLE:rygg:Ryggsmerter:/behandlinger/rygg] eller ring 📞+4740095900"

var chatOpts = generation.Options{Op: "chat", Temperature: 0.7, MaxTokens: 500}

func createTestService(t *testing.T, gen generation.Generator) *Service {
	t.Helper()
	cfg := config.Default()
	root := filepath.Join("..", "..")

	store, err := knowledge.Load(filepath.Join(root, "configs", "knowledge-base.json"), cfg.Knowledge.Routes)
	require.NoError(t, err)
	reg, err := registry.LoadRegistry(filepath.Join(root, "configs", "template-registry.yaml"))
	require.NoError(t, err)
	assembler, err := prompt.NewAssembler(reg, cfg.Prompt)
	require.NoError(t, err)

	return NewService(store, knowledge.NewScorer(cfg.Scoring), assembler, gen, chatOpts, logger.NewTestLogger(t))
}

func TestAnswer_BackPain(t *testing.T) {
	gen := &generationtest.Fake{Responses: []string{rawReply}, Tokens: 120}
	s := createTestService(t, gen)

	history := []models.ConversationTurn{
		{Role: models.RoleUser, Text: "Hei"},
		{Role: models.RoleAssistant, Text: "Hei! Hva kan jeg hjelpe med?"},
	}
	answer, err := s.Answer(context.Background(), history, "jeg har vondt i ryggen")
	require.NoError(t, err)

	assert.Equal(t, "Hei! Ryggsmerter er vanlig. Les mer her eller ring 📞 +47 400 95 900", answer.Text)
	assert.Equal(t, []models.ArticleReference{{ID: "rygg", Title: "Ryggsmerter", URL: "/behandlinger/rygg"}}, answer.Articles)
	assert.Equal(t, 120, answer.Tokens)

	calls := gen.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, chatOpts, calls[0].Options)
	assert.Contains(t, calls[0].Payload.System, "Tittel: Ryggsmerter")
	require.Len(t, calls[0].Payload.Messages, 3)
	assert.Equal(t, "jeg har vondt i ryggen", calls[0].Payload.Messages[2].Text)
}

func TestAnswer_NoMatchUsesSentinel(t *testing.T) {
	gen := &generationtest.Fake{Responses: []string{"Hei"}}
	s := createTestService(t, gen)

	answer, err := s.Answer(context.Background(), nil, "hva er åpningstidene?")
	require.NoError(t, err)
	assert.Equal(t, "Hei", answer.Text)
	assert.Empty(t, answer.Articles)
	assert.NotNil(t, answer.Articles)
	assert.Contains(t, gen.Calls()[0].Payload.System, "Ingen spesifikk informasjon funnet i databasen.")
}

func TestStream_ForwardsRawDeltas(t *testing.T) {
	gen := &generationtest.Fake{Responses: []string{rawReply}}
	s := createTestService(t, gen)

	var deltas []string
	answer, err := s.Stream(context.Background(), nil, "vondt i ryggen", func(d string) error {
		deltas = append(deltas, d)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, rawReply, strings.Join(deltas, ""))
	assert.NotContains(t, answer.Text, "[ARTICLE:")
	assert.Len(t, answer.Articles, 1)
}

func TestStream_Errors(t *testing.T) {
	t.Run("generation failure", func(t *testing.T) {
		s := createTestService(t, &generationtest.Fake{Err: generation.ErrGenerationFailed})
		_, err := s.Stream(context.Background(), nil, "rygg", func(string) error { return nil })
		assert.ErrorIs(t, err, generation.ErrGenerationFailed)
	})

	t.Run("callback failure stops the stream", func(t *testing.T) {
		stop := errors.New("client went away")
		s := createTestService(t, &generationtest.Fake{Responses: []string{rawReply}})

		calls := 0
		_, err := s.Stream(context.Background(), nil, "rygg", func(string) error {
			calls++
			return stop
		})
		assert.ErrorIs(t, err, stop)
		assert.Equal(t, 1, calls)
	})
}
