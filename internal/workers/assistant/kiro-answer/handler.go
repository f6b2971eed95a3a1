// internal/workers/assistant/kiro-answer/handler.go
package kiroanswer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"kiro-assistant/internal/assistant"
	apperrors "kiro-assistant/internal/common/errors"
	"kiro-assistant/internal/common/logger"
	"kiro-assistant/internal/common/metrics"
	"kiro-assistant/internal/common/observability"
	"kiro-assistant/internal/models"
)

const (
	TaskType = "kiro-answer"
)

// Answerer returns a complete, normalized reply.
type Answerer interface {
	Answer(ctx context.Context, history []models.ConversationTurn, message string) (*assistant.Answer, error)
}

type Handler struct {
	config   *Config
	answerer Answerer
	errors   *apperrors.ErrorHandler
	obs      *observability.Observability
	logger   logger.Logger
}

func NewHandler(config *Config, answerer Answerer, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		answerer: answerer,
		errors:   apperrors.NewErrorHandler(log),
		obs:      obs,
		logger:   log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	input, err := ParseInput(job.Variables)
	if err != nil {
		h.fail(client, job, err, start)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.fail(client, job, err, start)
		return nil
	}

	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		return fmt.Errorf("create complete job command: %w", err)
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		return fmt.Errorf("send complete job command: %w", err)
	}

	elapsed := time.Since(start)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(elapsed.Seconds())
	h.obs.RecordJobProcessed(ctx, TaskType, "completed")
	h.obs.RecordJobDuration(ctx, TaskType, elapsed, "completed")
	return nil
}

// ParseInput requires a non-blank message. History is optional.
func ParseInput(variables string) (*Input, error) {
	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err))
	}
	if strings.TrimSpace(input.Message) == "" {
		return nil, apperrors.NewInvalidInputError("message is required")
	}
	return &input, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	history := input.History
	if limit := h.config.HistoryLimit; limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}

	answer, err := h.answerer.Answer(ctx, history, input.Message)
	if err != nil {
		return nil, err
	}

	articles := answer.Articles
	if articles == nil {
		articles = []models.ArticleReference{}
	}
	return &Output{
		Answer:   answer.Text,
		Articles: articles,
		Model:    answer.Model,
		Tokens:   answer.Tokens,
	}, nil
}

func (h *Handler) fail(client worker.JobClient, job entities.Job, err error, start time.Time) {
	ctx := context.Background()
	stdErr := apperrors.AsStandardError(err)
	elapsed := time.Since(start)

	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(elapsed.Seconds())
	h.obs.RecordJobProcessed(ctx, TaskType, "failed")
	h.obs.RecordJobDuration(ctx, TaskType, elapsed, "failed")

	h.errors.HandleJobError(ctx, client, job, stdErr)
}
