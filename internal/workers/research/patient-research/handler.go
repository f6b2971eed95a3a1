// internal/workers/research/patient-research/handler.go
package patientresearch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	apperrors "kiro-assistant/internal/common/errors"
	"kiro-assistant/internal/common/logger"
	"kiro-assistant/internal/common/metrics"
	"kiro-assistant/internal/common/observability"
	"kiro-assistant/internal/common/validation"
	"kiro-assistant/internal/models"
	"kiro-assistant/internal/research/pipeline"
)

const (
	TaskType = "patient-research"
)

// Runner runs one research request end to end.
type Runner interface {
	Run(ctx context.Context, requestID string, req *models.ResearchRequest) (*pipeline.Result, error)
}

type Handler struct {
	config *Config
	runner Runner
	errors *apperrors.ErrorHandler
	obs    *observability.Observability
	logger logger.Logger
}

func NewHandler(config *Config, runner Runner, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		runner: runner,
		errors: apperrors.NewErrorHandler(log),
		obs:    obs,
		logger: log,
	}
}

// Handle completes the job with the report, or fails/throws through the shared error handler.
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
	return h.complete(client, job, output, start)
}

// ParseInput decodes and validates job variables.
func ParseInput(variables string) (*Input, error) {
	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err))
	}

	input.Condition.Name = strings.TrimSpace(input.Condition.Name)
	input.Condition.BodyRegion = strings.TrimSpace(input.Condition.BodyRegion)
	if input.Condition.Name == "" || input.Condition.BodyRegion == "" {
		return nil, apperrors.NewInvalidInputError("condition.name and condition.bodyRegion are required")
	}
	if input.SendEmail && input.PatientEmail != "" && !validation.ValidateEmail(input.PatientEmail) {
		return nil, apperrors.NewInvalidInputError("invalid patientEmail")
	}
	if input.Condition.Symptoms == nil {
		input.Condition.Symptoms = []string{}
	}
	return &input, nil
}

// Execute runs the pipeline and flattens the result into process variables.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	requestID := input.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	result, err := h.runner.Run(ctx, requestID, &input.ResearchRequest)
	if err != nil {
		return nil, err
	}

	report, meta := result.Report, result.Metadata
	return &Output{
		RequestID:      meta.RequestID,
		ReportID:       report.ID,
		EvidenceGrade:  report.EvidenceGrade,
		Confidence:     report.Confidence,
		TotalClaims:    meta.TotalClaims,
		TotalCitations: meta.TotalCitations,
		EmailSent:      meta.EmailSent,
		EmailError:     meta.EmailError,
		Cached:         meta.Cached,
		CostTotal:      meta.Cost.Total,
		Report:         report,
	}, nil
}

func (h *Handler) complete(client worker.JobClient, job entities.Job, output *Output, start time.Time) error {
	ctx := context.Background()
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		return fmt.Errorf("create complete job command: %w", err)
	}
	if _, err := cmd.Send(ctx); err != nil {
		return fmt.Errorf("send complete job command: %w", err)
	}

	elapsed := time.Since(start)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(elapsed.Seconds())
	h.obs.RecordJobProcessed(ctx, TaskType, "completed")
	h.obs.RecordJobDuration(ctx, TaskType, elapsed, "completed")

	h.logger.Info("job completed", map[string]interface{}{
		"jobKey":        job.Key,
		"requestId":     output.RequestID,
		"evidenceGrade": output.EvidenceGrade,
		"emailSent":     output.EmailSent,
		"durationMs":    elapsed.Milliseconds(),
	})
	return nil
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
