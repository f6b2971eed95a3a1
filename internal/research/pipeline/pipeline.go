// internal/research/pipeline/pipeline.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"kiro-assistant/internal/common/config"
	"kiro-assistant/internal/common/logger"
	"kiro-assistant/internal/common/metrics"
	"kiro-assistant/internal/common/observability"
	"kiro-assistant/internal/models"
	"kiro-assistant/internal/research/claims"
	"kiro-assistant/internal/research/email"
	"kiro-assistant/internal/research/synthesizer"
)

type Stage string

const (
	StageRequested       Stage = "requested"
	StageResearching     Stage = "researching"
	StageClaimsExtracted Stage = "claims_extracted"
	StageSynthesizing    Stage = "synthesizing"
	StageRendered        Stage = "rendered"
	StageDone            Stage = "done"
)

var ErrEmailNotConfigured = errors.New("email delivery is not configured")

type Researcher interface {
	Research(ctx context.Context, req *models.ResearchRequest) (*models.ResearchResult, error)
}

type ClaimExtractor interface {
	Extract(result *models.ResearchResult) []models.Claim
}

type Synthesizer interface {
	Synthesize(ctx context.Context, in synthesizer.Input) (*models.PatientReport, error)
}

type Renderer interface {
	Render(report *models.PatientReport) (email.Email, error)
}

type Sender interface {
	Send(ctx context.Context, to string, e email.Email) error
}

// Stages are the pipeline's collaborators. Cache, Renderer and Sender are optional.
type Stages struct {
	Researcher  Researcher
	Extractor   ClaimExtractor
	Synthesizer Synthesizer
	Renderer    Renderer
	Sender      Sender
	Cache       Cache
}

type Config struct {
	Timeout time.Duration
	Costs   config.CostConfig
}

func NewConfig(cfg *config.Config) Config {
	return Config{
		Timeout: config.GetDuration(cfg.Research.Timeout),
		Costs:   cfg.Research.Costs,
	}
}

type Cost struct {
	Research  float64 `json:"research"`
	Synthesis float64 `json:"synthesis"`
	Total     float64 `json:"total"`
}

type Metadata struct {
	RequestID      string       `json:"requestId"`
	TotalCitations int          `json:"totalCitations"`
	TotalClaims    int          `json:"totalClaims"`
	ClaimStats     claims.Stats `json:"claimStats"`
	EmailSent      bool         `json:"emailSent"`
	EmailError     string       `json:"emailError,omitempty"`
	Cached         bool         `json:"cached"`
	Cost           Cost         `json:"cost"`
}

type Result struct {
	Report   *models.PatientReport `json:"report"`
	Metadata Metadata              `json:"metadata"`
}

// StageError records which stage a run failed in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("research pipeline failed while %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Pipeline runs Requested → Researching → ClaimsExtracted → Synthesizing → Rendered → Done.
type Pipeline struct {
	config Config
	stages Stages
	obs    *observability.Observability
	logger logger.Logger
}

func New(cfg Config, stages Stages, obs *observability.Observability, log logger.Logger) *Pipeline {
	return &Pipeline{config: cfg, stages: stages, obs: obs, logger: log}
}

// Run executes one research request within the configured budget. Email failures are reported in
// the metadata and never fail the run.
func (p *Pipeline) Run(ctx context.Context, requestID string, req *models.ResearchRequest) (*Result, error) {
	if req.Focus == "" {
		req.Focus = models.FocusAll
	}
	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	ctx, span := p.obs.StartSpan(ctx, "research.pipeline",
		attribute.String("request_id", requestID),
		attribute.String("condition", req.Condition.Name),
		attribute.String("focus", string(req.Focus)),
	)
	defer span.End()

	log := p.logger.With(map[string]interface{}{"requestId": requestID})
	log.Info("research requested", map[string]interface{}{
		"condition":  req.Condition.Name,
		"bodyRegion": req.Condition.BodyRegion,
		"focus":      req.Focus,
		"sendEmail":  req.SendEmail,
	})

	meta := Metadata{RequestID: requestID}

	var research *models.ResearchResult
	err := p.stage(ctx, StageResearching, func(ctx context.Context) error {
		var err error
		research, meta.Cached, err = p.research(ctx, req)
		return err
	})
	if err != nil {
		return nil, p.fail(span, log, StageResearching, err)
	}

	var extracted []models.Claim
	_ = p.stage(ctx, StageClaimsExtracted, func(context.Context) error {
		extracted = claims.Merge(p.stages.Extractor.Extract(research))
		return nil
	})

	var report *models.PatientReport
	err = p.stage(ctx, StageSynthesizing, func(ctx context.Context) error {
		var err error
		report, err = p.stages.Synthesizer.Synthesize(ctx, synthesizer.Input{
			Condition:      req.Condition,
			Claims:         extracted,
			Citations:      research.Citations,
			PatientContext: req.PatientContext,
			ClinicianNotes: req.ClinicianNotes,
		})
		return err
	})
	if err != nil {
		return nil, p.fail(span, log, StageSynthesizing, err)
	}

	if req.SendEmail && req.PatientEmail != "" {
		sendErr := p.deliver(ctx, req.PatientEmail, report)
		meta.EmailSent = sendErr == nil
		if sendErr != nil {
			meta.EmailError = sendErr.Error()
			log.Warn("report email not sent", map[string]interface{}{"error": sendErr.Error()})
		}
	}

	meta.TotalCitations = len(research.Citations)
	meta.TotalClaims = len(extracted)
	meta.ClaimStats = claims.ComputeStats(extracted)
	meta.Cost = p.cost(research, meta.Cached)

	metrics.ResearchRuns.WithLabelValues("success").Inc()
	span.SetAttributes(attribute.String("stage", string(StageDone)))
	log.Info("research completed", map[string]interface{}{
		"stage":         StageDone,
		"citations":     meta.TotalCitations,
		"claims":        meta.TotalClaims,
		"evidenceGrade": report.EvidenceGrade,
		"confidence":    report.Confidence,
		"cached":        meta.Cached,
		"emailSent":     meta.EmailSent,
	})

	return &Result{Report: report, Metadata: meta}, nil
}

func (p *Pipeline) research(ctx context.Context, req *models.ResearchRequest) (*models.ResearchResult, bool, error) {
	var key string
	if p.stages.Cache != nil {
		key = CacheKey(req)
		if cached, ok := p.stages.Cache.Get(ctx, key); ok {
			return cached, true, nil
		}
	}

	result, err := p.stages.Researcher.Research(ctx, req)
	if err != nil {
		return nil, false, err
	}
	if p.stages.Cache != nil {
		p.stages.Cache.Set(ctx, key, result)
	}
	return result, false, nil
}

func (p *Pipeline) deliver(ctx context.Context, to string, report *models.PatientReport) error {
	if p.stages.Renderer == nil || p.stages.Sender == nil {
		return ErrEmailNotConfigured
	}

	var rendered email.Email
	err := p.stage(ctx, StageRendered, func(context.Context) error {
		var err error
		rendered, err = p.stages.Renderer.Render(report)
		return err
	})
	if err != nil {
		return err
	}
	return p.stages.Sender.Send(ctx, to, rendered)
}

// stage wraps fn in a span and records its duration.
func (p *Pipeline) stage(ctx context.Context, stage Stage, fn func(context.Context) error) error {
	ctx, span := p.obs.StartSpan(ctx, "research."+string(stage))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	metrics.ResearchStageDuration.WithLabelValues(string(stage)).Observe(elapsed.Seconds())
	p.obs.RecordStage(ctx, string(stage), elapsed)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (p *Pipeline) fail(span trace.Span, log logger.Logger, stage Stage, err error) error {
	metrics.ResearchRuns.WithLabelValues("failed").Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, string(stage))
	log.Error("research failed", map[string]interface{}{
		"stage": stage,
		"error": err.Error(),
	})
	return &StageError{Stage: stage, Err: err}
}

func (p *Pipeline) cost(research *models.ResearchResult, cached bool) Cost {
	c := Cost{Synthesis: p.config.Costs.Synthesis}
	if !cached {
		c.Research = float64(research.Tokens) * p.config.Costs.ResearchPerToken
	}
	c.Total = c.Research + c.Synthesis
	return c
}
