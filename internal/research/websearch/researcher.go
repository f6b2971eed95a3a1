// internal/research/websearch/researcher.go
package websearch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "kiro-assistant/internal/common/errors"
	"kiro-assistant/internal/common/logger"
	"kiro-assistant/internal/generation"
	"kiro-assistant/internal/models"
	"kiro-assistant/internal/prompt"
	"kiro-assistant/internal/research/citations"
	"kiro-assistant/internal/research/llmjson"
	"kiro-assistant/pkg/registry"
)

var focusInstructions = map[models.Focus]string{
	models.FocusExercises:        "Focus on evidence-based exercises, stretches, and physical therapy recommendations",
	models.FocusStudies:          "Focus on recent research studies and clinical trial findings",
	models.FocusTreatmentOptions: "Focus on treatment modalities, effectiveness, and clinical guidelines",
	models.FocusLifestyle:        "Focus on lifestyle modifications, ergonomics, and prevention strategies",
	models.FocusAll:              "Cover exercises, research findings, treatment options, and lifestyle recommendations",
}

// Researcher runs the evidence research stage: optional search pre-fetch, one generation call,
// then citation extraction and grading.
type Researcher struct {
	template   *registry.Template
	generator  generation.Generator
	opts       generation.Options
	search     *SearchClient
	classifier *citations.Classifier
	logger     logger.Logger
}

// NewResearcher builds a Researcher. search may be nil.
func NewResearcher(tmpl *registry.Template, gen generation.Generator, opts generation.Options,
	search *SearchClient, classifier *citations.Classifier, log logger.Logger) *Researcher {
	return &Researcher{
		template:   tmpl,
		generator:  gen,
		opts:       opts,
		search:     search,
		classifier: classifier,
		logger:     log.With(map[string]interface{}{"stage": "research"}),
	}
}

func (r *Researcher) Research(ctx context.Context, req *models.ResearchRequest) (*models.ResearchResult, error) {
	start := time.Now()

	sources := r.prefetch(ctx, req)

	text, err := r.BuildPrompt(req, sources)
	if err != nil {
		return nil, apperrors.NewTemplateRenderFailedError(r.template.ID, err)
	}

	completion, err := r.generator.Generate(ctx, prompt.UserPrompt(text), r.opts)
	if err != nil {
		return nil, fmt.Errorf("research %q: %w", req.Condition.Name, err)
	}

	cits := enrich(r.classifier.FromText(completion.Text), sources)
	result := &models.ResearchResult{
		Findings:      completion.Text,
		Citations:     cits,
		Exercises:     parseExercises(completion.Text),
		Confidence:    r.classifier.Confidence(cits),
		Model:         completion.Model,
		Tokens:        completion.Tokens,
		DurationMS:    time.Since(start).Milliseconds(),
		EvidenceGrade: r.classifier.Grade(cits),
	}

	r.logger.Info("research completed", map[string]interface{}{
		"condition":     req.Condition.Name,
		"citations":     len(cits),
		"evidenceGrade": result.EvidenceGrade,
		"tokens":        result.Tokens,
		"durationMs":    result.DurationMS,
	})
	return result, nil
}

// prefetch never fails the stage; search problems are logged and yield no sources.
func (r *Researcher) prefetch(ctx context.Context, req *models.ResearchRequest) []Source {
	if r.search == nil {
		return nil
	}

	query := strings.Join(append([]string{req.Condition.Name, req.Condition.BodyRegion}, req.Condition.Symptoms...), " ")
	sources, err := r.search.Search(ctx, query+" systematic review")
	if err != nil {
		stdErr := apperrors.NewWebSearchFailedError(err)
		if errors.Is(err, ErrWebSearchTimeout) {
			stdErr = apperrors.NewWebSearchTimeoutError(err)
		}
		r.logger.Warn("web search failed, continuing without search results", map[string]interface{}{
			"errorCode": stdErr.Code,
			"error":     err.Error(),
		})
		return nil
	}
	return sources
}

// BuildPrompt renders the research prompt for req.
func (r *Researcher) BuildPrompt(req *models.ResearchRequest, sources []Source) (string, error) {
	focus := req.Focus
	if _, ok := focusInstructions[focus]; !ok {
		focus = models.FocusAll
	}

	icd10 := ""
	if req.Condition.ICD10Code != "" {
		icd10 = fmt.Sprintf(" (ICD-10: %s)", req.Condition.ICD10Code)
	}
	contextBlock := ""
	if req.PatientContext != "" {
		contextBlock = fmt.Sprintf("**Context**: %s\n", req.PatientContext)
	}
	existingBlock := ""
	if len(req.ExistingKnowledge) > 0 {
		existingBlock = fmt.Sprintf("\n**What the patient already knows**:\n%s\n", strings.Join(req.ExistingKnowledge, "\n"))
	}

	return r.template.Render(map[string]string{
		"condition_name":     req.Condition.Name,
		"icd10":              icd10,
		"body_region":        req.Condition.BodyRegion,
		"symptoms":           strings.Join(req.Condition.Symptoms, ", "),
		"context_block":      contextBlock,
		"existing_block":     existingBlock,
		"focus_instructions": focusInstructions[focus],
		"search_context":     searchContext(sources),
	})
}

func searchContext(sources []Source) string {
	if len(sources) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n**Search Results** (verify and cite where relevant):\n")
	for i, s := range sources {
		fmt.Fprintf(&b, "%d. %s - %s\n", i+1, s.Title, s.URL)
		if s.Snippet != "" {
			fmt.Fprintf(&b, "   %s\n", s.Snippet)
		}
	}
	return b.String()
}

// enrich copies titles and snippets from search hits onto matching citations.
func enrich(cits []models.Citation, sources []Source) []models.Citation {
	if len(sources) == 0 {
		return cits
	}
	byURL := make(map[string]Source, len(sources))
	for _, s := range sources {
		byURL[strings.TrimRight(s.URL, "/")] = s
	}
	for i := range cits {
		if s, ok := byURL[strings.TrimRight(cits[i].URL, "/")]; ok {
			cits[i].Title = s.Title
			cits[i].Snippet = s.Snippet
		}
	}
	return cits
}

// parseExercises reads the exercises array of the research JSON; malformed output yields none.
func parseExercises(text string) []models.Exercise {
	var out researchOutput
	if err := llmjson.Decode(text, &out); err != nil {
		return []models.Exercise{}
	}

	exercises := make([]models.Exercise, 0, len(out.Exercises))
	for _, e := range out.Exercises {
		if strings.TrimSpace(e.Name) == "" {
			continue
		}
		ex := models.Exercise{
			Name:          e.Name,
			Description:   e.Description,
			Frequency:     e.Frequency,
			SafetyNotes:   []string{},
			EvidenceLevel: models.EvidenceLow,
		}
		if e.Safety != "" {
			ex.SafetyNotes = append(ex.SafetyNotes, e.Safety)
		}
		if e.Evidence != "" {
			ex.EvidenceLevel = models.EvidenceMedium
		}
		exercises = append(exercises, ex)
	}
	return exercises
}
