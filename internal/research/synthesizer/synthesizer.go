// internal/research/synthesizer/synthesizer.go
package synthesizer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "kiro-assistant/internal/common/errors"
	"kiro-assistant/internal/common/logger"
	"kiro-assistant/internal/generation"
	"kiro-assistant/internal/models"
	"kiro-assistant/internal/prompt"
	"kiro-assistant/internal/research/llmjson"
	"kiro-assistant/pkg/registry"
)

var ErrSynthesisFailed = errors.New("SYNTHESIS_FAILED")

const topCitations = 10

// Input is everything the report is built from.
type Input struct {
	Condition      models.MedicalCondition
	Claims         []models.Claim
	Citations      []models.Citation
	PatientContext string
	ClinicianNotes string
}

type reportJSON struct {
	Summary     string `json:"summary"`
	KeyFindings []struct {
		Title         string   `json:"title"`
		Explanation   string   `json:"explanation"`
		EvidenceLevel string   `json:"evidence_level"`
		SourceURLs    []string `json:"source_urls"`
	} `json:"key_findings"`
	Exercises []struct {
		Name          string   `json:"name"`
		Description   string   `json:"description"`
		Frequency     string   `json:"frequency"`
		Duration      string   `json:"duration"`
		SafetyNotes   []string `json:"safety_notes"`
		EvidenceLevel string   `json:"evidence_level"`
	} `json:"exercises"`
	SafetyWarnings []string `json:"safety_warnings"`
	NextSteps      []string `json:"next_steps"`
	Confidence     float64  `json:"confidence"`
	EvidenceGrade  string   `json:"evidence_grade"`
}

type Synthesizer struct {
	template  *registry.Template
	generator generation.Generator
	opts      generation.Options
	logger    logger.Logger
}

func New(tmpl *registry.Template, gen generation.Generator, opts generation.Options, log logger.Logger) *Synthesizer {
	return &Synthesizer{
		template:  tmpl,
		generator: gen,
		opts:      opts,
		logger:    log.With(map[string]interface{}{"stage": "synthesis"}),
	}
}

// Synthesize turns claims into a patient report. Transport failures and unparseable output both
// surface as ErrSynthesisFailed.
func (s *Synthesizer) Synthesize(ctx context.Context, in Input) (*models.PatientReport, error) {
	text, err := s.BuildPrompt(in)
	if err != nil {
		return nil, apperrors.NewTemplateRenderFailedError(s.template.ID, err)
	}

	completion, err := s.generator.Generate(ctx, prompt.UserPrompt(text), s.opts)
	if err != nil {
		return nil, apperrors.NewSynthesisFailedError(fmt.Errorf("%w: %w", ErrSynthesisFailed, err))
	}

	var data reportJSON
	if err := llmjson.Decode(completion.Text, &data); err != nil {
		s.logger.Warn("synthesis output could not be parsed", map[string]interface{}{"error": err.Error()})
		return nil, apperrors.NewSynthesisFailedError(fmt.Errorf("%w: %w", ErrSynthesisFailed, err))
	}

	report := s.buildReport(in, &data)

	s.logger.Info("report synthesized", map[string]interface{}{
		"condition":     in.Condition.Name,
		"claims":        len(in.Claims),
		"citations":     len(in.Citations),
		"confidence":    report.Confidence,
		"evidenceGrade": report.EvidenceGrade,
		"tokens":        completion.Tokens,
	})
	return report, nil
}

// BuildPrompt fills the synthesis template.
func (s *Synthesizer) BuildPrompt(in Input) (string, error) {
	var claimLines []string
	for i, c := range in.Claims {
		claimLines = append(claimLines, fmt.Sprintf("%d. [%s] %s (Confidence: %.0f%%, Verdict: %s)",
			i+1, c.EvidenceGrade, c.Statement, c.Confidence*100, c.Verdict))
	}

	var citationLines []string
	for i, c := range in.Citations {
		if i == topCitations {
			break
		}
		citationLines = append(citationLines, fmt.Sprintf("%d. %s (%s, confidence: %.0f%%)",
			i+1, c.URL, c.Source, c.Confidence*100))
	}

	return s.template.Render(map[string]string{
		"condition_name":        in.Condition.Name,
		"body_region":           in.Condition.BodyRegion,
		"symptoms":              strings.Join(in.Condition.Symptoms, ", "),
		"patient_context_block": block("Patient Context", in.PatientContext),
		"clinician_notes_block": block("Clinician Notes", in.ClinicianNotes),
		"claims":                strings.Join(claimLines, "\n"),
		"citations":             strings.Join(citationLines, "\n"),
	})
}

func block(label, value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	return fmt.Sprintf("\n**%s**: %s\n", label, value)
}

func (s *Synthesizer) buildReport(in Input, data *reportJSON) *models.PatientReport {
	grade := parseGrade(data.EvidenceGrade)
	if grade == "" {
		grade = OverallGrade(in.Claims)
	}
	confidence := data.Confidence
	if confidence <= 0 || confidence > 1 {
		confidence = OverallConfidence(in.Claims)
	}
	if len(in.Claims) == 0 {
		grade = models.GradeD
		confidence = 0.3
	}

	report := &models.PatientReport{
		ID:             uuid.NewString(),
		Condition:      in.Condition,
		Summary:        data.Summary,
		KeyFindings:    []models.Claim{},
		Exercises:      []models.Exercise{},
		Citations:      append([]models.Citation{}, in.Citations...),
		SafetyWarnings: nonNil(data.SafetyWarnings),
		NextSteps:      nonNil(data.NextSteps),
		ResearchedAt:   time.Now().UTC(),
		Confidence:     confidence,
		EvidenceGrade:  grade,
	}

	for _, f := range data.KeyFindings {
		finding := models.Claim{
			ID:            uuid.NewString(),
			Type:          models.ClaimTreatmentEfficacy,
			Statement:     f.Title,
			Sources:       citationsByURL(in.Citations, f.SourceURLs),
			Confidence:    0.5,
			Verdict:       models.VerdictPlausible,
			EvidenceGrade: grade,
		}
		switch f.EvidenceLevel {
		case "Strong":
			finding.Confidence = 0.9
			finding.Verdict = models.VerdictSupported
		case "Moderate":
			finding.Confidence = 0.7
		}
		report.KeyFindings = append(report.KeyFindings, finding)
	}

	for _, e := range data.Exercises {
		report.Exercises = append(report.Exercises, models.Exercise{
			Name:          e.Name,
			Description:   e.Description,
			Frequency:     e.Frequency,
			Duration:      e.Duration,
			SafetyNotes:   nonNil(e.SafetyNotes),
			EvidenceLevel: parseEvidenceLevel(e.EvidenceLevel),
		})
	}

	report.Claims = append([]models.Claim{}, in.Claims...)
	sort.SliceStable(report.Claims, func(i, j int) bool {
		return report.Claims[i].Confidence > report.Claims[j].Confidence
	})
	return report
}

// OverallConfidence is used when the model omits a confidence.
func OverallConfidence(claims []models.Claim) float64 {
	if len(claims) == 0 {
		return 0.3
	}
	var sum float64
	supported := 0
	for _, c := range claims {
		sum += c.Confidence
		if c.Verdict == models.VerdictSupported {
			supported++
		}
	}
	n := float64(len(claims))
	return math.Min(0.95, sum/n+float64(supported)/n*0.1)
}

// OverallGrade is used when the model omits an evidence grade.
func OverallGrade(claims []models.Claim) models.EvidenceGrade {
	if len(claims) == 0 {
		return models.GradeD
	}
	var a, b float64
	for _, c := range claims {
		switch c.EvidenceGrade {
		case models.GradeA:
			a++
		case models.GradeB:
			b++
		}
	}
	n := float64(len(claims))
	switch {
	case a >= n*0.5:
		return models.GradeA
	case a+b >= n*0.5:
		return models.GradeB
	case b >= n*0.3:
		return models.GradeC
	}
	return models.GradeD
}

func citationsByURL(cits []models.Citation, urls []string) []models.Citation {
	want := make(map[string]bool, len(urls))
	for _, u := range urls {
		want[u] = true
	}
	out := []models.Citation{}
	for _, c := range cits {
		if want[c.URL] {
			out = append(out, c)
		}
	}
	return out
}

func parseGrade(s string) models.EvidenceGrade {
	switch g := models.EvidenceGrade(strings.ToUpper(strings.TrimSpace(s))); g {
	case models.GradeA, models.GradeB, models.GradeC, models.GradeD:
		return g
	}
	return ""
}

func parseEvidenceLevel(s string) models.EvidenceLevel {
	switch l := models.EvidenceLevel(strings.ToLower(strings.TrimSpace(s))); l {
	case models.EvidenceHigh, models.EvidenceMedium:
		return l
	}
	return models.EvidenceLow
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
