// internal/research/claims/extractor.go
package claims

import (
	"math"
	"strings"

	"github.com/google/uuid"

	"kiro-assistant/internal/common/config"
	"kiro-assistant/internal/common/logger"
	"kiro-assistant/internal/models"
	"kiro-assistant/internal/research/llmjson"
)

type researchJSON struct {
	KeyFindings []struct {
		Claim         string   `json:"claim"`
		EvidenceLevel string   `json:"evidence_level"`
		Sources       []string `json:"sources"`
	} `json:"key_findings"`
	Exercises []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Evidence    string `json:"evidence"`
	} `json:"exercises"`
	LifestyleRecommendations []string `json:"lifestyle_recommendations"`
}

// Extractor turns research output into verifiable claims.
type Extractor struct {
	cfg    config.GradingConfig
	logger logger.Logger
}

func NewExtractor(cfg config.GradingConfig, log logger.Logger) *Extractor {
	return &Extractor{cfg: cfg, logger: log.With(map[string]interface{}{"stage": "claims"})}
}

// Extract never fails: output without a parseable JSON block yields an empty list.
func (e *Extractor) Extract(result *models.ResearchResult) []models.Claim {
	out := []models.Claim{}

	var parsed researchJSON
	if err := llmjson.Decode(result.Findings, &parsed); err != nil {
		e.logger.Warn("research output has no usable JSON, no claims extracted", map[string]interface{}{
			"error": err.Error(),
		})
		return out
	}

	for _, f := range parsed.KeyFindings {
		if strings.TrimSpace(f.Claim) == "" {
			continue
		}
		sources := citationsMatchingAny(result.Citations, f.Sources)
		grade := parseGrade(f.EvidenceLevel)
		if grade == "" {
			grade = result.EvidenceGrade
		}
		out = append(out, models.Claim{
			ID:            uuid.NewString(),
			Type:          models.ClaimTreatmentEfficacy,
			Statement:     f.Claim,
			Sources:       sources,
			Confidence:    e.findingConfidence(sources),
			Verdict:       findingVerdict(sources, grade),
			EvidenceGrade: grade,
		})
	}

	for _, ex := range parsed.Exercises {
		if strings.TrimSpace(ex.Name) == "" {
			continue
		}
		var sources []models.Citation
		if ex.Evidence != "" {
			sources = citationsMatchingAny(result.Citations, []string{ex.Evidence})
		}
		claim := models.Claim{
			ID:            uuid.NewString(),
			Type:          models.ClaimExerciseBenefit,
			Statement:     ex.Name + ": " + ex.Description,
			Sources:       nonNil(sources),
			Confidence:    0.5,
			Verdict:       models.VerdictPlausible,
			EvidenceGrade: models.GradeC,
		}
		if ex.Evidence != "" {
			claim.Confidence = 0.8
			claim.EvidenceGrade = models.GradeB
		}
		if len(sources) > 0 {
			claim.Verdict = models.VerdictSupported
		}
		out = append(out, claim)
	}

	for _, rec := range parsed.LifestyleRecommendations {
		if strings.TrimSpace(rec) == "" {
			continue
		}
		out = append(out, models.Claim{
			ID:            uuid.NewString(),
			Type:          models.ClaimRiskFactor,
			Statement:     rec,
			Sources:       nonNil(append([]models.Citation(nil), result.Citations...)),
			Confidence:    0.7,
			Verdict:       models.VerdictPlausible,
			EvidenceGrade: models.GradeC,
		})
	}

	e.logger.Info("claims extracted", map[string]interface{}{"claims": len(out)})
	return out
}

func (e *Extractor) findingConfidence(sources []models.Citation) float64 {
	if len(sources) == 0 {
		return e.cfg.EmptyConfidence
	}
	bonus := math.Min(e.cfg.SourceBonusCap, e.cfg.SourceBonus*float64(len(sources)))
	return math.Min(e.cfg.ConfidenceCap, averageConfidence(sources)+bonus)
}

func findingVerdict(sources []models.Citation, grade models.EvidenceGrade) models.Verdict {
	if len(sources) == 0 {
		return models.VerdictUnknown
	}
	tier1 := 0
	for _, s := range sources {
		if s.IsTier1() {
			tier1++
		}
	}
	avg := averageConfidence(sources)

	switch {
	case tier1 >= 2 && grade == models.GradeA:
		return models.VerdictSupported
	case tier1 >= 1 || (len(sources) >= 2 && avg >= 0.8):
		return models.VerdictSupported
	case avg >= 0.7:
		return models.VerdictPlausible
	}
	return models.VerdictUnknown
}

// citationsMatchingAny keeps citations whose URL contains one of refs.
func citationsMatchingAny(cits []models.Citation, refs []string) []models.Citation {
	out := []models.Citation{}
	for _, c := range cits {
		for _, ref := range refs {
			if ref = strings.TrimSpace(ref); ref != "" && strings.Contains(c.URL, ref) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func averageConfidence(cits []models.Citation) float64 {
	if len(cits) == 0 {
		return 0
	}
	var sum float64
	for _, c := range cits {
		sum += c.Confidence
	}
	return sum / float64(len(cits))
}

func parseGrade(s string) models.EvidenceGrade {
	switch g := models.EvidenceGrade(strings.ToUpper(strings.TrimSpace(s))); g {
	case models.GradeA, models.GradeB, models.GradeC, models.GradeD:
		return g
	}
	return ""
}

func nonNil(cits []models.Citation) []models.Citation {
	if cits == nil {
		return []models.Citation{}
	}
	return cits
}
