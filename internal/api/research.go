// internal/api/research.go
package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"kiro-assistant/internal/common/validation"
	"kiro-assistant/internal/models"
	"kiro-assistant/internal/research/claims"
	"kiro-assistant/internal/research/pipeline"
)

const (
	msgMissingCondition = "Missing required fields: condition.name and condition.bodyRegion"
	msgResearchFailed   = "Failed to complete research"
	maxResearchBody     = 64 << 10
)

var researchRequestSchema = validation.MustCompile(`{
  "type": "object",
  "required": ["condition"],
  "properties": {
    "patientId": {"type": "string"},
    "condition": {
      "type": "object",
      "required": ["name", "bodyRegion"],
      "properties": {
        "icd10Code": {"type": "string"},
        "name": {"type": "string", "minLength": 1},
        "symptoms": {"type": "array", "items": {"type": "string"}},
        "bodyRegion": {"type": "string", "minLength": 1},
        "severity": {"type": "string", "enum": ["mild", "moderate", "severe"]}
      }
    },
    "patientContext": {"type": "string"},
    "clinicianNotes": {"type": "string"},
    "patientEmail": {"type": "string"},
    "focus": {"type": "string", "enum": ["exercises", "studies", "treatment-options", "lifestyle", "all"]},
    "sendEmail": {"type": "boolean"},
    "existingKnowledge": {"type": "array", "items": {"type": "string"}}
  }
}`)

var conditionFields = map[string]bool{
	"condition":            true,
	"condition.name":       true,
	"condition.bodyRegion": true,
}

type findingSource struct {
	URL    string                `json:"url"`
	Source models.CitationSource `json:"source"`
}

type keyFinding struct {
	Statement     string               `json:"statement"`
	EvidenceGrade models.EvidenceGrade `json:"evidenceGrade"`
	Sources       []findingSource      `json:"sources"`
}

type reportResponse struct {
	ID             string                  `json:"id"`
	Condition      models.MedicalCondition `json:"condition"`
	Summary        string                  `json:"summary"`
	KeyFindings    []keyFinding            `json:"keyFindings"`
	Claims         []models.Claim          `json:"claims"`
	Exercises      []models.Exercise       `json:"exercises"`
	SafetyWarnings []string                `json:"safetyWarnings"`
	NextSteps      []string                `json:"nextSteps"`
	Confidence     float64                 `json:"confidence"`
	EvidenceGrade  models.EvidenceGrade    `json:"evidenceGrade"`
	ResearchedAt   time.Time               `json:"researchedAt"`
}

type metadataResponse struct {
	RequestID      string        `json:"requestId"`
	TotalCitations int           `json:"totalCitations"`
	TotalClaims    int           `json:"totalClaims"`
	ClaimStats     claims.Stats  `json:"claimStats"`
	EmailSent      bool          `json:"emailSent"`
	EmailError     *string       `json:"emailError"`
	Cached         bool          `json:"cached"`
	Cost           pipeline.Cost `json:"cost"`
}

type researchResponse struct {
	Success  bool             `json:"success"`
	Report   reportResponse   `json:"report"`
	Metadata metadataResponse `json:"metadata"`
}

func badRequest(msg string, details ...string) *errorResponse {
	return &errorResponse{Error: msg, Details: details}
}

// decodeResearchRequest validates the body against the request schema before decoding it.
func decodeResearchRequest(body []byte) (*models.ResearchRequest, *errorResponse) {
	result, err := researchRequestSchema.Validate(body)
	if err != nil {
		return nil, badRequest("Invalid JSON body")
	}
	if !result.Valid {
		for _, field := range result.Fields() {
			if conditionFields[field] {
				return nil, badRequest(msgMissingCondition)
			}
		}
		return nil, badRequest("Invalid request", result.GetErrorMessages()...)
	}

	var req models.ResearchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, badRequest("Invalid JSON body")
	}
	if strings.TrimSpace(req.Condition.Name) == "" || strings.TrimSpace(req.Condition.BodyRegion) == "" {
		return nil, badRequest(msgMissingCondition)
	}
	if req.SendEmail && req.PatientEmail != "" && !validation.ValidateEmail(req.PatientEmail) {
		return nil, badRequest("Invalid patientEmail")
	}
	if req.Condition.Symptoms == nil {
		req.Condition.Symptoms = []string{}
	}
	return &req, nil
}

func (s *Server) research(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxResearchBody))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON body")
	}
	req, invalid := decodeResearchRequest(body)
	if invalid != nil {
		return c.JSON(http.StatusBadRequest, invalid)
	}

	id := requestID(c)
	result, err := s.deps.Research.Run(c.Request().Context(), id, req)
	if err != nil {
		s.logger.Error("patient research failed", map[string]interface{}{
			"requestId": id,
			"error":     err.Error(),
		})
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: msgResearchFailed})
	}

	return c.JSON(http.StatusOK, toResearchResponse(result))
}

func toResearchResponse(result *pipeline.Result) researchResponse {
	r := result.Report
	report := reportResponse{
		ID:             r.ID,
		Condition:      r.Condition,
		Summary:        r.Summary,
		KeyFindings:    make([]keyFinding, 0, len(r.KeyFindings)),
		Claims:         r.Claims,
		Exercises:      r.Exercises,
		SafetyWarnings: r.SafetyWarnings,
		NextSteps:      r.NextSteps,
		Confidence:     r.Confidence,
		EvidenceGrade:  r.EvidenceGrade,
		ResearchedAt:   r.ResearchedAt,
	}
	for _, f := range r.KeyFindings {
		kf := keyFinding{Statement: f.Statement, EvidenceGrade: f.EvidenceGrade, Sources: []findingSource{}}
		for _, src := range f.Sources {
			kf.Sources = append(kf.Sources, findingSource{URL: src.URL, Source: src.Source})
		}
		report.KeyFindings = append(report.KeyFindings, kf)
	}

	m := result.Metadata
	meta := metadataResponse{
		RequestID:      m.RequestID,
		TotalCitations: m.TotalCitations,
		TotalClaims:    m.TotalClaims,
		ClaimStats:     m.ClaimStats,
		EmailSent:      m.EmailSent,
		Cached:         m.Cached,
		Cost:           m.Cost,
	}
	if m.EmailError != "" {
		emailErr := m.EmailError
		meta.EmailError = &emailErr
	}

	return researchResponse{Success: true, Report: report, Metadata: meta}
}

func (s *Server) researchStatus(c echo.Context) error {
	st := s.deps.Status
	generationKey := "missing"
	if st.GenerationConfigured {
		generationKey = "configured"
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "operational",
		"service": "patient-research",
		"version": st.Version,
		"capabilities": map[string]bool{
			"research":         true,
			"claimsExtraction": true,
			"reportSynthesis":  true,
			"emailGeneration":  true,
			"emailSending":     st.EmailEnabled,
		},
		"configuration": map[string]string{
			"emailProvider":    st.EmailProvider,
			"generationApiKey": generationKey,
		},
	})
}
