// internal/workers/research/patient-research/models.go
package patientresearch

import "kiro-assistant/internal/models"

// Input is the job's variables: a research request plus an optional correlation id.
type Input struct {
	RequestID string `json:"requestId"`
	models.ResearchRequest
}

type Output struct {
	RequestID      string                `json:"requestId"`
	ReportID       string                `json:"reportId"`
	EvidenceGrade  models.EvidenceGrade  `json:"evidenceGrade"`
	Confidence     float64               `json:"confidence"`
	TotalClaims    int                   `json:"totalClaims"`
	TotalCitations int                   `json:"totalCitations"`
	EmailSent      bool                  `json:"emailSent"`
	EmailError     string                `json:"emailError,omitempty"`
	Cached         bool                  `json:"cached"`
	CostTotal      float64               `json:"costTotal"`
	Report         *models.PatientReport `json:"report"`
}
