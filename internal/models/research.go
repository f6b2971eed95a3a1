// internal/models/research.go
package models

import "time"

type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

type Focus string

const (
	FocusExercises        Focus = "exercises"
	FocusStudies          Focus = "studies"
	FocusTreatmentOptions Focus = "treatment-options"
	FocusLifestyle        Focus = "lifestyle"
	FocusAll              Focus = "all"
)

type MedicalCondition struct {
	ICD10Code  string   `json:"icd10Code,omitempty"`
	Name       string   `json:"name"`
	Symptoms   []string `json:"symptoms"`
	BodyRegion string   `json:"bodyRegion"`
	Severity   Severity `json:"severity,omitempty"`
}

// ResearchRequest is the input of the research pipeline, from HTTP, CLI or a workflow job.
type ResearchRequest struct {
	PatientID         string           `json:"patientId,omitempty"`
	Condition         MedicalCondition `json:"condition"`
	PatientContext    string           `json:"patientContext,omitempty"`
	ClinicianNotes    string           `json:"clinicianNotes,omitempty"`
	PatientEmail      string           `json:"patientEmail,omitempty"`
	Focus             Focus            `json:"focus,omitempty"`
	SendEmail         bool             `json:"sendEmail,omitempty"`
	ExistingKnowledge []string         `json:"existingKnowledge,omitempty"`
}

type CitationSource string

const (
	SourcePubMed          CitationSource = "pubmed"
	SourceCochrane        CitationSource = "cochrane"
	SourceJournal         CitationSource = "journal"
	SourceHealthAuthority CitationSource = "health-authority"
	SourceTrustedHealth   CitationSource = "trusted-health"
	SourceOther           CitationSource = "other"
)

type Verdict string

const (
	VerdictSupported Verdict = "supported"
	VerdictPlausible Verdict = "plausible"
	VerdictRefuted   Verdict = "refuted"
	VerdictUnknown   Verdict = "unknown"
)

// EvidenceGrade: A = systematic reviews/RCTs, B = cohort, C = case series, D = expert opinion.
type EvidenceGrade string

const (
	GradeA EvidenceGrade = "A"
	GradeB EvidenceGrade = "B"
	GradeC EvidenceGrade = "C"
	GradeD EvidenceGrade = "D"
)

type Citation struct {
	URL        string         `json:"url"`
	Title      string         `json:"title"`
	Source     CitationSource `json:"source"`
	Snippet    string         `json:"snippet"`
	Confidence float64        `json:"confidence"`
	Verdict    Verdict        `json:"verdict"`
}

// IsTier1 reports PubMed and Cochrane citations.
func (c Citation) IsTier1() bool {
	return c.Source == SourcePubMed || c.Source == SourceCochrane
}

type ClaimType string

const (
	ClaimTreatmentEfficacy  ClaimType = "treatment-efficacy"
	ClaimExerciseBenefit    ClaimType = "exercise-benefit"
	ClaimRiskFactor         ClaimType = "risk-factor"
	ClaimSymptomCorrelation ClaimType = "symptom-correlation"
	ClaimRecoveryTimeline   ClaimType = "recovery-timeline"
)

type Claim struct {
	ID            string        `json:"id"`
	Type          ClaimType     `json:"type"`
	Statement     string        `json:"statement"`
	Sources       []Citation    `json:"sources"`
	Confidence    float64       `json:"confidence"`
	Verdict       Verdict       `json:"verdict"`
	EvidenceGrade EvidenceGrade `json:"evidenceGrade"`
}

type EvidenceLevel string

const (
	EvidenceHigh   EvidenceLevel = "high"
	EvidenceMedium EvidenceLevel = "medium"
	EvidenceLow    EvidenceLevel = "low"
)

type Exercise struct {
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	Frequency     string        `json:"frequency"`
	Duration      string        `json:"duration"`
	SafetyNotes   []string      `json:"safetyNotes"`
	EvidenceLevel EvidenceLevel `json:"evidenceLevel"`
}

// ResearchResult is the output of the web research stage.
type ResearchResult struct {
	Findings      string        `json:"findings"`
	Citations     []Citation    `json:"citations"`
	Exercises     []Exercise    `json:"exercises"`
	Confidence    float64       `json:"confidence"`
	Model         string        `json:"model"`
	Tokens        int           `json:"tokens"`
	DurationMS    int64         `json:"duration_ms"`
	EvidenceGrade EvidenceGrade `json:"evidenceGrade"`
}

type PatientReport struct {
	ID             string           `json:"id"`
	Condition      MedicalCondition `json:"condition"`
	Summary        string           `json:"summary"`
	KeyFindings    []Claim          `json:"keyFindings"`
	Claims         []Claim          `json:"claims"`
	Exercises      []Exercise       `json:"exercises"`
	Citations      []Citation       `json:"citations"`
	SafetyWarnings []string         `json:"safetyWarnings"`
	NextSteps      []string         `json:"nextSteps"`
	ResearchedAt   time.Time        `json:"researchedAt"`
	Confidence     float64          `json:"confidence"`
	EvidenceGrade  EvidenceGrade    `json:"evidenceGrade"`
}
