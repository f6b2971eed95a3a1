// internal/research/email/renderer.go
package email

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"kiro-assistant/internal/models"
	"kiro-assistant/pkg/registry"
)

const (
	HTMLTemplateID = "email-html"
	TextTemplateID = "email-text"

	maxFindings  = 5
	maxCitations = 10
)

// Email is a rendered report email.
type Email struct {
	Subject string
	HTML    string
	Text    string
}

type finding struct {
	Statement string
	Sources   []models.Citation
}

// view is the data both body templates execute against.
type view struct {
	ConditionName string
	EvidenceGrade models.EvidenceGrade
	Summary       string
	Findings      []finding
	Exercises     []models.Exercise
	Warnings      []string
	NextSteps     []string
	Citations     []models.Citation
	ClinicPhone   string
}

type Renderer struct {
	html        *htmltemplate.Template
	text        *texttemplate.Template
	clinicPhone string
}

// NewRenderer parses both body templates once.
func NewRenderer(reg *registry.TemplateRegistry, clinicPhone string) (*Renderer, error) {
	htmlTmpl, err := reg.Get(HTMLTemplateID)
	if err != nil {
		return nil, err
	}
	textTmpl, err := reg.Get(TextTemplateID)
	if err != nil {
		return nil, err
	}

	r := &Renderer{clinicPhone: clinicPhone}
	if r.html, err = htmlTmpl.HTML(); err != nil {
		return nil, err
	}
	if r.text, err = textTmpl.Text(); err != nil {
		return nil, err
	}
	return r, nil
}

func Subject(conditionName string) string {
	return fmt.Sprintf("Forskning om %s - Oppdaterte anbefalinger", conditionName)
}

func (r *Renderer) Render(report *models.PatientReport) (Email, error) {
	v := view{
		ConditionName: report.Condition.Name,
		EvidenceGrade: report.EvidenceGrade,
		Summary:       report.Summary,
		Exercises:     report.Exercises,
		Warnings:      report.SafetyWarnings,
		NextSteps:     report.NextSteps,
		Citations:     report.Citations,
		ClinicPhone:   r.clinicPhone,
	}
	for i, f := range report.KeyFindings {
		if i == maxFindings {
			break
		}
		v.Findings = append(v.Findings, finding{Statement: f.Statement, Sources: f.Sources})
	}
	if len(v.Citations) > maxCitations {
		v.Citations = v.Citations[:maxCitations]
	}

	var html, text bytes.Buffer
	if err := r.html.Execute(&html, v); err != nil {
		return Email{}, fmt.Errorf("render %s: %w", HTMLTemplateID, err)
	}
	if err := r.text.Execute(&text, v); err != nil {
		return Email{}, fmt.Errorf("render %s: %w", TextTemplateID, err)
	}

	return Email{
		Subject: Subject(report.Condition.Name),
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}
