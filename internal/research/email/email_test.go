package email

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	awsclient "kiro-assistant/internal/common/aws"
	apperrors "kiro-assistant/internal/common/errors"
	"kiro-assistant/internal/common/logger"
	"kiro-assistant/internal/models"
	"kiro-assistant/pkg/registry"
)

// ==========================
// Mock Implementations
// ==========================

type MockSESService struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func (m *MockSESService) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	return m.SendEmailFunc(ctx, params, optFns...)
}

// ==========================
// Test Helper Functions
// ==========================

const testPhone = "+47 400 95 900"

func createTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	reg, err := registry.LoadRegistry(filepath.Join("..", "..", "..", "configs", "template-registry.yaml"))
	require.NoError(t, err)
	r, err := NewRenderer(reg, testPhone)
	require.NoError(t, err)
	return r
}

func createTestReport() *models.PatientReport {
	pubmed := models.Citation{URL: "https://pubmed.ncbi.nlm.nih.gov/111/", Source: models.SourcePubMed}
	report := &models.PatientReport{
		Condition:     models.MedicalCondition{Name: "Nakkesmerter", BodyRegion: "nakke"},
		Summary:       "Trening hjelper <b>mye</b>.",
		EvidenceGrade: models.GradeB,
		Exercises: []models.Exercise{
			{Name: "Haketrekk", Description: "Trekk haken inn", Frequency: "3x daglig", Duration: "2 min", SafetyNotes: []string{"Stopp ved svimmelhet"}},
		},
		SafetyWarnings: []string{"Kontakt lege ved nummenhet"},
		NextSteps:      []string{"Start rolig", "Bestill oppfølging"},
	}
	for i := 1; i <= 7; i++ {
		report.KeyFindings = append(report.KeyFindings, models.Claim{
			Statement: fmt.Sprintf("Funn %d", i),
			Sources:   []models.Citation{pubmed},
		})
	}
	for i := 1; i <= 12; i++ {
		report.Citations = append(report.Citations, models.Citation{
			URL:    fmt.Sprintf("https://example.com/kilde-%d", i),
			Source: models.SourceOther,
		})
	}
	return report
}

// ==========================
// Renderer
// ==========================

func TestRender_Subject(t *testing.T) {
	e, err := createTestRenderer(t).Render(createTestReport())
	require.NoError(t, err)
	assert.Equal(t, "Forskning om Nakkesmerter - Oppdaterte anbefalinger", e.Subject)
}

func TestRender_HTML(t *testing.T) {
	e, err := createTestRenderer(t).Render(createTestReport())
	require.NoError(t, err)

	assert.Contains(t, e.HTML, "🔬 Forskning om Nakkesmerter")
	assert.Contains(t, e.HTML, `<span class="evidence-badge">B</span>`)
	assert.Contains(t, e.HTML, "Trening hjelper &lt;b&gt;mye&lt;/b&gt;.")
	assert.Contains(t, e.HTML, "<h3>Funn 5</h3>")
	assert.NotContains(t, e.HTML, "Funn 6")
	assert.Contains(t, e.HTML, `<a href="https://pubmed.ncbi.nlm.nih.gov/111/">pubmed</a>`)
	assert.Contains(t, e.HTML, "<strong>Hyppighet:</strong> 3x daglig")
	assert.Contains(t, e.HTML, "<li>Stopp ved svimmelhet</li>")
	assert.Contains(t, e.HTML, `<div class="warning">Kontakt lege ved nummenhet</div>`)
	assert.Contains(t, e.HTML, "<li>Start rolig</li><li>Bestill oppfølging</li>")
	assert.Contains(t, e.HTML, "kilde-10")
	assert.NotContains(t, e.HTML, "kilde-11")
	assert.Contains(t, e.HTML, "Ring oss på <strong>+47 400 95 900</strong>")
}

func TestRender_Text(t *testing.T) {
	e, err := createTestRenderer(t).Render(createTestReport())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(e.Text, "FORSKNING OM NAKKESMERTER\nEvidensgrad: B\n"))
	assert.Contains(t, e.Text, "OPPSUMMERING\nTrening hjelper <b>mye</b>.")
	assert.Contains(t, e.Text, "VIKTIGSTE FUNN\n1. Funn 1\n")
	assert.Contains(t, e.Text, "5. Funn 5")
	assert.NotContains(t, e.Text, "Funn 6")
	assert.Contains(t, e.Text, "ANBEFALTE ØVELSER\n1. Haketrekk\n   Trekk haken inn\n   Hyppighet: 3x daglig\n   Varighet: 2 min")
	assert.Contains(t, e.Text, "VIKTIGE VARSLER\n1. Kontakt lege ved nummenhet")
	assert.Contains(t, e.Text, "NESTE STEG\n1. Start rolig\n2. Bestill oppfølging")
	assert.Contains(t, e.Text, "10. https://example.com/kilde-10 (other)")
	assert.NotContains(t, e.Text, "kilde-11")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(e.Text), "Generert av Kiro AI | Ring oss: +47 400 95 900"))
}

func TestRender_OptionalSectionsOmitted(t *testing.T) {
	report := &models.PatientReport{
		Condition:     models.MedicalCondition{Name: "Kne"},
		Summary:       "Lite forskning funnet.",
		EvidenceGrade: models.GradeD,
		NextSteps:     []string{"Ring klinikken"},
	}

	e, err := createTestRenderer(t).Render(report)
	require.NoError(t, err)

	assert.NotContains(t, e.HTML, "Viktigste funn")
	assert.NotContains(t, e.HTML, "Anbefalte øvelser")
	assert.NotContains(t, e.HTML, "Viktige varsler")
	assert.Contains(t, e.HTML, "Neste steg")
	assert.NotContains(t, e.Text, "VIKTIGSTE FUNN")
	assert.NotContains(t, e.Text, "KILDER")
	assert.Contains(t, e.Text, "NESTE STEG\n1. Ring klinikken")
}

func TestNewRenderer_MissingTemplate(t *testing.T) {
	reg, err := registry.Parse([]byte(`
version: "1"
templates:
  - id: email-text
    description: text only
    version: "1"
    format: text
    body: "hei"
`))
	require.NoError(t, err)

	_, err = NewRenderer(reg, testPhone)
	assert.ErrorIs(t, err, registry.ErrTemplateNotFound)
}

// ==========================
// Sender
// ==========================

func TestSend_Success(t *testing.T) {
	var captured *ses.SendEmailInput
	mock := &MockSESService{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			captured = params
			return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
		},
	}
	sender := NewSender(awsclient.NewSESClientFrom(mock), "Kiro AI <ai@klinikk.no>", "kontakt@klinikk.no", logger.NewTestLogger(t))

	err := sender.Send(context.Background(), "pasient@example.com", Email{Subject: "Emne", HTML: "<p>hei</p>", Text: "hei"})
	require.NoError(t, err)

	require.NotNil(t, captured)
	assert.Equal(t, []string{"pasient@example.com"}, captured.Destination.ToAddresses)
	assert.Equal(t, []string{"kontakt@klinikk.no"}, captured.ReplyToAddresses)
	assert.Equal(t, "Kiro AI <ai@klinikk.no>", aws.ToString(captured.Source))
	assert.Equal(t, "Emne", aws.ToString(captured.Message.Subject.Data))
	assert.Equal(t, "<p>hei</p>", aws.ToString(captured.Message.Body.Html.Data))
	assert.Equal(t, "hei", aws.ToString(captured.Message.Body.Text.Data))
	assert.Equal(t, "UTF-8", aws.ToString(captured.Message.Body.Text.Charset))
}

func TestSend_NoReplyTo(t *testing.T) {
	var captured *ses.SendEmailInput
	mock := &MockSESService{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			captured = params
			return &ses.SendEmailOutput{}, nil
		},
	}
	sender := NewSender(awsclient.NewSESClientFrom(mock), "ai@klinikk.no", "", logger.NewNoOpLogger())

	require.NoError(t, sender.Send(context.Background(), "a@b.no", Email{Subject: "s"}))
	assert.Empty(t, captured.ReplyToAddresses)
}

func TestSend_Failure(t *testing.T) {
	mock := &MockSESService{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			return nil, errors.New("MessageRejected: Email address is not verified")
		},
	}
	sender := NewSender(awsclient.NewSESClientFrom(mock), "ai@klinikk.no", "", logger.NewTestLogger(t))

	err := sender.Send(context.Background(), "pasient@example.com", Email{Subject: "s"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmailSendFailed)

	var se *apperrors.StandardError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, apperrors.ErrCodeEmailSendFailed, se.Code)
	assert.Equal(t, "pasient@example.com", se.Metadata["recipient"])
}
