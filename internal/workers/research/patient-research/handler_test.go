package patientresearch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kiro-assistant/internal/common/config"
	apperrors "kiro-assistant/internal/common/errors"
	"kiro-assistant/internal/common/logger"
	"kiro-assistant/internal/generation"
	"kiro-assistant/internal/models"
	"kiro-assistant/internal/research/pipeline"
	"kiro-assistant/internal/research/synthesizer"
)

// ==========================
// Mock Implementations
// ==========================

type MockRunner struct {
	RunFunc func(ctx context.Context, requestID string, req *models.ResearchRequest) (*pipeline.Result, error)
}

func (m *MockRunner) Run(ctx context.Context, requestID string, req *models.ResearchRequest) (*pipeline.Result, error) {
	return m.RunFunc(ctx, requestID, req)
}

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second, MaxJobsActive: 1}
}

func createTestHandler(t *testing.T, runner Runner) *Handler {
	return NewHandler(createTestConfig(), runner, nil, logger.NewTestLogger(t))
}

func createTestResult(requestID string) *pipeline.Result {
	return &pipeline.Result{
		Report: &models.PatientReport{
			ID:            "report-1",
			Condition:     models.MedicalCondition{Name: "Nakkesmerter", BodyRegion: "nakke", Symptoms: []string{}},
			Summary:       "Trening hjelper.",
			Confidence:    0.84,
			EvidenceGrade: models.GradeB,
		},
		Metadata: pipeline.Metadata{
			RequestID:      requestID,
			TotalCitations: 3,
			TotalClaims:    4,
			EmailSent:      true,
			Cost:           pipeline.Cost{Research: 0.0015, Synthesis: 0.001, Total: 0.0025},
		},
	}
}

// ==========================
// Input
// ==========================

func TestParseInput(t *testing.T) {
	tests := []struct {
		name      string
		variables string
		wantErr   bool
		validate  func(t *testing.T, in *Input)
	}{
		{
			name:      "full request",
			variables: `{"requestId":"req-9","patientId":"p1","condition":{"name":" Nakkesmerter ","bodyRegion":"nakke","severity":"mild"},"focus":"exercises","patientEmail":"pasient@example.com","sendEmail":true}`,
			validate: func(t *testing.T, in *Input) {
				assert.Equal(t, "req-9", in.RequestID)
				assert.Equal(t, "p1", in.PatientID)
				assert.Equal(t, "Nakkesmerter", in.Condition.Name)
				assert.Equal(t, models.FocusExercises, in.Focus)
				assert.True(t, in.SendEmail)
				assert.Equal(t, []string{}, in.Condition.Symptoms)
			},
		},
		{
			name:      "minimal request",
			variables: `{"condition":{"name":"Kne","bodyRegion":"kne"}}`,
			validate: func(t *testing.T, in *Input) {
				assert.Empty(t, in.RequestID)
				assert.Empty(t, in.Focus)
			},
		},
		{name: "malformed json", variables: `{"condition":`, wantErr: true},
		{name: "missing condition", variables: `{"patientId":"p1"}`, wantErr: true},
		{name: "blank body region", variables: `{"condition":{"name":"Kne","bodyRegion":"  "}}`, wantErr: true},
		{name: "invalid email", variables: `{"condition":{"name":"Kne","bodyRegion":"kne"},"sendEmail":true,"patientEmail":"nope"}`, wantErr: true},
		{name: "invalid email ignored without sendEmail", variables: `{"condition":{"name":"Kne","bodyRegion":"kne"},"patientEmail":"nope"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := ParseInput(tt.variables)
			if tt.wantErr {
				require.Error(t, err)
				stdErr := apperrors.AsStandardError(err)
				assert.Equal(t, apperrors.ErrCodeInvalidInput, stdErr.Code)
				assert.False(t, stdErr.Retryable)
				return
			}
			require.NoError(t, err)
			if tt.validate != nil {
				tt.validate(t, in)
			}
		})
	}
}

// ==========================
// Execute
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	var gotID string
	var gotReq *models.ResearchRequest
	h := createTestHandler(t, &MockRunner{RunFunc: func(ctx context.Context, requestID string, req *models.ResearchRequest) (*pipeline.Result, error) {
		gotID, gotReq = requestID, req
		return createTestResult(requestID), nil
	}})

	in, err := ParseInput(`{"requestId":"req-1","condition":{"name":"Nakkesmerter","bodyRegion":"nakke"},"sendEmail":true,"patientEmail":"pasient@example.com"}`)
	require.NoError(t, err)

	out, err := h.Execute(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, "req-1", gotID)
	assert.Equal(t, "Nakkesmerter", gotReq.Condition.Name)
	assert.Equal(t, "req-1", out.RequestID)
	assert.Equal(t, "report-1", out.ReportID)
	assert.Equal(t, models.GradeB, out.EvidenceGrade)
	assert.Equal(t, 4, out.TotalClaims)
	assert.Equal(t, 3, out.TotalCitations)
	assert.True(t, out.EmailSent)
	assert.InDelta(t, 0.0025, out.CostTotal, 1e-12)
	assert.Equal(t, "Trening hjelper.", out.Report.Summary)
}

func TestHandler_Execute_GeneratesRequestID(t *testing.T) {
	h := createTestHandler(t, &MockRunner{RunFunc: func(ctx context.Context, requestID string, req *models.ResearchRequest) (*pipeline.Result, error) {
		return createTestResult(requestID), nil
	}})

	out, err := h.Execute(context.Background(), &Input{ResearchRequest: models.ResearchRequest{
		Condition: models.MedicalCondition{Name: "Kne", BodyRegion: "kne"},
	}})
	require.NoError(t, err)
	assert.Len(t, out.RequestID, 36)
}

func TestHandler_Execute_FailureClassification(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		expectedCode  apperrors.ErrorCode
		expectedRetry bool
	}{
		{
			name: "research generation timeout",
			err: &pipeline.StageError{Stage: pipeline.StageResearching, Err: &generation.GenerationFailure{
				Op: "research", Retryable: true, Err: fmt.Errorf("%w: deadline", generation.ErrGenerationTimeout),
			}},
			expectedCode:  apperrors.ErrCodeGenerationTimeout,
			expectedRetry: true,
		},
		{
			name: "synthesis failure",
			err: &pipeline.StageError{Stage: pipeline.StageSynthesizing, Err: apperrors.NewSynthesisFailedError(
				fmt.Errorf("%w: no json", synthesizer.ErrSynthesisFailed),
			)},
			expectedCode:  apperrors.ErrCodeSynthesisFailed,
			expectedRetry: true,
		},
		{
			name:          "unexpected",
			err:           errors.New("boom"),
			expectedCode:  apperrors.ErrCodeInternal,
			expectedRetry: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := createTestHandler(t, &MockRunner{RunFunc: func(context.Context, string, *models.ResearchRequest) (*pipeline.Result, error) {
				return nil, tt.err
			}})

			_, err := h.Execute(context.Background(), &Input{})
			require.Error(t, err)

			stdErr := apperrors.AsStandardError(err)
			assert.Equal(t, tt.expectedCode, stdErr.Code)
			assert.Equal(t, tt.expectedRetry, stdErr.Retryable)

			bpmn := apperrors.ConvertToBPMNError(stdErr)
			if tt.expectedRetry {
				assert.Greater(t, bpmn.Retries, 0)
			} else {
				assert.Zero(t, bpmn.Retries)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Workers = map[string]config.WorkerConfig{
		TaskType: {Enabled: true, MaxJobsActive: 2, Timeout: 90000, MaxRetries: 3},
	}

	wc := LoadConfig(cfg)
	assert.Equal(t, 90*time.Second, wc.Timeout)
	assert.Equal(t, 2, wc.MaxJobsActive)
}
