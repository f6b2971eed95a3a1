package observability

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpan_RecordsStages(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	obs := New("kiro-assistant-test",
		WithRegisterer(prometheus.NewRegistry()),
		WithSpanProcessor(recorder),
	)
	t.Cleanup(obs.Shutdown)

	ctx, parent := obs.StartSpan(context.Background(), "research.pipeline")
	_, child := obs.StartSpan(ctx, "research.web", attribute.String("condition", "Kne"))
	child.End()
	parent.End()

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "research.web", spans[0].Name())
	assert.Equal(t, "research.pipeline", spans[1].Name())
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
}

func TestRecorders_DoNotPanic(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := New("kiro-assistant-test", WithRegisterer(reg))
	t.Cleanup(obs.Shutdown)

	ctx := context.Background()
	obs.RecordJobProcessed(ctx, "patient-research", "completed")
	obs.RecordJobDuration(ctx, "patient-research", 120*time.Millisecond, "completed")
	obs.RecordStage(ctx, "synthesize", 30*time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilObservability(t *testing.T) {
	var obs *Observability
	ctx, span := obs.StartSpan(context.Background(), "noop")
	assert.NotNil(t, ctx)
	span.End()
	obs.RecordStage(ctx, "noop", time.Millisecond)
	obs.Shutdown()
}
