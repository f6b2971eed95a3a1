package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"info", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestZapAdapter_FieldsAndChildren(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core))

	child := log.WithFields(map[string]interface{}{"requestId": "req-1"})
	child.Info("chat completed", map[string]interface{}{"articles": 2})
	log.WithError(errors.New("boom")).Error("generation failed", nil)
	log.With(map[string]interface{}{"component": "scorer"}).Debug("scored", nil)

	require.Equal(t, 3, logs.Len())

	first := logs.All()[0]
	assert.Equal(t, "chat completed", first.Message)
	ctx := first.ContextMap()
	assert.Equal(t, "req-1", ctx["requestId"])
	assert.EqualValues(t, 2, ctx["articles"])

	second := logs.All()[1]
	assert.Equal(t, zapcore.ErrorLevel, second.Level)
	assert.Equal(t, "boom", second.ContextMap()["error"])

	assert.Equal(t, "scorer", logs.All()[2].ContextMap()["component"])
}

func TestNoOpAndTestLoggers(t *testing.T) {
	assert.NotPanics(t, func() {
		NewNoOpLogger().Info("ignored", map[string]interface{}{"k": "v"})
		NewTestLogger(t).Warn("visible in -v output", nil)
		NewStructured("debug", "json").Debug("structured", nil)
	})
}
