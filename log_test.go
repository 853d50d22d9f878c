package videoreader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSeverity_ZapLevel(t *testing.T) {
	tests := []struct {
		s    Severity
		want zapcore.Level
	}{
		{SeverityFatal, zapcore.ErrorLevel},
		{SeverityError, zapcore.ErrorLevel},
		{SeverityWarning, zapcore.WarnLevel},
		{SeverityInfo, zapcore.InfoLevel},
		{SeverityDebug, zapcore.DebugLevel},
		{Severity(17), zapcore.DebugLevel},
	}
	for _, tt := range tests {
		t.Run(tt.s.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.s.ZapLevel())
		})
	}
}

func TestZapSink(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sink := ZapSink(zap.New(core))

	sink(SeverityFatal, "could not open codec\n")
	sink(SeverityInfo, "Input #0, matroska,webm")
	sink(SeverityDebug, "filtered by level\n")

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, "could not open codec", entries[0].Message)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "fatal", entries[0].ContextMap()["severity"])
	assert.Equal(t, "Input #0, matroska,webm", entries[1].Message)
}

func TestSetLogger(t *testing.T) {
	t.Cleanup(func() { SetLogger(nil) })

	core, logs := observer.New(zapcore.InfoLevel)
	SetLogger(zap.New(core))
	Logger().Info("routed")
	assert.Equal(t, 1, logs.FilterMessage("routed").Len())

	SetLogger(nil)
	require.NotNil(t, Logger())
	assert.NotPanics(t, func() { Logger().With(zap.String("session", "x")).Info("dropped") })
	assert.Equal(t, 0, logs.FilterMessage("dropped").Len())
}

func TestSetLogger_Concurrent(t *testing.T) {
	t.Cleanup(func() { SetLogger(nil) })

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			Logger().Debug("reader was not closed")
		}
	}()
	for i := 0; i < 1000; i++ {
		SetLogger(zap.NewNop())
	}
	<-done
}
