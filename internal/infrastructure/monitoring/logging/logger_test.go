package logging

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved(level zapcore.Level) (Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return NewLoggerFromCore(core), logs
}

func TestLoggerEmitsFields(t *testing.T) {
	log, logs := newObserved(zapcore.DebugLevel)

	log.Info("analysis started",
		String("mode", "point"),
		Int("locations", 3),
		Duration("timeout", 10*time.Second),
	)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "analysis started", entry.Message)

	fields := entry.ContextMap()
	assert.Equal(t, "point", fields["mode"])
	assert.Equal(t, int64(3), fields["locations"])
}

func TestLoggerLevelFiltering(t *testing.T) {
	log, logs := newObserved(zapcore.WarnLevel)

	log.Debug("dropped")
	log.Info("dropped")
	log.Warn("kept")
	log.Error("kept")

	assert.Equal(t, 2, logs.Len())
}

func TestWithAddsPersistentFields(t *testing.T) {
	log, logs := newObserved(zapcore.InfoLevel)

	child := log.With(String("session_id", "abc-123"))
	child.Info("first")
	child.Info("second")
	log.Info("parent untouched")

	all := logs.All()
	require.Len(t, all, 3)
	assert.Equal(t, "abc-123", all[0].ContextMap()["session_id"])
	assert.Equal(t, "abc-123", all[1].ContextMap()["session_id"])
	assert.NotContains(t, all[2].ContextMap(), "session_id")
}

func TestNamedLogger(t *testing.T) {
	log, logs := newObserved(zapcore.InfoLevel)

	log.Named("engine").Named("heatmap").Info("rendered")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "engine.heatmap", logs.All()[0].LoggerName)
}

func TestErrField(t *testing.T) {
	log, logs := newObserved(zapcore.InfoLevel)

	log.Error("boundary call failed", Err(errors.New("connection refused")))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "connection refused", logs.All()[0].ContextMap()["error"])
}

func TestNewLoggerDefaults(t *testing.T) {
	log, err := NewLogger(Config{})
	require.NoError(t, err)
	require.NotNil(t, log)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("WARN"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("bogus"))
}

func TestNopLoggerIsSilentAndChainable(t *testing.T) {
	log := NewNopLogger()
	log.Info("discarded")
	log.With(String("k", "v")).Named("sub").Error("also discarded")
}
