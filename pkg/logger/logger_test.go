package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLoggerLevels(t *testing.T) {
	log, err := NewLogger("debug", "development")
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))

	log, err = NewLogger("not-a-level", EnvProduction)
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
}

func TestBaseConfigEncoding(t *testing.T) {
	assert.Equal(t, "json", baseConfig(EnvProduction).Encoding)
	assert.Equal(t, "console", baseConfig("development").Encoding)
	assert.Equal(t, "timestamp", baseConfig(EnvProduction).EncoderConfig.TimeKey)
}

func TestServiceAndComponentFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := WithComponent(WithService(zap.New(core), "query-service"), "analytics")

	log.Info("Overview computed", zap.String("period", "today"))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "query-service", fields["service"])
	assert.Equal(t, "analytics", fields["component"])
	assert.Equal(t, "today", fields["period"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.WarnLevel, ParseLevel(" warn "))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel(""))
}

func TestWithRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	WithRequestID(base, "").Info("no id")
	WithRequestID(base, "req-1").Info("with id")

	require.Equal(t, 2, logs.Len())
	assert.NotContains(t, logs.All()[0].ContextMap(), "request_id")
	assert.Equal(t, "req-1", logs.All()[1].ContextMap()["request_id"])
}
