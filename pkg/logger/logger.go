package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const EnvProduction = "production"

// NewLogger builds the process logger. Production writes JSON, any other
// environment a colored console. Unparseable levels fall back to info.
func NewLogger(level string, env string) (*zap.Logger, error) {
	cfg := baseConfig(env)
	cfg.Level = zap.NewAtomicLevelAt(ParseLevel(level))

	log, err := cfg.Build(zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return log, nil
}

func ParseLevel(level string) zapcore.Level {
	parsed, err := zapcore.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return zapcore.InfoLevel
	}
	return parsed
}

func baseConfig(env string) zap.Config {
	cfg := zap.NewDevelopmentConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if env == EnvProduction {
		cfg = zap.NewProductionConfig()
		cfg.Encoding = "json"
	}

	enc := &cfg.EncoderConfig
	enc.TimeKey = "timestamp"
	enc.CallerKey = "caller"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg
}

func WithService(logger *zap.Logger, serviceName string) *zap.Logger {
	return logger.With(zap.String("service", serviceName))
}

// WithComponent tags log lines produced by one package of a service.
func WithComponent(logger *zap.Logger, component string) *zap.Logger {
	return logger.With(zap.String("component", component))
}

// WithRequestID tags log lines with the request id; an empty id leaves
// logger unchanged.
func WithRequestID(logger *zap.Logger, requestID string) *zap.Logger {
	if requestID == "" {
		return logger
	}
	return logger.With(zap.String("request_id", requestID))
}
