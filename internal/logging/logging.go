// Package logging builds the process-wide zap.Logger that cmd/proxyd
// threads into the components that take one (server lifecycle events in
// main, recovered modifier panics).
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production JSON logger, or a human-readable development
// logger when dev is true, at the given level ("debug"|"info"|"warn"|
// "error").
func New(level string, dev bool) (*zap.Logger, error) {
	lvl := parseLevel(level)
	if dev {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(lvl)
		return cfg.Build()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
