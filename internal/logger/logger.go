// Package logger builds the zap loggers used across the service and carries
// per-request loggers through contexts.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// envPreset maps a deployment environment to a zap config: prod emits JSON
// for log shipping, everything local gets the colored console encoder.
func envPreset(env string) (zap.Config, error) {
	switch env {
	case "prod":
		return zap.NewProductionConfig(), nil
	case "local", "dev", "docker":
		return zap.NewDevelopmentConfig(), nil
	default:
		return zap.Config{}, fmt.Errorf("unknown environment %q for logger", env)
	}
}

// NewLogger builds the process logger for the given environment. An optional
// non-empty level (debug, info, warn, error) overrides the preset's level,
// letting local runs silence the debug firehose via config.
func NewLogger(env string, level ...string) (*zap.Logger, error) {
	cfg, err := envPreset(env)
	if err != nil {
		return nil, err
	}

	if len(level) > 0 && level[0] != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(level[0])); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level[0], err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	l, err := cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l, nil
}
