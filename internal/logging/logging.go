// Package logging builds the zap logger shared by the CLI and the scheduler.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the logger profile.
type Config struct {
	// Level is a zap level name; empty means info.
	Level string `yaml:"level"`
	// Development switches to the human-readable console encoder.
	Development bool `yaml:"development"`
}

// New builds a logger from cfg.
func New(cfg Config) (*zap.Logger, error) {
	base := zap.NewProductionConfig()
	if cfg.Development {
		base = zap.NewDevelopmentConfig()
		base.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	level := zapcore.InfoLevel
	if s := strings.TrimSpace(cfg.Level); s != "" {
		if err := level.Set(s); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}
	base.Level = zap.NewAtomicLevelAt(level)
	base.DisableStacktrace = true
	base.EncoderConfig.TimeKey = "ts"
	base.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := base.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}
