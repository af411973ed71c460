// Package logging builds the zap logger shared by the driver, the executor and
// the front ends.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Config controls logger construction.
type Config struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty"`   // debug, info, warn, error
	Format string `json:"format,omitempty" yaml:"format,omitempty"` // json or console
}

// DefaultConfig returns info-level console logging.
func DefaultConfig() Config {
	return Config{Level: "info", Format: FormatConsole}
}

// Validate checks the level and format values.
func (c *Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.levelOrDefault()); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch strings.ToLower(c.Format) {
	case "", FormatJSON, FormatConsole:
		return nil
	}
	return fmt.Errorf("logging.format: unsupported value %q", c.Format)
}

func (c *Config) levelOrDefault() string {
	if c.Level == "" {
		return "info"
	}
	return c.Level
}

// New builds a logger from cfg. JSON uses the production encoder, console the
// development one.
func New(cfg Config) (*zap.Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level, _ := zapcore.ParseLevel(cfg.levelOrDefault())

	var zc zap.Config
	if strings.ToLower(cfg.Format) == FormatJSON {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.DisableStacktrace = true
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
