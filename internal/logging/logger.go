// Package logging builds the zap loggers used by the batch decider and
// the one-shot CLI.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pelissiernicolas/mail-ai-local/internal/config"
)

const (
	formatJSON    = "json"
	formatConsole = "console"
)

// InitLogger builds the batch decider's logger from the logging section
// of the configuration. Unknown levels fall back to info.
func InitLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.GetString("logging.level"))
	if err != nil {
		level = zapcore.InfoLevel
	}
	return build(cfg.GetString("logging.format"), level)
}

// InitConsoleLogger builds the logger for the one-shot CLI, where log
// lines share the terminal with the printed analysis.
func InitConsoleLogger(verbose bool, jsonFormat bool) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	format := formatConsole
	if jsonFormat {
		format = formatJSON
	}
	return build(format, level)
}

func build(format string, level zapcore.Level) (*zap.Logger, error) {
	var logConfig zap.Config
	switch format {
	case formatConsole:
		logConfig = zap.NewDevelopmentConfig()
		logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		logConfig = zap.NewProductionConfig()
		logConfig.DisableStacktrace = true
	}
	logConfig.Level = zap.NewAtomicLevelAt(level)

	logger, err := logConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
