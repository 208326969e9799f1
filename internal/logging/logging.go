package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/l1jgo/tickcore/internal/config"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// New builds the process logger from the [logging] section. An empty format
// means console and an empty level means info. Unknown values are errors.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("logging level: %w", err)
	}

	var zapCfg zap.Config
	switch cfg.Format {
	case "", FormatConsole:
		zapCfg = consoleConfig()
	case FormatJSON:
		zapCfg = jsonConfig()
	default:
		return nil, fmt.Errorf("logging format %q: want %q or %q", cfg.Format, FormatConsole, FormatJSON)
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

// consoleConfig is the operator view: coloured levels, wall clock only.
func consoleConfig() zap.Config {
	c := zap.NewDevelopmentConfig()
	c.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	c.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	c.EncoderConfig.ConsoleSeparator = "  "
	c.DisableCaller = true
	c.DisableStacktrace = true
	return c
}

// jsonConfig keeps every line for replay diffing, so sampling is off.
func jsonConfig() zap.Config {
	c := zap.NewProductionConfig()
	c.Sampling = nil
	c.EncoderConfig.TimeKey = "ts"
	c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return c
}
