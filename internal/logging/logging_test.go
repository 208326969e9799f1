package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/l1jgo/tickcore/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name  string
		cfg   config.LoggingConfig
		level zapcore.Level
	}{
		{"defaults", config.LoggingConfig{}, zapcore.InfoLevel},
		{"console debug", config.LoggingConfig{Level: "debug", Format: FormatConsole}, zapcore.DebugLevel},
		{"json warn", config.LoggingConfig{Level: "warn", Format: FormatJSON}, zapcore.WarnLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.cfg)
			require.NoError(t, err)
			assert.True(t, log.Core().Enabled(tt.level))
			assert.False(t, log.Core().Enabled(tt.level-1))
		})
	}
}

func TestNewRejectsUnknownSettings(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "info", Format: "xml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `logging format "xml"`)

	_, err = New(config.LoggingConfig{Level: "loud", Format: FormatJSON})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging level")
}

func TestDefaultsBuild(t *testing.T) {
	log, err := New(config.Defaults().Logging)
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
}
