package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	require.NoError(t, Defaults().Validate())
}

func TestParseOverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
[simulation]
lanes = 8
start_tick = 1000

[jobs]
global_queue_capacity = 4

[logging]
format = "json"
`), "inline")
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Simulation.Lanes)
	assert.Equal(t, uint64(1000), cfg.Simulation.StartTick)
	assert.Equal(t, 4, cfg.Jobs.GlobalQueueCapacity)
	assert.Equal(t, "json", cfg.Logging.Format)

	// untouched keys keep their defaults
	assert.Equal(t, 4096, cfg.Simulation.MaxEntities)
	assert.Equal(t, 64, cfg.Jobs.LocalBucketCapacity)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		toml string
		want string
	}{
		{"syntax", "[simulation\nlanes = 1", "parse config"},
		{"too many lanes", "[simulation]\nlanes = 65", "simulation.lanes must be in [1, 64]"},
		{"zero lanes", "[simulation]\nlanes = 0", "simulation.lanes"},
		{"zero capacity", "[messages]\nlane_capacity = 0", "messages.lane_capacity must be positive"},
		{"negative ups", "[simulation]\ntarget_ups = -1", "target_ups"},
		{"unknown log format", "[logging]\nformat = \"xml\"", "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.toml), "inline")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Jobs.LocalBuckets = 0
	cfg.Messages.GlobalCapacity = -1
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jobs.local_buckets")
	assert.Contains(t, err.Error(), "messages.global_capacity")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tickd.toml")
	require.NoError(t, os.WriteFile(path, []byte("[simulation]\nmax_entities = 128\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 128, cfg.Simulation.MaxEntities)

	_, err = Load(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}
