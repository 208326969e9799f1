package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Simulation SimulationConfig `toml:"simulation"`
	Jobs       JobsConfig       `toml:"jobs"`
	Messages   MessagesConfig   `toml:"messages"`
	Scripting  ScriptingConfig  `toml:"scripting"`
	Logging    LoggingConfig    `toml:"logging"`
}

type SimulationConfig struct {
	MaxEntities   int    `toml:"max_entities"`
	MaxComponents int    `toml:"max_components"`
	Lanes         int    `toml:"lanes"`     // active lanes, fixed for a World's lifetime
	MaxLanes      int    `toml:"max_lanes"` // upper clamp for lane ids
	StartTick     uint64 `toml:"start_tick"`
	TargetUPS     int    `toml:"target_ups"`
}

type JobsConfig struct {
	LocalBuckets        int `toml:"local_buckets"`
	LocalBucketCapacity int `toml:"local_bucket_capacity"`
	LaneQueueCapacity   int `toml:"lane_queue_capacity"`
	GlobalQueueCapacity int `toml:"global_queue_capacity"`
}

type MessagesConfig struct {
	LocalCapacity     int `toml:"local_capacity"`
	LaneCapacity      int `toml:"lane_capacity"`
	CrossLaneCapacity int `toml:"cross_lane_capacity"`
	GlobalCapacity    int `toml:"global_capacity"`
}

type ScriptingConfig struct {
	Dir   string `toml:"dir"`
	Watch bool   `toml:"watch"` // hot-reload scripts between ticks
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse decodes TOML over the defaults and validates the result.
func Parse(data []byte, name string) (*Config, error) {
	cfg := Defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", name, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", name, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	positive := func(name string, v int) {
		if v < 1 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}
	s := c.Simulation
	positive("simulation.max_entities", s.MaxEntities)
	positive("simulation.max_components", s.MaxComponents)
	positive("simulation.max_lanes", s.MaxLanes)
	if s.Lanes < 1 || s.Lanes > s.MaxLanes {
		errs = append(errs, fmt.Errorf("simulation.lanes must be in [1, %d], got %d", s.MaxLanes, s.Lanes))
	}
	if s.TargetUPS < 0 {
		errs = append(errs, fmt.Errorf("simulation.target_ups must not be negative, got %d", s.TargetUPS))
	}
	positive("jobs.local_buckets", c.Jobs.LocalBuckets)
	positive("jobs.local_bucket_capacity", c.Jobs.LocalBucketCapacity)
	positive("jobs.lane_queue_capacity", c.Jobs.LaneQueueCapacity)
	positive("jobs.global_queue_capacity", c.Jobs.GlobalQueueCapacity)
	positive("messages.local_capacity", c.Messages.LocalCapacity)
	positive("messages.lane_capacity", c.Messages.LaneCapacity)
	positive("messages.cross_lane_capacity", c.Messages.CrossLaneCapacity)
	positive("messages.global_capacity", c.Messages.GlobalCapacity)
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf(`logging.format must be "console" or "json", got %q`, c.Logging.Format))
	}
	return errors.Join(errs...)
}

func Defaults() *Config {
	return &Config{
		Simulation: SimulationConfig{
			MaxEntities:   4096,
			MaxComponents: 64,
			Lanes:         4,
			MaxLanes:      64,
			StartTick:     0,
			TargetUPS:     20,
		},
		Jobs: JobsConfig{
			LocalBuckets:        16,
			LocalBucketCapacity: 64,
			LaneQueueCapacity:   256,
			GlobalQueueCapacity: 256,
		},
		Messages: MessagesConfig{
			LocalCapacity:     16,
			LaneCapacity:      256,
			CrossLaneCapacity: 256,
			GlobalCapacity:    256,
		},
		Scripting: ScriptingConfig{
			Dir: "scripts",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
