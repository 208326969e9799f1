// Package replay drives a World through a scripted call sequence and checks
// that every run of the sequence observes exactly the same results.
package replay

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/l1jgo/tickcore/internal/config"
	"github.com/l1jgo/tickcore/internal/core/ecs"
)

// Scenario is an ordered list of World calls loaded from YAML.
type Scenario struct {
	Name       string          `yaml:"name"`
	Config     Overrides       `yaml:"config"`
	Components []ComponentSpec `yaml:"components"`
	Ops        []Op            `yaml:"ops"`
}

// Overrides adjusts the default configuration. Zero fields keep the default.
type Overrides struct {
	MaxEntities         int `yaml:"max_entities"`
	Lanes               int `yaml:"lanes"`
	LocalBuckets        int `yaml:"local_buckets"`
	LocalBucketCapacity int `yaml:"local_bucket_capacity"`
	LaneQueueCapacity   int `yaml:"lane_queue_capacity"`
	GlobalQueueCapacity int `yaml:"global_queue_capacity"`
	LocalCapacity       int `yaml:"local_capacity"`
	LaneCapacity        int `yaml:"lane_capacity"`
}

type ComponentSpec struct {
	Name string `yaml:"name"`
	Size int    `yaml:"size"`
}

type JobSpec struct {
	Type     uint32 `yaml:"type"`
	Priority int32  `yaml:"priority"`
	Target   string `yaml:"target"`
	Est      uint32 `yaml:"est"`
}

// Op is one call. Which fields matter depends on Op:
//
//	create        as
//	destroy       entity
//	add           entity component [data]
//	remove        entity component
//	emit          entity job
//	emit_global   job
//	assign        worker
//	complete      worker success   (completes the worker's last assignment)
//	step          [count]
//	send_local    to [from] type
//	recv_local    entity
//	send_lane     lane type
//	send_receiver to type
//	send_cross    lane type
//	recv_lane     lane
//	broadcast     type
type Op struct {
	Op        string   `yaml:"op"`
	As        string   `yaml:"as"`
	Entity    string   `yaml:"entity"`
	Component string   `yaml:"component"`
	Data      string   `yaml:"data"` // hex
	Job       *JobSpec `yaml:"job"`
	Worker    string   `yaml:"worker"`
	Success   *bool    `yaml:"success"`
	Count     int      `yaml:"count"`
	To        string   `yaml:"to"`
	From      string   `yaml:"from"`
	Lane      int      `yaml:"lane"`
	Type      uint32   `yaml:"type"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := sc.validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

var knownOps = map[string]bool{
	"create": true, "destroy": true, "add": true, "remove": true,
	"emit": true, "emit_global": true, "assign": true, "complete": true, "step": true,
	"send_local": true, "recv_local": true, "send_lane": true, "send_receiver": true,
	"send_cross": true, "recv_lane": true, "broadcast": true,
}

func (sc *Scenario) validate() error {
	comps := make(map[string]bool, len(sc.Components))
	for _, c := range sc.Components {
		if c.Name == "" || c.Size <= 0 {
			return fmt.Errorf("component %q size %d: %w", c.Name, c.Size, ecs.ErrInvalidArg)
		}
		comps[c.Name] = true
	}
	for i, op := range sc.Ops {
		if !knownOps[op.Op] {
			return fmt.Errorf("op %d: unknown op %q: %w", i, op.Op, ecs.ErrInvalidArg)
		}
		if (op.Op == "add" || op.Op == "remove") && !comps[op.Component] {
			return fmt.Errorf("op %d: unknown component %q: %w", i, op.Component, ecs.ErrInvalidArg)
		}
		if (op.Op == "emit" || op.Op == "emit_global") && op.Job == nil {
			return fmt.Errorf("op %d: %s needs a job: %w", i, op.Op, ecs.ErrInvalidArg)
		}
	}
	return nil
}

// config builds the World configuration for this scenario.
func (sc *Scenario) config() *config.Config {
	cfg := config.Defaults()
	o := sc.Config
	set := func(dst *int, v int) {
		if v != 0 {
			*dst = v
		}
	}
	set(&cfg.Simulation.MaxEntities, o.MaxEntities)
	set(&cfg.Simulation.Lanes, o.Lanes)
	set(&cfg.Jobs.LocalBuckets, o.LocalBuckets)
	set(&cfg.Jobs.LocalBucketCapacity, o.LocalBucketCapacity)
	set(&cfg.Jobs.LaneQueueCapacity, o.LaneQueueCapacity)
	set(&cfg.Jobs.GlobalQueueCapacity, o.GlobalQueueCapacity)
	set(&cfg.Messages.LocalCapacity, o.LocalCapacity)
	set(&cfg.Messages.LaneCapacity, o.LaneCapacity)
	return cfg
}
