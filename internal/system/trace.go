package system

import (
	"github.com/l1jgo/tickcore/internal/core/ecs"
	"github.com/l1jgo/tickcore/internal/core/job"
	"github.com/l1jgo/tickcore/internal/core/message"
	coresys "github.com/l1jgo/tickcore/internal/core/system"
	"go.uber.org/zap"
)

// TraceSystem logs a one-line tick summary at debug level. It registers
// last so it observes the tick after cleanup. Phase 6 (Finalize).
type TraceSystem struct {
	world *ecs.World
	jobs  *job.System
	msgs  *message.System
	log   *zap.Logger
}

func NewTraceSystem(world *ecs.World, jobs *job.System, msgs *message.System, log *zap.Logger) *TraceSystem {
	return &TraceSystem{world: world, jobs: jobs, msgs: msgs, log: log}
}

func (s *TraceSystem) Phase() coresys.Phase { return coresys.PhaseFinalize }

func (s *TraceSystem) Update(tick uint64) {
	if ce := s.log.Check(zap.DebugLevel, "tick"); ce != nil {
		js := s.jobs.Stats()
		ms := s.msgs.Stats()
		ce.Write(
			zap.Uint64("tick", tick),
			zap.Int("entities", s.world.Pool().ActiveCount()),
			zap.Uint64("jobs_assigned", js.Assigned),
			zap.Uint64("jobs_dropped", js.Dropped),
			zap.Uint64("msgs_delivered", ms.Delivered),
			zap.Int("cross_backlog", ms.Backlog),
		)
	}
}
