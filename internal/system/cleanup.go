package system

import (
	"github.com/l1jgo/tickcore/internal/core/ecs"
	coresys "github.com/l1jgo/tickcore/internal/core/system"
	"go.uber.org/zap"
)

// CleanupSystem flushes the deferred entity destruction queue at tick end.
// Phase 6 (Finalize).
type CleanupSystem struct {
	world *ecs.World
	log   *zap.Logger
}

func NewCleanupSystem(world *ecs.World, log *zap.Logger) *CleanupSystem {
	return &CleanupSystem{world: world, log: log}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseFinalize }

func (s *CleanupSystem) Update(tick uint64) {
	if s.world.PendingDestruction() == 0 {
		return
	}
	n := s.world.FlushDestroyQueue()
	s.log.Debug("deferred destroy flushed", zap.Uint64("tick", tick), zap.Int("destroyed", n))
}
