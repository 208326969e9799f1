package system

import (
	"fmt"
	"sort"

	"github.com/l1jgo/tickcore/internal/core/ecs"
)

type handler struct {
	phase PhaseFunc
	lane  LaneFunc
}

// Scheduler executes the seven phases in fixed order each tick. It is
// single-threaded: nothing it calls may block.
type Scheduler struct {
	systems  []System
	sorted   bool
	handlers [PhaseCount]handler
	lanes    int
	tick     uint64

	targetUPS    int
	effectiveUPS int
}

func NewScheduler(lanes int, startTick uint64) *Scheduler {
	return &Scheduler{
		systems: make([]System, 0, 16),
		lanes:   lanes,
		tick:    startTick,
	}
}

// Register adds a built-in system. Systems sharing a phase keep their
// registration order. A system bound to an unknown phase is rejected.
func (s *Scheduler) Register(sys System) error {
	if sys == nil {
		return fmt.Errorf("register system: %w", ecs.ErrInvalidArg)
	}
	if p := sys.Phase(); !p.Valid() {
		return fmt.Errorf("register system for %s: %w", p, ecs.ErrInvalidArg)
	}
	s.systems = append(s.systems, sys)
	s.sorted = false
	return nil
}

// SetPhaseHandler installs the global and/or per-lane callback for a phase,
// replacing whatever was there. Either may be nil.
func (s *Scheduler) SetPhaseHandler(p Phase, phaseFn PhaseFunc, laneFn LaneFunc) error {
	if !p.Valid() {
		return fmt.Errorf("set handler for %s: %w", p, ecs.ErrInvalidArg)
	}
	s.handlers[p] = handler{phase: phaseFn, lane: laneFn}
	return nil
}

// Step runs one full tick: for each phase, its systems, then the lane
// callback for lanes 0..n-1, then the phase callback. The tick counter
// advances by one afterwards.
func (s *Scheduler) Step() {
	s.ensureSorted()
	tick := s.tick
	i := 0
	for _, p := range Phases() {
		for i < len(s.systems) && s.systems[i].Phase() == p {
			s.systems[i].Update(tick)
			i++
		}
		h := s.handlers[p]
		if h.lane != nil {
			for l := 0; l < s.lanes; l++ {
				h.lane(tick, l)
			}
		}
		if h.phase != nil {
			h.phase(tick)
		}
	}
	s.tick++
}

func (s *Scheduler) CurrentTick() uint64 { return s.tick }

func (s *Scheduler) Lanes() int { return s.lanes }

func (s *Scheduler) TargetUPS() int          { return s.targetUPS }
func (s *Scheduler) SetTargetUPS(ups int)    { s.targetUPS = ups }
func (s *Scheduler) EffectiveUPS() int       { return s.effectiveUPS }
func (s *Scheduler) SetEffectiveUPS(ups int) { s.effectiveUPS = ups }

func (s *Scheduler) ensureSorted() {
	if !s.sorted {
		sort.SliceStable(s.systems, func(i, j int) bool {
			return s.systems[i].Phase() < s.systems[j].Phase()
		})
		s.sorted = true
	}
}
