package system

import "fmt"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput       Phase = iota // 0: external input
	PhasePreState                 // 1: local message delivery
	PhaseSimulation               // 2: job promotion, rule logic
	PhaseNetworks                 // 3: network/flow rules
	PhaseMerge                    // 4: cross-lane fold
	PhasePostProcess              // 5: job completion bookkeeping
	PhaseFinalize                 // 6: global drain, deferred destroy

	PhaseCount = 7
)

var phaseNames = [PhaseCount]string{
	"input", "pre_state", "simulation", "networks", "merge", "post_process", "finalize",
}

func (p Phase) String() string {
	if !p.Valid() {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

func (p Phase) Valid() bool { return p >= 0 && p < PhaseCount }

// Phases lists every phase in execution order.
func Phases() [PhaseCount]Phase {
	return [PhaseCount]Phase{
		PhaseInput, PhasePreState, PhaseSimulation, PhaseNetworks,
		PhaseMerge, PhasePostProcess, PhaseFinalize,
	}
}

// System is a built-in per-tick step bound to one phase. Systems run before
// the phase's lane and global callbacks.
type System interface {
	Phase() Phase
	Update(tick uint64)
}

// PhaseFunc runs once per phase per tick.
type PhaseFunc func(tick uint64)

// LaneFunc runs once per active lane per phase per tick, in ascending lane order.
type LaneFunc func(tick uint64, lane int)
