// Package lane maps entities onto lanes, the deterministic partitions used to
// route jobs and messages. Every subsystem that needs a lane asks the same
// Router, so all work touching one entity lands on one lane.
package lane

import (
	"fmt"

	"github.com/l1jgo/tickcore/internal/core/ecs"
)

// Router is immutable after construction.
type Router struct {
	count int
	max   int
}

// NewRouter builds a router over count active lanes, bounded by maxLanes.
func NewRouter(count, maxLanes int) (Router, error) {
	if maxLanes < 1 || count < 1 || count > maxLanes {
		return Router{}, fmt.Errorf("lanes %d of max %d: %w", count, maxLanes, ecs.ErrInvalidArg)
	}
	return Router{count: count, max: maxLanes}, nil
}

// Count is the number of active lanes.
func (r Router) Count() int { return r.count }

// LaneFor returns index(e) mod Count, clamped into [0, max).
func (r Router) LaneFor(e ecs.EntityID) int {
	if r.count <= 0 {
		return 0
	}
	l := int(e.Index() % uint32(r.count))
	if l >= r.max {
		l = r.max - 1
	}
	return l
}

// Valid reports whether l names an active lane.
func (r Router) Valid(l int) bool { return l >= 0 && l < r.count }
