// Package job routes deferred work through three tiers of fixed-capacity
// queues: per-entity local buckets, per-lane queues and one global queue.
// Every queue is kept sorted by Precedes, so assignment outcomes depend only
// on queue contents, never on insertion order.
package job

import (
	"bytes"
	"cmp"

	"github.com/l1jgo/tickcore/internal/core/ecs"
)

const PayloadSize = 16

// NoWorker disables the affinity tie-break in Precedes.
const NoWorker ecs.EntityID = 0

// Job is a unit of deferred work. Lower Priority is more urgent.
type Job struct {
	Type        uint32
	Priority    int32
	Requester   ecs.EntityID
	Assignee    ecs.EntityID
	Target      ecs.EntityID
	TickCreated uint64
	EstTicks    uint32
	Payload     [PayloadSize]byte
}

// Precedes reports whether a sorts strictly before b. Keys, most significant
// first: priority, type, requester, creation tick, affinity to worker (a job
// already assigned to worker wins; skipped when worker is NoWorker), assignee.
// Target, estimate and payload break any remaining tie so that distinct jobs
// are never equivalent.
func Precedes(a, b *Job, worker ecs.EntityID) bool {
	return compare(a, b, worker) < 0
}

func compare(a, b *Job, worker ecs.EntityID) int {
	if c := cmp.Compare(a.Priority, b.Priority); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Type, b.Type); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Requester, b.Requester); c != 0 {
		return c
	}
	if c := cmp.Compare(a.TickCreated, b.TickCreated); c != 0 {
		return c
	}
	if worker != NoWorker {
		aw, bw := a.Assignee == worker, b.Assignee == worker
		if aw != bw {
			if aw {
				return -1
			}
			return 1
		}
	}
	if c := cmp.Compare(a.Assignee, b.Assignee); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Target, b.Target); c != 0 {
		return c
	}
	if c := cmp.Compare(a.EstTicks, b.EstTicks); c != 0 {
		return c
	}
	return bytes.Compare(a.Payload[:], b.Payload[:])
}
