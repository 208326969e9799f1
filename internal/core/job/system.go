package job

import (
	"fmt"

	"github.com/l1jgo/tickcore/internal/core/ecs"
	"github.com/l1jgo/tickcore/internal/core/lane"
	"github.com/l1jgo/tickcore/internal/core/system"
)

// Config sizes the three tiers.
type Config struct {
	LocalBuckets        int
	LocalBucketCapacity int
	LaneQueueCapacity   int
	GlobalQueueCapacity int
}

// Stats are cumulative counters since construction.
type Stats struct {
	Emitted   uint64
	Dropped   uint64
	Promoted  uint64
	Assigned  uint64
	Completed uint64
	Failed    uint64
}

// CompleteFunc receives finished jobs during PostProcess.
type CompleteFunc func(j Job, success bool)

// DropFunc is told about every job evicted by an overflowing push.
type DropFunc func(j Job)

type completion struct {
	job     Job
	success bool
}

// System owns all job queues.
type System struct {
	router  lane.Router
	buckets []*Queue
	lanes   []*Queue
	global  *Queue

	done       []completion
	onComplete CompleteFunc
	onDrop     DropFunc
	stats      Stats
}

func NewSystem(cfg Config, router lane.Router) (*System, error) {
	if cfg.LocalBuckets < 1 || cfg.LocalBucketCapacity < 1 ||
		cfg.LaneQueueCapacity < 1 || cfg.GlobalQueueCapacity < 1 {
		return nil, fmt.Errorf("job config %+v: %w", cfg, ecs.ErrInvalidArg)
	}
	s := &System{
		router:  router,
		buckets: make([]*Queue, cfg.LocalBuckets),
		lanes:   make([]*Queue, router.Count()),
		global:  NewQueue(cfg.GlobalQueueCapacity),
	}
	for i := range s.buckets {
		s.buckets[i] = NewQueue(cfg.LocalBucketCapacity)
	}
	for i := range s.lanes {
		s.lanes[i] = NewQueue(cfg.LaneQueueCapacity)
	}
	return s, nil
}

// OnComplete sets the completion hook. nil disables it.
func (s *System) OnComplete(fn CompleteFunc) { s.onComplete = fn }

// OnDrop sets the eviction hook. nil disables it.
func (s *System) OnDrop(fn DropFunc) { s.onDrop = fn }

func (s *System) bucket(e ecs.EntityID) int {
	return int(e.Index() % uint32(len(s.buckets)))
}

func (s *System) push(q *Queue, j Job) error {
	dropped, err := q.Push(j)
	if err != nil {
		s.stats.Dropped++
		if s.onDrop != nil {
			s.onDrop(dropped)
		}
	}
	return err
}

// EmitLocal stamps entity as the requester and files the job in the
// entity's local bucket. Returns ErrOverflow if an entry was evicted.
func (s *System) EmitLocal(entity ecs.EntityID, j Job) error {
	j.Requester = entity
	s.stats.Emitted++
	return s.push(s.buckets[s.bucket(entity)], j)
}

// EmitLane files a job directly into a lane queue.
func (s *System) EmitLane(l int, j Job) error {
	if !s.router.Valid(l) {
		return fmt.Errorf("emit to lane %d: %w", l, ecs.ErrBounds)
	}
	s.stats.Emitted++
	return s.push(s.lanes[l], j)
}

// EmitGlobal files a job with no lane affinity.
func (s *System) EmitGlobal(j Job) error {
	s.stats.Emitted++
	return s.push(s.global, j)
}

// Promote empties every local bucket, in bucket order, into the lane queue
// of each job's requester. Returns the number of jobs moved.
func (s *System) Promote() int {
	n := 0
	for _, b := range s.buckets {
		for _, j := range b.Jobs() {
			_ = s.push(s.lanes[s.router.LaneFor(j.Requester)], j)
			n++
		}
		b.Clear()
	}
	s.stats.Promoted += uint64(n)
	return n
}

// AssignToWorker hands worker the better of its lane head and the global
// head, compared with worker affinity. The other head stays queued.
func (s *System) AssignToWorker(worker ecs.EntityID) (Job, error) {
	lq := s.lanes[s.router.LaneFor(worker)]
	lj, lok := lq.Pop()
	gj, gok := s.global.Pop()

	var j Job
	switch {
	case lok && gok:
		if Precedes(&gj, &lj, worker) {
			j = gj
			lq.unpop(lj)
		} else {
			j = lj
			s.global.unpop(gj)
		}
	case lok:
		j = lj
	case gok:
		j = gj
	default:
		return Job{}, fmt.Errorf("assign to %s: %w", worker, ecs.ErrNotFound)
	}
	j.Assignee = worker
	s.stats.Assigned++
	return j, nil
}

// Complete records a finished job. The hook fires during PostProcess.
func (s *System) Complete(j Job, success bool) {
	s.done = append(s.done, completion{job: j, success: success})
}

// FlushCompleted delivers recorded completions in submission order.
func (s *System) FlushCompleted() int {
	for _, c := range s.done {
		if c.success {
			s.stats.Completed++
		} else {
			s.stats.Failed++
		}
		if s.onComplete != nil {
			s.onComplete(c.job, c.success)
		}
	}
	n := len(s.done)
	s.done = s.done[:0]
	return n
}

func (s *System) Stats() Stats { return s.stats }

func (s *System) Buckets() []*Queue { return s.buckets }
func (s *System) Lanes() []*Queue   { return s.lanes }
func (s *System) Global() *Queue    { return s.global }

// Systems returns the phase-bound steps: promotion in Simulation and
// completion bookkeeping in PostProcess.
func (s *System) Systems() []system.System {
	return []system.System{promoteSystem{s}, completeSystem{s}}
}

type promoteSystem struct{ s *System }

func (p promoteSystem) Phase() system.Phase { return system.PhaseSimulation }
func (p promoteSystem) Update(uint64)       { p.s.Promote() }

type completeSystem struct{ s *System }

func (c completeSystem) Phase() system.Phase { return system.PhasePostProcess }
func (c completeSystem) Update(uint64)       { c.s.FlushCompleted() }
