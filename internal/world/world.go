// Package world is the composition root of the tick core. A World owns one
// entity/component store, one lane router, one job system, one message
// system and the phase scheduler that drives them. Worlds share nothing, so
// any number can run side by side.
package world

import (
	"errors"
	"fmt"

	"github.com/l1jgo/tickcore/internal/config"
	"github.com/l1jgo/tickcore/internal/core/ecs"
	"github.com/l1jgo/tickcore/internal/core/job"
	"github.com/l1jgo/tickcore/internal/core/lane"
	"github.com/l1jgo/tickcore/internal/core/message"
	coresys "github.com/l1jgo/tickcore/internal/core/system"
	"github.com/l1jgo/tickcore/internal/system"
	"go.uber.org/zap"
)

var ErrDestroyed = errors.New("world destroyed")

type World struct {
	log    *zap.Logger
	ecs    *ecs.World
	router lane.Router
	jobs   *job.System
	msgs   *message.System
	sched  *coresys.Scheduler

	destroyed bool
}

// New builds a World from cfg. A nil logger disables logging.
func New(cfg *config.Config, log *zap.Logger) (*World, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("world config: %w: %w", ecs.ErrInvalidArg, err)
	}
	sim := cfg.Simulation

	router, err := lane.NewRouter(sim.Lanes, sim.MaxLanes)
	if err != nil {
		return nil, err
	}
	jobs, err := job.NewSystem(job.Config{
		LocalBuckets:        cfg.Jobs.LocalBuckets,
		LocalBucketCapacity: cfg.Jobs.LocalBucketCapacity,
		LaneQueueCapacity:   cfg.Jobs.LaneQueueCapacity,
		GlobalQueueCapacity: cfg.Jobs.GlobalQueueCapacity,
	}, router)
	if err != nil {
		return nil, err
	}
	msgs, err := message.NewSystem(message.Config{
		LocalCapacity:     cfg.Messages.LocalCapacity,
		LaneCapacity:      cfg.Messages.LaneCapacity,
		CrossLaneCapacity: cfg.Messages.CrossLaneCapacity,
		GlobalCapacity:    cfg.Messages.GlobalCapacity,
	}, router)
	if err != nil {
		return nil, err
	}

	w := &World{
		log:    log,
		ecs:    ecs.NewWorld(sim.MaxEntities, sim.MaxComponents),
		router: router,
		jobs:   jobs,
		msgs:   msgs,
		sched:  coresys.NewScheduler(router.Count(), sim.StartTick),
	}
	w.sched.SetTargetUPS(sim.TargetUPS)
	w.ecs.OnDestroy(msgs.DropLocal)
	jobs.OnDrop(func(j job.Job) {
		log.Debug("job dropped on overflow",
			zap.Uint32("type", j.Type),
			zap.Int32("priority", j.Priority),
			zap.Stringer("requester", j.Requester),
		)
	})

	builtins := append(jobs.Systems(), msgs.Systems()...)
	builtins = append(builtins,
		system.NewCleanupSystem(w.ecs, log),
		system.NewTraceSystem(w.ecs, jobs, msgs, log),
	)
	for _, s := range builtins {
		if err := w.sched.Register(s); err != nil {
			return nil, fmt.Errorf("world: %w", err)
		}
	}
	return w, nil
}

// Destroy releases the World. Afterwards Step and every call that changes
// state (entities, components, handlers, job and message emission) fail
// with ErrDestroyed; read accessors keep returning the final state.
func (w *World) Destroy() {
	if w.destroyed {
		return
	}
	w.destroyed = true
	w.log.Debug("world destroyed", zap.Uint64("tick", w.sched.CurrentTick()))
}

// Step runs one tick through all seven phases.
func (w *World) Step() error {
	if w.destroyed {
		return ErrDestroyed
	}
	w.sched.Step()
	return nil
}

func (w *World) live() error {
	if w.destroyed {
		return ErrDestroyed
	}
	return nil
}

func (w *World) ECS() *ecs.World               { return w.ecs }
func (w *World) Jobs() *job.System             { return w.jobs }
func (w *World) Messages() *message.System     { return w.msgs }
func (w *World) Scheduler() *coresys.Scheduler { return w.sched }
func (w *World) Router() lane.Router           { return w.router }
func (w *World) Logger() *zap.Logger           { return w.log }
func (w *World) LaneFor(e ecs.EntityID) int    { return w.router.LaneFor(e) }
func (w *World) CurrentTick() uint64           { return w.sched.CurrentTick() }
func (w *World) SetEffectiveUPS(ups int)       { w.sched.SetEffectiveUPS(ups) }
func (w *World) IsAlive(e ecs.EntityID) bool   { return w.ecs.Alive(e) }
func (w *World) ActiveCount() int              { return w.ecs.Pool().ActiveCount() }
func (w *World) Invalid() ecs.EntityID         { return w.ecs.Pool().Invalid() }
func (w *World) MarkForDestruction(e ecs.EntityID) {
	if w.destroyed {
		return
	}
	w.ecs.MarkForDestruction(e)
}

// Entity lifecycle

func (w *World) CreateEntity() (ecs.EntityID, error) {
	if err := w.live(); err != nil {
		return w.Invalid(), err
	}
	return w.ecs.CreateEntity()
}

func (w *World) DestroyEntity(e ecs.EntityID) error {
	if err := w.live(); err != nil {
		return err
	}
	return w.ecs.DestroyEntity(e)
}

func (w *World) ActiveAt(i int) (ecs.EntityID, error) { return w.ecs.Pool().ActiveAt(i) }

// Components

func (w *World) RegisterComponent(desc ecs.Descriptor) (ecs.ComponentID, error) {
	if err := w.live(); err != nil {
		return 0, err
	}
	return w.ecs.RegisterComponent(desc)
}

func (w *World) AddComponent(e ecs.EntityID, c ecs.ComponentID, data []byte) error {
	if err := w.live(); err != nil {
		return err
	}
	return w.ecs.AddComponent(e, c, data)
}

func (w *World) RemoveComponent(e ecs.EntityID, c ecs.ComponentID) error {
	if err := w.live(); err != nil {
		return err
	}
	return w.ecs.RemoveComponent(e, c)
}

func (w *World) ComponentPtr(c ecs.ComponentID, e ecs.EntityID) []byte {
	return w.ecs.ComponentPtr(c, e)
}

func (w *World) ComponentCount(c ecs.ComponentID) int { return w.ecs.ComponentCount(c) }

func (w *World) ComponentEntityAt(c ecs.ComponentID, i int) (ecs.EntityID, error) {
	return w.ecs.ComponentEntityAt(c, i)
}

// Scheduling

func (w *World) SetPhaseHandler(p coresys.Phase, phaseFn coresys.PhaseFunc, laneFn coresys.LaneFunc) error {
	if err := w.live(); err != nil {
		return err
	}
	return w.sched.SetPhaseHandler(p, phaseFn, laneFn)
}

// Jobs

// EmitLocal files j against a live entity. ErrOverflow means a job was
// evicted, j itself possibly.
func (w *World) EmitLocal(e ecs.EntityID, j job.Job) error {
	if err := w.live(); err != nil {
		return err
	}
	if err := w.ecs.Pool().Check(e); err != nil {
		return fmt.Errorf("emit job: %w", err)
	}
	return w.jobs.EmitLocal(e, j)
}

func (w *World) EmitGlobalJob(j job.Job) error {
	if err := w.live(); err != nil {
		return err
	}
	return w.jobs.EmitGlobal(j)
}

func (w *World) AssignToWorker(worker ecs.EntityID) (job.Job, error) {
	if err := w.live(); err != nil {
		return job.Job{}, err
	}
	if err := w.ecs.Pool().Check(worker); err != nil {
		return job.Job{}, fmt.Errorf("assign: %w", err)
	}
	return w.jobs.AssignToWorker(worker)
}

func (w *World) Complete(j job.Job, success bool) {
	if w.destroyed {
		return
	}
	w.jobs.Complete(j, success)
}

// Messages

func (w *World) SendLocal(m *message.Message) error {
	if err := w.live(); err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("send local: %w", ecs.ErrInvalidArg)
	}
	if err := w.ecs.Pool().Check(m.Receiver); err != nil {
		return fmt.Errorf("send local: %w", err)
	}
	return w.msgs.EmitLocal(m)
}

func (w *World) ReceiveLocal(e ecs.EntityID) (message.Message, error) {
	return w.msgs.ConsumeLocal(e)
}

func (w *World) SendLane(l int, m *message.Message) error {
	if err := w.live(); err != nil {
		return err
	}
	return w.msgs.EmitLane(l, m)
}

func (w *World) SendToReceiver(m *message.Message) error {
	if err := w.live(); err != nil {
		return err
	}
	return w.msgs.EmitToReceiver(m)
}

func (w *World) SendCrossLane(l int, m *message.Message) error {
	if err := w.live(); err != nil {
		return err
	}
	return w.msgs.EmitCrossLane(l, m)
}

func (w *World) Broadcast(m *message.Message) error {
	if err := w.live(); err != nil {
		return err
	}
	return w.msgs.EmitGlobal(m)
}

func (w *World) ReceiveLane(l int) (message.Message, error) { return w.msgs.ConsumeLane(l) }
func (w *World) Globals() []message.Message                 { return w.msgs.Globals() }
