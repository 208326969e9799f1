package replay

import (
	"context"
	"encoding/hex"
	"fmt"

	"go.uber.org/zap"

	"github.com/l1jgo/tickcore/internal/core/ecs"
	"github.com/l1jgo/tickcore/internal/core/job"
	"github.com/l1jgo/tickcore/internal/core/message"
	"github.com/l1jgo/tickcore/internal/world"
)

// Event is what one op observed. Events are comparable with ==.
type Event struct {
	Index  int
	Op     string
	Entity ecs.EntityID
	Job    job.Job
	Msg    message.Message
	Err    string
}

// Trace is the full observable record of one run.
type Trace struct {
	Events  []Event
	Digests [][32]byte // one per tick stepped
	Final   [32]byte
}

type runner struct {
	w        *world.World
	names    map[string]ecs.EntityID
	comps    map[string]ecs.ComponentID
	assigned map[string]job.Job
	trace    *Trace
}

// Run executes the scenario against a fresh World.
func Run(ctx context.Context, sc *Scenario, log *zap.Logger) (*Trace, error) {
	w, err := world.New(sc.config(), log)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", sc.Name, err)
	}
	defer w.Destroy()

	r := &runner{
		w:        w,
		names:    make(map[string]ecs.EntityID),
		comps:    make(map[string]ecs.ComponentID, len(sc.Components)),
		assigned: make(map[string]job.Job),
		trace:    &Trace{},
	}
	for _, c := range sc.Components {
		id, err := w.RegisterComponent(ecs.Descriptor{Name: c.Name, ElemSize: c.Size})
		if err != nil {
			return nil, fmt.Errorf("scenario %q: %w", sc.Name, err)
		}
		r.comps[c.Name] = id
	}

	for i, op := range sc.Ops {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.exec(i, op); err != nil {
			return nil, fmt.Errorf("scenario %q op %d (%s): %w", sc.Name, i, op.Op, err)
		}
	}
	r.trace.Final = w.Digest()
	return r.trace, nil
}

// entity resolves a scenario name. Unknown names map to the invalid handle
// so the World reports the error, which is itself part of the trace.
func (r *runner) entity(name string) ecs.EntityID {
	if id, ok := r.names[name]; ok {
		return id
	}
	return r.w.Invalid()
}

func (r *runner) record(ev Event, err error) {
	if err != nil {
		ev.Err = err.Error()
	}
	r.trace.Events = append(r.trace.Events, ev)
}

func (r *runner) jobFrom(spec *JobSpec) job.Job {
	j := job.Job{
		Type:        spec.Type,
		Priority:    spec.Priority,
		TickCreated: r.w.CurrentTick(),
		EstTicks:    spec.Est,
	}
	if spec.Target != "" {
		j.Target = r.entity(spec.Target)
	}
	return j
}

func (r *runner) msg(typ uint32, from, to string) *message.Message {
	m := &message.Message{Type: typ, TickCreated: r.w.CurrentTick()}
	if from != "" {
		m.Sender = r.entity(from)
	}
	if to != "" {
		m.Receiver = r.entity(to)
	}
	return m
}

func (r *runner) exec(i int, op Op) error {
	ev := Event{Index: i, Op: op.Op}
	switch op.Op {
	case "create":
		id, err := r.w.CreateEntity()
		if err == nil && op.As != "" {
			r.names[op.As] = id
		}
		ev.Entity = id
		r.record(ev, err)
	case "destroy":
		ev.Entity = r.entity(op.Entity)
		r.record(ev, r.w.DestroyEntity(ev.Entity))
	case "add":
		var data []byte
		if op.Data != "" {
			b, err := hex.DecodeString(op.Data)
			if err != nil {
				return fmt.Errorf("data: %w", err)
			}
			data = b
		}
		ev.Entity = r.entity(op.Entity)
		r.record(ev, r.w.AddComponent(ev.Entity, r.comps[op.Component], data))
	case "remove":
		ev.Entity = r.entity(op.Entity)
		r.record(ev, r.w.RemoveComponent(ev.Entity, r.comps[op.Component]))
	case "emit":
		ev.Entity = r.entity(op.Entity)
		ev.Job = r.jobFrom(op.Job)
		r.record(ev, r.w.EmitLocal(ev.Entity, ev.Job))
	case "emit_global":
		ev.Job = r.jobFrom(op.Job)
		r.record(ev, r.w.EmitGlobalJob(ev.Job))
	case "assign":
		ev.Entity = r.entity(op.Worker)
		j, err := r.w.AssignToWorker(ev.Entity)
		if err == nil {
			r.assigned[op.Worker] = j
		}
		ev.Job = j
		r.record(ev, err)
	case "complete":
		j, ok := r.assigned[op.Worker]
		if !ok {
			r.record(ev, fmt.Errorf("no job assigned to %q: %w", op.Worker, ecs.ErrNotFound))
			break
		}
		delete(r.assigned, op.Worker)
		success := op.Success == nil || *op.Success
		r.w.Complete(j, success)
		ev.Job = j
		r.record(ev, nil)
	case "step":
		n := max(op.Count, 1)
		for k := 0; k < n; k++ {
			if err := r.w.Step(); err != nil {
				return err
			}
			r.trace.Digests = append(r.trace.Digests, r.w.Digest())
		}
		r.record(ev, nil)
	case "send_local":
		m := r.msg(op.Type, op.From, op.To)
		ev.Msg = *m
		r.record(ev, r.w.SendLocal(m))
	case "recv_local":
		ev.Entity = r.entity(op.Entity)
		m, err := r.w.ReceiveLocal(ev.Entity)
		ev.Msg = m
		r.record(ev, err)
	case "send_lane":
		m := r.msg(op.Type, op.From, "")
		ev.Msg = *m
		r.record(ev, r.w.SendLane(op.Lane, m))
	case "send_receiver":
		m := r.msg(op.Type, op.From, op.To)
		ev.Msg = *m
		r.record(ev, r.w.SendToReceiver(m))
	case "send_cross":
		m := r.msg(op.Type, op.From, op.To)
		ev.Msg = *m
		r.record(ev, r.w.SendCrossLane(op.Lane, m))
	case "recv_lane":
		m, err := r.w.ReceiveLane(op.Lane)
		ev.Msg = m
		r.record(ev, err)
	case "broadcast":
		m := r.msg(op.Type, op.From, "")
		ev.Msg = *m
		r.record(ev, r.w.Broadcast(m))
	default:
		return fmt.Errorf("unknown op %q: %w", op.Op, ecs.ErrInvalidArg)
	}
	return nil
}
