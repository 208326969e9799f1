// Package message carries fixed-payload events through four scopes: local
// mailboxes addressed to one entity, lane queues, a cross-lane staging queue
// folded into lanes during Merge, and a double-buffered global broadcast.
// There are no subscriptions; consumers poll.
package message

import (
	"fmt"
	"sort"

	"github.com/kamstrup/intmap"

	"github.com/l1jgo/tickcore/internal/core/ecs"
	"github.com/l1jgo/tickcore/internal/core/lane"
	"github.com/l1jgo/tickcore/internal/core/system"
)

const PayloadSize = 32

type Message struct {
	Type        uint32
	Flags       uint32
	SystemID    uint32
	Sender      ecs.EntityID
	Receiver    ecs.EntityID
	TickCreated uint64
	Payload     [PayloadSize]byte
}

// Config sizes every queue.
type Config struct {
	LocalCapacity     int
	LaneCapacity      int
	CrossLaneCapacity int
	GlobalCapacity    int
}

type crossEnvelope struct {
	lane int
	msg  Message
}

// mailbox holds one entity's local messages. Emitted messages wait in
// pending until PreState moves them to inbox.
type mailbox struct {
	owner   ecs.EntityID
	pending *Ring[Message]
	inbox   *Ring[Message]
}

type Stats struct {
	Delivered uint64
	Merged    uint64
	Backlog   int
	Broadcast uint64
}

type System struct {
	cfg    Config
	router lane.Router

	mailboxes *intmap.Map[uint32, *mailbox]
	owners    []uint32 // ascending mailbox keys
	lanes     []*Ring[Message]
	cross     *Ring[crossEnvelope]
	back      *Ring[Message]
	front     []Message

	stats Stats
}

func NewSystem(cfg Config, router lane.Router) (*System, error) {
	if cfg.LocalCapacity < 1 || cfg.LaneCapacity < 1 ||
		cfg.CrossLaneCapacity < 1 || cfg.GlobalCapacity < 1 {
		return nil, fmt.Errorf("message config %+v: %w", cfg, ecs.ErrInvalidArg)
	}
	s := &System{
		cfg:       cfg,
		router:    router,
		mailboxes: intmap.New[uint32, *mailbox](64),
		lanes:     make([]*Ring[Message], router.Count()),
		cross:     NewRing[crossEnvelope](cfg.CrossLaneCapacity),
		back:      NewRing[Message](cfg.GlobalCapacity),
		front:     make([]Message, 0, cfg.GlobalCapacity),
	}
	for i := range s.lanes {
		s.lanes[i] = NewRing[Message](cfg.LaneCapacity)
	}
	return s, nil
}

func (s *System) mailbox(e ecs.EntityID, create bool) *mailbox {
	mb, ok := s.mailboxes.Get(e.Index())
	if ok && mb.owner == e {
		return mb
	}
	if !create {
		return nil
	}
	if ok {
		// only a newer generation may take over the index
		if e.Generation() <= mb.owner.Generation() {
			return nil
		}
		s.DropLocal(mb.owner)
	}
	mb = &mailbox{
		owner:   e,
		pending: NewRing[Message](s.cfg.LocalCapacity),
		inbox:   NewRing[Message](s.cfg.LocalCapacity),
	}
	s.mailboxes.Put(e.Index(), mb)
	pos := sort.Search(len(s.owners), func(i int) bool { return s.owners[i] >= e.Index() })
	s.owners = append(s.owners, 0)
	copy(s.owners[pos+1:], s.owners[pos:])
	s.owners[pos] = e.Index()
	return mb
}

// EmitLocal queues m for m.Receiver. It becomes consumable after the next
// PreState delivery. A receiver older than the mailbox owner at its index
// is stale and gets ErrNotFound.
func (s *System) EmitLocal(m *Message) error {
	if m == nil {
		return fmt.Errorf("emit local: %w", ecs.ErrInvalidArg)
	}
	mb := s.mailbox(m.Receiver, true)
	if mb == nil {
		return fmt.Errorf("emit local to %s: stale receiver: %w", m.Receiver, ecs.ErrNotFound)
	}
	if err := mb.pending.Push(*m); err != nil {
		return fmt.Errorf("emit local to %s: %w", m.Receiver, err)
	}
	return nil
}

// DeliverLocal moves pending local messages into their inboxes, in
// ascending receiver index order. Messages that do not fit stay pending.
func (s *System) DeliverLocal() int {
	n := 0
	for _, idx := range s.owners {
		mb, _ := s.mailboxes.Get(idx)
		for mb.pending.Len() > 0 && mb.inbox.Len() < mb.inbox.Cap() {
			m, _ := mb.pending.Pop()
			_ = mb.inbox.Push(m)
			n++
		}
	}
	s.stats.Delivered += uint64(n)
	return n
}

// ConsumeLocal pops the oldest delivered message for e.
func (s *System) ConsumeLocal(e ecs.EntityID) (Message, error) {
	mb := s.mailbox(e, false)
	if mb == nil {
		return Message{}, fmt.Errorf("consume local %s: %w", e, ecs.ErrNotFound)
	}
	m, err := mb.inbox.Pop()
	if err != nil {
		return Message{}, fmt.Errorf("consume local %s: %w", e, err)
	}
	return m, nil
}

// DropLocal discards e's mailbox. Called when the entity is destroyed.
func (s *System) DropLocal(e ecs.EntityID) {
	mb, ok := s.mailboxes.Get(e.Index())
	if !ok || mb.owner != e {
		return
	}
	s.mailboxes.Del(e.Index())
	pos := sort.Search(len(s.owners), func(i int) bool { return s.owners[i] >= e.Index() })
	s.owners = append(s.owners[:pos], s.owners[pos+1:]...)
}

// EmitLane queues m on lane l.
func (s *System) EmitLane(l int, m *Message) error {
	if m == nil {
		return fmt.Errorf("emit lane: %w", ecs.ErrInvalidArg)
	}
	if !s.router.Valid(l) {
		return fmt.Errorf("emit lane %d: %w", l, ecs.ErrBounds)
	}
	if err := s.lanes[l].Push(*m); err != nil {
		return fmt.Errorf("emit lane %d: %w", l, err)
	}
	return nil
}

// EmitToReceiver queues m on the lane that owns m.Receiver.
func (s *System) EmitToReceiver(m *Message) error {
	if m == nil {
		return fmt.Errorf("emit to receiver: %w", ecs.ErrInvalidArg)
	}
	return s.EmitLane(s.router.LaneFor(m.Receiver), m)
}

// ConsumeLane pops the oldest message on lane l.
func (s *System) ConsumeLane(l int) (Message, error) {
	if !s.router.Valid(l) {
		return Message{}, fmt.Errorf("consume lane %d: %w", l, ecs.ErrBounds)
	}
	m, err := s.lanes[l].Pop()
	if err != nil {
		return Message{}, fmt.Errorf("consume lane %d: %w", l, err)
	}
	return m, nil
}

// EmitCrossLane stages m for lane l; it lands there during the next Merge.
func (s *System) EmitCrossLane(l int, m *Message) error {
	if m == nil {
		return fmt.Errorf("emit cross lane: %w", ecs.ErrInvalidArg)
	}
	if !s.router.Valid(l) {
		return fmt.Errorf("emit cross lane %d: %w", l, ecs.ErrBounds)
	}
	if err := s.cross.Push(crossEnvelope{lane: l, msg: *m}); err != nil {
		return fmt.Errorf("emit cross lane %d: %w", l, err)
	}
	return nil
}

// Merge folds staged cross-lane messages into their destination lanes in
// emission order. Messages whose lane is full stay staged, still in order.
// Returns merged and still-staged counts.
func (s *System) Merge() (merged, backlog int) {
	n := s.cross.Len()
	for i := 0; i < n; i++ {
		env, _ := s.cross.Pop()
		if err := s.lanes[env.lane].Push(env.msg); err != nil {
			_ = s.cross.Push(env)
			backlog++
			continue
		}
		merged++
	}
	s.stats.Merged += uint64(merged)
	s.stats.Backlog = backlog
	return merged, backlog
}

// EmitGlobal queues a broadcast. It becomes visible through Globals after
// the next Finalize.
func (s *System) EmitGlobal(m *Message) error {
	if m == nil {
		return fmt.Errorf("emit global: %w", ecs.ErrInvalidArg)
	}
	if err := s.back.Push(*m); err != nil {
		return fmt.Errorf("emit global: %w", err)
	}
	return nil
}

// SwapGlobal drains the global queue into the broadcast buffer, replacing
// the previous tick's broadcasts.
func (s *System) SwapGlobal() int {
	s.front = s.front[:0]
	for s.back.Len() > 0 {
		m, _ := s.back.Pop()
		s.front = append(s.front, m)
	}
	s.stats.Broadcast += uint64(len(s.front))
	return len(s.front)
}

// Globals returns the broadcasts drained by the last Finalize. Read only.
func (s *System) Globals() []Message { return s.front }

func (s *System) Stats() Stats { return s.stats }

// Snapshot visits every queued message in a fixed order: mailboxes by
// receiver index (pending then inbox), lanes, cross-lane staging, pending
// globals, delivered globals.
func (s *System) Snapshot(fn func(scope string, m Message)) {
	for _, idx := range s.owners {
		mb, _ := s.mailboxes.Get(idx)
		mb.pending.Each(func(m Message) { fn("pending", m) })
		mb.inbox.Each(func(m Message) { fn("inbox", m) })
	}
	for _, l := range s.lanes {
		l.Each(func(m Message) { fn("lane", m) })
	}
	s.cross.Each(func(e crossEnvelope) { fn("cross", e.msg) })
	s.back.Each(func(m Message) { fn("global", m) })
	for _, m := range s.front {
		fn("broadcast", m)
	}
}

// Systems returns the phase-bound steps: local delivery in PreState, the
// cross-lane fold in Merge and the global drain in Finalize.
func (s *System) Systems() []system.System {
	return []system.System{deliverSystem{s}, mergeSystem{s}, globalSystem{s}}
}

type deliverSystem struct{ s *System }

func (d deliverSystem) Phase() system.Phase { return system.PhasePreState }
func (d deliverSystem) Update(uint64)       { d.s.DeliverLocal() }

type mergeSystem struct{ s *System }

func (m mergeSystem) Phase() system.Phase { return system.PhaseMerge }
func (m mergeSystem) Update(uint64)       { m.s.Merge() }

type globalSystem struct{ s *System }

func (g globalSystem) Phase() system.Phase { return system.PhaseFinalize }
func (g globalSystem) Update(uint64)       { g.s.SwapGlobal() }
