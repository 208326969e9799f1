package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l1jgo/tickcore/internal/core/ecs"
	"github.com/l1jgo/tickcore/internal/core/lane"
)

func TestRing(t *testing.T) {
	r := NewRing[int](3)
	_, err := r.Pop()
	assert.ErrorIs(t, err, ecs.ErrNotFound)

	for i := 1; i <= 3; i++ {
		require.NoError(t, r.Push(i))
	}
	assert.ErrorIs(t, r.Push(4), ecs.ErrBounds)

	v, err := r.Pop()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	require.NoError(t, r.Push(4), "wraps around")

	var seen []int
	r.Each(func(v int) { seen = append(seen, v) })
	assert.Equal(t, []int{2, 3, 4}, seen)
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, 3, r.Cap())
}

func newTestSystem(t *testing.T, lanes int, cfg Config) *System {
	t.Helper()
	r, err := lane.NewRouter(lanes, 64)
	require.NoError(t, err)
	s, err := NewSystem(cfg, r)
	require.NoError(t, err)
	return s
}

var smallConfig = Config{LocalCapacity: 2, LaneCapacity: 2, CrossLaneCapacity: 4, GlobalCapacity: 4}

func msg(typ uint32, to ecs.EntityID) *Message {
	return &Message{Type: typ, Receiver: to}
}

func TestNewSystemValidation(t *testing.T) {
	r, _ := lane.NewRouter(1, 1)
	_, err := NewSystem(Config{LocalCapacity: 1, LaneCapacity: 1, CrossLaneCapacity: 0, GlobalCapacity: 1}, r)
	assert.ErrorIs(t, err, ecs.ErrInvalidArg)
}

func TestLocalDelivery(t *testing.T) {
	s := newTestSystem(t, 2, smallConfig)
	e3 := ecs.NewEntityID(3, 0)
	e1 := ecs.NewEntityID(1, 0)

	require.NoError(t, s.EmitLocal(msg(1, e3)))
	require.NoError(t, s.EmitLocal(msg(2, e3)))
	require.NoError(t, s.EmitLocal(msg(3, e1)))

	_, err := s.ConsumeLocal(e3)
	assert.ErrorIs(t, err, ecs.ErrNotFound, "not readable before delivery")

	assert.Equal(t, 3, s.DeliverLocal())

	m, err := s.ConsumeLocal(e3)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), m.Type)
	m, err = s.ConsumeLocal(e3)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), m.Type)
	_, err = s.ConsumeLocal(e3)
	assert.ErrorIs(t, err, ecs.ErrNotFound)

	m, err = s.ConsumeLocal(e1)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), m.Type)
	assert.Equal(t, uint64(3), s.Stats().Delivered)
}

func TestLocalMailboxLimits(t *testing.T) {
	s := newTestSystem(t, 1, smallConfig)
	e := ecs.NewEntityID(0, 0)

	require.NoError(t, s.EmitLocal(msg(1, e)))
	require.NoError(t, s.EmitLocal(msg(2, e)))
	assert.ErrorIs(t, s.EmitLocal(msg(3, e)), ecs.ErrBounds)
	assert.ErrorIs(t, s.EmitLocal(nil), ecs.ErrInvalidArg)

	s.DeliverLocal()
	require.NoError(t, s.EmitLocal(msg(3, e)))
	require.NoError(t, s.EmitLocal(msg(4, e)))
	assert.Equal(t, 0, s.DeliverLocal(), "full inbox leaves messages pending")

	_, _ = s.ConsumeLocal(e)
	assert.Equal(t, 1, s.DeliverLocal())

	var order []uint32
	for {
		m, err := s.ConsumeLocal(e)
		if err != nil {
			break
		}
		order = append(order, m.Type)
	}
	assert.Equal(t, []uint32{2, 3}, order)
}

func TestDropLocal(t *testing.T) {
	s := newTestSystem(t, 1, smallConfig)
	old := ecs.NewEntityID(2, 0)
	require.NoError(t, s.EmitLocal(msg(1, old)))
	s.DeliverLocal()

	s.DropLocal(old)
	_, err := s.ConsumeLocal(old)
	assert.ErrorIs(t, err, ecs.ErrNotFound)

	t.Run("reused index gets a fresh mailbox", func(t *testing.T) {
		stale := ecs.NewEntityID(5, 0)
		fresh := ecs.NewEntityID(5, 1)
		require.NoError(t, s.EmitLocal(msg(7, stale)))
		require.NoError(t, s.EmitLocal(msg(8, fresh)))
		s.DeliverLocal()

		_, err := s.ConsumeLocal(stale)
		assert.ErrorIs(t, err, ecs.ErrNotFound)
		m, err := s.ConsumeLocal(fresh)
		require.NoError(t, err)
		assert.Equal(t, uint32(8), m.Type)
	})
}

func TestStaleReceiverKeepsLiveMailbox(t *testing.T) {
	s := newTestSystem(t, 1, smallConfig)
	live := ecs.NewEntityID(3, 1)
	stale := ecs.NewEntityID(3, 0)

	require.NoError(t, s.EmitLocal(msg(1, live)))
	s.DeliverLocal()
	require.NoError(t, s.EmitLocal(msg(2, live)))

	assert.ErrorIs(t, s.EmitLocal(msg(9, stale)), ecs.ErrNotFound)
	require.NoError(t, s.EmitLocal(&Message{Type: 9, Receiver: live}))

	m, err := s.ConsumeLocal(live)
	require.NoError(t, err, "delivered message survives the stale send")
	assert.Equal(t, uint32(1), m.Type)

	s.DeliverLocal()
	var got []uint32
	for {
		m, err := s.ConsumeLocal(live)
		if err != nil {
			break
		}
		got = append(got, m.Type)
	}
	assert.Equal(t, []uint32{2, 9}, got, "pending messages survive too")
}

func TestLaneQueues(t *testing.T) {
	s := newTestSystem(t, 2, smallConfig)

	require.NoError(t, s.EmitLane(1, msg(1, 0)))
	require.NoError(t, s.EmitToReceiver(msg(2, ecs.NewEntityID(3, 0))))
	require.NoError(t, s.EmitToReceiver(msg(3, ecs.NewEntityID(4, 0))))
	assert.ErrorIs(t, s.EmitLane(2, msg(1, 0)), ecs.ErrBounds)
	assert.ErrorIs(t, s.EmitLane(0, nil), ecs.ErrInvalidArg)
	assert.ErrorIs(t, s.EmitToReceiver(nil), ecs.ErrInvalidArg)

	m, err := s.ConsumeLane(1)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), m.Type)
	m, err = s.ConsumeLane(1)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), m.Type)
	m, err = s.ConsumeLane(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), m.Type)

	_, err = s.ConsumeLane(0)
	assert.ErrorIs(t, err, ecs.ErrNotFound)
	_, err = s.ConsumeLane(9)
	assert.ErrorIs(t, err, ecs.ErrBounds)
}

func TestCrossLaneMerge(t *testing.T) {
	s := newTestSystem(t, 2, smallConfig)

	require.NoError(t, s.EmitLane(0, msg(100, 0)))
	for typ := uint32(1); typ <= 4; typ++ {
		require.NoError(t, s.EmitCrossLane(0, msg(typ, 0)))
	}
	assert.ErrorIs(t, s.EmitCrossLane(1, msg(5, 0)), ecs.ErrBounds, "staging full")
	assert.ErrorIs(t, s.EmitCrossLane(7, msg(5, 0)), ecs.ErrBounds)
	assert.ErrorIs(t, s.EmitCrossLane(0, nil), ecs.ErrInvalidArg)

	_, err := s.ConsumeLane(0)
	require.NoError(t, err)
	_, err = s.ConsumeLane(0)
	assert.ErrorIs(t, err, ecs.ErrNotFound, "cross-lane traffic waits for Merge")

	merged, backlog := s.Merge()
	assert.Equal(t, 2, merged)
	assert.Equal(t, 2, backlog)
	assert.Equal(t, 2, s.Stats().Backlog)

	var got []uint32
	for {
		m, err := s.ConsumeLane(0)
		if err != nil {
			break
		}
		got = append(got, m.Type)
	}
	assert.Equal(t, []uint32{1, 2}, got)

	merged, backlog = s.Merge()
	assert.Equal(t, 2, merged)
	assert.Equal(t, 0, backlog)
	m, _ := s.ConsumeLane(0)
	assert.Equal(t, uint32(3), m.Type, "leftovers keep emission order")
	assert.Equal(t, uint64(4), s.Stats().Merged)
}

func TestGlobalBroadcast(t *testing.T) {
	s := newTestSystem(t, 1, smallConfig)

	require.NoError(t, s.EmitGlobal(msg(1, 0)))
	require.NoError(t, s.EmitGlobal(msg(2, 0)))
	assert.Empty(t, s.Globals(), "not visible before the swap")

	assert.Equal(t, 2, s.SwapGlobal())
	require.Len(t, s.Globals(), 2)
	assert.Equal(t, uint32(1), s.Globals()[0].Type)

	require.NoError(t, s.EmitGlobal(msg(3, 0)))
	require.Len(t, s.Globals(), 2, "new emissions go to the back buffer")

	assert.Equal(t, 1, s.SwapGlobal())
	require.Len(t, s.Globals(), 1)
	assert.Equal(t, uint32(3), s.Globals()[0].Type)

	assert.Equal(t, 0, s.SwapGlobal())
	assert.Empty(t, s.Globals())
	assert.ErrorIs(t, s.EmitGlobal(nil), ecs.ErrInvalidArg)

	for i := 0; i < 4; i++ {
		require.NoError(t, s.EmitGlobal(msg(9, 0)))
	}
	assert.ErrorIs(t, s.EmitGlobal(msg(9, 0)), ecs.ErrBounds)
}

func TestSnapshotOrder(t *testing.T) {
	s := newTestSystem(t, 1, smallConfig)
	require.NoError(t, s.EmitLocal(msg(2, ecs.NewEntityID(4, 0))))
	require.NoError(t, s.EmitLocal(msg(1, ecs.NewEntityID(1, 0))))
	require.NoError(t, s.EmitLane(0, msg(3, 0)))
	require.NoError(t, s.EmitCrossLane(0, msg(4, 0)))
	require.NoError(t, s.EmitGlobal(msg(5, 0)))

	type entry struct {
		scope string
		typ   uint32
	}
	var got []entry
	s.Snapshot(func(scope string, m Message) { got = append(got, entry{scope, m.Type}) })
	assert.Equal(t, []entry{
		{"pending", 1}, {"pending", 2}, {"lane", 3}, {"cross", 4}, {"global", 5},
	}, got)
}
