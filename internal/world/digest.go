package world

import (
	"encoding/binary"
	"hash"

	"github.com/l1jgo/tickcore/internal/core/ecs"
	"github.com/l1jgo/tickcore/internal/core/job"
	"github.com/l1jgo/tickcore/internal/core/message"
	"golang.org/x/crypto/blake2b"
)

// Digest hashes every replay-observable piece of state: the tick, the
// active list, each component store in id order, each job queue and each
// message queue. Two Worlds fed the same call sequence have equal digests.
func (w *World) Digest() [32]byte {
	h, _ := blake2b.New256(nil) // only fails for oversized keys
	d := digester{h: h}

	d.u64(w.sched.CurrentTick())
	active := w.ecs.Pool().Active()
	d.u64(uint64(len(active)))
	for _, e := range active {
		d.u64(uint64(e))
	}

	for _, s := range w.ecs.Registry().Stores() {
		desc := s.Descriptor()
		d.u64(uint64(desc.ID))
		d.u64(uint64(s.Count()))
		s.Each(func(e ecs.EntityID, data []byte) {
			d.u64(uint64(e))
			d.h.Write(data)
		})
	}

	queue := func(q *job.Queue) {
		d.u64(uint64(q.Len()))
		for i := range q.Jobs() {
			d.job(&q.Jobs()[i])
		}
	}
	for _, q := range w.jobs.Buckets() {
		queue(q)
	}
	for _, q := range w.jobs.Lanes() {
		queue(q)
	}
	queue(w.jobs.Global())

	w.msgs.Snapshot(func(scope string, m message.Message) {
		d.h.Write([]byte(scope))
		d.msg(&m)
	})

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

type digester struct {
	h   hash.Hash
	buf [8]byte
}

func (d *digester) u64(v uint64) {
	binary.LittleEndian.PutUint64(d.buf[:], v)
	d.h.Write(d.buf[:])
}

func (d *digester) job(j *job.Job) {
	d.u64(uint64(j.Type))
	d.u64(uint64(uint32(j.Priority)))
	d.u64(uint64(j.Requester))
	d.u64(uint64(j.Assignee))
	d.u64(uint64(j.Target))
	d.u64(j.TickCreated)
	d.u64(uint64(j.EstTicks))
	d.h.Write(j.Payload[:])
}

func (d *digester) msg(m *message.Message) {
	d.u64(uint64(m.Type))
	d.u64(uint64(m.Flags))
	d.u64(uint64(m.SystemID))
	d.u64(uint64(m.Sender))
	d.u64(uint64(m.Receiver))
	d.u64(m.TickCreated)
	d.h.Write(m.Payload[:])
}
