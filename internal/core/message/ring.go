package message

import (
	"fmt"

	"github.com/l1jgo/tickcore/internal/core/ecs"
)

// Ring is a fixed-capacity FIFO. Pushing into a full ring fails with
// ErrBounds; nothing is ever evicted.
type Ring[T any] struct {
	buf  []T
	head int
	n    int
}

func NewRing[T any](capacity int) *Ring[T] {
	return &Ring[T]{buf: make([]T, capacity)}
}

func (r *Ring[T]) Len() int { return r.n }
func (r *Ring[T]) Cap() int { return len(r.buf) }

func (r *Ring[T]) Push(v T) error {
	if r.n == len(r.buf) {
		return fmt.Errorf("ring full (%d): %w", len(r.buf), ecs.ErrBounds)
	}
	r.buf[(r.head+r.n)%len(r.buf)] = v
	r.n++
	return nil
}

func (r *Ring[T]) Pop() (T, error) {
	var zero T
	if r.n == 0 {
		return zero, fmt.Errorf("ring empty: %w", ecs.ErrNotFound)
	}
	v := r.buf[r.head]
	r.buf[r.head] = zero
	r.head = (r.head + 1) % len(r.buf)
	r.n--
	return v, nil
}

// Each visits queued values oldest first without consuming them.
func (r *Ring[T]) Each(fn func(T)) {
	for i := 0; i < r.n; i++ {
		fn(r.buf[(r.head+i)%len(r.buf)])
	}
}
