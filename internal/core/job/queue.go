package job

import (
	"fmt"
	"sort"

	"github.com/l1jgo/tickcore/internal/core/ecs"
)

// Queue is a fixed-capacity job list sorted by Precedes with no worker.
// When full, a push still inserts in order and the entry that sorts last
// is evicted.
type Queue struct {
	items []Job
	cap   int
}

func NewQueue(capacity int) *Queue {
	return &Queue{items: make([]Job, 0, capacity), cap: capacity}
}

func (q *Queue) Len() int { return len(q.items) }
func (q *Queue) Cap() int { return q.cap }

// Push inserts j in sorted position. On overflow it returns the evicted job
// (possibly j itself) and ErrOverflow.
func (q *Queue) Push(j Job) (Job, error) {
	pos := sort.Search(len(q.items), func(i int) bool {
		return compare(&j, &q.items[i], NoWorker) < 0
	})
	if len(q.items) < q.cap {
		q.items = append(q.items, Job{})
		copy(q.items[pos+1:], q.items[pos:])
		q.items[pos] = j
		return Job{}, nil
	}
	if pos == len(q.items) {
		return j, fmt.Errorf("push job type %d: %w", j.Type, ecs.ErrOverflow)
	}
	dropped := q.items[len(q.items)-1]
	copy(q.items[pos+1:], q.items[pos:len(q.items)-1])
	q.items[pos] = j
	return dropped, fmt.Errorf("push job type %d: %w", j.Type, ecs.ErrOverflow)
}

// Pop removes and returns the head.
func (q *Queue) Pop() (Job, bool) {
	if len(q.items) == 0 {
		return Job{}, false
	}
	j := q.items[0]
	q.items = q.items[:copy(q.items, q.items[1:])]
	return j, true
}

// Peek returns the head without removing it.
func (q *Queue) Peek() (Job, bool) {
	if len(q.items) == 0 {
		return Job{}, false
	}
	return q.items[0], true
}

// unpop restores a job that was just popped from the head.
func (q *Queue) unpop(j Job) {
	q.items = append(q.items, Job{})
	copy(q.items[1:], q.items)
	q.items[0] = j
}

// Jobs returns the queue contents in order. Read only.
func (q *Queue) Jobs() []Job { return q.items }

func (q *Queue) Clear() { q.items = q.items[:0] }
