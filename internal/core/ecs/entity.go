package ecs

import (
	"fmt"
	"sort"
)

// EntityID encodes a 32-bit index in the lower bits and a 32-bit generation
// in the upper bits. Generation increments on destroy to invalidate stale refs.
type EntityID uint64

func NewEntityID(index uint32, generation uint32) EntityID {
	return EntityID(uint64(generation)<<32 | uint64(index))
}

func (id EntityID) Index() uint32      { return uint32(id) }
func (id EntityID) Generation() uint32 { return uint32(id >> 32) }
func (id EntityID) IsZero() bool       { return id == 0 }

func (id EntityID) String() string {
	return fmt.Sprintf("e%d.%d", id.Index(), id.Generation())
}

// InvalidEntity is the handle returned when allocation fails: its index is
// the pool capacity, which no live entity can ever have.
func InvalidEntity(maxEntities int) EntityID {
	return NewEntityID(uint32(maxEntities), 0)
}

// EntityPool manages entity allocation with generational indices, a sorted
// free list and a sorted active list. Capacity is fixed at construction.
//
// The lowest free index is always reused first, so two pools fed the same
// Create/Destroy sequence hand out the same handles.
type EntityPool struct {
	max         int
	generations []uint32
	alive       []bool
	freeList    []uint32 // ascending
	active      []EntityID
	nextIndex   uint32
}

func NewEntityPool(maxEntities int) *EntityPool {
	hint := min(maxEntities, 1024)
	return &EntityPool{
		max:         maxEntities,
		generations: make([]uint32, 0, hint),
		alive:       make([]bool, 0, hint),
		freeList:    make([]uint32, 0, 256),
		active:      make([]EntityID, 0, hint),
	}
}

// Capacity is the fixed maximum number of simultaneously live entities.
func (p *EntityPool) Capacity() int { return p.max }

// Invalid returns this pool's invalid handle.
func (p *EntityPool) Invalid() EntityID { return InvalidEntity(p.max) }

// Create allocates the smallest free index, or extends the high-water mark.
// When the pool is full it returns the invalid handle and ErrBounds.
func (p *EntityPool) Create() (EntityID, error) {
	var idx uint32
	if len(p.freeList) > 0 {
		idx = p.freeList[0]
		p.freeList = p.freeList[:copy(p.freeList, p.freeList[1:])]
	} else {
		if int(p.nextIndex) >= p.max {
			return p.Invalid(), fmt.Errorf("create entity: capacity %d: %w", p.max, ErrBounds)
		}
		idx = p.nextIndex
		p.nextIndex++
		p.generations = append(p.generations, 0)
		p.alive = append(p.alive, false)
	}
	p.alive[idx] = true
	id := NewEntityID(idx, p.generations[idx])

	pos := sort.Search(len(p.active), func(i int) bool { return p.active[i].Index() > idx })
	p.active = append(p.active, 0)
	copy(p.active[pos+1:], p.active[pos:])
	p.active[pos] = id
	return id, nil
}

// Alive reports whether id names a live entity of the current generation.
func (p *EntityPool) Alive(id EntityID) bool {
	idx := id.Index()
	if idx >= p.nextIndex {
		return false
	}
	return p.alive[idx] && p.generations[idx] == id.Generation()
}

// Check validates a handle without modifying anything.
func (p *EntityPool) Check(id EntityID) error {
	if int(id.Index()) >= p.max {
		return fmt.Errorf("entity %s: %w", id, ErrBounds)
	}
	if !p.Alive(id) {
		return fmt.Errorf("entity %s: %w", id, ErrNotFound)
	}
	return nil
}

// Destroy marks the slot dead, bumps its generation, removes it from the
// active list and returns the index to the free list. Component cleanup is
// the caller's job (see World.DestroyEntity).
func (p *EntityPool) Destroy(id EntityID) error {
	if err := p.Check(id); err != nil {
		return fmt.Errorf("destroy: %w", err)
	}
	idx := id.Index()
	p.alive[idx] = false
	p.generations[idx]++

	pos := sort.Search(len(p.active), func(i int) bool { return p.active[i].Index() >= idx })
	p.active = append(p.active[:pos], p.active[pos+1:]...)

	fpos := sort.Search(len(p.freeList), func(i int) bool { return p.freeList[i] > idx })
	p.freeList = append(p.freeList, 0)
	copy(p.freeList[fpos+1:], p.freeList[fpos:])
	p.freeList[fpos] = idx
	return nil
}

// Generation returns the current generation stored for a slot index.
func (p *EntityPool) Generation(index uint32) uint32 {
	if index >= p.nextIndex {
		return 0
	}
	return p.generations[index]
}

func (p *EntityPool) ActiveCount() int { return len(p.active) }

// ActiveAt returns the i-th live entity in ascending index order.
func (p *EntityPool) ActiveAt(i int) (EntityID, error) {
	if i < 0 || i >= len(p.active) {
		return p.Invalid(), fmt.Errorf("active index %d: %w", i, ErrBounds)
	}
	return p.active[i], nil
}

// Active returns the live list. The slice is owned by the pool and is only
// valid until the next Create or Destroy.
func (p *EntityPool) Active() []EntityID { return p.active }
