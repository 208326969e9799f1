package ecs

import (
	"encoding/binary"
	"fmt"
	"slices"
)

// World is the entity/component half of the simulation. It owns the entity
// pool, the component registry, and a deferred destruction queue flushed by
// the cleanup system at the end of each tick.
type World struct {
	pool         *EntityPool
	registry     *Registry
	destroyQueue []EntityID
	destroySpare []EntityID
	onDestroy    func(EntityID)
}

func NewWorld(maxEntities, maxComponents int) *World {
	return &World{
		pool:         NewEntityPool(maxEntities),
		registry:     NewRegistry(maxComponents, maxEntities),
		destroyQueue: make([]EntityID, 0, 64),
		destroySpare: make([]EntityID, 0, 64),
	}
}

func (w *World) Pool() *EntityPool   { return w.pool }
func (w *World) Registry() *Registry { return w.registry }

func (w *World) CreateEntity() (EntityID, error) {
	return w.pool.Create()
}

// DestroyEntity strips the entity from every component store before the
// slot is released, so no store ever references a dead index.
func (w *World) DestroyEntity(id EntityID) error {
	if err := w.pool.Check(id); err != nil {
		return fmt.Errorf("destroy: %w", err)
	}
	w.registry.RemoveAll(id)
	if err := w.pool.Destroy(id); err != nil {
		return err
	}
	if w.onDestroy != nil {
		w.onDestroy(id)
	}
	return nil
}

// OnDestroy registers a hook that runs after each successful destroy.
func (w *World) OnDestroy(fn func(EntityID)) { w.onDestroy = fn }

func (w *World) Alive(id EntityID) bool {
	return w.pool.Alive(id)
}

func (w *World) RegisterComponent(desc Descriptor) (ComponentID, error) {
	return w.registry.Register(desc)
}

func (w *World) AddComponent(id EntityID, c ComponentID, data []byte) error {
	s, err := w.registry.Store(c)
	if err != nil {
		return fmt.Errorf("add component: %w", err)
	}
	if err := w.pool.Check(id); err != nil {
		return fmt.Errorf("add component %d: %w", c, err)
	}
	return s.Add(id, data)
}

func (w *World) RemoveComponent(id EntityID, c ComponentID) error {
	s, err := w.registry.Store(c)
	if err != nil {
		return fmt.Errorf("remove component: %w", err)
	}
	return s.Remove(id)
}

// ComponentPtr returns the instance bytes or nil. It never allocates.
func (w *World) ComponentPtr(c ComponentID, id EntityID) []byte {
	s, err := w.registry.Store(c)
	if err != nil {
		return nil
	}
	return s.Ptr(id)
}

func (w *World) ComponentCount(c ComponentID) int {
	s, err := w.registry.Store(c)
	if err != nil {
		return 0
	}
	return s.Count()
}

func (w *World) ComponentEntityAt(c ComponentID, i int) (EntityID, error) {
	s, err := w.registry.Store(c)
	if err != nil {
		return 0, err
	}
	return s.EntityAt(i)
}

// MarkForDestruction queues an entity for end-of-tick cleanup.
func (w *World) MarkForDestruction(id EntityID) {
	w.destroyQueue = append(w.destroyQueue, id)
}

// PendingDestruction is the number of queued destroys.
func (w *World) PendingDestruction() int { return len(w.destroyQueue) }

// FlushDestroyQueue destroys all queued entities in ascending index order and
// returns how many were actually destroyed. Stale or duplicate entries are
// skipped. Entities marked while the flush runs (from the OnDestroy hook)
// stay queued for the next flush.
func (w *World) FlushDestroyQueue() int {
	queue := w.destroyQueue
	w.destroyQueue = w.destroySpare[:0]
	slices.SortFunc(queue, func(a, b EntityID) int {
		switch {
		case a.Index() < b.Index():
			return -1
		case a.Index() > b.Index():
			return 1
		}
		return 0
	})
	n := 0
	for _, id := range queue {
		if w.DestroyEntity(id) == nil {
			n++
		}
	}
	w.destroySpare = queue[:0]
	return n
}

// Put encodes a fixed-size value into c's instance for id, adding the
// component first if needed. The encoded size must equal the element size.
func Put[T any](w *World, c ComponentID, id EntityID, v T) error {
	desc, ok := w.registry.Descriptor(c)
	if !ok {
		return fmt.Errorf("put component %d: %w", c, ErrInvalidArg)
	}
	if n := binary.Size(v); n != desc.ElemSize {
		return fmt.Errorf("put %q: value is %d bytes, want %d: %w", desc.Name, n, desc.ElemSize, ErrInvalidArg)
	}
	if err := w.AddComponent(id, c, nil); err != nil {
		return err
	}
	if _, err := binary.Encode(w.ComponentPtr(c, id), binary.LittleEndian, v); err != nil {
		return fmt.Errorf("put %q: %w", desc.Name, err)
	}
	return nil
}

// Get decodes c's instance for id into a T.
func Get[T any](w *World, c ComponentID, id EntityID) (T, bool) {
	var v T
	p := w.ComponentPtr(c, id)
	if p == nil {
		return v, false
	}
	if _, err := binary.Decode(p, binary.LittleEndian, &v); err != nil {
		return v, false
	}
	return v, true
}
