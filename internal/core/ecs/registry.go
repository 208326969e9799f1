package ecs

import (
	"fmt"
	"math"
)

// Registry tracks all component stores and supports bulk cleanup on entity destroy.
type Registry struct {
	stores      []*Store
	maxTypes    int
	maxEntities int
}

func NewRegistry(maxTypes, maxEntities int) *Registry {
	return &Registry{
		stores:      make([]*Store, 0, min(maxTypes, 16)),
		maxTypes:    maxTypes,
		maxEntities: maxEntities,
	}
}

// Register assigns the next component id (starting at 1) and allocates the
// store for desc. The ID field of desc is ignored.
func (r *Registry) Register(desc Descriptor) (ComponentID, error) {
	if len(r.stores) >= r.maxTypes {
		return 0, fmt.Errorf("register %q: %d types: %w", desc.Name, r.maxTypes, ErrBounds)
	}
	if desc.ElemSize <= 0 {
		return 0, fmt.Errorf("register %q: element size %d: %w", desc.Name, desc.ElemSize, ErrInvalidArg)
	}
	if desc.Align == 0 {
		desc.Align = 1
	}
	if desc.Align < 0 || desc.Align&(desc.Align-1) != 0 {
		return 0, fmt.Errorf("register %q: align %d: %w", desc.Name, desc.Align, ErrInvalidArg)
	}
	if r.maxEntities > 0 && desc.ElemSize > math.MaxInt32/r.maxEntities {
		return 0, fmt.Errorf("register %q: %d x %d bytes: %w", desc.Name, r.maxEntities, desc.ElemSize, ErrOutOfMemory)
	}
	desc.ID = ComponentID(len(r.stores) + 1)
	r.stores = append(r.stores, newStore(desc, r.maxEntities))
	return desc.ID, nil
}

// Len is the number of registered component types.
func (r *Registry) Len() int { return len(r.stores) }

// Store returns the store for id. Ids outside [1, Len()] are ErrInvalidArg.
func (r *Registry) Store(id ComponentID) (*Store, error) {
	if id == 0 || int(id) > len(r.stores) {
		return nil, fmt.Errorf("component %d: %w", id, ErrInvalidArg)
	}
	return r.stores[id-1], nil
}

// Descriptor returns a copy of the registered descriptor.
func (r *Registry) Descriptor(id ComponentID) (Descriptor, bool) {
	s, err := r.Store(id)
	if err != nil {
		return Descriptor{}, false
	}
	return s.desc, true
}

// Stores returns every store in id order.
func (r *Registry) Stores() []*Store { return r.stores }

// RemoveAll clears the given entity from every registered component store.
func (r *Registry) RemoveAll(id EntityID) {
	for _, s := range r.stores {
		_ = s.Remove(id) // ErrNotFound: entity never had this component
	}
}
