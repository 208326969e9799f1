package ecs

import (
	"fmt"
	"sort"
)

// ComponentID identifies a registered component type. Zero means "no component".
type ComponentID uint32

// Descriptor describes one component type. It is copied on registration and
// never changes afterwards.
type Descriptor struct {
	ID       ComponentID
	Name     string
	ElemSize int
	Align    int
	Flags    uint32
}

// Removable is implemented by all component stores so the Registry can
// bulk-remove an entity's data from every store on destroy.
type Removable interface {
	Remove(id EntityID) error
}

// Store holds every instance of one component type.
//
// data and entities are dense and kept sorted by entity index; slots is a
// sparse table indexed by entity index holding (dense slot + 1), 0 meaning
// absent. For every i < Count(): slots[entities[i].Index()] == i+1.
type Store struct {
	desc     Descriptor
	data     []byte
	entities []EntityID
	slots    []uint32
}

func newStore(desc Descriptor, maxEntities int) *Store {
	hint := min(maxEntities, 256)
	return &Store{
		desc:     desc,
		data:     make([]byte, 0, hint*desc.ElemSize),
		entities: make([]EntityID, 0, hint),
		slots:    make([]uint32, maxEntities),
	}
}

func (s *Store) Descriptor() Descriptor { return s.desc }

func (s *Store) Count() int { return len(s.entities) }

// Add inserts a zero-filled (data == nil) or copied instance for id at its
// sorted position. Adding a component the entity already has is a no-op.
func (s *Store) Add(id EntityID, data []byte) error {
	idx := id.Index()
	if int(idx) >= len(s.slots) {
		return fmt.Errorf("add %s to %q: %w", id, s.desc.Name, ErrBounds)
	}
	if data != nil && len(data) != s.desc.ElemSize {
		return fmt.Errorf("add %s to %q: %d bytes, want %d: %w",
			id, s.desc.Name, len(data), s.desc.ElemSize, ErrInvalidArg)
	}
	if s.slots[idx] != 0 {
		return nil
	}

	es := s.desc.ElemSize
	pos := sort.Search(len(s.entities), func(i int) bool { return s.entities[i].Index() > idx })

	s.entities = append(s.entities, 0)
	copy(s.entities[pos+1:], s.entities[pos:])
	s.entities[pos] = id

	s.data = append(s.data, make([]byte, es)...)
	copy(s.data[(pos+1)*es:], s.data[pos*es:len(s.data)-es])
	dst := s.data[pos*es : (pos+1)*es]
	if data != nil {
		copy(dst, data)
	} else {
		clear(dst)
	}

	s.remap(pos)
	return nil
}

// Remove deletes id's instance and closes the gap.
func (s *Store) Remove(id EntityID) error {
	idx := id.Index()
	if int(idx) >= len(s.slots) || s.slots[idx] == 0 || s.entities[s.slots[idx]-1] != id {
		return fmt.Errorf("remove %s from %q: %w", id, s.desc.Name, ErrNotFound)
	}
	pos := int(s.slots[idx] - 1)
	es := s.desc.ElemSize

	copy(s.entities[pos:], s.entities[pos+1:])
	s.entities = s.entities[:len(s.entities)-1]
	copy(s.data[pos*es:], s.data[(pos+1)*es:])
	s.data = s.data[:len(s.data)-es]

	s.slots[idx] = 0
	s.remap(pos)
	return nil
}

// remap rewrites the sparse entry of every dense slot from pos onwards.
func (s *Store) remap(pos int) {
	for i := pos; i < len(s.entities); i++ {
		s.slots[s.entities[i].Index()] = uint32(i + 1)
	}
}

// Has reports whether id currently owns an instance.
func (s *Store) Has(id EntityID) bool {
	return s.Ptr(id) != nil
}

// Ptr returns the instance bytes for id, or nil. The slice aliases the dense
// array and is invalidated by the next Add or Remove on this store.
func (s *Store) Ptr(id EntityID) []byte {
	idx := id.Index()
	if int(idx) >= len(s.slots) {
		return nil
	}
	slot := s.slots[idx]
	if slot == 0 || s.entities[slot-1] != id {
		return nil
	}
	es := s.desc.ElemSize
	pos := int(slot - 1)
	return s.data[pos*es : (pos+1)*es : (pos+1)*es]
}

// EntityAt returns the owner of dense slot i.
func (s *Store) EntityAt(i int) (EntityID, error) {
	if i < 0 || i >= len(s.entities) {
		return 0, fmt.Errorf("%q slot %d: %w", s.desc.Name, i, ErrBounds)
	}
	return s.entities[i], nil
}

// Entities returns the dense owner list in ascending index order. Read only.
func (s *Store) Entities() []EntityID { return s.entities }

// Each visits every instance in dense order.
func (s *Store) Each(fn func(EntityID, []byte)) {
	es := s.desc.ElemSize
	for i, id := range s.entities {
		fn(id, s.data[i*es:(i+1)*es:(i+1)*es])
	}
}
