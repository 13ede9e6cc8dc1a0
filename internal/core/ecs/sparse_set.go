package ecs

type sparseStorage interface {
	len() int
	has(e Entity) bool
	insert(e Entity, v any, tick Tick) (added bool)
	remove(e Entity) bool
	get(e Entity) any
	ticksOf(e Entity) *ComponentTicks
	checkTicks(now Tick)
	clear()
}

// SparseSet stores one component type for any entity, keyed by entity index.
// Values stay densely packed; removal swaps the last value into the hole.
type SparseSet[T any] struct {
	dense    []T
	ticks    []ComponentTicks
	entities []Entity
	sparse   []int32 // entity index -> dense index + 1, 0 when absent
	drops    bool
}

func newSparseSet[T any]() *SparseSet[T] {
	return &SparseSet[T]{
		dense:    make([]T, 0, 64),
		ticks:    make([]ComponentTicks, 0, 64),
		entities: make([]Entity, 0, 64),
		drops:    implementsDropper[T](),
	}
}

func (s *SparseSet[T]) denseIndex(e Entity) int {
	i := int(e.Index())
	if i >= len(s.sparse) {
		return -1
	}
	d := int(s.sparse[i]) - 1
	if d < 0 || s.entities[d] != e {
		return -1
	}
	return d
}

// Get returns e's value.
func (s *SparseSet[T]) Get(e Entity) (*T, bool) {
	d := s.denseIndex(e)
	if d < 0 {
		return nil, false
	}
	return &s.dense[d], true
}

func (s *SparseSet[T]) Len() int { return len(s.dense) }

// Entities returns the dense entity list, aligned with the values.
func (s *SparseSet[T]) Entities() []Entity { return s.entities }

func (s *SparseSet[T]) len() int { return len(s.dense) }

func (s *SparseSet[T]) has(e Entity) bool { return s.denseIndex(e) >= 0 }

func (s *SparseSet[T]) insert(e Entity, v any, tick Tick) bool {
	if d := s.denseIndex(e); d >= 0 {
		s.drop(d)
		s.dense[d] = v.(T)
		s.ticks[d].Changed = tick
		return false
	}
	i := int(e.Index())
	for len(s.sparse) <= i {
		s.sparse = append(s.sparse, 0)
	}
	s.dense = append(s.dense, v.(T))
	s.ticks = append(s.ticks, NewComponentTicks(tick))
	s.entities = append(s.entities, e)
	s.sparse[i] = int32(len(s.dense))
	return true
}

func (s *SparseSet[T]) remove(e Entity) bool {
	d := s.denseIndex(e)
	if d < 0 {
		return false
	}
	s.drop(d)
	last := len(s.dense) - 1
	moved := s.entities[last]
	s.dense[d] = s.dense[last]
	s.ticks[d] = s.ticks[last]
	s.entities[d] = moved
	s.sparse[moved.Index()] = int32(d + 1)

	var zero T
	s.dense[last] = zero
	s.dense = s.dense[:last]
	s.ticks = s.ticks[:last]
	s.entities = s.entities[:last]
	s.sparse[e.Index()] = 0
	return true
}

func (s *SparseSet[T]) get(e Entity) any {
	if d := s.denseIndex(e); d >= 0 {
		return s.dense[d]
	}
	return nil
}

func (s *SparseSet[T]) ticksOf(e Entity) *ComponentTicks {
	if d := s.denseIndex(e); d >= 0 {
		return &s.ticks[d]
	}
	return nil
}

func (s *SparseSet[T]) checkTicks(now Tick) {
	for i := range s.ticks {
		s.ticks[i].checkTicks(now)
	}
}

func (s *SparseSet[T]) clear() {
	for d := range s.dense {
		s.drop(d)
	}
	clear(s.dense)
	s.dense = s.dense[:0]
	s.ticks = s.ticks[:0]
	s.entities = s.entities[:0]
	clear(s.sparse)
}

func (s *SparseSet[T]) drop(d int) {
	if s.drops {
		any(&s.dense[d]).(Dropper).Drop()
	}
}
