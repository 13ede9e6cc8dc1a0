package ecs

import (
	"encoding/binary"

	"github.com/kelindar/bitmap"
)

// ComponentSet is a growable bitset of component ids. Archetype identity,
// query signatures and access sets are all expressed with it.
type ComponentSet struct {
	bits bitmap.Bitmap
}

func NewComponentSet(ids ...ComponentID) ComponentSet {
	var s ComponentSet
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s *ComponentSet) Add(id ComponentID)     { s.bits.Set(uint32(id)) }
func (s *ComponentSet) Remove(id ComponentID)  { s.bits.Remove(uint32(id)) }
func (s ComponentSet) Has(id ComponentID) bool { return s.bits.Contains(uint32(id)) }
func (s ComponentSet) Len() int                { return s.bits.Count() }
func (s ComponentSet) IsEmpty() bool           { return s.bits.Count() == 0 }

// ContainsAll reports whether every id in o is also in s.
func (s ComponentSet) ContainsAll(o ComponentSet) bool {
	return o.Difference(s).IsEmpty()
}

func (s ComponentSet) Intersects(o ComponentSet) bool {
	return s.Intersection(o).Len() > 0
}

func (s ComponentSet) Clone() ComponentSet {
	return ComponentSet{bits: s.bits.Clone(nil)}
}

// The bitmap's accelerated And/AndNot/Or index the other operand's first
// word, so empty operands are handled here.

func (s ComponentSet) Union(o ComponentSet) ComponentSet {
	if len(o.bits) == 0 {
		return s.Clone()
	}
	if len(s.bits) == 0 {
		return o.Clone()
	}
	out := s.Clone()
	out.bits.Or(o.bits)
	return out
}

func (s ComponentSet) Intersection(o ComponentSet) ComponentSet {
	if len(s.bits) == 0 || len(o.bits) == 0 {
		return ComponentSet{}
	}
	out := s.Clone()
	out.bits.And(o.bits)
	return out
}

func (s ComponentSet) Difference(o ComponentSet) ComponentSet {
	out := s.Clone()
	if len(s.bits) == 0 || len(o.bits) == 0 {
		return out
	}
	out.bits.AndNot(o.bits)
	return out
}

// IDs returns the members in ascending order.
func (s ComponentSet) IDs() []ComponentID {
	ids := make([]ComponentID, 0, s.Len())
	s.bits.Range(func(x uint32) {
		ids = append(ids, ComponentID(x))
	})
	return ids
}

// key is a canonical map key: equal sets produce equal keys regardless of
// how many trailing zero words either carries.
func (s ComponentSet) key() string {
	n := len(s.bits)
	for n > 0 && s.bits[n-1] == 0 {
		n--
	}
	buf := make([]byte, 0, n*8)
	for _, w := range s.bits[:n] {
		buf = binary.LittleEndian.AppendUint64(buf, w)
	}
	return string(buf)
}
