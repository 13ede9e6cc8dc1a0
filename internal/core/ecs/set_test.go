package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComponentSetOps(t *testing.T) {
	a := NewComponentSet(1, 3, 70)
	b := NewComponentSet(3, 4)

	assert.Equal(t, []ComponentID{1, 3, 4, 70}, a.Union(b).IDs())
	assert.Equal(t, []ComponentID{3}, a.Intersection(b).IDs())
	assert.Equal(t, []ComponentID{1, 70}, a.Difference(b).IDs())
	assert.True(t, a.Intersects(b))
	assert.False(t, a.ContainsAll(b))
	assert.True(t, a.ContainsAll(NewComponentSet(70, 1)))
	assert.True(t, a.ContainsAll(ComponentSet{}))

	c := a.Clone()
	c.Remove(70)
	assert.True(t, a.Has(70), "clone must not share storage")
	assert.Equal(t, 2, c.Len())
}

func TestComponentSetKeyIgnoresTrailingWords(t *testing.T) {
	wide := NewComponentSet(2, 130)
	wide.Remove(130)
	assert.Equal(t, NewComponentSet(2).key(), wide.key())
	assert.NotEqual(t, NewComponentSet(2).key(), NewComponentSet(3).key())

	var empty ComponentSet
	assert.True(t, empty.IsEmpty())
	assert.Equal(t, "", empty.key())
}

func TestComponentSetEmptyOperands(t *testing.T) {
	var empty ComponentSet
	a := NewComponentSet(1, 65)

	assert.Equal(t, []ComponentID{1, 65}, a.Union(empty).IDs())
	assert.Equal(t, []ComponentID{1, 65}, empty.Union(a).IDs())
	assert.True(t, a.Intersection(empty).IsEmpty())
	assert.True(t, empty.Intersection(a).IsEmpty())
	assert.Equal(t, []ComponentID{1, 65}, a.Difference(empty).IDs())
	assert.True(t, empty.Difference(a).IsEmpty())
	assert.False(t, a.Intersects(empty))
	assert.False(t, empty.ContainsAll(a))

	var w1, w2 Access
	w1.AddWrite(1)
	w2.AddWrite(2)
	assert.True(t, w1.IsCompatible(w2))
	assert.Empty(t, w1.Conflicts(w2))
	w1.Extend(w2)
	assert.True(t, w1.HasWrite(2))
}
