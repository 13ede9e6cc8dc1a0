package ecs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l1jgo/ecscore/internal/core/ecs"
)

func TestQueryFilters(t *testing.T) {
	w := newTestWorld(t)
	moving, _ := w.Spawn(Position{}, Velocity{1, 0})
	frozen, _ := w.Spawn(Position{}, Velocity{1, 0}, Frozen{})
	still, _ := w.Spawn(Position{})

	q := ecs.MustQuery(w, ecs.Read[Position](w), ecs.With[Velocity](w), ecs.Without[Frozen](w))
	assert.Equal(t, []ecs.Entity{moving}, q.Entities())

	all := ecs.MustQuery(w, ecs.Read[Position](w))
	assert.ElementsMatch(t, []ecs.Entity{moving, frozen, still}, all.Entities())
}

func TestQueryOptional(t *testing.T) {
	w := newTestWorld(t)
	a, _ := w.Spawn(Position{1, 0}, Velocity{2, 0})
	b, _ := w.Spawn(Position{3, 0})

	pos := ecs.Read[Position](w)
	vel := ecs.Optional[Velocity](w)
	q := ecs.MustQuery(w, pos, vel)

	got := map[ecs.Entity]float64{}
	for c := range q.Iter() {
		v, ok := vel.Get(c)
		sum := pos.Get(c).X
		if ok {
			sum += v.X
		}
		got[c.Entity()] = sum
	}
	assert.Equal(t, map[ecs.Entity]float64{a: 3, b: 3}, got)
}

func TestQueryWriteMutatesInPlace(t *testing.T) {
	w := newTestWorld(t)
	e, _ := w.Spawn(Position{1, 1}, Velocity{2, 3})

	pos := ecs.Write[Position](w)
	vel := ecs.Read[Velocity](w)
	q := ecs.MustQuery(w, pos, vel)
	for c := range q.Iter() {
		p := pos.Get(c)
		v := vel.Get(c)
		p.X += v.X
		p.Y += v.Y
	}
	got, _ := ecs.Get[Position](w, e)
	assert.Equal(t, Position{3, 4}, got)
}

func TestQueryRejectsConflictingAccess(t *testing.T) {
	w := newTestWorld(t)
	_, err := ecs.NewQuery(w, ecs.Read[Position](w), ecs.Write[Position](w))
	assert.ErrorIs(t, err, ecs.ErrAccessConflict)

	_, err = ecs.NewQuery(w, ecs.Write[Position](w), ecs.Write[Position](w))
	assert.ErrorIs(t, err, ecs.ErrAccessConflict)

	q, err := ecs.NewQuery(w, ecs.Read[Position](w), ecs.Read[Position](w))
	require.NoError(t, err)
	pos, _ := ecs.ComponentIDOf[Position](w)
	assert.True(t, q.Access().HasRead(pos))
	assert.False(t, q.Access().HasWrite(pos))
}

func TestQueryWriteChangedRows(t *testing.T) {
	w := newTestWorld(t)
	a, _ := w.Spawn(Position{X: 1})
	b, _ := w.Spawn(Position{X: 2})
	w.ClearTrackers()

	p, err := ecs.GetMut[Position](w, b)
	require.NoError(t, err)
	p.Y = 9

	pos := ecs.Write[Position](w)
	q, err := ecs.NewQuery(w, pos, ecs.Changed[Position](w))
	require.NoError(t, err)
	assert.Equal(t, []ecs.Entity{b}, q.Entities())
	for c := range q.Iter() {
		pos.Get(c).X *= 10
	}

	got, _ := ecs.Get[Position](w, a)
	assert.Equal(t, Position{X: 1}, got)
	got, _ = ecs.Get[Position](w, b)
	assert.Equal(t, Position{X: 20, Y: 9}, got)

	id, _ := ecs.ComponentIDOf[Position](w)
	assert.True(t, q.Access().HasWrite(id))
	assert.True(t, q.Access().HasRead(id))

	_, err = ecs.NewQuery(w, ecs.Added[Position](w), ecs.Write[Position](w))
	assert.NoError(t, err)
}

func TestQueryRejectsUnregistered(t *testing.T) {
	w := newTestWorld(t)
	type unknown struct{}
	_, err := ecs.NewQuery(w, ecs.Read[unknown](w))
	assert.ErrorIs(t, err, ecs.ErrComponentNotRegistered)
}

func TestQueryChangedReportsOnce(t *testing.T) {
	w := newTestWorld(t)
	e, _ := w.Spawn(Position{})
	q := ecs.MustQuery(w, ecs.Read[Position](w), ecs.Changed[Position](w))

	assert.Equal(t, 1, q.Count())
	w.ClearTrackers()
	assert.Equal(t, 0, q.Count())

	_, err := ecs.GetMut[Position](w, e)
	require.NoError(t, err)
	assert.Equal(t, 1, q.Count())
	w.ClearTrackers()
	assert.Equal(t, 0, q.Count())
}

func TestQueryAddedIgnoresWrites(t *testing.T) {
	w := newTestWorld(t)
	e, _ := w.Spawn(Position{})
	added := ecs.MustQuery(w, ecs.Added[Position](w))
	assert.Equal(t, 1, added.Count())

	w.ClearTrackers()
	_, _ = ecs.GetMut[Position](w, e)
	assert.Equal(t, 0, added.Count())

	e2, _ := w.Spawn(Velocity{})
	require.NoError(t, w.Insert(e2, Position{}))
	assert.Equal(t, []ecs.Entity{e2}, added.Entities())
}

func TestQueryBoundTicks(t *testing.T) {
	w := newTestWorld(t)
	_, _ = w.Spawn(Position{})
	ticks := &ecs.SystemTicks{LastRun: 0, ThisRun: 1}
	q := ecs.MustQuery(w, ecs.Changed[Position](w))
	q.BindTicks(ticks)
	assert.Equal(t, 1, q.Count())

	ticks.LastRun, ticks.ThisRun = 1, 5
	assert.Equal(t, 0, q.Count())
}

func TestQueryCacheSeesNewArchetypes(t *testing.T) {
	w := newTestWorld(t)
	q := ecs.MustQuery(w, ecs.Read[Position](w))
	assert.Equal(t, 0, q.Count())
	assert.Empty(t, q.Matched())

	_, _ = w.Spawn(Position{})
	_, _ = w.Spawn(Position{}, Health{})
	assert.Equal(t, 2, q.Count())
	assert.Len(t, q.Matched(), 2)

	_, _ = w.Spawn(Velocity{})
	assert.Len(t, q.Matched(), 2)
}

func TestQuerySparseTerms(t *testing.T) {
	w := newTestWorld(t)
	marked, _ := w.Spawn(Position{}, Marker{3})
	plain, _ := w.Spawn(Position{})

	mark := ecs.Read[Marker](w)
	q := ecs.MustQuery(w, ecs.Read[Position](w), mark)
	var seen []int
	for c := range q.Iter() {
		seen = append(seen, mark.Get(c).N)
	}
	assert.Equal(t, []int{3}, seen)
	assert.Equal(t, []ecs.Entity{marked}, q.Entities())

	without := ecs.MustQuery(w, ecs.Read[Position](w), ecs.Without[Marker](w))
	assert.Equal(t, []ecs.Entity{plain}, without.Entities())

	mm := ecs.Write[Marker](w)
	mq := ecs.MustQuery(w, mm)
	for c := range mq.Iter() {
		mm.Get(c).N = 10
	}
	m, _ := ecs.Get[Marker](w, marked)
	assert.Equal(t, 10, m.N)
}

func TestQueryGetAndSingle(t *testing.T) {
	w := newTestWorld(t)
	a, _ := w.Spawn(Position{1, 0}, Velocity{})
	b, _ := w.Spawn(Position{2, 0})

	pos := ecs.Read[Position](w)
	q := ecs.MustQuery(w, pos, ecs.With[Velocity](w))

	c, err := q.Get(a)
	require.NoError(t, err)
	assert.Equal(t, 1.0, pos.Get(c).X)

	_, err = q.Get(b)
	assert.ErrorIs(t, err, ecs.ErrQueryMismatch)

	w.Despawn(b)
	_, err = q.Get(b)
	assert.ErrorIs(t, err, ecs.ErrEntityNotFound)

	single, err := q.Single()
	require.NoError(t, err)
	assert.Equal(t, a, single.Entity())

	_, _ = w.Spawn(Position{}, Velocity{})
	_, err = q.Single()
	assert.ErrorIs(t, err, ecs.ErrNotSingle)
}

func TestQueryIterStopsEarly(t *testing.T) {
	w := newTestWorld(t)
	for i := 0; i < 10; i++ {
		_, _ = w.Spawn(Position{})
	}
	q := ecs.MustQuery(w, ecs.Read[Position](w))
	n := 0
	for range q.Iter() {
		n++
		if n == 3 {
			break
		}
	}
	assert.Equal(t, 3, n)
	assert.Equal(t, 10, q.Count())
}

func TestParEach(t *testing.T) {
	w := newTestWorld(t)
	const n = 1000
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			_, _ = w.Spawn(Position{X: float64(i)}, Velocity{X: 1})
		} else {
			_, _ = w.Spawn(Position{X: float64(i)}, Velocity{X: 1}, Health{})
		}
	}
	pos := ecs.Write[Position](w)
	vel := ecs.Read[Velocity](w)
	q := ecs.MustQuery(w, pos, vel)
	q.ParEach(64, func(c *ecs.Cursor) {
		pos.Get(c).X += vel.Get(c).X
	})

	sum := 0.0
	read := ecs.Read[Position](w)
	for c := range ecs.MustQuery(w, read).Iter() {
		sum += read.Get(c).X
	}
	// sum(0..n-1) + n
	assert.Equal(t, float64(n*(n-1)/2+n), sum)
	assert.False(t, w.IsExecuting())
}

func TestParEachLocksWorld(t *testing.T) {
	w := newTestWorld(t)
	_, _ = w.Spawn(Position{})
	q := ecs.MustQuery(w, ecs.Read[Position](w))
	assert.Panics(t, func() {
		q.ParEach(1, func(*ecs.Cursor) {
			_, _ = w.Spawn(Position{})
		})
	})
	assert.False(t, w.IsExecuting())
	assert.Equal(t, 1, w.EntityCount())
}
