package system_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/l1jgo/ecscore/internal/core/ecs"
	"github.com/l1jgo/ecscore/internal/core/system"
)

type A struct{ I int }
type B struct{ I int }
type C struct{ I int }

type Counter struct{ N int }

func newWorld(t *testing.T) *ecs.World {
	t.Helper()
	w := ecs.NewWorld(zaptest.NewLogger(t))
	ecs.MustRegister[A](w)
	ecs.MustRegister[B](w)
	ecs.MustRegister[C](w)
	return w
}

func newSchedule(t *testing.T, w *ecs.World, opts ...system.ScheduleOption) *system.Schedule {
	t.Helper()
	return system.NewSchedule(w, zaptest.NewLogger(t), opts...)
}

func writer[T any](name string) system.System {
	return system.Func(name, func(p *system.Params) error {
		_, err := p.Query(ecs.Write[T](p.World()))
		return err
	}, func(*system.Context) {})
}

func reader[T any](name string) system.System {
	return system.Func(name, func(p *system.Params) error {
		_, err := p.Query(ecs.Read[T](p.World()))
		return err
	}, func(*system.Context) {})
}

func TestDisjointWritersShareBatch(t *testing.T) {
	w := newWorld(t)
	s := newSchedule(t, w)
	require.NoError(t, s.Add(writer[A]("write_a")))
	require.NoError(t, s.Add(writer[B]("write_b")))
	require.NoError(t, s.Add(reader[C]("read_c1")))
	require.NoError(t, s.Add(reader[C]("read_c2")))

	batches, err := s.Batches()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"write_a", "write_b", "read_c1", "read_c2"}}, batches)

	amb, err := s.Ambiguities()
	require.NoError(t, err)
	assert.Empty(t, amb)
}

func TestSameWriterNeverSharesBatch(t *testing.T) {
	w := newWorld(t)
	s := newSchedule(t, w)
	require.NoError(t, s.Add(writer[A]("first")))
	require.NoError(t, s.Add(writer[A]("second")))
	require.NoError(t, s.Add(reader[A]("third")))

	batches, err := s.Batches()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"first"}, {"second"}, {"third"}}, batches)

	amb, err := s.Ambiguities()
	require.NoError(t, err)
	require.Len(t, amb, 3)
	assert.Equal(t, system.Ambiguity{A: "first", B: "second", Components: []string{"system_test.A"}}, amb[0])
	require.NoError(t, s.Run())
}

func TestStrictModeRejectsAmbiguity(t *testing.T) {
	w := newWorld(t)
	s := newSchedule(t, w, system.WithStrict(true))
	require.NoError(t, s.Add(writer[A]("first")))
	require.NoError(t, s.Add(writer[A]("second")))

	err := s.Run()
	assert.ErrorIs(t, err, system.ErrAmbiguousOrdering)

	require.NoError(t, s.Configure("second", system.After("first")))
	assert.NoError(t, s.Run())
}

func TestExplicitOrdering(t *testing.T) {
	w := newWorld(t)
	s := newSchedule(t, w, system.WithStrict(true))
	require.NoError(t, s.Add(writer[A]("integrate"), system.After("physics")))
	require.NoError(t, s.Add(writer[A]("collide"), system.Label("physics")))
	require.NoError(t, s.Add(writer[B]("input"), system.Before("collide")))

	batches, err := s.Batches()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"input"}, {"collide"}, {"integrate"}}, batches)
}

func TestOrderingErrors(t *testing.T) {
	w := newWorld(t)

	s := newSchedule(t, w)
	require.NoError(t, s.Add(reader[A]("a"), system.Before("b")))
	require.NoError(t, s.Add(reader[A]("b"), system.Before("a")))
	_, err := s.Batches()
	assert.ErrorIs(t, err, system.ErrOrderingCycle)

	s = newSchedule(t, w)
	require.NoError(t, s.Add(reader[A]("a"), system.After("missing")))
	assert.ErrorIs(t, s.Run(), system.ErrUnknownLabel)

	s = newSchedule(t, w)
	require.NoError(t, s.Add(reader[A]("a")))
	assert.ErrorIs(t, s.Add(reader[B]("a")), system.ErrDuplicateSystem)
	assert.ErrorIs(t, s.Configure("nope", system.Label("x")), system.ErrUnknownSystem)
}

func TestPhasesOrderBatches(t *testing.T) {
	w := newWorld(t)
	s := newSchedule(t, w)
	require.NoError(t, s.Add(reader[A]("report"), system.InPhase(system.PhaseLast)))
	require.NoError(t, s.Add(reader[B]("setup"), system.InPhase(system.PhaseFirst)))
	require.NoError(t, s.Add(reader[C]("sim")))

	batches, err := s.Batches()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"setup"}, {"sim"}, {"report"}}, batches)
}

func TestSystemAccessConflictRejected(t *testing.T) {
	w := newWorld(t)
	s := newSchedule(t, w)
	err := s.AddFunc("bad", func(p *system.Params) error {
		if _, err := p.Query(ecs.Write[A](p.World())); err != nil {
			return err
		}
		_, err := p.Query(ecs.Read[A](p.World()))
		return err
	}, func(*system.Context) {})
	assert.ErrorIs(t, err, ecs.ErrAccessConflict)
	assert.Equal(t, 0, s.Len())

	type unknown struct{}
	err = s.Add(reader[unknown]("unknown"))
	assert.ErrorIs(t, err, ecs.ErrComponentNotRegistered)
}

func TestChangedSeenOnFirstRunOnly(t *testing.T) {
	w := newWorld(t)
	e, err := w.Spawn(A{1})
	require.NoError(t, err)

	var counts []int
	var q *ecs.Query
	s := newSchedule(t, w)
	require.NoError(t, s.AddFunc("watch", func(p *system.Params) error {
		var err error
		q, err = p.Query(ecs.Read[A](p.World()), ecs.Changed[A](p.World()))
		return err
	}, func(*system.Context) {
		counts = append(counts, q.Count())
	}))

	require.NoError(t, s.Run())
	require.NoError(t, s.Run())
	_, err = ecs.GetMut[A](w, e)
	require.NoError(t, err)
	require.NoError(t, s.Run())
	assert.Equal(t, []int{1, 0, 1}, counts)
	assert.Equal(t, uint64(3), s.Frame())
}

func TestWritesSeenByLaterSystemsOnce(t *testing.T) {
	w := newWorld(t)
	_, _ = w.Spawn(A{0})

	var bump, seen []int
	var wq, rq *ecs.Query
	aw := ecs.Write[A](w)
	s := newSchedule(t, w)
	require.NoError(t, s.AddFunc("bump", func(p *system.Params) error {
		var err error
		wq, err = p.Query(aw)
		return err
	}, func(ctx *system.Context) {
		n := 0
		if ctx.Frame()%2 == 0 {
			for c := range wq.Iter() {
				aw.Get(c).I++
				n++
			}
		}
		bump = append(bump, n)
	}))
	require.NoError(t, s.AddFunc("observe", func(p *system.Params) error {
		var err error
		rq, err = p.Query(ecs.Changed[A](p.World()))
		return err
	}, func(*system.Context) {
		seen = append(seen, rq.Count())
	}, system.After("bump")))

	for i := 0; i < 4; i++ {
		require.NoError(t, s.Run())
	}
	assert.Equal(t, []int{1, 0, 1, 0}, bump)
	assert.Equal(t, []int{1, 0, 1, 0}, seen)
}

func TestCommandsVisibleInNextBatch(t *testing.T) {
	w := newWorld(t)
	var sameBatch, nextBatch int
	var q1, q2 *ecs.Query

	s := newSchedule(t, w)
	require.NoError(t, s.AddFunc("spawner", nil, func(ctx *system.Context) {
		ctx.Commands().Spawn(A{1})
	}))
	require.NoError(t, s.AddFunc("same", func(p *system.Params) error {
		var err error
		q1, err = p.Query(ecs.Read[A](p.World()))
		return err
	}, func(*system.Context) { sameBatch = q1.Count() }))
	require.NoError(t, s.AddFunc("next", func(p *system.Params) error {
		var err error
		q2, err = p.Query(ecs.Read[A](p.World()))
		return err
	}, func(*system.Context) { nextBatch = q2.Count() }, system.After("spawner")))

	batches, err := s.Batches()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"spawner", "same"}, {"next"}}, batches)

	require.NoError(t, s.Run())
	assert.Equal(t, 0, sameBatch)
	assert.Equal(t, 1, nextBatch)
	assert.Equal(t, 1, w.EntityCount())
	assert.Equal(t, system.StateIdle, s.State())
}

func TestDespawnHalfThroughCommands(t *testing.T) {
	w := newWorld(t)
	entities := make([]ecs.Entity, 100)
	for i := range entities {
		e, err := w.Spawn(A{i}, B{i})
		require.NoError(t, err)
		entities[i] = e
	}

	ar := ecs.Read[A](w)
	var q *ecs.Query
	s := newSchedule(t, w)
	require.NoError(t, s.AddFunc("cull", func(p *system.Params) error {
		var err error
		q, err = p.Query(ar)
		return err
	}, func(ctx *system.Context) {
		for c := range q.Iter() {
			if ar.Get(c).I%2 == 0 {
				ctx.Commands().Despawn(c.Entity())
			}
		}
	}))
	require.NoError(t, s.Run())

	a, b := ecs.Read[A](w), ecs.Read[B](w)
	both := ecs.MustQuery(w, a, b)
	assert.Equal(t, 50, both.Count())
	for c := range both.Iter() {
		assert.Equal(t, a.Get(c).I, b.Get(c).I)
	}
	for i, e := range entities {
		if i%2 == 0 {
			assert.False(t, w.Alive(e))
			continue
		}
		loc, ok := w.Location(e)
		require.True(t, ok)
		assert.Equal(t, e, w.Archetypes().Get(loc.Archetype).Entities()[loc.Row])
		got, err := ecs.Get[A](w, e)
		require.NoError(t, err)
		assert.Equal(t, i, got.I)
		gotB, err := ecs.Get[B](w, e)
		require.NoError(t, err)
		assert.Equal(t, i, gotB.I)
	}
}

func TestPanicSurfacesToCaller(t *testing.T) {
	w := newWorld(t)
	s := newSchedule(t, w)
	require.NoError(t, s.AddFunc("spawner", nil, func(ctx *system.Context) {
		ctx.Commands().Spawn(A{})
	}))
	require.NoError(t, s.AddFunc("boom", nil, func(*system.Context) {
		panic("boom")
	}))

	var perr *system.PanicError
	func() {
		defer func() {
			perr, _ = recover().(*system.PanicError)
		}()
		_ = s.Run()
	}()
	require.NotNil(t, perr)
	assert.Equal(t, "boom", perr.System)
	assert.Equal(t, "boom", perr.Value)
	assert.NotEmpty(t, perr.Stack)

	assert.False(t, w.IsExecuting())
	assert.Equal(t, system.StateIdle, s.State())
	assert.Equal(t, 0, ecs.MustQuery(w, ecs.Read[A](w)).Count())
}

func TestExclusivePanicDropsCommands(t *testing.T) {
	w := newWorld(t)
	s := newSchedule(t, w)
	fail := true
	require.NoError(t, s.AddFunc("exclusive_boom", func(p *system.Params) error {
		p.Exclusive()
		return nil
	}, func(ctx *system.Context) {
		if fail {
			ctx.Commands().Spawn(A{1})
			panic("boom")
		}
	}))

	func() {
		defer func() {
			_, ok := recover().(*system.PanicError)
			assert.True(t, ok)
		}()
		_ = s.Run()
	}()

	fail = false
	require.NoError(t, s.Run())
	assert.Equal(t, 0, ecs.MustQuery(w, ecs.Read[A](w)).Count())
}

func TestStructuralChangeInSystemPanics(t *testing.T) {
	w := newWorld(t)
	s := newSchedule(t, w)
	var world *ecs.World
	require.NoError(t, s.AddFunc("sneaky", func(p *system.Params) error {
		world = p.World()
		return nil
	}, func(*system.Context) {
		_, _ = world.Spawn(A{})
	}))

	var perr *system.PanicError
	func() {
		defer func() {
			perr, _ = recover().(*system.PanicError)
		}()
		_ = s.Run()
	}()
	require.NotNil(t, perr)
	assert.True(t, errors.Is(perr, ecs.ErrWorldLocked))
}

func TestRunIf(t *testing.T) {
	w := newWorld(t)
	s := newSchedule(t, w)
	enabled := false
	runs := 0
	require.NoError(t, s.AddFunc("gated", nil, func(*system.Context) { runs++ },
		system.RunIf(func(*ecs.World) bool { return enabled })))

	require.NoError(t, s.Run())
	enabled = true
	require.NoError(t, s.Run())
	require.NoError(t, s.Run())
	assert.Equal(t, 2, runs)
}

func TestRunPhase(t *testing.T) {
	w := newWorld(t)
	s := newSchedule(t, w)
	var ran []string
	require.NoError(t, s.AddFunc("first", nil, func(*system.Context) { ran = append(ran, "first") },
		system.InPhase(system.PhaseFirst)))
	require.NoError(t, s.AddFunc("update", nil, func(*system.Context) { ran = append(ran, "update") }))

	require.NoError(t, s.RunPhase(system.PhaseFirst))
	assert.Equal(t, []string{"first"}, ran)
}

func TestExclusiveSystemRunsAlone(t *testing.T) {
	w := newWorld(t)
	s := newSchedule(t, w)
	require.NoError(t, s.Add(reader[A]("before")))
	require.NoError(t, s.Add(system.Exclusive("spawn_direct", func(w *ecs.World) {
		_, err := w.Spawn(A{7})
		require.NoError(t, err)
	})))
	require.NoError(t, s.Add(reader[B]("after")))

	batches, err := s.Batches()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"before"}, {"spawn_direct"}, {"after"}}, batches)

	require.NoError(t, s.Run())
	assert.Equal(t, 1, w.EntityCount())
}

func TestResourceAccess(t *testing.T) {
	w := newWorld(t)
	ecs.InsertResource(w, Counter{})
	s := newSchedule(t, w, system.WithWorkers(1))

	var changed []bool
	var counter *ecs.ResWrite[Counter]
	var view *ecs.ResRead[Counter]
	require.NoError(t, s.AddFunc("count", func(p *system.Params) error {
		var err error
		counter, err = system.WriteResource[Counter](p)
		return err
	}, func(ctx *system.Context) {
		if ctx.Frame() == 0 {
			c, _ := counter.Get()
			c.N++
		}
	}))
	require.NoError(t, s.AddFunc("watch", func(p *system.Params) error {
		var err error
		view, err = system.ReadResource[Counter](p)
		return err
	}, func(*system.Context) {
		changed = append(changed, view.IsChanged())
	}, system.After("count")))

	batches, err := s.Batches()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"count"}, {"watch"}}, batches)

	require.NoError(t, s.Run())
	require.NoError(t, s.Run())
	assert.Equal(t, []bool{true, false}, changed)
	c, _ := ecs.Resource[Counter](w)
	assert.Equal(t, 1, c.N)
}

func TestParEachInsideSystem(t *testing.T) {
	w := newWorld(t)
	for i := 0; i < 500; i++ {
		_, _ = w.Spawn(A{i}, B{1})
	}
	aw, br := ecs.Write[A](w), ecs.Read[B](w)
	var q *ecs.Query
	s := newSchedule(t, w)
	require.NoError(t, s.AddFunc("par", func(p *system.Params) error {
		var err error
		q, err = p.Query(aw, br)
		return err
	}, func(ctx *system.Context) {
		q.ParEach(50, func(c *ecs.Cursor) {
			aw.Get(c).I += br.Get(c).I
			if aw.Get(c).I%100 == 0 {
				ctx.Commands().Despawn(c.Entity())
			}
		})
	}))
	require.NoError(t, s.Run())
	assert.False(t, w.IsExecuting())
	// values 1..500; multiples of 100 were despawned
	assert.Equal(t, 495, w.EntityCount())
}
