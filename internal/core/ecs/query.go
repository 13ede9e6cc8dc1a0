package ecs

import (
	"fmt"
	"iter"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

type termKind uint8

const (
	termRead termKind = iota
	termWrite
	termOptional
	termOptionalMut
	termWith
	termWithout
	termAdded
	termChanged
)

func (k termKind) String() string {
	switch k {
	case termRead:
		return "read"
	case termWrite:
		return "write"
	case termOptional:
		return "optional"
	case termOptionalMut:
		return "optional_mut"
	case termWith:
		return "with"
	case termWithout:
		return "without"
	case termAdded:
		return "added"
	case termChanged:
		return "changed"
	default:
		return fmt.Sprintf("term(%d)", uint8(k))
	}
}

type termSpec struct {
	kind    termKind
	id      ComponentID
	storage StorageKind
	name    string
	err     error
}

func (s *termSpec) spec() *termSpec { return s }

// ID returns the component id the term refers to.
func (s *termSpec) ID() ComponentID { return s.id }

// Term is one element of a query signature. Terms are built with Read, Write,
// Optional, OptionalMut, With, Without, Added and Changed.
type Term interface {
	spec() *termSpec
}

func resolveTerm[T any](w *World, kind termKind) termSpec {
	id, err := ComponentIDOf[T](w)
	if err != nil {
		return termSpec{kind: kind, name: typeOf[T]().String(), err: err}
	}
	info := w.components.Info(id)
	return termSpec{kind: kind, id: id, storage: info.storage, name: info.name}
}

// ReadTerm yields T by value.
type ReadTerm[T any] struct{ termSpec }

// WriteTerm yields *T and marks the value changed.
type WriteTerm[T any] struct{ termSpec }

// OptionalTerm yields T when present without restricting matches.
type OptionalTerm[T any] struct{ termSpec }

// OptionalMutTerm yields *T when present without restricting matches.
type OptionalMutTerm[T any] struct{ termSpec }

// FilterTerm restricts matches without fetching data.
type FilterTerm struct{ termSpec }

func Read[T any](w *World) *ReadTerm[T] {
	return &ReadTerm[T]{resolveTerm[T](w, termRead)}
}

func Write[T any](w *World) *WriteTerm[T] {
	return &WriteTerm[T]{resolveTerm[T](w, termWrite)}
}

func Optional[T any](w *World) *OptionalTerm[T] {
	return &OptionalTerm[T]{resolveTerm[T](w, termOptional)}
}

func OptionalMut[T any](w *World) *OptionalMutTerm[T] {
	return &OptionalMutTerm[T]{resolveTerm[T](w, termOptionalMut)}
}

func With[T any](w *World) *FilterTerm    { return &FilterTerm{resolveTerm[T](w, termWith)} }
func Without[T any](w *World) *FilterTerm { return &FilterTerm{resolveTerm[T](w, termWithout)} }

// Added matches rows whose T was added inside the caller's tick window.
func Added[T any](w *World) *FilterTerm { return &FilterTerm{resolveTerm[T](w, termAdded)} }

// Changed matches rows whose T was added or written inside the caller's tick window.
func Changed[T any](w *World) *FilterTerm { return &FilterTerm{resolveTerm[T](w, termChanged)} }

// Get returns the current row's value. It panics if the row lacks T, which
// only happens when the term is not part of the cursor's query.
func (t *ReadTerm[T]) Get(c *Cursor) T {
	p, _ := fetch[T](c, &t.termSpec)
	if p == nil {
		panic(missingTerm(c, &t.termSpec))
	}
	return *p
}

func (t *WriteTerm[T]) Get(c *Cursor) *T {
	p, ticks := fetch[T](c, &t.termSpec)
	if p == nil {
		panic(missingTerm(c, &t.termSpec))
	}
	ticks.SetChanged(c.thisRun)
	return p
}

// Peek reads the current row's value without marking it changed.
func (t *WriteTerm[T]) Peek(c *Cursor) T {
	p, _ := fetch[T](c, &t.termSpec)
	if p == nil {
		panic(missingTerm(c, &t.termSpec))
	}
	return *p
}

func (t *OptionalTerm[T]) Get(c *Cursor) (T, bool) {
	p, _ := fetch[T](c, &t.termSpec)
	if p == nil {
		var zero T
		return zero, false
	}
	return *p, true
}

func (t *OptionalMutTerm[T]) Get(c *Cursor) (*T, bool) {
	p, ticks := fetch[T](c, &t.termSpec)
	if p == nil {
		return nil, false
	}
	ticks.SetChanged(c.thisRun)
	return p, true
}

func fetch[T any](c *Cursor, s *termSpec) (*T, *ComponentTicks) {
	if s.err != nil {
		return nil, nil
	}
	if s.storage == StorageSparseSet {
		set := c.world.sparse[s.id].(*SparseSet[T])
		d := set.denseIndex(c.entity)
		if d < 0 {
			return nil, nil
		}
		return &set.dense[d], &set.ticks[d]
	}
	col := ColumnOf[T](c.table, s.id)
	if col == nil {
		return nil, nil
	}
	return col.Get(c.row), col.Ticks(c.row)
}

func missingTerm(c *Cursor, s *termSpec) error {
	return fmt.Errorf("%s %s on %v: %w", s.kind, s.name, c.entity, ErrMissingComponent)
}

// Cursor is the current row of a query iteration. It is reused between
// rows; do not retain it.
type Cursor struct {
	world   *World
	table   *Table
	row     int
	entity  Entity
	lastRun Tick
	thisRun Tick
}

func (c *Cursor) Entity() Entity { return c.entity }
func (c *Cursor) Row() int       { return c.row }

// Ticks returns the change window the row was matched against.
func (c *Cursor) Ticks() SystemTicks {
	return SystemTicks{LastRun: c.lastRun, ThisRun: c.thisRun}
}

// Query iterates every entity matching a fixed signature. The matched
// archetype list is cached and only extended when new archetypes appear.
type Query struct {
	world *World
	terms []*termSpec

	required       ComponentSet // table-kind ids every matched archetype has
	excluded       ComponentSet // table-kind ids no matched archetype has
	sparseRequired []ComponentID
	sparseExcluded []ComponentID
	changeFilters  []*termSpec
	access         Access

	matched []*Archetype
	seen    int
	ticks   *SystemTicks
}

// NewQuery validates terms and builds a query. Unregistered types yield
// ErrComponentNotRegistered; a type both written and read (or written twice)
// yields ErrAccessConflict.
func NewQuery(w *World, terms ...Term) (*Query, error) {
	q := &Query{world: w, terms: make([]*termSpec, 0, len(terms))}
	// filters only add to reads after the data terms are checked, so
	// Write[T] with Changed[T] is allowed
	var reads, writes, filtered ComponentSet
	for _, t := range terms {
		s := t.spec()
		if s.err != nil {
			return nil, fmt.Errorf("new query: %w", s.err)
		}
		q.terms = append(q.terms, s)

		switch s.kind {
		case termWrite, termOptionalMut:
			if writes.Has(s.id) || reads.Has(s.id) {
				return nil, fmt.Errorf("new query: %s %s: %w", s.kind, s.name, ErrAccessConflict)
			}
			writes.Add(s.id)
		case termRead, termOptional:
			if writes.Has(s.id) {
				return nil, fmt.Errorf("new query: %s %s: %w", s.kind, s.name, ErrAccessConflict)
			}
			reads.Add(s.id)
		case termAdded, termChanged:
			filtered.Add(s.id)
		}

		switch s.kind {
		case termRead, termWrite, termWith, termAdded, termChanged:
			if s.storage == StorageSparseSet {
				q.sparseRequired = append(q.sparseRequired, s.id)
			} else {
				q.required.Add(s.id)
			}
		case termWithout:
			if s.storage == StorageSparseSet {
				q.sparseExcluded = append(q.sparseExcluded, s.id)
			} else {
				q.excluded.Add(s.id)
			}
		}
		if s.kind == termAdded || s.kind == termChanged {
			q.changeFilters = append(q.changeFilters, s)
		}
	}
	q.access = Access{reads: reads.Union(filtered), writes: writes}
	return q, nil
}

// MustQuery is NewQuery for setup code where failure is a programming error.
func MustQuery(w *World, terms ...Term) *Query {
	q, err := NewQuery(w, terms...)
	if err != nil {
		panic(err)
	}
	return q
}

// Access returns the ids the query reads and writes.
func (q *Query) Access() Access { return q.access }

// BindTicks makes change filters use a system's window. Unbound queries use
// the world's (LastChangeTick, ChangeTick] window.
func (q *Query) BindTicks(ticks *SystemTicks) { q.ticks = ticks }

// Matched returns the matching archetypes, refreshing the cache first.
func (q *Query) Matched() []*Archetype {
	q.update()
	return q.matched
}

func (q *Query) update() {
	all := q.world.archetypes.list
	for ; q.seen < len(all); q.seen++ {
		if a := all[q.seen]; q.matchesArchetype(a) {
			q.matched = append(q.matched, a)
		}
	}
}

func (q *Query) matchesArchetype(a *Archetype) bool {
	return a.set.ContainsAll(q.required) && !a.set.Intersects(q.excluded)
}

func (q *Query) window() (Tick, Tick) {
	if q.ticks != nil {
		return q.ticks.LastRun, q.ticks.ThisRun
	}
	return q.world.lastChangeTick, q.world.ChangeTick()
}

// matchesRow applies the per-entity checks archetype matching cannot decide.
func (q *Query) matchesRow(c *Cursor) bool {
	for _, id := range q.sparseRequired {
		if !q.world.sparse[id].has(c.entity) {
			return false
		}
	}
	for _, id := range q.sparseExcluded {
		if q.world.sparse[id].has(c.entity) {
			return false
		}
	}
	for _, f := range q.changeFilters {
		var ticks *ComponentTicks
		if f.storage == StorageSparseSet {
			ticks = q.world.sparse[f.id].ticksOf(c.entity)
		} else {
			ticks = c.table.column(f.id).ticksAt(c.row)
		}
		if f.kind == termAdded && !ticks.IsAdded(c.lastRun, c.thisRun) {
			return false
		}
		if f.kind == termChanged && !ticks.IsChanged(c.lastRun, c.thisRun) {
			return false
		}
	}
	return true
}

// Iter yields a cursor per matching row. The sequence can be ranged over any
// number of times. Structural changes during iteration must go through
// Commands.
func (q *Query) Iter() iter.Seq[*Cursor] {
	return func(yield func(*Cursor) bool) {
		q.update()
		last, this := q.window()
		c := &Cursor{world: q.world, lastRun: last, thisRun: this}
		for _, a := range q.matched {
			t := a.table
			c.table = t
			for row := 0; row < len(t.entities); row++ {
				c.row, c.entity = row, t.entities[row]
				if !q.matchesRow(c) {
					continue
				}
				if !yield(c) {
					return
				}
			}
		}
	}
}

// Entities collects the matching entities.
func (q *Query) Entities() []Entity {
	var out []Entity
	for c := range q.Iter() {
		out = append(out, c.entity)
	}
	return out
}

// Count returns the number of matching rows.
func (q *Query) Count() int {
	n := 0
	for range q.Iter() {
		n++
	}
	return n
}

// Get positions a cursor on e if e matches the query.
func (q *Query) Get(e Entity) (*Cursor, error) {
	loc, ok := q.world.entities.Location(e)
	if !ok {
		return nil, fmt.Errorf("query get %v: %w", e, ErrEntityNotFound)
	}
	a := q.world.archetypes.Get(loc.Archetype)
	last, this := q.window()
	c := &Cursor{world: q.world, table: a.table, row: loc.Row, entity: e, lastRun: last, thisRun: this}
	if !q.matchesArchetype(a) || !q.matchesRow(c) {
		return nil, fmt.Errorf("query get %v: %w", e, ErrQueryMismatch)
	}
	return c, nil
}

// Single returns the only matching row.
func (q *Query) Single() (*Cursor, error) {
	var found *Cursor
	n := 0
	for c := range q.Iter() {
		n++
		if n > 1 {
			break
		}
		cp := *c
		found = &cp
	}
	if n != 1 {
		return nil, fmt.Errorf("query single: %w", ErrNotSingle)
	}
	return found, nil
}

// ParEach calls fn for every matching row, splitting each matched table into
// ranges of batchSize rows run on a worker group bounded by GOMAXPROCS. fn
// may write only through the query's own terms. Structural changes panic
// with ErrWorldLocked; use Commands instead. A panic in fn is re-raised on
// the caller's goroutine after all workers stop.
func (q *Query) ParEach(batchSize int, fn func(c *Cursor)) {
	q.update()
	if batchSize <= 0 {
		batchSize = 256
	}
	w := q.world
	if !w.executing.Swap(true) {
		defer w.executing.Store(false)
	}
	last, this := q.window()

	var (
		g         errgroup.Group
		once      sync.Once
		recovered any
	)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, a := range q.matched {
		t := a.table
		n := t.Len()
		for start := 0; start < n; start += batchSize {
			end := min(start+batchSize, n)
			g.Go(func() error {
				defer func() {
					if r := recover(); r != nil {
						once.Do(func() { recovered = r })
					}
				}()
				c := &Cursor{world: w, table: t, lastRun: last, thisRun: this}
				for row := start; row < end; row++ {
					c.row, c.entity = row, t.entities[row]
					if q.matchesRow(c) {
						fn(c)
					}
				}
				return nil
			})
		}
	}
	_ = g.Wait()
	if recovered != nil {
		panic(recovered)
	}
}
