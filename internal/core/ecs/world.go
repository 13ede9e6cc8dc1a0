package ecs

import (
	"fmt"
	"reflect"
	"sync/atomic"

	"go.uber.org/zap"
)

// World is the top-level ECS container. It owns the entity pool, the component
// registry, the archetype store with its tables, the sparse sets, resources
// and observers. There are no package-level singletons: every operation goes
// through an explicit World.
type World struct {
	log        *zap.Logger
	entities   *EntityPool
	components *Components
	archetypes *Archetypes
	sparse     []sparseStorage // by component id, nil unless sparse-set stored
	sparseIDs  []ComponentID
	resources  []*resourceSlot // by component id
	observers  observers
	removed    map[ComponentID][]removal

	tableCapacity int

	changeTick     atomic.Uint32
	lastChangeTick Tick
	lastCheckTick  Tick
	executing      atomic.Bool
}

type WorldOption func(*World)

// WithEntityCapacity pre-sizes entity metadata.
func WithEntityCapacity(n int) WorldOption {
	return func(w *World) { w.entities = NewEntityPool(n) }
}

// WithTableCapacity sets the initial row capacity of newly created tables.
func WithTableCapacity(n int) WorldOption {
	return func(w *World) {
		if n > 0 {
			w.tableCapacity = n
		}
	}
}

func NewWorld(log *zap.Logger, opts ...WorldOption) *World {
	if log == nil {
		log = zap.NewNop()
	}
	w := &World{
		log:           log,
		entities:      NewEntityPool(1024),
		components:    NewComponents(),
		archetypes:    newArchetypes(),
		observers:     newObservers(),
		tableCapacity: 64,
	}
	for _, o := range opts {
		o(w)
	}
	w.changeTick.Store(1)
	w.archetypeFor(ComponentSet{})
	return w
}

func (w *World) Logger() *zap.Logger         { return w.log }
func (w *World) Components() *Components     { return w.components }
func (w *World) Archetypes() *Archetypes     { return w.archetypes }
func (w *World) EntityCount() int            { return w.entities.Len() }
func (w *World) Alive(e Entity) bool         { return w.entities.Alive(e) }
func (w *World) ReserveEntity() Entity       { return w.entities.Reserve() }
func (w *World) PendingReservations() int    { return w.entities.Pending() }
func (w *World) IsExecuting() bool           { return w.executing.Load() }
func (w *World) SetExecuting(executing bool) { w.executing.Store(executing) }

// Location returns e's archetype and row.
func (w *World) Location(e Entity) (EntityLocation, bool) {
	return w.entities.Location(e)
}

// ChangeTick is the tick stamped on writes made right now.
func (w *World) ChangeTick() Tick { return Tick(w.changeTick.Load()) }

// IncrementChangeTick advances the world tick and returns the previous value.
// Each system run takes one tick this way, so runs never share a tick.
func (w *World) IncrementChangeTick() Tick {
	return Tick(w.changeTick.Add(1) - 1)
}

// LastChangeTick bounds the change window of queries run outside any system.
func (w *World) LastChangeTick() Tick { return w.lastChangeTick }

// ClearTrackers ends a frame for queries run outside systems: changes made so
// far stop being reported to them.
func (w *World) ClearTrackers() {
	prev := w.lastChangeTick
	w.lastChangeTick = w.IncrementChangeTick()
	w.pruneRemoved(prev)
}

// CheckChangeTicks clamps every stored tick so none is older than
// MaxChangeAge. It returns the tick it clamped against.
func (w *World) CheckChangeTicks() Tick {
	now := w.ChangeTick()
	for _, a := range w.archetypes.list {
		a.table.checkTicks(now)
	}
	for _, id := range w.sparseIDs {
		w.sparse[id].checkTicks(now)
	}
	for _, r := range w.resources {
		if r != nil {
			r.ticks.checkTicks(now)
		}
	}
	w.checkRemovedTicks(now)
	w.lastChangeTick.CheckTick(now)
	w.lastCheckTick = now
	return now
}

// MaybeCheckChangeTicks runs CheckChangeTicks once the world tick has moved
// CheckTickThreshold past the previous scan.
func (w *World) MaybeCheckChangeTicks() (Tick, bool) {
	now := w.ChangeTick()
	if uint32(now.RelativeTo(w.lastCheckTick)) < CheckTickThreshold {
		return now, false
	}
	return w.CheckChangeTicks(), true
}

// Flush materializes entities reserved through Commands into the empty archetype.
func (w *World) Flush() {
	w.assertUnlocked("flush")
	w.flush()
}

func (w *World) flush() {
	empty := w.archetypes.Get(EmptyArchetypeID)
	w.entities.flushReserved(func(e Entity) {
		row := empty.table.push(e)
		w.entities.setLocation(e.Index(), EntityLocation{Archetype: EmptyArchetypeID, Row: row})
	})
}

func (w *World) assertUnlocked(op string) {
	if w.executing.Load() {
		panic(fmt.Errorf("%s: %w", op, ErrWorldLocked))
	}
}

func (w *World) addSparseSet(info *ComponentInfo) {
	for len(w.sparse) <= int(info.id) {
		w.sparse = append(w.sparse, nil)
	}
	w.sparse[info.id] = info.newSparseSet()
	w.sparseIDs = append(w.sparseIDs, info.id)
}

type bundleItem struct {
	info  *ComponentInfo
	value any
}

// resolveBundle maps component values to descriptors. A type given twice
// keeps its last value.
func (w *World) resolveBundle(components []any) ([]bundleItem, error) {
	items := make([]bundleItem, 0, len(components))
	for _, v := range components {
		if v == nil {
			return nil, fmt.Errorf("%w: nil component", ErrComponentNotRegistered)
		}
		t := reflect.TypeOf(v)
		id, ok := w.components.Lookup(t)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrComponentNotRegistered, t)
		}
		dup := false
		for i := range items {
			if items[i].info.id == id {
				items[i].value = v
				dup = true
				break
			}
		}
		if !dup {
			items = append(items, bundleItem{info: w.components.Info(id), value: v})
		}
	}
	return items, nil
}

// Spawn creates an entity carrying the given components as one bundle.
func (w *World) Spawn(components ...any) (Entity, error) {
	w.assertUnlocked("spawn")
	w.flush()
	items, err := w.resolveBundle(components)
	if err != nil {
		return PlaceholderEntity, fmt.Errorf("spawn: %w", err)
	}
	var tableSet ComponentSet
	for _, it := range items {
		if it.info.storage == StorageTable {
			tableSet.Add(it.info.id)
		}
	}
	arch := w.archetypeFor(tableSet)
	e := w.entities.Alloc()
	row := arch.table.push(e)
	tick := w.ChangeTick()
	ids := make([]ComponentID, len(items))
	for i, it := range items {
		ids[i] = it.info.id
		if it.info.storage == StorageSparseSet {
			w.sparse[it.info.id].insert(e, it.value, tick)
		} else {
			arch.table.column(it.info.id).push(it.value, NewComponentTicks(tick))
		}
	}
	w.entities.setLocation(e.Index(), EntityLocation{Archetype: arch.id, Row: row})
	w.trigger(OnAdd, e, ids)
	w.trigger(OnInsert, e, ids)
	return e, nil
}

// Insert adds or replaces components on e. New table components move e to
// the matching archetype in one step; replaced values keep their added tick.
func (w *World) Insert(e Entity, components ...any) error {
	w.assertUnlocked("insert")
	w.flush()
	if !w.entities.Alive(e) {
		return fmt.Errorf("insert into %v: %w", e, ErrEntityNotFound)
	}
	items, err := w.resolveBundle(components)
	if err != nil {
		return fmt.Errorf("insert into %v: %w", e, err)
	}
	w.insertItems(e, items)
	return nil
}

func (w *World) insertItems(e Entity, items []bundleItem) {
	loc, _ := w.entities.Location(e)
	arch := w.archetypes.Get(loc.Archetype)
	tick := w.ChangeTick()

	var (
		added    []ComponentID
		all      = make([]ComponentID, 0, len(items))
		newItems []bundleItem
		newSet   ComponentSet
	)
	for _, it := range items {
		id := it.info.id
		all = append(all, id)
		switch {
		case it.info.storage == StorageSparseSet:
			if w.sparse[id].insert(e, it.value, tick) {
				added = append(added, id)
			}
		case arch.table.Has(id):
			arch.table.column(id).replace(loc.Row, it.value, tick)
		default:
			newItems = append(newItems, it)
			newSet.Add(id)
			added = append(added, id)
		}
	}
	if len(newItems) > 0 {
		dst := w.addTarget(arch, newSet)
		w.moveEntity(e, loc, dst)
		for _, it := range newItems {
			dst.table.column(it.info.id).push(it.value, NewComponentTicks(tick))
		}
	}
	w.trigger(OnAdd, e, added)
	w.trigger(OnInsert, e, all)
}

// moveEntity relocates e's row into dst and fixes the location of whichever
// entity the swap-remove moved into the vacated row.
func (w *World) moveEntity(e Entity, loc EntityLocation, dst *Archetype) int {
	src := w.archetypes.Get(loc.Archetype)
	newRow, moved, ok := src.table.moveRow(loc.Row, dst.table)
	if ok {
		w.entities.setLocation(moved.Index(), EntityLocation{Archetype: src.id, Row: loc.Row})
	}
	w.entities.setLocation(e.Index(), EntityLocation{Archetype: dst.id, Row: newRow})
	return newRow
}

// Remove detaches T from e. Removing an absent component is not an error.
func Remove[T any](w *World, e Entity) error {
	id, err := ComponentIDOf[T](w)
	if err != nil {
		return fmt.Errorf("remove from %v: %w", e, err)
	}
	return w.RemoveIDs(e, id)
}

// RemoveIDs detaches a set of components from e in one migration step.
func (w *World) RemoveIDs(e Entity, ids ...ComponentID) error {
	w.assertUnlocked("remove")
	w.flush()
	if !w.entities.Alive(e) {
		return fmt.Errorf("remove from %v: %w", e, ErrEntityNotFound)
	}
	for _, id := range ids {
		if info := w.components.Info(id); info == nil || info.resource {
			return fmt.Errorf("remove from %v: %w: id %d", e, ErrComponentNotRegistered, id)
		}
	}
	present := w.presentIDs(e, ids)
	if len(present) == 0 {
		return nil
	}
	w.trigger(OnRemove, e, present)
	if !w.entities.Alive(e) {
		return nil
	}
	w.recordRemoved(e, present)

	loc, _ := w.entities.Location(e)
	arch := w.archetypes.Get(loc.Archetype)
	var removed ComponentSet
	for _, id := range present {
		if w.components.Info(id).storage == StorageSparseSet {
			w.sparse[id].remove(e)
		} else if arch.table.Has(id) {
			removed.Add(id)
		}
	}
	if !removed.IsEmpty() {
		w.moveEntity(e, loc, w.removeTarget(arch, removed))
	}
	return nil
}

func (w *World) presentIDs(e Entity, ids []ComponentID) []ComponentID {
	loc, _ := w.entities.Location(e)
	arch := w.archetypes.Get(loc.Archetype)
	var seen ComponentSet
	out := make([]ComponentID, 0, len(ids))
	for _, id := range ids {
		if seen.Has(id) {
			continue
		}
		seen.Add(id)
		if w.components.Info(id).storage == StorageSparseSet {
			if w.sparse[id].has(e) {
				out = append(out, id)
			}
		} else if arch.table.Has(id) {
			out = append(out, id)
		}
	}
	return out
}

// Despawn destroys e and all of its components. It returns false when e is
// stale or was never spawned.
func (w *World) Despawn(e Entity) bool {
	w.assertUnlocked("despawn")
	w.flush()
	if !w.entities.Alive(e) {
		return false
	}
	ids := w.ComponentsOf(e)
	w.trigger(OnDespawn, e, ids)
	w.trigger(OnRemove, e, ids)
	if !w.entities.Alive(e) {
		// an observer already despawned it
		return true
	}
	w.recordRemoved(e, ids)
	w.despawnRow(e)
	return true
}

func (w *World) despawnRow(e Entity) {
	loc, _ := w.entities.Location(e)
	arch := w.archetypes.Get(loc.Archetype)
	if moved, ok := arch.table.swapRemove(loc.Row); ok {
		w.entities.setLocation(moved.Index(), EntityLocation{Archetype: arch.id, Row: loc.Row})
	}
	for _, id := range w.sparseIDs {
		w.sparse[id].remove(e)
	}
	w.entities.Free(e)
}

// ComponentsOf lists e's component ids: table components first, ascending,
// then sparse-set components.
func (w *World) ComponentsOf(e Entity) []ComponentID {
	loc, ok := w.entities.Location(e)
	if !ok {
		return nil
	}
	table := w.archetypes.Get(loc.Archetype).table
	ids := append([]ComponentID(nil), table.ids...)
	for _, id := range w.sparseIDs {
		if w.sparse[id].has(e) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Get returns a copy of e's T.
func Get[T any](w *World, e Entity) (T, error) {
	p, _, err := lookupComponent[T](w, e)
	if err != nil {
		var zero T
		return zero, err
	}
	return *p, nil
}

// GetMut returns a pointer to e's T and records a write at the current tick.
// The pointer is invalidated by the next structural change.
func GetMut[T any](w *World, e Entity) (*T, error) {
	p, ticks, err := lookupComponent[T](w, e)
	if err != nil {
		return nil, err
	}
	ticks.SetChanged(w.ChangeTick())
	return p, nil
}

// Has reports whether e is alive and carries T.
func Has[T any](w *World, e Entity) bool {
	_, _, err := lookupComponent[T](w, e)
	return err == nil
}

// TicksOf returns the change ticks of e's T.
func TicksOf[T any](w *World, e Entity) (ComponentTicks, error) {
	_, ticks, err := lookupComponent[T](w, e)
	if err != nil {
		return ComponentTicks{}, err
	}
	return *ticks, nil
}

func lookupComponent[T any](w *World, e Entity) (*T, *ComponentTicks, error) {
	id, err := ComponentIDOf[T](w)
	if err != nil {
		return nil, nil, err
	}
	loc, ok := w.entities.Location(e)
	if !ok {
		return nil, nil, fmt.Errorf("%v: %w", e, ErrEntityNotFound)
	}
	info := w.components.Info(id)
	if info.storage == StorageSparseSet {
		set := w.sparse[id].(*SparseSet[T])
		d := set.denseIndex(e)
		if d < 0 {
			return nil, nil, fmt.Errorf("%v: %w: %s", e, ErrMissingComponent, info.name)
		}
		return &set.dense[d], &set.ticks[d], nil
	}
	col := ColumnOf[T](w.archetypes.Get(loc.Archetype).table, id)
	if col == nil {
		return nil, nil, fmt.Errorf("%v: %w: %s", e, ErrMissingComponent, info.name)
	}
	return col.Get(loc.Row), col.Ticks(loc.Row), nil
}
