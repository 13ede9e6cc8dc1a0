package ecs

import "go.uber.org/zap"

// ArchetypeID indexes the world's append-only archetype list.
type ArchetypeID uint32

// EmptyArchetypeID holds entities with no table components.
const EmptyArchetypeID ArchetypeID = 0

// Archetype groups every entity with exactly the same set of table-kind
// components and owns their Table. Sparse-set components never affect it.
type Archetype struct {
	id    ArchetypeID
	set   ComponentSet
	table *Table

	// transition caches keyed by the bundle's component-set key
	addEdges    map[string]ArchetypeID
	removeEdges map[string]ArchetypeID
}

func (a *Archetype) ID() ArchetypeID            { return a.id }
func (a *Archetype) Table() *Table              { return a.table }
func (a *Archetype) Len() int                   { return a.table.Len() }
func (a *Archetype) Entities() []Entity         { return a.table.entities }
func (a *Archetype) Components() []ComponentID  { return a.table.ids }
func (a *Archetype) Has(id ComponentID) bool    { return a.set.Has(id) }
func (a *Archetype) ComponentSet() ComponentSet { return a.set.Clone() }

// Archetypes is the store of all archetypes. It only ever grows, so an
// archetype id stays valid for the life of the world.
type Archetypes struct {
	list  []*Archetype
	byKey map[string]ArchetypeID
}

func newArchetypes() *Archetypes {
	return &Archetypes{
		list:  make([]*Archetype, 0, 16),
		byKey: make(map[string]ArchetypeID, 16),
	}
}

// Len doubles as the archetype generation: query caches compare against it.
func (a *Archetypes) Len() int { return len(a.list) }

func (a *Archetypes) Get(id ArchetypeID) *Archetype { return a.list[id] }

// Find returns the archetype for exactly set, if it exists.
func (a *Archetypes) Find(set ComponentSet) (*Archetype, bool) {
	id, ok := a.byKey[set.key()]
	if !ok {
		return nil, false
	}
	return a.list[id], true
}

// All returns the archetypes in creation order. Callers must not modify it.
func (a *Archetypes) All() []*Archetype { return a.list }

func (w *World) archetypeFor(set ComponentSet) *Archetype {
	if arch, ok := w.archetypes.Find(set); ok {
		return arch
	}
	ids := set.IDs()
	infos := make([]*ComponentInfo, len(ids))
	for i, id := range ids {
		infos[i] = w.components.Info(id)
	}
	arch := &Archetype{
		id:          ArchetypeID(len(w.archetypes.list)),
		set:         set.Clone(),
		table:       newTable(infos, w.tableCapacity),
		addEdges:    make(map[string]ArchetypeID),
		removeEdges: make(map[string]ArchetypeID),
	}
	w.archetypes.list = append(w.archetypes.list, arch)
	w.archetypes.byKey[set.key()] = arch.id
	w.log.Debug("archetype created",
		zap.Uint32("archetype", uint32(arch.id)),
		zap.Strings("components", w.components.Names(ids)))
	return arch
}

func (w *World) addTarget(src *Archetype, added ComponentSet) *Archetype {
	key := added.key()
	if id, ok := src.addEdges[key]; ok {
		return w.archetypes.Get(id)
	}
	dst := w.archetypeFor(src.set.Union(added))
	src.addEdges[key] = dst.id
	return dst
}

func (w *World) removeTarget(src *Archetype, removed ComponentSet) *Archetype {
	key := removed.key()
	if id, ok := src.removeEdges[key]; ok {
		return w.archetypes.Get(id)
	}
	dst := w.archetypeFor(src.set.Difference(removed))
	src.removeEdges[key] = dst.id
	return dst
}
