package ecs

import (
	"fmt"
	"math"
	"sync"
)

// Entity encodes a 32-bit index in the lower bits and a 32-bit generation
// in the upper bits. Generation increments when an index is recycled so stale
// handles never alias a newer entity.
type Entity uint64

// PlaceholderEntity is returned by failed spawns. It never refers to a live entity.
const PlaceholderEntity = Entity(math.MaxUint64)

func NewEntity(index uint32, generation uint32) Entity {
	return Entity(uint64(generation)<<32 | uint64(index))
}

func (e Entity) Index() uint32      { return uint32(e) }
func (e Entity) Generation() uint32 { return uint32(e >> 32) }

func (e Entity) String() string {
	if e == PlaceholderEntity {
		return "placeholder"
	}
	return fmt.Sprintf("%dv%d", e.Index(), e.Generation())
}

// EntityLocation is the only indirection from an Entity to its table row.
type EntityLocation struct {
	Archetype ArchetypeID
	Row       int
}

type entityMeta struct {
	generation uint32
	alive      bool
	loc        EntityLocation
}

// EntityPool manages entity allocation with generational indices and a free list.
// Reserve may be called concurrently; every other method requires exclusive access.
type EntityPool struct {
	metas    []entityMeta
	freeList []uint32
	alive    int

	mu         sync.Mutex // guards freeList, reserved and pendingNew
	reserved   []Entity
	pendingNew uint32
}

func NewEntityPool(capacity int) *EntityPool {
	if capacity <= 0 {
		capacity = 1024
	}
	return &EntityPool{
		metas:    make([]entityMeta, 0, capacity),
		freeList: make([]uint32, 0, capacity/4),
	}
}

// Alloc pops a freed index, bumping its generation, or appends a new index at
// generation 0. Pending reservations must be flushed first.
func (p *EntityPool) Alloc() Entity {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alive++
	if n := len(p.freeList); n > 0 {
		idx := p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
		m := &p.metas[idx]
		m.generation++
		m.alive = true
		return NewEntity(idx, m.generation)
	}
	idx := uint32(len(p.metas))
	p.metas = append(p.metas, entityMeta{alive: true})
	return NewEntity(idx, 0)
}

// Free releases e's index. It returns false for stale or never-issued handles.
func (p *EntityPool) Free(e Entity) bool {
	if !p.Alive(e) {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	m := &p.metas[e.Index()]
	m.alive = false
	m.loc = EntityLocation{}
	p.freeList = append(p.freeList, e.Index())
	p.alive--
	return true
}

func (p *EntityPool) Alive(e Entity) bool {
	idx := e.Index()
	if int(idx) >= len(p.metas) {
		return false
	}
	m := p.metas[idx]
	return m.alive && m.generation == e.Generation()
}

// Location returns where e's table row lives.
func (p *EntityPool) Location(e Entity) (EntityLocation, bool) {
	if !p.Alive(e) {
		return EntityLocation{}, false
	}
	return p.metas[e.Index()].loc, true
}

// Len returns the number of live entities.
func (p *EntityPool) Len() int { return p.alive }

func (p *EntityPool) setLocation(index uint32, loc EntityLocation) {
	p.metas[index].loc = loc
}

// Reserve hands out an entity id without touching entity metadata, so it is
// safe to call from systems running concurrently. The entity becomes alive
// when the world flushes its reservations.
func (p *EntityPool) Reserve() Entity {
	p.mu.Lock()
	defer p.mu.Unlock()
	var e Entity
	if n := len(p.freeList); n > 0 {
		idx := p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
		e = NewEntity(idx, p.metas[idx].generation+1)
	} else {
		e = NewEntity(uint32(len(p.metas))+p.pendingNew, 0)
		p.pendingNew++
	}
	p.reserved = append(p.reserved, e)
	return e
}

// Pending reports how many reserved entities await a flush.
func (p *EntityPool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.reserved)
}

func (p *EntityPool) flushReserved(place func(Entity)) {
	p.mu.Lock()
	reserved := p.reserved
	p.reserved = nil
	p.pendingNew = 0
	p.mu.Unlock()

	for _, e := range reserved {
		idx := e.Index()
		for uint32(len(p.metas)) <= idx {
			p.metas = append(p.metas, entityMeta{})
		}
		m := &p.metas[idx]
		m.generation = e.Generation()
		m.alive = true
		p.alive++
		place(e)
	}
}
