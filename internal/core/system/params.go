package system

import (
	"fmt"

	"github.com/l1jgo/ecscore/internal/core/ecs"
)

// Params collects a system's access signature during Init. Every query and
// resource handle declared here is bound to the system's change ticks.
type Params struct {
	world     *ecs.World
	name      string
	ticks     *ecs.SystemTicks
	access    ecs.Access
	exclusive bool
}

// World is for building query terms and registering types during Init.
// Systems must not keep it for use in Update.
func (p *Params) World() *ecs.World { return p.world }

func (p *Params) Name() string { return p.name }

// Access returns the accumulated signature.
func (p *Params) Access() ecs.Access { return p.access }

// Exclusive marks the system as needing the whole world.
func (p *Params) Exclusive() { p.exclusive = true }

// Query builds a query bound to the system. A query that conflicts with one
// already declared by the same system is rejected.
func (p *Params) Query(terms ...ecs.Term) (*ecs.Query, error) {
	q, err := ecs.NewQuery(p.world, terms...)
	if err != nil {
		return nil, fmt.Errorf("system %s: %w", p.name, err)
	}
	if err := p.claim(q.Access()); err != nil {
		return nil, err
	}
	q.BindTicks(p.ticks)
	return q, nil
}

// Resource binds a resource handle to the system.
func (p *Params) Resource(r ecs.ResourceParam) error {
	var a ecs.Access
	if r.Mutable() {
		a.AddWrite(r.ResourceID())
	} else {
		a.AddRead(r.ResourceID())
	}
	if err := p.claim(a); err != nil {
		return err
	}
	r.BindTicks(p.ticks)
	return nil
}

func (p *Params) claim(a ecs.Access) error {
	if c := p.access.Conflicts(a); len(c) > 0 {
		return fmt.Errorf("system %s: %v: %w", p.name, p.world.Components().Names(c), ecs.ErrAccessConflict)
	}
	p.access.Extend(a)
	return nil
}

// ReadResource declares shared access to resource T.
func ReadResource[T any](p *Params) (*ecs.ResRead[T], error) {
	r := ecs.NewResRead[T](p.world)
	if err := p.Resource(r); err != nil {
		return nil, err
	}
	return r, nil
}

// WriteResource declares exclusive access to resource T.
func WriteResource[T any](p *Params) (*ecs.ResWrite[T], error) {
	r := ecs.NewResWrite[T](p.world)
	if err := p.Resource(r); err != nil {
		return nil, err
	}
	return r, nil
}

// Removed declares a reader of entities that lost T. Removals are recorded
// only while commands apply, so the reader claims no access.
func Removed[T any](p *Params) (*ecs.RemovedReader[T], error) {
	r, err := ecs.NewRemovedReader[T](p.world)
	if err != nil {
		return nil, fmt.Errorf("system %s: removed: %w", p.name, err)
	}
	r.BindTicks(p.ticks)
	return r, nil
}
