package system

import (
	"github.com/l1jgo/ecscore/internal/component"
	"github.com/l1jgo/ecscore/internal/core/ecs"
	"github.com/l1jgo/ecscore/internal/core/event"
	coresys "github.com/l1jgo/ecscore/internal/core/system"
)

// LifetimeSystem counts lifetimes down and queues the despawn of expired
// entities. The despawn lands when the batch's commands are applied.
// Phase 3 (PostUpdate).
type LifetimeSystem struct {
	lifetime *ecs.WriteTerm[component.Lifetime]
	query    *ecs.Query
	expired  *ecs.ResWrite[event.Queue[event.Expired]]
}

func NewLifetimeSystem() *LifetimeSystem { return &LifetimeSystem{} }

func (s *LifetimeSystem) Name() string         { return NameLifetime }
func (s *LifetimeSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *LifetimeSystem) Init(p *coresys.Params) error {
	s.lifetime = ecs.Write[component.Lifetime](p.World())
	q, err := p.Query(s.lifetime)
	if err != nil {
		return err
	}
	s.query = q
	s.expired, err = coresys.WriteResource[event.Queue[event.Expired]](p)
	return err
}

func (s *LifetimeSystem) Update(ctx *coresys.Context) {
	expired, _ := s.expired.Peek()
	n := 0
	for c := range s.query.Iter() {
		l := s.lifetime.Get(c)
		l.Remaining--
		if l.Remaining > 0 {
			continue
		}
		ctx.Commands().Despawn(c.Entity())
		if expired != nil {
			expired.Send(event.Expired{Entity: c.Entity()})
		}
		n++
	}
	if n > 0 {
		// mark the queue changed only when something was sent
		s.expired.Get()
	}
}
