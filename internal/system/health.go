package system

import (
	"github.com/l1jgo/ecscore/internal/component"
	"github.com/l1jgo/ecscore/internal/core/ecs"
	"github.com/l1jgo/ecscore/internal/core/event"
	coresys "github.com/l1jgo/ecscore/internal/core/system"
)

// BurnSystem applies burn damage and removes Burning once it runs out.
// Phase 2 (Update).
type BurnSystem struct {
	health  *ecs.WriteTerm[component.Health]
	burning *ecs.WriteTerm[component.Burning]
	query   *ecs.Query
}

func NewBurnSystem() *BurnSystem { return &BurnSystem{} }

func (s *BurnSystem) Name() string         { return NameBurn }
func (s *BurnSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *BurnSystem) Init(p *coresys.Params) error {
	w := p.World()
	s.health = ecs.Write[component.Health](w)
	s.burning = ecs.Write[component.Burning](w)
	q, err := p.Query(s.health, s.burning)
	s.query = q
	return err
}

func (s *BurnSystem) Update(ctx *coresys.Context) {
	for c := range s.query.Iter() {
		b := s.burning.Get(c)
		if h := s.health.Peek(c); h.HP > 0 && b.Damage > 0 {
			s.health.Get(c).HP = max(h.HP-b.Damage, 0)
		}
		b.Frames--
		if b.Frames <= 0 {
			ecs.QueueRemove[component.Burning](ctx.Commands(), c.Entity())
		}
	}
}

// RegenSystem restores HP on entities that are not burning. It is ordered
// after BurnSystem, so an entity whose burn ends this frame already regens.
// Phase 2 (Update).
type RegenSystem struct {
	health *ecs.WriteTerm[component.Health]
	regen  *ecs.ReadTerm[component.Regen]
	query  *ecs.Query
}

func NewRegenSystem() *RegenSystem { return &RegenSystem{} }

func (s *RegenSystem) Name() string         { return NameRegen }
func (s *RegenSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *RegenSystem) Init(p *coresys.Params) error {
	w := p.World()
	s.health = ecs.Write[component.Health](w)
	s.regen = ecs.Read[component.Regen](w)
	q, err := p.Query(s.health, s.regen, ecs.Without[component.Burning](w))
	s.query = q
	return err
}

func (s *RegenSystem) Update(_ *coresys.Context) {
	for c := range s.query.Iter() {
		h := s.health.Peek(c)
		r := s.regen.Get(c)
		// dead entities don't come back
		if h.HP <= 0 || h.HP >= h.MaxHP || r.PerFrame <= 0 {
			continue
		}
		s.health.Get(c).HP = min(h.HP+r.PerFrame, h.MaxHP)
	}
}

// DeathSystem despawns entities whose health changed to zero.
// Phase 3 (PostUpdate).
type DeathSystem struct {
	health *ecs.ReadTerm[component.Health]
	query  *ecs.Query
	died   *ecs.ResWrite[event.Queue[event.Died]]
}

func NewDeathSystem() *DeathSystem { return &DeathSystem{} }

func (s *DeathSystem) Name() string         { return NameDeath }
func (s *DeathSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *DeathSystem) Init(p *coresys.Params) error {
	w := p.World()
	s.health = ecs.Read[component.Health](w)
	q, err := p.Query(s.health, ecs.Changed[component.Health](w))
	if err != nil {
		return err
	}
	s.query = q
	s.died, err = coresys.WriteResource[event.Queue[event.Died]](p)
	return err
}

func (s *DeathSystem) Update(ctx *coresys.Context) {
	var died *event.Queue[event.Died]
	for c := range s.query.Iter() {
		if s.health.Get(c).HP > 0 {
			continue
		}
		ctx.Commands().Despawn(c.Entity())
		if died == nil {
			died, _ = s.died.Get()
		}
		if died != nil {
			died.Send(event.Died{Entity: c.Entity()})
		}
	}
}
