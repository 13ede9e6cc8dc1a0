package system

import (
	"math"

	"github.com/l1jgo/ecscore/internal/component"
	"github.com/l1jgo/ecscore/internal/core/ecs"
	coresys "github.com/l1jgo/ecscore/internal/core/system"
)

// MovementSystem integrates velocity into position, wrapping at the world
// bounds. Rows are processed in parallel batches.
// Phase 2 (Update).
type MovementSystem struct {
	batchSize int

	pos    *ecs.WriteTerm[component.Position]
	vel    *ecs.ReadTerm[component.Velocity]
	query  *ecs.Query
	bounds *ecs.ResRead[component.Bounds]
}

func NewMovementSystem(batchSize int) *MovementSystem {
	return &MovementSystem{batchSize: batchSize}
}

func (s *MovementSystem) Name() string         { return NameMovement }
func (s *MovementSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *MovementSystem) Init(p *coresys.Params) error {
	w := p.World()
	s.pos = ecs.Write[component.Position](w)
	s.vel = ecs.Read[component.Velocity](w)
	q, err := p.Query(s.pos, s.vel)
	if err != nil {
		return err
	}
	s.query = q
	s.bounds, err = coresys.ReadResource[component.Bounds](p)
	return err
}

func (s *MovementSystem) Update(_ *coresys.Context) {
	var b component.Bounds
	if r, ok := s.bounds.Get(); ok {
		b = *r
	}
	s.query.ParEach(s.batchSize, func(c *ecs.Cursor) {
		v := s.vel.Get(c)
		if v.DX == 0 && v.DY == 0 {
			return // resting entities stay unchanged
		}
		p := s.pos.Get(c)
		p.X = wrap(p.X+v.DX, b.Width)
		p.Y = wrap(p.Y+v.DY, b.Height)
	})
}

func wrap(v, size float64) float64 {
	if size <= 0 {
		return v
	}
	v = math.Mod(v, size)
	if v < 0 {
		v += size
	}
	return v
}
