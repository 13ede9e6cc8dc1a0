package system

import (
	"math"
	"math/rand/v2"

	"github.com/l1jgo/ecscore/internal/component"
	"github.com/l1jgo/ecscore/internal/core/ecs"
	"github.com/l1jgo/ecscore/internal/core/event"
	coresys "github.com/l1jgo/ecscore/internal/core/system"
	"github.com/l1jgo/ecscore/internal/data"
)

const spawnedKind = "spawned"

// SpawnerSystem spawns a fixed number of drifters per frame through
// Commands. Their ids are reserved immediately, so the Spawned events carry
// the final entities.
// Phase 2 (Update).
type SpawnerSystem struct {
	perFrame int
	lifetime int
	rng      *rand.Rand

	bounds  *ecs.ResRead[component.Bounds]
	spawned *ecs.ResWrite[event.Queue[event.Spawned]]
}

func NewSpawnerSystem(perFrame, lifetime int, seed uint64) *SpawnerSystem {
	return &SpawnerSystem{
		perFrame: perFrame,
		lifetime: lifetime,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (s *SpawnerSystem) Name() string         { return NameSpawner }
func (s *SpawnerSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *SpawnerSystem) Init(p *coresys.Params) error {
	var err error
	if s.bounds, err = coresys.ReadResource[component.Bounds](p); err != nil {
		return err
	}
	s.spawned, err = coresys.WriteResource[event.Queue[event.Spawned]](p)
	return err
}

func (s *SpawnerSystem) Update(ctx *coresys.Context) {
	if s.perFrame <= 0 {
		return
	}
	var b component.Bounds
	if r, ok := s.bounds.Get(); ok {
		b = *r
	}
	queue, _ := s.spawned.Get()
	tmpl := data.SpawnTemplate{
		Name:     spawnedKind,
		X:        b.Width / 2,
		Y:        b.Height / 2,
		RandomX:  b.Width / 2,
		RandomY:  b.Height / 2,
		Speed:    1,
		HP:       100,
		MaxHP:    100,
		Regen:    1,
		Lifetime: s.lifetime,
	}
	for range s.perFrame {
		t := tmpl
		if s.rng.IntN(8) == 0 {
			t.Burning = 10
		}
		e := ctx.Commands().Spawn(bundle(t, s.rng)...)
		if queue != nil {
			queue.Send(event.Spawned{Entity: e})
		}
	}
}

// bundle builds the component values for one entity of template t.
func bundle(t data.SpawnTemplate, rng *rand.Rand) []any {
	angle := rng.Float64() * 2 * math.Pi
	out := []any{
		component.Kind{Name: t.Name},
		component.Position{
			X: t.X + (rng.Float64()*2-1)*t.RandomX,
			Y: t.Y + (rng.Float64()*2-1)*t.RandomY,
		},
		component.Velocity{
			DX: math.Cos(angle) * t.Speed,
			DY: math.Sin(angle) * t.Speed,
		},
		component.Health{HP: t.HP, MaxHP: t.MaxHP},
	}
	if t.Regen > 0 {
		out = append(out, component.Regen{PerFrame: t.Regen})
	}
	if t.Burning > 0 {
		out = append(out, component.Burning{Frames: t.Burning, Damage: burnDamage})
	}
	if t.Lifetime > 0 {
		out = append(out, component.Lifetime{Remaining: t.Lifetime})
	}
	return out
}

const burnDamage = 3

// Populate spawns every template directly into w. It must run outside of a
// frame.
func Populate(w *ecs.World, templates []data.SpawnTemplate, seed uint64) (int, error) {
	rng := rand.New(rand.NewPCG(seed, seed))
	n := 0
	for _, t := range templates {
		for range t.Count {
			if _, err := w.Spawn(bundle(t, rng)...); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}
