package component

import (
	"go.uber.org/multierr"

	"github.com/l1jgo/ecscore/internal/core/ecs"
)

// Pure data, zero methods. All mutations happen in systems.

type Position struct {
	X, Y float64
}

type Velocity struct {
	DX, DY float64
}

// Health is clamped to [0, MaxHP] by the systems that touch it.
type Health struct {
	HP    int
	MaxHP int
}

// Regen restores PerFrame HP each frame while the entity is not burning.
type Regen struct {
	PerFrame int
}

// Burning deals Damage per frame for Frames frames. It comes and goes often,
// so it lives in a sparse set and does not split archetypes.
type Burning struct {
	Frames int
	Damage int
}

// Lifetime counts frames down to despawn.
type Lifetime struct {
	Remaining int
}

// Kind names the spawn template an entity came from.
type Kind struct {
	Name string
}

// Bounds is a world resource: positions wrap around a Width x Height torus.
// A zero dimension disables wrapping on that axis.
type Bounds struct {
	Width, Height float64
}

// Register registers every demo component with w.
func Register(w *ecs.World) error {
	var errs error
	errs = multierr.Append(errs, register[Position](w))
	errs = multierr.Append(errs, register[Velocity](w))
	errs = multierr.Append(errs, register[Health](w))
	errs = multierr.Append(errs, register[Regen](w))
	errs = multierr.Append(errs, register[Burning](w, ecs.WithStorage(ecs.StorageSparseSet)))
	errs = multierr.Append(errs, register[Lifetime](w))
	errs = multierr.Append(errs, register[Kind](w))
	return errs
}

func register[T any](w *ecs.World, opts ...ecs.ComponentOption) error {
	_, err := ecs.Register[T](w, opts...)
	return err
}
