package system

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/l1jgo/ecscore/internal/component"
	"github.com/l1jgo/ecscore/internal/core/ecs"
	"github.com/l1jgo/ecscore/internal/core/event"
	coresys "github.com/l1jgo/ecscore/internal/core/system"
)

// System names, as referenced by the schedule manifest.
const (
	NameMovement = "movement"
	NameBurn     = "burn"
	NameRegen    = "regen"
	NameSpawner  = "spawner"
	NameDeath    = "death"
	NameLifetime = "lifetime"
	NameStats    = "stats"
)

// Options tunes the demo simulation.
type Options struct {
	BatchSize     int // ParEach rows per task
	SpawnPerFrame int
	Lifetime      int // frames, for spawned drifters
	Seed          uint64
	Bounds        component.Bounds
	LogEvery      uint64 // frames between stats log lines, 0 = never
}

// Install registers the demo components, resources, event queues and
// systems on s.
func Install(s *coresys.Schedule, log *zap.Logger, opts Options) error {
	w := s.World()
	if err := component.Register(w); err != nil {
		return fmt.Errorf("register components: %w", err)
	}
	ecs.InsertResource(w, opts.Bounds)
	ecs.InsertResource(w, Stats{})

	if err := event.Add[event.Spawned](w, s); err != nil {
		return err
	}
	if err := event.Add[event.Expired](w, s); err != nil {
		return err
	}
	if err := event.Add[event.Died](w, s); err != nil {
		return err
	}

	systems := []struct {
		sys  coresys.System
		opts []coresys.Option
	}{
		{NewSpawnerSystem(opts.SpawnPerFrame, opts.Lifetime, opts.Seed), nil},
		{NewMovementSystem(opts.BatchSize), nil},
		{NewBurnSystem(), nil},
		{NewRegenSystem(), []coresys.Option{coresys.After(NameBurn)}},
		{NewDeathSystem(), nil},
		{NewLifetimeSystem(), nil},
		{NewStatsSystem(log, opts.LogEvery), nil},
	}
	for _, e := range systems {
		if err := s.Add(e.sys, e.opts...); err != nil {
			return err
		}
	}
	return nil
}
