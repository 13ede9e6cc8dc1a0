package ecs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l1jgo/ecscore/internal/core/ecs"
)

func TestRemovedReaderSeesRemoveAndDespawn(t *testing.T) {
	w := newTestWorld(t)
	a, _ := w.Spawn(Position{}, Health{1})
	b, _ := w.Spawn(Position{}, Health{2})
	c, _ := w.Spawn(Position{})
	w.ClearTrackers()

	r, err := ecs.NewRemovedReader[Health](w)
	require.NoError(t, err)
	assert.Empty(t, r.Read())

	require.NoError(t, ecs.Remove[Health](w, a))
	require.NoError(t, ecs.Remove[Health](w, c)) // absent, not recorded
	w.Despawn(b)
	assert.Equal(t, []ecs.Entity{a, b}, r.Read())

	pos, _ := ecs.NewRemovedReader[Position](w)
	assert.Equal(t, []ecs.Entity{b}, pos.Read())

	w.ClearTrackers()
	assert.Empty(t, r.Read())
}

func TestRemovedReaderSystemWindow(t *testing.T) {
	w := newTestWorld(t)
	e, _ := w.Spawn(Marker{})

	r, err := ecs.NewRemovedReader[Marker](w)
	require.NoError(t, err)
	ticks := &ecs.SystemTicks{LastRun: w.IncrementChangeTick()}
	r.BindTicks(ticks)

	require.NoError(t, ecs.Remove[Marker](w, e))
	w.ClearTrackers()

	// a system running after the frame boundary still sees the removal
	ticks.ThisRun = w.IncrementChangeTick()
	assert.Equal(t, []ecs.Entity{e}, r.Read())

	ticks.LastRun = ticks.ThisRun
	ticks.ThisRun = w.IncrementChangeTick()
	assert.Empty(t, r.Read())

	w.ClearTrackers()
	w.ClearTrackers()
	ticks.LastRun = 0
	assert.Empty(t, r.Read(), "pruned after two frames")
}

func TestRemovedReaderRequiresRegistration(t *testing.T) {
	w := newTestWorld(t)
	type unknown struct{}
	_, err := ecs.NewRemovedReader[unknown](w)
	assert.ErrorIs(t, err, ecs.ErrComponentNotRegistered)
}
