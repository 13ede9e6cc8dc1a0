package ecs

type removal struct {
	entity Entity
	tick   Tick
}

// recordRemoved notes that e lost ids, either by Remove or by despawn.
// Entries live until the frame after the one they were made in ends.
func (w *World) recordRemoved(e Entity, ids []ComponentID) {
	if len(ids) == 0 {
		return
	}
	if w.removed == nil {
		w.removed = make(map[ComponentID][]removal)
	}
	tick := w.ChangeTick()
	for _, id := range ids {
		w.removed[id] = append(w.removed[id], removal{entity: e, tick: tick})
	}
}

// pruneRemoved drops entries made at or before cutoff.
func (w *World) pruneRemoved(cutoff Tick) {
	now := w.ChangeTick()
	for id, list := range w.removed {
		keep := list[:0]
		for _, r := range list {
			if r.tick.IsNewerThan(cutoff, now) {
				keep = append(keep, r)
			}
		}
		if len(keep) == 0 {
			delete(w.removed, id)
		} else {
			w.removed[id] = keep
		}
	}
}

func (w *World) checkRemovedTicks(now Tick) {
	for _, list := range w.removed {
		for i := range list {
			list[i].tick.CheckTick(now)
		}
	}
}

// RemovedIDs returns the entities that lost component id inside
// (lastRun, thisRun], oldest first. An entity appears once per removal.
func (w *World) RemovedIDs(id ComponentID, lastRun, thisRun Tick) []Entity {
	var out []Entity
	for _, r := range w.removed[id] {
		if r.tick.IsNewerThan(lastRun, thisRun) {
			out = append(out, r.entity)
		}
	}
	return out
}

// RemovedReader reports entities that lost T since the reader's system last
// ran. Unbound readers use the world's (LastChangeTick, ChangeTick] window.
type RemovedReader[T any] struct {
	world *World
	id    ComponentID
	ticks *SystemTicks
}

func NewRemovedReader[T any](w *World) (*RemovedReader[T], error) {
	id, err := ComponentIDOf[T](w)
	if err != nil {
		return nil, err
	}
	return &RemovedReader[T]{world: w, id: id}, nil
}

func (r *RemovedReader[T]) BindTicks(ticks *SystemTicks) { r.ticks = ticks }

func (r *RemovedReader[T]) ComponentID() ComponentID { return r.id }

// Read returns the entities, which may already be despawned.
func (r *RemovedReader[T]) Read() []Entity {
	if r.ticks != nil {
		return r.world.RemovedIDs(r.id, r.ticks.LastRun, r.ticks.ThisRun)
	}
	return r.world.RemovedIDs(r.id, r.world.lastChangeTick, r.world.ChangeTick())
}

func (r *RemovedReader[T]) Len() int { return len(r.Read()) }
