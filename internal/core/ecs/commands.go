package ecs

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

type command func(w *World) error

// Commands is a queue of deferred structural changes. Systems record into it
// while the world is locked; Apply replays the queue in issue order.
// Recording is safe from several goroutines, e.g. inside ParEach.
type Commands struct {
	world *World
	mu    sync.Mutex
	queue []command
}

func NewCommands(w *World) *Commands {
	return &Commands{world: w}
}

func (c *Commands) push(cmd command) {
	c.mu.Lock()
	c.queue = append(c.queue, cmd)
	c.mu.Unlock()
}

// Len returns the number of queued commands.
func (c *Commands) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Spawn reserves an entity now and gives it components when applied.
func (c *Commands) Spawn(components ...any) Entity {
	e := c.world.entities.Reserve()
	if len(components) > 0 {
		c.push(func(w *World) error { return w.Insert(e, components...) })
	}
	return e
}

func (c *Commands) Despawn(e Entity) {
	c.push(func(w *World) error {
		if !w.Despawn(e) {
			return fmt.Errorf("despawn %v: %w", e, ErrEntityNotFound)
		}
		return nil
	})
}

func (c *Commands) Insert(e Entity, components ...any) {
	c.push(func(w *World) error { return w.Insert(e, components...) })
}

func (c *Commands) Remove(e Entity, ids ...ComponentID) {
	c.push(func(w *World) error { return w.RemoveIDs(e, ids...) })
}

// Add queues an arbitrary world mutation.
func (c *Commands) Add(fn func(w *World)) {
	c.push(func(w *World) error {
		fn(w)
		return nil
	})
}

// Entity returns a builder for commands targeting e.
func (c *Commands) Entity(e Entity) *EntityCommands {
	return &EntityCommands{commands: c, entity: e}
}

// QueueRemove defers Remove[T].
func QueueRemove[T any](c *Commands, e Entity) {
	c.push(func(w *World) error { return Remove[T](w, e) })
}

// QueueInsertResource defers InsertResource.
func QueueInsertResource[T any](c *Commands, v T) {
	c.push(func(w *World) error {
		InsertResource(w, v)
		return nil
	})
}

// QueueRemoveResource defers RemoveResource.
func QueueRemoveResource[T any](c *Commands) {
	c.push(func(w *World) error {
		RemoveResource[T](w)
		return nil
	})
}

// Apply materializes reserved entities and runs every queued command in the
// order issued. A command whose target no longer exists is skipped. It
// returns the number of commands run.
func (c *Commands) Apply() int {
	w := c.world
	w.assertUnlocked("apply commands")
	w.flush()

	c.mu.Lock()
	queue := c.queue
	c.queue = nil
	c.mu.Unlock()

	for i, cmd := range queue {
		if err := cmd(w); err != nil {
			w.log.Warn("command skipped", zap.Int("index", i), zap.Error(err))
		}
	}
	return len(queue)
}

// EntityCommands chains commands for one entity.
type EntityCommands struct {
	commands *Commands
	entity   Entity
}

func (ec *EntityCommands) ID() Entity { return ec.entity }

func (ec *EntityCommands) Insert(components ...any) *EntityCommands {
	ec.commands.Insert(ec.entity, components...)
	return ec
}

func (ec *EntityCommands) Remove(ids ...ComponentID) *EntityCommands {
	ec.commands.Remove(ec.entity, ids...)
	return ec
}

func (ec *EntityCommands) Despawn() {
	ec.commands.Despawn(ec.entity)
}
