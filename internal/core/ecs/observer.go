package ecs

import (
	"fmt"
	"slices"

	"go.uber.org/zap"
)

// Trigger names the structural event an observer listens for.
type Trigger uint8

const (
	// OnAdd fires when a component is added to an entity that lacked it.
	OnAdd Trigger = iota
	// OnInsert fires on every insert, including replacement of an existing value.
	OnInsert
	// OnRemove fires before a component is removed, by Remove or by despawn.
	OnRemove
	// OnDespawn fires before an entity is despawned, once per component it carries.
	OnDespawn
)

func (t Trigger) String() string {
	switch t {
	case OnAdd:
		return "on_add"
	case OnInsert:
		return "on_insert"
	case OnRemove:
		return "on_remove"
	case OnDespawn:
		return "on_despawn"
	default:
		return fmt.Sprintf("trigger(%d)", uint8(t))
	}
}

type ObserverID uint64

// ObserverFunc runs synchronously inside the structural operation that
// triggered it, with direct world access. Observers only run on the
// single-threaded mutation path, so they may mutate the world themselves.
type ObserverFunc func(w *World, e Entity, id ComponentID)

// maxObserverDepth bounds observers triggering observers.
const maxObserverDepth = 64

type observerKey struct {
	trigger   Trigger
	component ComponentID
}

type observer struct {
	id ObserverID
	fn ObserverFunc
}

type observers struct {
	byKey map[observerKey][]observer
	keys  map[ObserverID]observerKey
	next  ObserverID
	depth int
}

func newObservers() observers {
	return observers{
		byKey: make(map[observerKey][]observer),
		keys:  make(map[ObserverID]observerKey),
	}
}

// Observe registers fn for trigger on component id.
func (w *World) Observe(trigger Trigger, id ComponentID, fn ObserverFunc) ObserverID {
	w.assertUnlocked("observe")
	o := &w.observers
	o.next++
	key := observerKey{trigger: trigger, component: id}
	o.byKey[key] = append(o.byKey[key], observer{id: o.next, fn: fn})
	o.keys[o.next] = key
	w.log.Debug("observer registered",
		zap.Stringer("trigger", trigger),
		zap.String("component", w.components.Name(id)))
	return o.next
}

// Observe registers fn for trigger on component T.
func Observe[T any](w *World, trigger Trigger, fn ObserverFunc) (ObserverID, error) {
	id, err := ComponentIDOf[T](w)
	if err != nil {
		return 0, fmt.Errorf("observe %s: %w", trigger, err)
	}
	return w.Observe(trigger, id, fn), nil
}

// Unobserve removes an observer. It reports whether id was registered.
func (w *World) Unobserve(id ObserverID) bool {
	w.assertUnlocked("unobserve")
	o := &w.observers
	key, ok := o.keys[id]
	if !ok {
		return false
	}
	delete(o.keys, id)
	o.byKey[key] = slices.DeleteFunc(slices.Clone(o.byKey[key]), func(ob observer) bool {
		return ob.id == id
	})
	if len(o.byKey[key]) == 0 {
		delete(o.byKey, key)
	}
	return true
}

func (w *World) trigger(t Trigger, e Entity, ids []ComponentID) {
	o := &w.observers
	if len(o.keys) == 0 || len(ids) == 0 {
		return
	}
	if o.depth >= maxObserverDepth {
		w.log.Warn("observer recursion limit reached",
			zap.Stringer("trigger", t),
			zap.Stringer("entity", e))
		return
	}
	o.depth++
	defer func() { o.depth-- }()

	for _, id := range ids {
		for _, ob := range o.byKey[observerKey{trigger: t, component: id}] {
			if !w.entities.Alive(e) {
				return
			}
			ob.fn(w, e, id)
		}
	}
}
