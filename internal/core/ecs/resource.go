package ecs

type resourceSlot struct {
	value any // *T
	ticks ComponentTicks
}

// registerResource assigns T a resource id. Resource ids share the component
// id space so they can appear in the same access sets.
func registerResource[T any](w *World) ComponentID {
	t := typeOf[T]()
	if id, ok := w.components.LookupResource(t); ok {
		return id
	}
	w.assertUnlocked("register resource")
	info := w.components.add(t, true, func(id ComponentID) *ComponentInfo {
		return newComponentInfo[T](id, StorageTable, true)
	})
	return info.id
}

// ResourceID returns T's resource id if it was ever registered or inserted.
func ResourceID[T any](w *World) (ComponentID, bool) {
	return w.components.LookupResource(typeOf[T]())
}

// InsertResource stores v as the world's single T. Replacing an existing
// value keeps its added tick.
func InsertResource[T any](w *World, v T) ComponentID {
	w.assertUnlocked("insert resource")
	id := registerResource[T](w)
	for len(w.resources) <= int(id) {
		w.resources = append(w.resources, nil)
	}
	tick := w.ChangeTick()
	if slot := w.resources[id]; slot != nil {
		*slot.value.(*T) = v
		slot.ticks.SetChanged(tick)
		return id
	}
	w.resources[id] = &resourceSlot{value: &v, ticks: NewComponentTicks(tick)}
	return id
}

// RemoveResource drops the world's T. It reports whether one was present.
func RemoveResource[T any](w *World) bool {
	w.assertUnlocked("remove resource")
	slot, id := resourceSlotOf[T](w)
	if slot == nil {
		return false
	}
	if d, ok := slot.value.(Dropper); ok {
		d.Drop()
	}
	w.resources[id] = nil
	return true
}

// Resource returns the world's T without recording a write.
func Resource[T any](w *World) (*T, bool) {
	slot, _ := resourceSlotOf[T](w)
	if slot == nil {
		return nil, false
	}
	return slot.value.(*T), true
}

// ResourceMut returns the world's T and marks it changed.
func ResourceMut[T any](w *World) (*T, bool) {
	slot, _ := resourceSlotOf[T](w)
	if slot == nil {
		return nil, false
	}
	slot.ticks.SetChanged(w.ChangeTick())
	return slot.value.(*T), true
}

func HasResource[T any](w *World) bool {
	slot, _ := resourceSlotOf[T](w)
	return slot != nil
}

func ResourceTicks[T any](w *World) (ComponentTicks, bool) {
	slot, _ := resourceSlotOf[T](w)
	if slot == nil {
		return ComponentTicks{}, false
	}
	return slot.ticks, true
}

func resourceSlotOf[T any](w *World) (*resourceSlot, ComponentID) {
	id, ok := ResourceID[T](w)
	if !ok || int(id) >= len(w.resources) {
		return nil, id
	}
	return w.resources[id], id
}

// ResourceParam is a resource handle a system declares up front so the
// scheduler can include it in the system's access set.
type ResourceParam interface {
	ResourceID() ComponentID
	Mutable() bool
	BindTicks(ticks *SystemTicks)
}

type resourceHandle struct {
	world *World
	id    ComponentID
	ticks *SystemTicks
}

func (h *resourceHandle) ResourceID() ComponentID      { return h.id }
func (h *resourceHandle) BindTicks(ticks *SystemTicks) { h.ticks = ticks }

func (h *resourceHandle) slot() *resourceSlot {
	if int(h.id) >= len(h.world.resources) {
		return nil
	}
	return h.world.resources[h.id]
}

func (h *resourceHandle) window() (Tick, Tick) {
	if h.ticks != nil {
		return h.ticks.LastRun, h.ticks.ThisRun
	}
	return h.world.lastChangeTick, h.world.ChangeTick()
}

func (h *resourceHandle) IsAdded() bool {
	s := h.slot()
	if s == nil {
		return false
	}
	last, this := h.window()
	return s.ticks.IsAdded(last, this)
}

func (h *resourceHandle) IsChanged() bool {
	s := h.slot()
	if s == nil {
		return false
	}
	last, this := h.window()
	return s.ticks.IsChanged(last, this)
}

// ResRead is a shared view of resource T.
type ResRead[T any] struct {
	resourceHandle
}

func NewResRead[T any](w *World) *ResRead[T] {
	return &ResRead[T]{resourceHandle{world: w, id: registerResource[T](w)}}
}

func (r *ResRead[T]) Mutable() bool { return false }

// Get returns the resource. The value must not be modified through it.
func (r *ResRead[T]) Get() (*T, bool) {
	s := r.slot()
	if s == nil {
		return nil, false
	}
	return s.value.(*T), true
}

// ResWrite is an exclusive view of resource T.
type ResWrite[T any] struct {
	resourceHandle
}

func NewResWrite[T any](w *World) *ResWrite[T] {
	return &ResWrite[T]{resourceHandle{world: w, id: registerResource[T](w)}}
}

func (r *ResWrite[T]) Mutable() bool { return true }

// Get returns the resource and marks it changed at the current run's tick.
func (r *ResWrite[T]) Get() (*T, bool) {
	s := r.slot()
	if s == nil {
		return nil, false
	}
	_, this := r.window()
	s.ticks.SetChanged(this)
	return s.value.(*T), true
}

// Peek returns the resource without marking it changed.
func (r *ResWrite[T]) Peek() (*T, bool) {
	s := r.slot()
	if s == nil {
		return nil, false
	}
	return s.value.(*T), true
}
