package ecs

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"
)

// ComponentID is the dense id a world assigns to a registered component or
// resource type.
type ComponentID uint32

// StorageKind selects where values of a component type live.
type StorageKind uint8

const (
	// StorageTable keeps values in the archetype's dense columns. Fast to
	// iterate, but adding or removing moves the entity between tables.
	StorageTable StorageKind = iota
	// StorageSparseSet keeps values in one world-wide sparse set. Adding or
	// removing never moves the entity.
	StorageSparseSet
)

func (k StorageKind) String() string {
	switch k {
	case StorageTable:
		return "table"
	case StorageSparseSet:
		return "sparse_set"
	default:
		return fmt.Sprintf("storage(%d)", uint8(k))
	}
}

// Dropper is implemented by component types that must release something when
// their value is destroyed (despawn, remove, or replacement).
type Dropper interface {
	Drop()
}

// ComponentInfo is the descriptor fixed at first registration.
type ComponentInfo struct {
	id       ComponentID
	name     string
	typ      reflect.Type
	size     uintptr
	align    uintptr
	storage  StorageKind
	resource bool
	drops    bool

	newColumn    func(capacity int) column
	newSparseSet func() sparseStorage
}

func (i *ComponentInfo) ID() ComponentID      { return i.id }
func (i *ComponentInfo) Name() string         { return i.name }
func (i *ComponentInfo) Type() reflect.Type   { return i.typ }
func (i *ComponentInfo) Size() uintptr        { return i.size }
func (i *ComponentInfo) Align() uintptr       { return i.align }
func (i *ComponentInfo) Storage() StorageKind { return i.storage }
func (i *ComponentInfo) IsResource() bool     { return i.resource }
func (i *ComponentInfo) HasDrop() bool        { return i.drops }

func newComponentInfo[T any](id ComponentID, storage StorageKind, resource bool) *ComponentInfo {
	t := typeOf[T]()
	return &ComponentInfo{
		id:       id,
		name:     t.String(),
		typ:      t,
		size:     t.Size(),
		align:    uintptr(t.Align()),
		storage:  storage,
		resource: resource,
		drops:    implementsDropper[T](),
		newColumn: func(capacity int) column {
			return newColumn[T](capacity)
		},
		newSparseSet: func() sparseStorage {
			return newSparseSet[T]()
		},
	}
}

type componentConfig struct {
	storage StorageKind
}

type ComponentOption func(*componentConfig)

// WithStorage overrides the default table storage.
func WithStorage(kind StorageKind) ComponentOption {
	return func(c *componentConfig) { c.storage = kind }
}

// Register assigns T a component id in w. Registering the same type again with
// the same storage kind returns the existing id.
func Register[T any](w *World, opts ...ComponentOption) (ComponentID, error) {
	w.assertUnlocked("register component")
	cfg := componentConfig{storage: StorageTable}
	for _, o := range opts {
		o(&cfg)
	}
	t := typeOf[T]()
	if id, ok := w.components.Lookup(t); ok {
		info := w.components.Info(id)
		if info.storage != cfg.storage {
			return id, fmt.Errorf("register %s as %s: %w (%s)", info.name, cfg.storage, ErrAlreadyRegistered, info.storage)
		}
		return id, nil
	}
	info := w.components.add(t, false, func(id ComponentID) *ComponentInfo {
		return newComponentInfo[T](id, cfg.storage, false)
	})
	if info.storage == StorageSparseSet {
		w.addSparseSet(info)
	}
	w.log.Debug("component registered",
		zap.String("component", info.name),
		zap.Uint32("id", uint32(info.id)),
		zap.Stringer("storage", info.storage))
	return info.id, nil
}

// MustRegister is Register for setup code where failure is a programming error.
func MustRegister[T any](w *World, opts ...ComponentOption) ComponentID {
	id, err := Register[T](w, opts...)
	if err != nil {
		panic(err)
	}
	return id
}

// ComponentIDOf returns T's id, or ErrComponentNotRegistered.
func ComponentIDOf[T any](w *World) (ComponentID, error) {
	t := typeOf[T]()
	id, ok := w.components.Lookup(t)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrComponentNotRegistered, t)
	}
	return id, nil
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func implementsDropper[T any]() bool {
	_, ok := any((*T)(nil)).(Dropper)
	return ok
}
