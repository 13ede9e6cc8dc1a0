package event

import (
	"reflect"

	"github.com/l1jgo/ecscore/internal/core/ecs"
)

func typeName[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}

// Expired is sent when an entity's lifetime runs out.
type Expired struct {
	Entity ecs.Entity
}

// Spawned is sent when the spawner creates an entity.
type Spawned struct {
	Entity ecs.Entity
}

// Died is sent when an entity's health reaches zero.
type Died struct {
	Entity ecs.Entity
}
