package ecs

import "errors"

var (
	// ErrEntityNotFound: the handle's generation no longer matches a live entity.
	ErrEntityNotFound = errors.New("entity not found")
	// ErrComponentNotRegistered: a type used in a bundle or query was never registered.
	ErrComponentNotRegistered = errors.New("component not registered")
	// ErrAlreadyRegistered: a type was registered again with a different storage kind.
	ErrAlreadyRegistered = errors.New("component already registered")
	// ErrMissingComponent: the entity is alive but lacks the component.
	ErrMissingComponent = errors.New("entity does not have component")
	// ErrAccessConflict: one signature aliases a type mutably.
	ErrAccessConflict = errors.New("conflicting access")
	// ErrQueryMismatch: the entity exists but does not satisfy the query.
	ErrQueryMismatch = errors.New("entity does not match query")
	// ErrNotSingle: Single found zero or several matches.
	ErrNotSingle = errors.New("query did not match exactly one entity")
	// ErrWorldLocked: a structural change was attempted while systems run concurrently.
	ErrWorldLocked = errors.New("world is locked for concurrent execution")
)
