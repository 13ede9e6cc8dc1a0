package system

import (
	"errors"
	"fmt"
)

var (
	// ErrAmbiguousOrdering: two conflicting systems have no ordering between them.
	ErrAmbiguousOrdering = errors.New("ambiguous system ordering")
	ErrOrderingCycle     = errors.New("system ordering cycle")
	ErrUnknownLabel      = errors.New("unknown system label")
	ErrUnknownSystem     = errors.New("unknown system")
	ErrDuplicateSystem   = errors.New("duplicate system name")
)

// PanicError carries a system panic from its worker back to the goroutine
// that called Schedule.Run, where it is raised again.
type PanicError struct {
	System string
	Value  any
	Stack  []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("system %s panicked: %v", e.System, e.Value)
}

// Unwrap exposes the panic value when it was an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}
