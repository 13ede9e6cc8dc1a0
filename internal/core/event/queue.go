package event

import (
	"github.com/l1jgo/ecscore/internal/core/ecs"
	"github.com/l1jgo/ecscore/internal/core/system"
)

// Queue is a double-buffered event queue for one event type. Events sent
// in frame N are readable in frame N+1; Swap is called at frame start by the
// system Add installs.
type Queue[T any] struct {
	front []T
	back  []T
}

// Send queues an event into the back buffer.
func (q *Queue[T]) Send(ev T) {
	q.back = append(q.back, ev)
}

// Read returns the events sent during the previous frame. The slice is only
// valid until the next Swap.
func (q *Queue[T]) Read() []T { return q.front }

// Len returns the number of readable events.
func (q *Queue[T]) Len() int { return len(q.front) }

// Pending returns the number of events sent this frame.
func (q *Queue[T]) Pending() int { return len(q.back) }

// Swap rotates back to front and clears the new back buffer.
func (q *Queue[T]) Swap() {
	clear(q.front)
	q.front, q.back = q.back, q.front[:0]
}

// Add stores an empty Queue[T] as a world resource and schedules its swap in
// PhaseFirst. Senders take the queue with system.WriteResource, readers with
// system.ReadResource.
func Add[T any](w *ecs.World, s *system.Schedule) error {
	if !ecs.HasResource[Queue[T]](w) {
		ecs.InsertResource(w, Queue[T]{})
	}
	var q *ecs.ResWrite[Queue[T]]
	name := "event_swap[" + typeName[T]() + "]"
	return s.AddFunc(name, func(p *system.Params) error {
		var err error
		q, err = system.WriteResource[Queue[T]](p)
		return err
	}, func(*system.Context) {
		if queue, ok := q.Peek(); ok {
			queue.Swap()
		}
	}, system.InPhase(system.PhaseFirst))
}
