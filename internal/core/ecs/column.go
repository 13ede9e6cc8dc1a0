package ecs

// column is the type-erased face of a table column. Every method keeps the
// value slice and the tick slice the same length.
type column interface {
	len() int
	push(v any, ticks ComponentTicks)
	pushFrom(src column, row int)
	replace(row int, v any, tick Tick)
	swapRemove(row int, drop bool)
	get(row int) any
	ticksAt(row int) *ComponentTicks
	checkTicks(now Tick)
	clear()
}

// Column is one dense array of T values plus their change ticks.
type Column[T any] struct {
	data  []T
	ticks []ComponentTicks
	drops bool
}

func newColumn[T any](capacity int) *Column[T] {
	return &Column[T]{
		data:  make([]T, 0, capacity),
		ticks: make([]ComponentTicks, 0, capacity),
		drops: implementsDropper[T](),
	}
}

func (c *Column[T]) Len() int { return len(c.data) }

// Get returns a pointer into the column. It is invalidated by any structural
// change to the owning table.
func (c *Column[T]) Get(row int) *T { return &c.data[row] }

func (c *Column[T]) Ticks(row int) *ComponentTicks { return &c.ticks[row] }

func (c *Column[T]) len() int { return len(c.data) }

func (c *Column[T]) push(v any, ticks ComponentTicks) {
	c.data = append(c.data, v.(T))
	c.ticks = append(c.ticks, ticks)
}

// pushFrom appends src[row] without touching src. Values are relocated,
// never cloned: the caller removes the source row without dropping it.
func (c *Column[T]) pushFrom(src column, row int) {
	s := src.(*Column[T])
	c.data = append(c.data, s.data[row])
	c.ticks = append(c.ticks, s.ticks[row])
}

func (c *Column[T]) replace(row int, v any, tick Tick) {
	c.drop(row)
	c.data[row] = v.(T)
	c.ticks[row].Changed = tick
}

func (c *Column[T]) swapRemove(row int, drop bool) {
	if drop {
		c.drop(row)
	}
	last := len(c.data) - 1
	c.data[row] = c.data[last]
	c.ticks[row] = c.ticks[last]
	var zero T
	c.data[last] = zero
	c.data = c.data[:last]
	c.ticks = c.ticks[:last]
}

func (c *Column[T]) get(row int) any { return c.data[row] }

func (c *Column[T]) ticksAt(row int) *ComponentTicks { return &c.ticks[row] }

func (c *Column[T]) checkTicks(now Tick) {
	for i := range c.ticks {
		c.ticks[i].checkTicks(now)
	}
}

func (c *Column[T]) clear() {
	for row := range c.data {
		c.drop(row)
	}
	clear(c.data)
	c.data = c.data[:0]
	c.ticks = c.ticks[:0]
}

func (c *Column[T]) drop(row int) {
	if c.drops {
		any(&c.data[row]).(Dropper).Drop()
	}
}
