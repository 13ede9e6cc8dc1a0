package ecs

// Access is the data-access signature of a query or system: which component
// and resource ids it reads and which it writes.
type Access struct {
	reads  ComponentSet
	writes ComponentSet
}

func (a *Access) AddRead(id ComponentID)  { a.reads.Add(id) }
func (a *Access) AddWrite(id ComponentID) { a.writes.Add(id) }

func (a Access) Reads() ComponentSet  { return a.reads.Clone() }
func (a Access) Writes() ComponentSet { return a.writes.Clone() }

func (a Access) HasRead(id ComponentID) bool  { return a.reads.Has(id) }
func (a Access) HasWrite(id ComponentID) bool { return a.writes.Has(id) }

func (a Access) IsEmpty() bool { return a.reads.IsEmpty() && a.writes.IsEmpty() }

// Extend merges o into a.
func (a *Access) Extend(o Access) {
	a.reads = a.reads.Union(o.reads)
	a.writes = a.writes.Union(o.writes)
}

// IsCompatible reports whether a and o may run at the same time: no id is
// written by one side and touched by the other.
func (a Access) IsCompatible(o Access) bool {
	return len(a.Conflicts(o)) == 0
}

// Conflicts returns the ids that prevent a and o from running together.
func (a Access) Conflicts(o Access) []ComponentID {
	var c ComponentSet
	c = c.Union(a.writes.Intersection(o.writes))
	c = c.Union(a.writes.Intersection(o.reads))
	c = c.Union(a.reads.Intersection(o.writes))
	return c.IDs()
}
