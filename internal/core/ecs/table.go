package ecs

// Table is the dense columnar storage of one archetype's table-kind
// components. Row i of every column belongs to entities[i].
type Table struct {
	ids      []ComponentID
	columns  []column
	slots    []int32 // component id -> column index + 1, 0 when absent
	entities []Entity
}

func newTable(infos []*ComponentInfo, capacity int) *Table {
	t := &Table{
		ids:      make([]ComponentID, len(infos)),
		columns:  make([]column, len(infos)),
		entities: make([]Entity, 0, capacity),
	}
	for i, info := range infos {
		t.ids[i] = info.id
		t.columns[i] = info.newColumn(capacity)
		for len(t.slots) <= int(info.id) {
			t.slots = append(t.slots, 0)
		}
		t.slots[info.id] = int32(i + 1)
	}
	return t
}

func (t *Table) Len() int { return len(t.entities) }

// Entities returns the row-ordered entity list. Callers must not modify it.
func (t *Table) Entities() []Entity { return t.entities }

// ComponentIDs returns the column ids in ascending order.
func (t *Table) ComponentIDs() []ComponentID { return t.ids }

func (t *Table) Has(id ComponentID) bool { return t.slot(id) >= 0 }

func (t *Table) slot(id ComponentID) int {
	if int(id) >= len(t.slots) {
		return -1
	}
	return int(t.slots[id]) - 1
}

func (t *Table) column(id ComponentID) column {
	if s := t.slot(id); s >= 0 {
		return t.columns[s]
	}
	return nil
}

// ColumnOf returns the typed column for id, or nil when the table lacks it.
func ColumnOf[T any](t *Table, id ComponentID) *Column[T] {
	c, _ := t.column(id).(*Column[T])
	return c
}

// push appends e and returns its row. The caller fills every column.
func (t *Table) push(e Entity) int {
	t.entities = append(t.entities, e)
	return len(t.entities) - 1
}

// swapRemove destroys row and fills the hole with the last row. It returns
// the entity that now occupies row, if any moved.
func (t *Table) swapRemove(row int) (Entity, bool) {
	for _, c := range t.columns {
		c.swapRemove(row, true)
	}
	return t.swapRemoveEntity(row)
}

// moveRow relocates row into dst: shared columns are moved, columns dst lacks
// are dropped. dst columns absent from t are left for the caller to fill.
func (t *Table) moveRow(row int, dst *Table) (newRow int, moved Entity, ok bool) {
	newRow = dst.push(t.entities[row])
	for i, id := range t.ids {
		src := t.columns[i]
		if d := dst.column(id); d != nil {
			d.pushFrom(src, row)
			src.swapRemove(row, false)
		} else {
			src.swapRemove(row, true)
		}
	}
	moved, ok = t.swapRemoveEntity(row)
	return newRow, moved, ok
}

func (t *Table) swapRemoveEntity(row int) (Entity, bool) {
	last := len(t.entities) - 1
	moved := t.entities[last]
	t.entities[row] = moved
	t.entities = t.entities[:last]
	return moved, row != last
}

func (t *Table) checkTicks(now Tick) {
	for _, c := range t.columns {
		c.checkTicks(now)
	}
}

func (t *Table) clear() {
	for _, c := range t.columns {
		c.clear()
	}
	t.entities = t.entities[:0]
}
