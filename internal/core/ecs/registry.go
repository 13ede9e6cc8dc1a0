package ecs

import "reflect"

// Components is the closed registry of component and resource descriptors,
// indexed by dense id. Components and resources share one id space so access
// sets can mix them.
type Components struct {
	infos     []*ComponentInfo
	byType    map[reflect.Type]ComponentID
	resByType map[reflect.Type]ComponentID
}

func NewComponents() *Components {
	return &Components{
		infos:     make([]*ComponentInfo, 0, 64),
		byType:    make(map[reflect.Type]ComponentID, 64),
		resByType: make(map[reflect.Type]ComponentID, 16),
	}
}

// Len returns the number of registered ids.
func (c *Components) Len() int { return len(c.infos) }

// Info returns the descriptor for id, or nil when id was never issued.
func (c *Components) Info(id ComponentID) *ComponentInfo {
	if int(id) >= len(c.infos) {
		return nil
	}
	return c.infos[id]
}

// Lookup finds the component id registered for t.
func (c *Components) Lookup(t reflect.Type) (ComponentID, bool) {
	id, ok := c.byType[t]
	return id, ok
}

// LookupResource finds the resource id registered for t.
func (c *Components) LookupResource(t reflect.Type) (ComponentID, bool) {
	id, ok := c.resByType[t]
	return id, ok
}

// Name returns a printable name for id.
func (c *Components) Name(id ComponentID) string {
	if info := c.Info(id); info != nil {
		return info.name
	}
	return "<unregistered>"
}

// Names maps ids to printable names.
func (c *Components) Names(ids []ComponentID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = c.Name(id)
	}
	return out
}

func (c *Components) add(t reflect.Type, resource bool, build func(id ComponentID) *ComponentInfo) *ComponentInfo {
	id := ComponentID(len(c.infos))
	info := build(id)
	c.infos = append(c.infos, info)
	if resource {
		c.resByType[t] = id
	} else {
		c.byType[t] = id
	}
	return info
}
