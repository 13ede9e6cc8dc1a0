package ecs

import "math"

// Tick timestamps component writes. It wraps around freely; comparisons are
// always made relative to the current world tick.
type Tick uint32

const (
	// CheckTickThreshold is how far the world tick may advance before stored
	// ticks are scanned and clamped.
	CheckTickThreshold uint32 = 518_400_000

	// MaxChangeAge is the oldest tick difference that stays meaningful
	// between two scans. Older changes stop being detected.
	MaxChangeAge uint32 = math.MaxUint32 - (2*CheckTickThreshold - 1)
)

// RelativeTo returns the wrapping distance from other to t.
func (t Tick) RelativeTo(other Tick) Tick { return t - other }

// IsNewerThan reports whether t falls inside (lastRun, thisRun].
func (t Tick) IsNewerThan(lastRun, thisRun Tick) bool {
	sinceInsert := min(uint32(thisRun.RelativeTo(t)), MaxChangeAge)
	sinceSystem := min(uint32(thisRun.RelativeTo(lastRun)), MaxChangeAge)
	return sinceSystem > sinceInsert
}

// CheckTick clamps t so it is never older than MaxChangeAge relative to now.
// It returns true when t was clamped.
func (t *Tick) CheckTick(now Tick) bool {
	if uint32(now.RelativeTo(*t)) > MaxChangeAge {
		*t = now - Tick(MaxChangeAge)
		return true
	}
	return false
}

// ComponentTicks records when a stored value was added and last written.
type ComponentTicks struct {
	Added   Tick
	Changed Tick
}

func NewComponentTicks(t Tick) ComponentTicks {
	return ComponentTicks{Added: t, Changed: t}
}

func (c ComponentTicks) IsAdded(lastRun, thisRun Tick) bool {
	return c.Added.IsNewerThan(lastRun, thisRun)
}

func (c ComponentTicks) IsChanged(lastRun, thisRun Tick) bool {
	return c.Changed.IsNewerThan(lastRun, thisRun)
}

func (c *ComponentTicks) SetChanged(t Tick) { c.Changed = t }

func (c *ComponentTicks) checkTicks(now Tick) {
	c.Added.CheckTick(now)
	c.Changed.CheckTick(now)
}

// SystemTicks is the change-detection window of one system: (LastRun, ThisRun].
type SystemTicks struct {
	LastRun Tick
	ThisRun Tick
}
