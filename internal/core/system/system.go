package system

import (
	"fmt"
	"strings"

	"github.com/l1jgo/ecscore/internal/core/ecs"
)

// Phase is coarse ordering within a frame: every system in an earlier phase
// runs before every system in a later one.
type Phase int

const (
	PhaseFirst      Phase = iota // 0: event buffer swaps, frame setup
	PhasePreUpdate               // 1: spawners, input
	PhaseUpdate                  // 2: simulation
	PhasePostUpdate              // 3: lifetimes, regen, despawn
	PhaseLast                    // 4: stats, reporting
)

var phaseNames = [...]string{"first", "pre_update", "update", "post_update", "last"}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// ParsePhase maps a phase name such as "post_update" to its Phase.
func ParsePhase(s string) (Phase, error) {
	for i, name := range phaseNames {
		if strings.EqualFold(s, name) {
			return Phase(i), nil
		}
	}
	return 0, fmt.Errorf("parse phase %q: unknown phase", s)
}

// System is the interface every scheduled system implements. Init declares
// the system's data access once, at registration; Update runs every frame.
type System interface {
	Name() string
	Init(p *Params) error
	Update(ctx *Context)
}

// Phased systems choose their default phase. Others run in PhaseUpdate.
type Phased interface {
	Phase() Phase
}

// Context is what a running system receives. Structural changes go through
// Commands; data goes through the queries and resources bound in Init.
type Context struct {
	name     string
	world    *ecs.World
	commands *ecs.Commands
	ticks    ecs.SystemTicks
	frame    uint64
}

func (c *Context) Name() string            { return c.name }
func (c *Context) Commands() *ecs.Commands { return c.commands }
func (c *Context) Ticks() ecs.SystemTicks  { return c.ticks }
func (c *Context) Frame() uint64           { return c.frame }

// World is only available to exclusive systems; it is nil otherwise.
func (c *Context) World() *ecs.World { return c.world }

type funcSystem struct {
	name string
	init func(p *Params) error
	run  func(ctx *Context)
}

// Func builds a System from closures. init may be nil for systems that only
// use Commands.
func Func(name string, init func(p *Params) error, run func(ctx *Context)) System {
	return &funcSystem{name: name, init: init, run: run}
}

func (s *funcSystem) Name() string { return s.name }

func (s *funcSystem) Init(p *Params) error {
	if s.init == nil {
		return nil
	}
	return s.init(p)
}

func (s *funcSystem) Update(ctx *Context) { s.run(ctx) }

// Exclusive builds a system that runs alone with direct world access,
// including structural changes.
func Exclusive(name string, fn func(w *ecs.World)) System {
	return &funcSystem{
		name: name,
		init: func(p *Params) error {
			p.Exclusive()
			return nil
		},
		run: func(ctx *Context) { fn(ctx.World()) },
	}
}
