package system

import (
	"fmt"
	"runtime"
	"slices"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/l1jgo/ecscore/internal/core/ecs"
)

// Condition gates a system for one frame. It runs on the scheduler
// goroutine with the world unlocked and must not mutate it.
type Condition func(w *ecs.World) bool

// State is the scheduler's position in the frame state machine.
type State int

const (
	StateIdle State = iota
	StateBatching
	StateExecuting
	StateApplying
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBatching:
		return "batching"
	case StateExecuting:
		return "executing"
	case StateApplying:
		return "applying"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type node struct {
	sys        System
	name       string
	phase      Phase
	labels     []string
	before     []string
	after      []string
	conditions []Condition

	access    ecs.Access
	exclusive bool
	ticks     ecs.SystemTicks
	commands  *ecs.Commands
}

// Option configures a system when it is added or reconfigured.
type Option func(n *node)

// Label adds names other systems can order against. A system's own name is
// always a label.
func Label(labels ...string) Option {
	return func(n *node) { n.labels = append(n.labels, labels...) }
}

// Before orders the system ahead of every system carrying label.
func Before(labels ...string) Option {
	return func(n *node) { n.before = append(n.before, labels...) }
}

// After orders the system behind every system carrying label.
func After(labels ...string) Option {
	return func(n *node) { n.after = append(n.after, labels...) }
}

func InPhase(p Phase) Option {
	return func(n *node) { n.phase = p }
}

// RunIf skips the system for a frame unless every condition holds.
func RunIf(c Condition) Option {
	return func(n *node) { n.conditions = append(n.conditions, c) }
}

type ScheduleOption func(s *Schedule)

// WithWorkers bounds how many systems of one batch run at once.
func WithWorkers(n int) ScheduleOption {
	return func(s *Schedule) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithStrict makes ambiguous orderings a build error instead of a warning.
func WithStrict(strict bool) ScheduleOption {
	return func(s *Schedule) { s.strict = strict }
}

// Ambiguity is a pair of conflicting systems with no ordering between them.
type Ambiguity struct {
	A, B       string
	Components []string
}

func (a Ambiguity) String() string {
	return fmt.Sprintf("%s <-> %s [%s]", a.A, a.B, strings.Join(a.Components, ", "))
}

// Schedule owns a set of systems and runs them frame by frame: it groups
// access-disjoint systems into batches, runs each batch on a worker pool and
// applies the batch's queued commands before the next one starts.
type Schedule struct {
	world   *ecs.World
	log     *zap.Logger
	workers int
	strict  bool

	nodes  []*node
	byName map[string]*node

	dirty       bool
	batches     [][]*node
	ambiguities []Ambiguity

	state State
	frame uint64
}

func NewSchedule(w *ecs.World, log *zap.Logger, opts ...ScheduleOption) *Schedule {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Schedule{
		world:   w,
		log:     log,
		workers: runtime.GOMAXPROCS(0),
		byName:  make(map[string]*node),
		dirty:   true,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Schedule) World() *ecs.World { return s.world }
func (s *Schedule) State() State      { return s.state }
func (s *Schedule) Frame() uint64     { return s.frame }
func (s *Schedule) Len() int          { return len(s.nodes) }

// Add registers sys and runs its Init. The system's first run sees every
// change made before it.
func (s *Schedule) Add(sys System, opts ...Option) error {
	name := sys.Name()
	if _, dup := s.byName[name]; dup {
		return fmt.Errorf("add system %s: %w", name, ErrDuplicateSystem)
	}
	n := &node{
		sys:   sys,
		name:  name,
		phase: PhaseUpdate,
	}
	if p, ok := sys.(Phased); ok {
		n.phase = p.Phase()
	}
	for _, o := range opts {
		o(n)
	}
	now := s.world.ChangeTick()
	n.ticks = ecs.SystemTicks{LastRun: now - ecs.Tick(ecs.MaxChangeAge), ThisRun: now}

	params := &Params{world: s.world, name: name, ticks: &n.ticks}
	if err := sys.Init(params); err != nil {
		return fmt.Errorf("init system %s: %w", name, err)
	}
	n.access = params.access
	n.exclusive = params.exclusive
	n.commands = ecs.NewCommands(s.world)

	s.nodes = append(s.nodes, n)
	s.byName[name] = n
	s.dirty = true
	return nil
}

// AddFunc is Add for a Func system.
func (s *Schedule) AddFunc(name string, init func(p *Params) error, run func(ctx *Context), opts ...Option) error {
	return s.Add(Func(name, init, run), opts...)
}

// Configure applies more options to an already added system.
func (s *Schedule) Configure(name string, opts ...Option) error {
	n, ok := s.byName[name]
	if !ok {
		return fmt.Errorf("configure %s: %w", name, ErrUnknownSystem)
	}
	for _, o := range opts {
		o(n)
	}
	s.dirty = true
	return nil
}

// Batches returns the system names of each batch in execution order.
func (s *Schedule) Batches() ([][]string, error) {
	if err := s.ensureBuilt(); err != nil {
		return nil, err
	}
	out := make([][]string, len(s.batches))
	for i, b := range s.batches {
		for _, n := range b {
			out[i] = append(out[i], n.name)
		}
	}
	return out, nil
}

// Ambiguities returns the conflicting pairs found by the last build.
func (s *Schedule) Ambiguities() ([]Ambiguity, error) {
	if err := s.ensureBuilt(); err != nil {
		return nil, err
	}
	return s.ambiguities, nil
}

func (s *Schedule) ensureBuilt() error {
	if !s.dirty {
		return nil
	}
	return s.Build()
}

// conflicts reports whether a and b may not share a batch.
func conflicts(a, b *node) bool {
	if a.exclusive || b.exclusive {
		return true
	}
	return !a.access.IsCompatible(b.access)
}

// Build resolves ordering constraints, detects ambiguities and computes the
// batches. Run calls it when systems or their options changed.
func (s *Schedule) Build() error {
	n := len(s.nodes)
	succ := make([][]int, n)
	preds := make([][]int, n)
	addEdge := func(from, to int) {
		if from == to || slices.Contains(succ[from], to) {
			return
		}
		succ[from] = append(succ[from], to)
		preds[to] = append(preds[to], from)
	}

	labels := make(map[string][]int, n)
	for i, nd := range s.nodes {
		labels[nd.name] = append(labels[nd.name], i)
		for _, l := range nd.labels {
			if !slices.Contains(labels[l], i) {
				labels[l] = append(labels[l], i)
			}
		}
	}

	var errs error
	for i, nd := range s.nodes {
		for _, l := range nd.before {
			targets, ok := labels[l]
			if !ok {
				errs = multierr.Append(errs, fmt.Errorf("%s before %q: %w", nd.name, l, ErrUnknownLabel))
			}
			for _, j := range targets {
				addEdge(i, j)
			}
		}
		for _, l := range nd.after {
			targets, ok := labels[l]
			if !ok {
				errs = multierr.Append(errs, fmt.Errorf("%s after %q: %w", nd.name, l, ErrUnknownLabel))
			}
			for _, j := range targets {
				addEdge(j, i)
			}
		}
	}
	for i, a := range s.nodes {
		for j, b := range s.nodes {
			if a.phase < b.phase {
				addEdge(i, j)
			}
		}
	}
	if errs != nil {
		return fmt.Errorf("build schedule: %w", errs)
	}

	if err := s.checkAcyclic(succ, preds); err != nil {
		return fmt.Errorf("build schedule: %w", err)
	}

	reach := reachability(succ)
	ambiguities, err := s.findAmbiguities(reach)
	if err != nil {
		return fmt.Errorf("build schedule: %w", err)
	}

	s.batches = s.batchNodes(preds, reach)
	s.ambiguities = ambiguities
	s.dirty = false

	s.log.Debug("schedule built",
		zap.Int("systems", n),
		zap.Int("batches", len(s.batches)),
		zap.Int("ambiguities", len(ambiguities)))
	for i, b := range s.batches {
		names := make([]string, len(b))
		for k, nd := range b {
			names[k] = nd.name
		}
		s.log.Debug("batch", zap.Int("index", i), zap.Strings("systems", names))
	}
	return nil
}

func (s *Schedule) checkAcyclic(succ, preds [][]int) error {
	indeg := make([]int, len(s.nodes))
	queue := make([]int, 0, len(s.nodes))
	for i := range s.nodes {
		indeg[i] = len(preds[i])
		if indeg[i] == 0 {
			queue = append(queue, i)
		}
	}
	seen := 0
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		seen++
		for _, j := range succ[i] {
			if indeg[j]--; indeg[j] == 0 {
				queue = append(queue, j)
			}
		}
	}
	if seen == len(s.nodes) {
		return nil
	}
	var stuck []string
	for i, d := range indeg {
		if d > 0 {
			stuck = append(stuck, s.nodes[i].name)
		}
	}
	return fmt.Errorf("%w: %s", ErrOrderingCycle, strings.Join(stuck, ", "))
}

// reachability returns reach[i][j] == true when i must run before j.
func reachability(succ [][]int) [][]bool {
	n := len(succ)
	reach := make([][]bool, n)
	for i := range reach {
		reach[i] = make([]bool, n)
		stack := append([]int(nil), succ[i]...)
		for len(stack) > 0 {
			j := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if reach[i][j] {
				continue
			}
			reach[i][j] = true
			stack = append(stack, succ[j]...)
		}
	}
	return reach
}

// findAmbiguities lists conflicting pairs left unordered. Exclusive systems
// are left out: they never share a batch and keep registration order.
func (s *Schedule) findAmbiguities(reach [][]bool) ([]Ambiguity, error) {
	var (
		out  []Ambiguity
		errs error
	)
	names := s.world.Components()
	for i, a := range s.nodes {
		for j := i + 1; j < len(s.nodes); j++ {
			b := s.nodes[j]
			if a.exclusive || b.exclusive || reach[i][j] || reach[j][i] {
				continue
			}
			ids := a.access.Conflicts(b.access)
			if len(ids) == 0 {
				continue
			}
			amb := Ambiguity{A: a.name, B: b.name, Components: names.Names(ids)}
			out = append(out, amb)
			if s.strict {
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", amb, ErrAmbiguousOrdering))
			} else {
				s.log.Warn("ambiguous system ordering",
					zap.String("a", amb.A),
					zap.String("b", amb.B),
					zap.Strings("components", amb.Components))
			}
		}
	}
	return out, errs
}

// batchNodes greedily packs systems into batches in registration order. A
// system joins the current batch when all its predecessors ran in earlier
// batches, it conflicts with no batch member, and no earlier-registered
// conflicting system is still waiting, so unordered conflicting systems keep
// registration order. Exclusive systems always run alone.
func (s *Schedule) batchNodes(preds [][]int, reach [][]bool) [][]*node {
	n := len(s.nodes)
	done := make([]bool, n)
	var batches [][]*node
	for remaining := n; remaining > 0; {
		var batch []int
		inBatch := make([]bool, n)
	candidates:
		for j := 0; j < n; j++ {
			if done[j] || !ready(preds[j], done) {
				continue
			}
			nd := s.nodes[j]
			if len(batch) > 0 && (nd.exclusive || s.nodes[batch[0]].exclusive) {
				continue
			}
			for _, k := range batch {
				if conflicts(nd, s.nodes[k]) {
					continue candidates
				}
			}
			for k := 0; k < j; k++ {
				if !done[k] && !inBatch[k] && !reach[j][k] && conflicts(nd, s.nodes[k]) {
					continue candidates
				}
			}
			batch = append(batch, j)
			inBatch[j] = true
		}
		if len(batch) == 0 {
			// earlier waiting systems blocked everything; take the first ready one
			for j := 0; j < n; j++ {
				if !done[j] && ready(preds[j], done) {
					batch = []int{j}
					break
				}
			}
		}
		nodes := make([]*node, len(batch))
		for k, j := range batch {
			done[j] = true
			nodes[k] = s.nodes[j]
		}
		remaining -= len(batch)
		batches = append(batches, nodes)
	}
	return batches
}

func ready(preds []int, done []bool) bool {
	for _, p := range preds {
		if !done[p] {
			return false
		}
	}
	return true
}
