package system

import (
	"runtime/debug"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/l1jgo/ecscore/internal/core/ecs"
)

// Run executes one frame: Idle -> Batching -> Executing -> Applying, once per
// batch, then back to Idle. Commands queued in batch N are applied before
// batch N+1 starts. A panicking system stops the frame: the rest of its batch
// finishes, the batch's commands are discarded, and the panic is raised again
// here as a *PanicError.
func (s *Schedule) Run() error {
	return s.run(func(*node) bool { return true })
}

// RunPhase runs only the systems of one phase.
func (s *Schedule) RunPhase(p Phase) error {
	return s.run(func(n *node) bool { return n.phase == p })
}

func (s *Schedule) run(include func(n *node) bool) error {
	if err := s.ensureBuilt(); err != nil {
		return err
	}
	w := s.world
	defer func() { s.state = StateIdle }()

	for _, batch := range s.batches {
		s.state = StateBatching
		runnable := make([]*node, 0, len(batch))
		for _, n := range batch {
			if include(n) && s.shouldRun(n) {
				runnable = append(runnable, n)
			}
		}
		if len(runnable) == 0 {
			continue
		}

		s.state = StateExecuting
		s.execute(runnable)

		s.state = StateApplying
		applied := 0
		for _, n := range runnable {
			applied += n.commands.Apply()
		}
		if applied > 0 {
			s.log.Debug("commands applied", zap.Int("count", applied), zap.Int("archetypes", w.Archetypes().Len()))
		}
	}

	w.ClearTrackers()
	s.frame++
	if now, ok := w.MaybeCheckChangeTicks(); ok {
		for _, n := range s.nodes {
			n.ticks.LastRun.CheckTick(now)
		}
		s.log.Debug("change ticks checked", zap.Uint32("tick", uint32(now)))
	}
	return nil
}

func (s *Schedule) shouldRun(n *node) bool {
	for _, c := range n.conditions {
		if !c(s.world) {
			return false
		}
	}
	return true
}

// execute runs one batch. Exclusive systems run alone on the calling
// goroutine with the world unlocked; other batches run on the worker pool
// with structural changes locked out.
func (s *Schedule) execute(batch []*node) {
	if len(batch) == 1 && batch[0].exclusive {
		if perr := s.runGuarded(batch[0]); perr != nil {
			batch[0].commands = ecs.NewCommands(s.world)
			s.fail(perr)
		}
		return
	}

	w := s.world
	w.SetExecuting(true)
	defer w.SetExecuting(false)

	panics := make([]*PanicError, len(batch))
	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, n := range batch {
		g.Go(func() error {
			panics[i] = s.runGuarded(n)
			return nil
		})
	}
	_ = g.Wait()

	for _, perr := range panics {
		if perr != nil {
			// drop everything the batch queued before re-raising
			for _, n := range batch {
				n.commands = ecs.NewCommands(w)
			}
			s.fail(perr)
		}
	}
}

func (s *Schedule) fail(perr *PanicError) {
	s.log.Error("system panicked",
		zap.String("system", perr.System),
		zap.Any("value", perr.Value),
		zap.ByteString("stack", perr.Stack))
	panic(perr)
}

// runGuarded takes a fresh change tick for the run, so writes made by this
// run are newer than anything the system saw before.
func (s *Schedule) runGuarded(n *node) (perr *PanicError) {
	defer func() {
		if r := recover(); r != nil {
			perr = &PanicError{System: n.name, Value: r, Stack: debug.Stack()}
		}
	}()
	this := s.world.IncrementChangeTick()
	n.ticks.ThisRun = this
	ctx := &Context{
		name:     n.name,
		commands: n.commands,
		ticks:    n.ticks,
		frame:    s.frame,
	}
	if n.exclusive {
		ctx.world = s.world
	}
	n.sys.Update(ctx)
	n.ticks.LastRun = this
	return nil
}
