package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/l1jgo/ecscore/internal/component"
	"github.com/l1jgo/ecscore/internal/config"
	"github.com/l1jgo/ecscore/internal/core/ecs"
	coresys "github.com/l1jgo/ecscore/internal/core/system"
	"github.com/l1jgo/ecscore/internal/data"
	"github.com/l1jgo/ecscore/internal/scripting"
	"github.com/l1jgo/ecscore/internal/system"
)

const arenaSize = 1000

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

type flags struct {
	config  string
	frames  int
	profile string
	strict  bool
}

func newRootCmd() *cobra.Command {
	var f flags
	root := &cobra.Command{
		Use:           "ecsdemo",
		Short:         "Run the ECS demo simulation",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSim(cmd, f)
		},
	}
	root.PersistentFlags().StringVarP(&f.config, "config", "c", "", "config file (default $ECSCORE_CONFIG or config/ecsdemo.toml)")
	root.PersistentFlags().BoolVar(&f.strict, "strict", false, "fail on ambiguous system ordering")
	root.Flags().IntVarP(&f.frames, "frames", "n", -1, "frames to run, 0 runs until interrupted (overrides demo.frames)")
	root.Flags().StringVar(&f.profile, "profile", "", "write a cpu or mem profile to the working directory")

	root.AddCommand(&cobra.Command{
		Use:   "schedule",
		Short: "Print the batch layout and ambiguities, then exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printSchedule(cmd, f)
		},
	})
	return root
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(cfgPath string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m             ecscore demo  v0.1.0          \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mconfig:\033[0m %s\n\n", cfgPath)
}

func printSection(title string) {
	lineLen := max(46-len(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := max(42-len(label)-len(numStr), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Setup ──────────────────────────────────────────────────────────

type sim struct {
	cfg    *config.Config
	log    *zap.Logger
	world  *ecs.World
	sched  *coresys.Schedule
	engine *scripting.Engine
}

func configPath(f flags) string {
	if f.config != "" {
		return f.config
	}
	if p := os.Getenv("ECSCORE_CONFIG"); p != "" {
		return p
	}
	return "config/ecsdemo.toml"
}

func setup(f flags) (*sim, error) {
	cfgPath := configPath(f)
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if f.strict {
		cfg.Scheduler.Strict = true
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	printBanner(cfgPath)
	printSection("world")

	w := ecs.NewWorld(log,
		ecs.WithEntityCapacity(cfg.World.EntityCapacity),
		ecs.WithTableCapacity(cfg.World.TableCapacity))
	sched := coresys.NewSchedule(w, log,
		coresys.WithWorkers(cfg.Scheduler.Workers),
		coresys.WithStrict(cfg.Scheduler.Strict))

	s := &sim{cfg: cfg, log: log, world: w, sched: sched, engine: scripting.NewEngine(log)}
	if err := system.Install(sched, log, system.Options{
		BatchSize:     cfg.Scheduler.ParBatchSize,
		SpawnPerFrame: cfg.Demo.SpawnPerFrame,
		Lifetime:      cfg.Demo.Lifetime,
		Seed:          cfg.Demo.Seed,
		Bounds:        component.Bounds{Width: arenaSize, Height: arenaSize},
		LogEvery:      60,
	}); err != nil {
		s.engine.Close()
		return nil, fmt.Errorf("install systems: %w", err)
	}
	printStat("systems", sched.Len())

	if cfg.Scripting.Dir != "" {
		if err := s.engine.LoadDir(cfg.Scripting.Dir); err != nil {
			s.engine.Close()
			return nil, fmt.Errorf("load scripts: %w", err)
		}
		printOK("lua scripts loaded from " + cfg.Scripting.Dir)
	}

	if cfg.Demo.Manifest != "" {
		m, err := data.LoadManifest(cfg.Demo.Manifest)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			log.Warn("schedule manifest not found, using built-in ordering", zap.String("path", cfg.Demo.Manifest))
		case err != nil:
			s.engine.Close()
			return nil, err
		default:
			if err := m.Apply(sched, s.engine); err != nil {
				s.engine.Close()
				return nil, fmt.Errorf("apply schedule manifest: %w", err)
			}
			printStat("manifest entries", len(m.Systems))
		}
	}

	n, err := populate(w, cfg, log)
	if err != nil {
		s.engine.Close()
		return nil, fmt.Errorf("populate world: %w", err)
	}
	printStat("entities", n)
	printStat("archetypes", w.Archetypes().Len())
	fmt.Println()
	return s, nil
}

func populate(w *ecs.World, cfg *config.Config, log *zap.Logger) (int, error) {
	templates := []data.SpawnTemplate{{
		Name:     "drifter",
		Count:    cfg.Demo.Entities,
		X:        arenaSize / 2,
		Y:        arenaSize / 2,
		RandomX:  arenaSize / 2,
		RandomY:  arenaSize / 2,
		Speed:    1,
		HP:       100,
		MaxHP:    100,
		Lifetime: cfg.Demo.Lifetime,
	}}
	if cfg.Demo.SpawnList != "" {
		list, err := data.LoadSpawnList(cfg.Demo.SpawnList)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			log.Warn("spawn list not found, spawning drifters", zap.String("path", cfg.Demo.SpawnList))
		case err != nil:
			return 0, err
		default:
			templates = list
		}
	}
	return system.Populate(w, templates, cfg.Demo.Seed)
}

// ── Commands ───────────────────────────────────────────────────────

func printSchedule(cmd *cobra.Command, f flags) error {
	s, err := setup(f)
	if err != nil {
		return err
	}
	defer s.log.Sync()
	defer s.engine.Close()

	batches, err := s.sched.Batches()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	printSection("batches")
	for i, b := range batches {
		fmt.Fprintf(out, "  %2d  %s\n", i, strings.Join(b, ", "))
	}
	amb, err := s.sched.Ambiguities()
	if err != nil {
		return err
	}
	if len(amb) > 0 {
		printSection("ambiguities")
		for _, a := range amb {
			fmt.Fprintf(out, "  %s\n", a)
		}
	}
	return nil
}

func runSim(cmd *cobra.Command, f flags) error {
	switch f.profile {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	case "mem":
		defer profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	default:
		return fmt.Errorf("unknown profile mode %q: want cpu or mem", f.profile)
	}

	s, err := setup(f)
	if err != nil {
		return err
	}
	defer s.log.Sync()
	defer s.engine.Close()

	frames := s.cfg.Demo.Frames
	if f.frames >= 0 {
		frames = f.frames
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdownCh)

	var tick <-chan time.Time
	if iv := s.cfg.Demo.FrameInterval; iv > 0 {
		ticker := time.NewTicker(iv)
		defer ticker.Stop()
		tick = ticker.C
	}

	printSection("running")
	if frames == 0 {
		printReady("running until interrupted")
	} else {
		printReady(fmt.Sprintf("running %d frames", frames))
	}
	fmt.Println()

	start := time.Now()
	ran := 0
loop:
	for frames == 0 || ran < frames {
		if tick != nil {
			select {
			case <-tick:
			case sig := <-shutdownCh:
				s.log.Info("shutdown signal", zap.String("signal", sig.String()))
				break loop
			}
		} else {
			select {
			case sig := <-shutdownCh:
				s.log.Info("shutdown signal", zap.String("signal", sig.String()))
				break loop
			default:
			}
		}
		if err := s.frame(); err != nil {
			return err
		}
		ran++
	}
	elapsed := time.Since(start)

	st, _ := ecs.Resource[system.Stats](s.world)
	out := cmd.OutOrStdout()
	printSection("summary")
	printStat("frames", ran)
	printStat("entities", s.world.EntityCount())
	printStat("archetypes", s.world.Archetypes().Len())
	if st != nil {
		printStat("spawned", st.TotalSpawned)
		printStat("expired", st.TotalExpired)
		printStat("died", st.TotalDied)
		printStat("extinguished last frame", st.Extinguished)
	}
	if ran > 0 {
		fmt.Fprintf(out, "  %s per frame\n", elapsed/time.Duration(ran))
	}
	return nil
}

// frame runs one schedule pass. A system panic surfaces as a
// *coresys.PanicError.
func (s *sim) frame() (err error) {
	defer func() {
		if r := recover(); r != nil {
			perr, ok := r.(*coresys.PanicError)
			if !ok {
				panic(r)
			}
			err = perr
		}
	}()
	s.engine.SetNumber("frame", float64(s.sched.Frame()))
	return s.sched.Run()
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
