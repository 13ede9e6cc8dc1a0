package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/l1jgo/ecscore/internal/core/ecs"
	"github.com/l1jgo/ecscore/internal/core/system"
)

// Engine wraps a single gopher-lua VM that evaluates run conditions.
// Calls are serialized; conditions run on the scheduler goroutine anyway.
type Engine struct {
	mu  sync.Mutex
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates an empty Lua engine. Load scripts with LoadDir or
// LoadString.
func NewEngine(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	return &Engine{vm: vm, log: log}
}

// LoadDir loads every .lua file in dir. A missing directory is not an error.
func (e *Engine) LoadDir(dir string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadDir(dir)
}

func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// LoadString runs a chunk of Lua source.
func (e *Engine) LoadString(src string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.vm.DoString(src); err != nil {
		return fmt.Errorf("load lua chunk: %w", err)
	}
	return nil
}

// SetNumber publishes a numeric global, e.g. the current frame.
func (e *Engine) SetNumber(name string, v float64) {
	e.mu.Lock()
	e.vm.SetGlobal(name, lua.LNumber(v))
	e.mu.Unlock()
}

// Condition returns a run condition backed by the global Lua function name.
// The function receives a table with the world's tick, last_tick, entities
// and archetypes fields and must return a boolean. Script errors count as
// false.
func (e *Engine) Condition(name string) (system.Condition, error) {
	e.mu.Lock()
	fn := e.vm.GetGlobal(name)
	e.mu.Unlock()
	if fn.Type() != lua.LTFunction {
		return nil, fmt.Errorf("lua condition %s: not a function", name)
	}
	return func(w *ecs.World) bool {
		return e.call(name, fn, w)
	}, nil
}

func (e *Engine) call(name string, fn lua.LValue, w *ecs.World) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.vm.NewTable()
	t.RawSetString("tick", lua.LNumber(w.ChangeTick()))
	t.RawSetString("last_tick", lua.LNumber(w.LastChangeTick()))
	t.RawSetString("entities", lua.LNumber(w.EntityCount()))
	t.RawSetString("archetypes", lua.LNumber(w.Archetypes().Len()))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua condition error", zap.String("condition", name), zap.Error(err))
		return false
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	b, ok := result.(lua.LBool)
	if !ok {
		e.log.Error("lua condition returned non-boolean",
			zap.String("condition", name),
			zap.String("type", result.Type().String()))
		return false
	}
	return bool(b)
}

// Close releases the Lua VM.
func (e *Engine) Close() {
	e.mu.Lock()
	e.vm.Close()
	e.mu.Unlock()
}
