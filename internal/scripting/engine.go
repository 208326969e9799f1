package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/l1jgo/tickcore/internal/core/ecs"
	coresys "github.com/l1jgo/tickcore/internal/core/system"
	"github.com/l1jgo/tickcore/internal/world"
)

const entityTypeName = "entity"

// Engine wraps a single gopher-lua VM holding the rule scripts.
// Single-goroutine access only (the tick loop). Reload swaps the VM.
//
// Scripts hook into the scheduler by defining globals named after phases:
// on_simulation(tick) runs once per tick, on_simulation_lane(tick, lane)
// once per lane. The sim table exposes the World to the scripts.
type Engine struct {
	vm    *lua.LState
	log   *zap.Logger
	dir   string
	world *world.World
}

// NewEngine creates a Lua engine and loads every .lua file in dir, in name order.
func NewEngine(dir string, log *zap.Logger) (*Engine, error) {
	e := &Engine{log: log, dir: dir}
	vm, err := e.newVM()
	if err != nil {
		return nil, err
	}
	e.vm = vm
	return e, nil
}

func (e *Engine) newVM() (*lua.LState, error) {
	vm := lua.NewState()
	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	e.openSim(vm)
	if err := e.loadDir(vm, e.dir); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load scripts: %w", err)
	}
	return vm, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(vm *lua.LState, dir string) error {
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
		if err := vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// Bind installs a phase handler for every phase the scripts define hooks
// for, and clears the handlers of phases they do not. The engine owns all
// phase handlers of w from here on.
func (e *Engine) Bind(w *world.World) error {
	e.world = w
	for _, p := range coresys.Phases() {
		var phaseFn coresys.PhaseFunc
		var laneFn coresys.LaneFunc
		name := "on_" + p.String()
		if fn, ok := e.vm.GetGlobal(name).(*lua.LFunction); ok {
			phaseFn = func(tick uint64) {
				e.call(name, fn, lua.LNumber(tick))
			}
		}
		laneName := name + "_lane"
		if fn, ok := e.vm.GetGlobal(laneName).(*lua.LFunction); ok {
			laneFn = func(tick uint64, l int) {
				e.call(laneName, fn, lua.LNumber(tick), lua.LNumber(l))
			}
		}
		if err := w.SetPhaseHandler(p, phaseFn, laneFn); err != nil {
			return fmt.Errorf("bind %s: %w", p, err)
		}
	}
	return nil
}

// Reload rebuilds the VM from the script directory and re-binds it. On
// failure the running VM is kept.
func (e *Engine) Reload() error {
	vm, err := e.newVM()
	if err != nil {
		return err
	}
	old := e.vm
	e.vm = vm
	if e.world != nil {
		if err := e.Bind(e.world); err != nil {
			e.vm = old
			vm.Close()
			return err
		}
	}
	old.Close()
	e.log.Info("lua scripts reloaded", zap.String("dir", e.dir))
	return nil
}

// call runs a hook in protected mode. Script errors are logged and never
// abort the tick.
func (e *Engine) call(name string, fn *lua.LFunction, args ...lua.LValue) {
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, args...); err != nil {
		e.log.Error("lua hook error", zap.String("hook", name), zap.Error(err))
	}
}

// Call invokes a global Lua function by name and returns its first result.
func (e *Engine) Call(name string, args ...lua.LValue) (lua.LValue, error) {
	fn, ok := e.vm.GetGlobal(name).(*lua.LFunction)
	if !ok {
		return lua.LNil, fmt.Errorf("lua function %s: %w", name, ecs.ErrNotFound)
	}
	if err := e.vm.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, args...); err != nil {
		return lua.LNil, fmt.Errorf("lua %s: %w", name, err)
	}
	ret := e.vm.Get(-1)
	e.vm.Pop(1)
	return ret, nil
}

func (e *Engine) Close() {
	e.vm.Close()
}
