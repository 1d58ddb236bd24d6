package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cerea1/lifetime/internal/core/event"
	"github.com/cerea1/lifetime/internal/world"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM running the arena scenario.
// Single-goroutine access only (game loop).
type Engine struct {
	vm     *lua.LState
	log    *zap.Logger
	arena  *world.State
	errors int
}

// NewEngine creates a Lua engine bound to arena and loads path, which is
// either one .lua file or a directory of them loaded in name order.
func NewEngine(path string, arena *world.State, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	// Set API version global
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log, arena: arena}
	e.register()

	info, err := os.Stat(path)
	if err != nil {
		vm.Close()
		return nil, fmt.Errorf("stat script %s: %w", path, err)
	}
	if info.IsDir() {
		err = e.loadDir(path)
	} else {
		err = e.loadFile(path)
	}
	if err != nil {
		vm.Close()
		return nil, fmt.Errorf("load scripts: %w", err)
	}
	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		if err := e.loadFile(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) loadFile(path string) error {
	if err := e.vm.DoFile(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	e.log.Debug("loaded lua script", zap.String("file", path))
	return nil
}

// OnTick calls the Lua on_tick(tick) hook, if the scenario defines one.
func (e *Engine) OnTick(tick uint64) {
	e.callHook("on_tick", lua.LNumber(tick))
}

// OnTransition calls on_transition(kind, id, transition).
func (e *Engine) OnTransition(ev event.Transitioned) {
	e.callHook("on_transition",
		lua.LString(ev.Kind),
		lua.LNumber(ev.Entity),
		lua.LString(ev.Transition.String()))
}

// Errors returns how many hook calls have failed so far.
func (e *Engine) Errors() int { return e.errors }

func (e *Engine) callHook(name string, args ...lua.LValue) {
	fn := e.vm.GetGlobal(name)
	if fn == lua.LNil {
		return
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, args...); err != nil {
		e.errors++
		e.log.Error("lua hook error", zap.String("func", name), zap.Error(err))
	}
}

// Global returns a global Lua value, for inspection by the host.
func (e *Engine) Global(name string) lua.LValue {
	return e.vm.GetGlobal(name)
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
