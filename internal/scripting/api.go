package scripting

import (
	"github.com/cerea1/lifetime/internal/core/ecs"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// register exposes the arena to Lua. Actor IDs cross as numbers; failures
// return nil (or false) plus an error string, Lua style.
func (e *Engine) register() {
	for name, fn := range map[string]lua.LGFunction{
		"spawn":    e.luaSpawn,
		"despawn":  e.luaDespawn,
		"revive":   e.luaRevive,
		"destroy":  e.luaDestroy,
		"watch":    e.luaWatch,
		"unwatch":  e.luaUnwatch,
		"count":    e.luaCount,
		"tracked":  e.luaTracked,
		"alive":    e.luaAlive,
		"tick":     e.luaTick,
		"log":      e.luaLog,
		"failures": e.luaFailures,
	} {
		e.vm.SetGlobal(name, e.vm.NewFunction(fn))
	}
}

func checkID(L *lua.LState, n int) ecs.EntityID {
	return ecs.EntityID(L.CheckNumber(n))
}

func fail(L *lua.LState, err error) int {
	L.Push(lua.LNil)
	L.Push(lua.LString(err.Error()))
	return 2
}

func (e *Engine) luaSpawn(L *lua.LState) int {
	a, err := e.arena.Spawn(L.CheckString(1))
	if err != nil {
		return fail(L, err)
	}
	L.Push(lua.LNumber(a.ID))
	return 1
}

func (e *Engine) actorOp(L *lua.LState, op func(ecs.EntityID) error) int {
	if err := op(checkID(L, 1)); err != nil {
		return fail(L, err)
	}
	L.Push(lua.LTrue)
	return 1
}

func (e *Engine) luaDespawn(L *lua.LState) int { return e.actorOp(L, e.arena.Despawn) }
func (e *Engine) luaRevive(L *lua.LState) int  { return e.actorOp(L, e.arena.Revive) }
func (e *Engine) luaDestroy(L *lua.LState) int { return e.actorOp(L, e.arena.Destroy) }

func (e *Engine) luaWatch(L *lua.LState) int {
	if err := e.arena.Watch(checkID(L, 1), checkID(L, 2)); err != nil {
		return fail(L, err)
	}
	L.Push(lua.LTrue)
	return 1
}

func (e *Engine) luaUnwatch(L *lua.LState) int {
	if err := e.arena.Unwatch(checkID(L, 1), checkID(L, 2)); err != nil {
		return fail(L, err)
	}
	L.Push(lua.LTrue)
	return 1
}

func (e *Engine) luaCount(L *lua.LState) int {
	L.Push(lua.LNumber(e.arena.Count(L.CheckString(1))))
	return 1
}

func (e *Engine) luaTracked(L *lua.LState) int {
	L.Push(lua.LNumber(e.arena.Tracked(checkID(L, 1))))
	return 1
}

func (e *Engine) luaAlive(L *lua.LState) int {
	a, ok := e.arena.Actor(checkID(L, 1))
	L.Push(lua.LBool(ok && a.Active()))
	return 1
}

func (e *Engine) luaTick(L *lua.LState) int {
	L.Push(lua.LNumber(e.arena.Tick()))
	return 1
}

func (e *Engine) luaFailures(L *lua.LState) int {
	L.Push(lua.LNumber(e.arena.Failures()))
	return 1
}

func (e *Engine) luaLog(L *lua.LState) int {
	e.log.Info("lua", zap.String("msg", L.CheckString(1)))
	return 0
}
