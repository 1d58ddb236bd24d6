package system

import (
	"time"

	"github.com/cerea1/lifetime/internal/core/event"
	coresys "github.com/cerea1/lifetime/internal/core/system"
	"github.com/cerea1/lifetime/internal/scripting"
	"github.com/cerea1/lifetime/internal/world"
)

// ScriptSystem runs the scenario's on_tick hook and forwards dispatched
// transitions to on_transition. Phase 0 (Script).
type ScriptSystem struct {
	arena  *world.State
	engine *scripting.Engine
}

func NewScriptSystem(arena *world.State, bus *event.Bus, engine *scripting.Engine) *ScriptSystem {
	event.Subscribe(bus, engine.OnTransition)
	return &ScriptSystem{arena: arena, engine: engine}
}

func (s *ScriptSystem) Phase() coresys.Phase { return coresys.PhaseScript }

func (s *ScriptSystem) Update(_ time.Duration) {
	s.engine.OnTick(s.arena.Tick())
}
