package system

import (
	"time"

	"github.com/cerea1/lifetime/internal/core/event"
	coresys "github.com/cerea1/lifetime/internal/core/system"
)

// DispatchSystem swaps the bus buffers and delivers last tick's events to
// the script, metrics and journal subscribers. Phase 1 (Dispatch).
type DispatchSystem struct {
	bus       *event.Bus
	delivered int
}

func NewDispatchSystem(bus *event.Bus) *DispatchSystem {
	return &DispatchSystem{bus: bus}
}

func (s *DispatchSystem) Phase() coresys.Phase { return coresys.PhaseDispatch }

func (s *DispatchSystem) Update(_ time.Duration) {
	s.bus.SwapBuffers()
	s.delivered += s.bus.DispatchAll()
}

// Delivered returns the number of events dispatched so far.
func (s *DispatchSystem) Delivered() int { return s.delivered }
