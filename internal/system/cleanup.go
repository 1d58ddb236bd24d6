package system

import (
	"time"

	coresys "github.com/cerea1/lifetime/internal/core/system"
	"github.com/cerea1/lifetime/internal/world"
)

// CleanupSystem flushes the deferred actor destruction queue at tick end:
// queued actors are reported destroyed, their entities released and pooled
// actors returned. Phase 4 (Cleanup).
type CleanupSystem struct {
	arena *world.State
}

func NewCleanupSystem(arena *world.State) *CleanupSystem {
	return &CleanupSystem{arena: arena}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ time.Duration) {
	s.arena.Cleanup()
}
