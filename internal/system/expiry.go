package system

import (
	"time"

	"github.com/cerea1/lifetime/internal/core/ecs"
	coresys "github.com/cerea1/lifetime/internal/core/system"
	"github.com/cerea1/lifetime/internal/world"
	"go.uber.org/zap"
)

// ExpirySystem destroys actors whose lifespan ran out. Phase 2 (Update).
type ExpirySystem struct {
	arena   *world.State
	log     *zap.Logger
	expired int
}

func NewExpirySystem(arena *world.State, log *zap.Logger) *ExpirySystem {
	return &ExpirySystem{arena: arena, log: log}
}

func (s *ExpirySystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *ExpirySystem) Update(_ time.Duration) {
	now := s.arena.Tick()
	ecs.Each2(s.arena.Actors, s.arena.Lifespans, func(id ecs.EntityID, a *world.Actor, l *world.Lifespan) {
		if l.Expire > now {
			return
		}
		// Destroy only queues; components stay readable until cleanup.
		s.arena.Lifespans.Remove(id)
		if err := s.arena.Destroy(id); err != nil {
			s.log.Warn("expire actor", zap.String("kind", a.Kind), zap.Error(err))
			return
		}
		s.expired++
	})
}

// Expired returns the number of actors expired so far.
func (s *ExpirySystem) Expired() int { return s.expired }
