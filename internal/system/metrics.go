package system

import (
	"time"

	"github.com/cerea1/lifetime/internal/core/event"
	coresys "github.com/cerea1/lifetime/internal/core/system"
	"github.com/cerea1/lifetime/internal/metrics"
	"github.com/cerea1/lifetime/internal/world"
)

// MetricsSystem counts transitions as they are dispatched and samples the
// arena gauges once per tick. Phase 2 (Update).
type MetricsSystem struct {
	arena     *world.State
	collector *metrics.Collector
}

func NewMetricsSystem(arena *world.State, bus *event.Bus, collector *metrics.Collector) *MetricsSystem {
	event.Subscribe(bus, collector.Observe)
	event.Subscribe(bus, collector.ObserveFailure)
	return &MetricsSystem{arena: arena, collector: collector}
}

func (s *MetricsSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *MetricsSystem) Update(_ time.Duration) {
	s.collector.Sample(s.arena)
}
