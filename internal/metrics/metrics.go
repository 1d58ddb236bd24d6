// Package metrics exports arena lifecycle counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cerea1/lifetime/internal/core/event"
	"github.com/cerea1/lifetime/internal/world"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "lifetime"

// Collector owns a private registry so tests and multiple arenas never
// collide on the global one.
type Collector struct {
	reg *prometheus.Registry

	transitions *prometheus.CounterVec
	active      *prometheus.GaugeVec
	pooled      *prometheus.GaugeVec
	failures    *prometheus.CounterVec
	tick        prometheus.Gauge
	population  prometheus.Gauge
}

func New() *Collector {
	c := &Collector{
		reg: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Lifecycle transitions reported, by exact kind.",
		}, []string{"kind", "transition"}),
		active: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_instances",
			Help:      "Active instances per kind, descendants included.",
		}, []string{"kind"}),
		pooled: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_objects",
			Help:      "Pooled actors per kind, in and out of the pool.",
		}, []string{"kind", "state"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscriber_failures_total",
			Help:      "Subscriber panics recovered during fan-out.",
		}, []string{"kind", "transition"}),
		tick: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "arena_tick",
			Help:      "Current arena tick.",
		}),
		population: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "arena_population",
			Help:      "Actors alive in the arena, active or not.",
		}),
	}
	c.reg.MustRegister(
		c.transitions, c.active, c.pooled, c.failures, c.tick, c.population,
		collectors.NewGoCollector(),
	)
	return c
}

// Observe counts one transition.
func (c *Collector) Observe(ev event.Transitioned) {
	c.transitions.WithLabelValues(string(ev.Kind), ev.Transition.String()).Inc()
}

// ObserveFailure counts one subscriber failure.
func (c *Collector) ObserveFailure(ev event.SubscriberFailed) {
	c.failures.WithLabelValues(string(ev.Kind), ev.Transition.String()).Inc()
}

// Sample refreshes the gauges from the arena.
func (c *Collector) Sample(arena *world.State) {
	kinds := arena.Kinds()
	for _, name := range kinds.Names() {
		c.active.WithLabelValues(name).Set(float64(arena.Count(name)))
		if k := kinds.Get(name); k.Pool {
			in, out := arena.PoolStats(name)
			c.pooled.WithLabelValues(name, "in").Set(float64(in))
			c.pooled.WithLabelValues(name, "out").Set(float64(out))
		}
	}
	c.tick.Set(float64(arena.Tick()))
	c.population.Set(float64(arena.Population()))
}

// Registry exposes the private registry.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr string, log *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("metrics shutdown", zap.Error(err))
		}
	}()

	log.Info("metrics listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics listen %s: %w", addr, err)
	}
	return nil
}
