package world

import (
	"testing"

	"github.com/cerea1/lifetime/internal/core/ecs"
	"github.com/cerea1/lifetime/internal/core/event"
	"github.com/cerea1/lifetime/internal/core/lifetime"
	"github.com/cerea1/lifetime/internal/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const arenaKinds = `
kinds:
  - name: hostile
    capability: true
  - name: unit
  - name: monster
    extends: unit
    implements: [hostile]
  - name: goblin
    extends: monster
    pool: true
    ttl: 3
  - name: tower
    implements: [hostile]
  - name: hunter
    extends: unit
    perceives: [monster]
  - name: scout
    extends: unit
    observes: [hostile]
`

func newArena(t *testing.T) (*State, *event.Bus) {
	t.Helper()
	kinds, err := data.ParseKindTable([]byte(arenaKinds))
	require.NoError(t, err)
	log := zaptest.NewLogger(t)
	b := lifetime.NewBuilder(log).Strict(true)
	kinds.Declare(b)
	reg, err := b.Build()
	require.NoError(t, err)
	bus := event.NewBus()
	s, err := NewState(reg, kinds, bus, 2, log)
	require.NoError(t, err)
	return s, bus
}

func spawn(t *testing.T, s *State, kind string) *Actor {
	t.Helper()
	a, err := s.Spawn(kind)
	require.NoError(t, err)
	return a
}

func TestState_SpawnCountsThroughHierarchy(t *testing.T) {
	s, bus := newArena(t)
	g := spawn(t, s, "goblin")

	assert.True(t, g.Active())
	assert.Equal(t, 1, s.Count("goblin"))
	assert.Equal(t, 1, s.Count("monster"))
	assert.Equal(t, 1, s.Count("unit"))
	assert.Equal(t, 1, s.Count("hostile"))
	assert.Zero(t, s.Count("tower"))
	assert.Zero(t, s.Count("dragon"))
	assert.Equal(t, 1, bus.Pending())

	in, out := s.PoolStats("goblin")
	assert.Equal(t, 1, in)
	assert.Equal(t, 1, out)
}

func TestState_SpawnRejects(t *testing.T) {
	s, _ := newArena(t)
	_, err := s.Spawn("hostile")
	assert.ErrorIs(t, err, ErrNotSpawnable)
	_, err = s.Spawn("dragon")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestState_HunterPerceivesMonsters(t *testing.T) {
	s, _ := newArena(t)
	g1 := spawn(t, s, "goblin")
	h := spawn(t, s, "hunter")
	assert.Equal(t, 1, s.Tracked(h.ID), "active monsters are replayed")

	g2 := spawn(t, s, "goblin")
	spawn(t, s, "tower")
	assert.Equal(t, []ecs.EntityID{g1.ID, g2.ID}, h.Tracked())

	require.NoError(t, s.Despawn(g1.ID))
	assert.True(t, h.Tracks(g2.ID))
	assert.False(t, h.Tracks(g1.ID))

	require.NoError(t, s.Despawn(h.ID))
	assert.Zero(t, s.Tracked(h.ID))
	spawn(t, s, "goblin")
	assert.Zero(t, s.Tracked(h.ID))
}

func TestState_WatchIsSweptOnDespawn(t *testing.T) {
	s, _ := newArena(t)
	g := spawn(t, s, "goblin")
	tw := spawn(t, s, "tower")
	sc := spawn(t, s, "scout")
	h := spawn(t, s, "hunter")

	require.NoError(t, s.Watch(sc.ID, g.ID))
	require.NoError(t, s.Watch(sc.ID, tw.ID))
	assert.Equal(t, 2, s.Tracked(sc.ID))
	assert.ErrorIs(t, s.Watch(sc.ID, h.ID), ErrCannotWatch)
	assert.ErrorIs(t, s.Watch(h.ID, g.ID), ErrCannotWatch)

	require.NoError(t, s.Unwatch(sc.ID, tw.ID))
	assert.Equal(t, 1, s.Tracked(sc.ID))

	require.NoError(t, s.Despawn(sc.ID))
	assert.Zero(t, s.Tracked(sc.ID))
	require.NoError(t, s.Despawn(g.ID))
	assert.Zero(t, s.Tracked(sc.ID), "swept watches stay gone")
}

func TestState_WatchOutlivesTargetDespawn(t *testing.T) {
	s, _ := newArena(t)
	g := spawn(t, s, "goblin")
	sc := spawn(t, s, "scout")
	require.NoError(t, s.Watch(sc.ID, g.ID))

	require.NoError(t, s.Despawn(g.ID))
	assert.False(t, sc.Tracks(g.ID))
	require.NoError(t, s.Revive(g.ID))
	assert.True(t, sc.Tracks(g.ID), "revived target reaches the watcher")

	require.NoError(t, s.Destroy(g.ID))
	assert.False(t, sc.Tracks(g.ID))
	s.Cleanup()
	assert.ErrorIs(t, s.Unwatch(sc.ID, g.ID), ErrNoActor)
	assert.Zero(t, s.Tracked(sc.ID))
}

func TestState_DestroyRecyclesPooledActors(t *testing.T) {
	s, bus := newArena(t)
	g := spawn(t, s, "goblin")
	id := g.ID
	assert.Zero(t, s.Cleanup(), "nothing queued yet")

	require.NoError(t, s.Destroy(id))
	assert.False(t, g.Active())
	assert.Zero(t, s.Count("goblin"))
	assert.Equal(t, 1, s.Pending())

	var destroyed []event.Transitioned
	event.Subscribe(bus, func(ev event.Transitioned) {
		if ev.Transition == lifetime.Destroyed {
			destroyed = append(destroyed, ev)
		}
	})
	assert.Equal(t, 1, s.Cleanup())
	_, ok := s.Actor(id)
	assert.False(t, ok)
	assert.ErrorIs(t, s.Despawn(id), ErrNoActor)

	bus.SwapBuffers()
	bus.DispatchAll()
	require.Len(t, destroyed, 1)
	assert.Equal(t, id, destroyed[0].Entity)

	again := spawn(t, s, "goblin")
	assert.Same(t, g, again)
	assert.NotEqual(t, id, again.ID)
	assert.False(t, again.Picked)
	s.Cleanup()
	assert.True(t, again.Picked)
}

func TestState_ReviveAfterDespawn(t *testing.T) {
	s, _ := newArena(t)
	g := spawn(t, s, "goblin")
	assert.ErrorIs(t, s.Revive(g.ID), ErrActive)

	require.NoError(t, s.Despawn(g.ID))
	assert.ErrorIs(t, s.Despawn(g.ID), ErrInactive)
	require.NoError(t, s.Revive(g.ID))
	assert.Equal(t, 1, s.Count("monster"))
}

type grumpy struct{}

func (*grumpy) OnInitialized(lifetime.Lifetime) { panic("grumpy") }
func (*grumpy) OnDisposed(lifetime.Lifetime)    {}

func TestState_SubscriberFailureDoesNotFailSpawn(t *testing.T) {
	s, bus := newArena(t)
	require.NoError(t, s.Registry().Subscribe("monster", &grumpy{}))

	var failed []event.SubscriberFailed
	event.Subscribe(bus, func(ev event.SubscriberFailed) { failed = append(failed, ev) })

	g := spawn(t, s, "goblin")
	assert.True(t, g.Active())
	assert.Equal(t, 1, s.Failures())

	bus.SwapBuffers()
	bus.DispatchAll()
	require.Len(t, failed, 1)
	assert.Equal(t, lifetime.Key("monster"), failed[0].Kind)
}

func TestState_EachToleratesDespawn(t *testing.T) {
	s, _ := newArena(t)
	for range 3 {
		spawn(t, s, "goblin")
	}
	spawn(t, s, "tower")

	visited := 0
	s.Each("hostile", func(a *Actor) bool {
		visited++
		require.NoError(t, s.Despawn(a.ID))
		return true
	})
	assert.Equal(t, 4, visited)
	assert.Zero(t, s.Count("hostile"))
}

func TestState_Shutdown(t *testing.T) {
	s, _ := newArena(t)
	spawn(t, s, "goblin")
	g := spawn(t, s, "goblin")
	require.NoError(t, s.Despawn(g.ID))
	spawn(t, s, "hunter")

	s.Shutdown()
	assert.Zero(t, s.Population())
	assert.Zero(t, s.Count("unit"))
	_, err := s.Spawn("goblin")
	assert.ErrorIs(t, err, lifetime.ErrClosed)
}
