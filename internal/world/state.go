package world

import (
	"errors"
	"fmt"

	"github.com/cerea1/lifetime/internal/core/ecs"
	"github.com/cerea1/lifetime/internal/core/event"
	"github.com/cerea1/lifetime/internal/core/lifetime"
	"github.com/cerea1/lifetime/internal/data"
	"github.com/cerea1/lifetime/internal/pool"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var (
	ErrUnknownKind  = errors.New("world: unknown kind")
	ErrNotSpawnable = errors.New("world: capability kinds cannot be spawned")
	ErrNoActor      = errors.New("world: no such actor")
	ErrInactive     = errors.New("world: actor is not active")
	ErrActive       = errors.New("world: actor is already active")
	ErrCannotWatch  = errors.New("world: watcher kind cannot observe target")
)

// Lifespan expires an actor at a given tick.
type Lifespan struct {
	Expire uint64
}

// State owns every arena actor and decides when they transition. Each
// transition is reported to the lifetime registry; a perceiver on the root
// kind mirrors all of them onto the event bus.
// Single-goroutine access only (game loop).
type State struct {
	log   *zap.Logger
	world *ecs.World
	reg   *lifetime.Registry
	kinds *data.KindTable
	pool  *pool.Pool[*Actor]
	bus   *event.Bus

	Actors    *ecs.PtrComponentStore[Actor]
	Lifespans *ecs.PtrComponentStore[Lifespan]

	tick     uint64
	failures int
	relay    *relay
}

// NewState wires the arena to reg. Pooled kinds are prewarmed with prewarm
// actors each.
func NewState(reg *lifetime.Registry, kinds *data.KindTable, bus *event.Bus, prewarm int, log *zap.Logger) (*State, error) {
	s := &State{
		log:       log,
		world:     ecs.NewWorld(),
		reg:       reg,
		kinds:     kinds,
		bus:       bus,
		Actors:    ecs.NewPtrComponentStore[Actor](),
		Lifespans: ecs.NewPtrComponentStore[Lifespan](),
	}
	s.world.Registry().Register(s.Actors)
	s.world.Registry().Register(s.Lifespans)
	s.pool = pool.New(func(kind string) *Actor {
		return &Actor{Kind: kind, key: lifetime.Key(kind), Pooled: true}
	}, log)

	s.relay = &relay{s: s}
	if err := s.absorb(reg.Subscribe(lifetime.Root, s.relay)); err != nil {
		return nil, fmt.Errorf("subscribe relay: %w", err)
	}
	for _, name := range kinds.Names() {
		if k := kinds.Get(name); k.Pool && prewarm > 0 {
			s.pool.Prewarm(name, prewarm)
		}
	}
	return s, nil
}

// relay mirrors every lifetime transition onto the bus.
type relay struct{ s *State }

func (r *relay) OnInitialized(x lifetime.Lifetime) { r.s.emit(x, lifetime.Initialized) }
func (r *relay) OnDisposed(x lifetime.Lifetime)    { r.s.emit(x, lifetime.Disposed) }

func (s *State) emit(x lifetime.Lifetime, t lifetime.Transition) {
	a, ok := x.(*Actor)
	if !ok {
		return
	}
	event.Emit(s.bus, event.Transitioned{Entity: a.ID, Kind: a.key, Transition: t, Tick: s.tick})
}

// absorb splits a report result: subscriber failures are logged, counted
// and put on the bus; anything else is returned.
func (s *State) absorb(err error) error {
	if err == nil {
		return nil
	}
	var rest []error
	for _, e := range multierr.Errors(err) {
		var se *lifetime.SubscriberError
		if !errors.As(e, &se) {
			rest = append(rest, e)
			continue
		}
		s.failures++
		s.log.Warn("arena subscriber failed",
			zap.String("kind", string(se.Kind)),
			zap.Stringer("transition", se.Transition),
			zap.Any("panic", se.Value))
		event.Emit(s.bus, event.SubscriberFailed{Kind: se.Kind, Transition: se.Transition, Tick: s.tick})
	}
	return multierr.Combine(rest...)
}

// Spawn creates an actor of kind and reports it initialized.
func (s *State) Spawn(kind string) (*Actor, error) {
	k := s.kinds.Get(kind)
	switch {
	case k == nil:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	case k.Capability:
		return nil, fmt.Errorf("%w: %s", ErrNotSpawnable, kind)
	}
	var a *Actor
	if k.Pool {
		a = s.pool.Get(kind)
	} else {
		a = newActor(kind)
	}
	id := s.world.CreateEntity()
	a.ID = id
	a.SpawnTick = s.tick
	s.Actors.Set(id, a)
	if k.TTL > 0 {
		s.Lifespans.Set(id, &Lifespan{Expire: s.tick + uint64(k.TTL)})
	}

	a.active = true
	if err := s.absorb(s.reg.ReportInitialized(a)); err != nil {
		a.active = false
		s.world.MarkForDestruction(id)
		return nil, fmt.Errorf("spawn %s: %w", kind, err)
	}
	return a, nil
}

// Despawn disposes an active actor. It stays in the arena until destroyed
// and may be revived.
func (s *State) Despawn(id ecs.EntityID) error {
	a, err := s.lookup(id)
	if err != nil {
		return err
	}
	if !a.active {
		return fmt.Errorf("%w: %d", ErrInactive, id)
	}
	a.active = false
	return s.absorb(s.reg.ReportDisposed(a))
}

// Revive initializes a despawned actor again.
func (s *State) Revive(id ecs.EntityID) error {
	a, err := s.lookup(id)
	if err != nil {
		return err
	}
	if a.active {
		return fmt.Errorf("%w: %d", ErrActive, id)
	}
	a.active = true
	if err := s.absorb(s.reg.ReportInitialized(a)); err != nil {
		a.active = false
		return err
	}
	return nil
}

// Destroy disposes the actor if needed and queues it for the cleanup phase,
// where it is reported destroyed and its entity released.
func (s *State) Destroy(id ecs.EntityID) error {
	a, err := s.lookup(id)
	if err != nil {
		return err
	}
	if a.active {
		if err := s.Despawn(id); err != nil {
			return err
		}
	}
	s.world.MarkForDestruction(id)
	return nil
}

// Cleanup flushes the destroy queue and runs pending pool picks. It returns
// the number of actors destroyed.
func (s *State) Cleanup() int {
	n := s.world.FlushDestroyQueue(s.finish)
	s.pool.FlushPicks()
	return n
}

func (s *State) finish(id ecs.EntityID) {
	a, ok := s.Actors.Get(id)
	if !ok {
		return
	}
	if a.active {
		a.active = false
		if err := s.absorb(s.reg.ReportDisposed(a)); err != nil {
			s.log.Error("dispose before destroy", zap.Uint64("entity", uint64(id)), zap.Error(err))
		}
	}
	if err := s.reg.ReportDestroyed(a); err != nil {
		s.log.Error("report destroyed", zap.Uint64("entity", uint64(id)), zap.Error(err))
	}
	event.Emit(s.bus, event.Transitioned{Entity: id, Kind: a.key, Transition: lifetime.Destroyed, Tick: s.tick})
	if a.Pooled {
		if err := s.pool.Put(a); err != nil {
			s.log.Error("return actor to pool", zap.Uint64("entity", uint64(id)), zap.Error(err))
		}
	}
}

// Watch makes watcher observe target through the first kind the watcher's
// kind declares under observes that target satisfies. The watch ends with
// Unwatch, the watcher's disposal or the target's destruction. A despawned
// target stays watched, so reviving it reaches the watcher again.
func (s *State) Watch(watcherID, targetID ecs.EntityID) error {
	w, err := s.lookup(watcherID)
	if err != nil {
		return err
	}
	t, err := s.lookup(targetID)
	if err != nil {
		return err
	}
	if !w.active {
		return fmt.Errorf("%w: %d", ErrInactive, watcherID)
	}
	for _, via := range s.kinds.Get(w.Kind).Observes {
		err := s.reg.Observe(lifetime.Key(via), t, w, true)
		if errors.Is(err, lifetime.ErrUnrelatedKind) {
			continue
		}
		return s.absorb(err)
	}
	return fmt.Errorf("%w: %s -> %s", ErrCannotWatch, w.Kind, t.Kind)
}

// Unwatch ends a watch made with Watch.
func (s *State) Unwatch(watcherID, targetID ecs.EntityID) error {
	w, err := s.lookup(watcherID)
	if err != nil {
		return err
	}
	t, err := s.lookup(targetID)
	if err != nil {
		return err
	}
	for _, via := range s.kinds.Get(w.Kind).Observes {
		err := s.reg.Unobserve(lifetime.Key(via), t, w, true)
		if errors.Is(err, lifetime.ErrUnrelatedKind) {
			continue
		}
		return s.absorb(err)
	}
	return fmt.Errorf("%w: %s -> %s", ErrCannotWatch, w.Kind, t.Kind)
}

func (s *State) lookup(id ecs.EntityID) (*Actor, error) {
	a, ok := s.Actors.Get(id)
	if !ok || !s.world.Alive(id) {
		return nil, fmt.Errorf("%w: %d", ErrNoActor, id)
	}
	return a, nil
}

// Actor returns an actor by entity ID, active or not.
func (s *State) Actor(id ecs.EntityID) (*Actor, bool) {
	a, err := s.lookup(id)
	return a, err == nil
}

// Count returns the number of active actors of kind, descendants included.
func (s *State) Count(kind string) int {
	l, err := s.reg.List(lifetime.Key(kind))
	if err != nil {
		return 0
	}
	return l.Len()
}

// Tracked returns how many actors id currently perceives or watches.
func (s *State) Tracked(id ecs.EntityID) int {
	a, ok := s.Actor(id)
	if !ok {
		return 0
	}
	return len(a.tracked)
}

// Each visits the active actors of kind live: fn may spawn or despawn.
func (s *State) Each(kind string, fn func(*Actor) bool) {
	l, err := s.reg.List(lifetime.Key(kind))
	if err != nil {
		return
	}
	for x := range l.All() {
		a, ok := x.(*Actor)
		if !ok {
			continue
		}
		if !fn(a) {
			return
		}
	}
}

// Advance moves the arena clock one tick forward.
func (s *State) Advance() uint64 {
	s.tick++
	return s.tick
}

// Tick returns the current arena tick.
func (s *State) Tick() uint64 { return s.tick }

// Failures returns the number of subscriber failures seen so far.
func (s *State) Failures() int { return s.failures }

// Pending returns the number of actors waiting for cleanup.
func (s *State) Pending() int { return s.world.Pending() }

// Population returns the number of actors alive in the arena, active or not.
func (s *State) Population() int { return s.world.Pool().Len() }

// Registry returns the lifetime registry the arena reports to.
func (s *State) Registry() *lifetime.Registry { return s.reg }

// Kinds returns the kinds table the arena spawns from.
func (s *State) Kinds() *data.KindTable { return s.kinds }

// PoolStats returns the pool counters of kind.
func (s *State) PoolStats(kind string) (in, out int) { return s.pool.Stats(kind) }

// Shutdown destroys every actor and closes the registry.
func (s *State) Shutdown() {
	for _, id := range s.Actors.IDs() {
		if err := s.Destroy(id); err != nil {
			s.log.Warn("destroy on shutdown", zap.Uint64("entity", uint64(id)), zap.Error(err))
		}
	}
	n := s.Cleanup()
	for _, name := range s.kinds.Names() {
		s.pool.Drain(name)
	}
	s.reg.Close()
	s.log.Info("arena shut down", zap.Int("destroyed", n), zap.Int("subscriber_failures", s.failures))
}
