package lifetime

import (
	"fmt"
	"reflect"
	"runtime/debug"

	"github.com/cerea1/lifetime/internal/core/ecs"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Registry is the entry point collaborators report transitions to and
// subscribe through. Build one with Builder.
type Registry struct {
	log    *zap.Logger
	strict bool
	closed bool

	root  *node
	nodes map[Key]*node
	order []*node

	handles   *ecs.EntityPool
	callbacks map[Handle]callbackRef

	// failures collects subscriber panics; each public call owns the tail
	// it appended, so nested reports return only their own failures.
	failures []error
}

func newRegistry(log *zap.Logger, strict bool) *Registry {
	r := &Registry{
		log:       log,
		strict:    strict,
		nodes:     make(map[Key]*node),
		handles:   ecs.NewEntityPool(),
		callbacks: make(map[Handle]callbackRef),
	}
	r.root = newNode(Root)
	r.root.goType = lifetimeType
	r.root.capability = true
	r.root.closureReady = true
	r.insert(r.root)
	return r
}

func (r *Registry) insert(n *node) {
	r.nodes[n.key] = n
	r.order = append(r.order, n)
}

// Kinds returns every known key, root first, then in declaration order.
// Lazily created kinds follow in order of first report.
func (r *Registry) Kinds() []Key {
	keys := make([]Key, len(r.order))
	for i, n := range r.order {
		keys[i] = n.key
	}
	return keys
}

// ReportInitialized records that x became active and notifies, in order, the
// observers and instance callbacks of x, the perceivers and the type-wide
// callbacks of its exact kind and then of every ancestor and capability.
// Finally x starts perceiving the kinds its kind declares with Perceives.
//
// The returned error combines any subscriber panics of this fan-out.
func (r *Registry) ReportInitialized(x Lifetime) error {
	n, err := r.resolve(x)
	if err != nil {
		return r.reject(Initialized, x, err)
	}
	if n.own.contains(x) {
		return r.reject(Initialized, x, fmt.Errorf("%w: %s", ErrAlreadyActive, n.key))
	}
	var self Perceiver
	if len(n.autoPerceive) > 0 {
		p, ok := x.(Perceiver)
		if !ok {
			return r.reject(Initialized, x, configErrorf(n.key, "perceives other kinds but %T is not a Perceiver", x))
		}
		self = p
	}

	mark := len(r.failures)
	n.own.add(x)
	r.fire(n, Initialized, x)
	for _, a := range n.upward() {
		r.fire(a, Initialized, x)
	}
	if self != nil && n.own.contains(x) {
		for _, t := range n.autoPerceive {
			r.addPerceiver(t, self)
		}
	}
	return r.collect(mark)
}

// ReportDisposed records that x left the active state. x is removed from
// every live list before any subscriber runs. After the fan-out, x's own
// observations of other instances and its automatic perceptions end.
func (r *Registry) ReportDisposed(x Lifetime) error {
	n, err := r.resolve(x)
	if err != nil {
		return r.reject(Disposed, x, err)
	}
	if !n.own.contains(x) {
		return r.reject(Disposed, x, fmt.Errorf("%w: %s", ErrNotActive, n.key))
	}

	mark := len(r.failures)
	n.own.remove(x)
	r.fire(n, Disposed, x)
	for _, a := range n.upward() {
		r.fire(a, Disposed, x)
	}
	if o, ok := x.(Observer); ok {
		for _, t := range n.observable {
			r.sweepObserver(t, o)
		}
	}
	if p, ok := x.(Perceiver); ok {
		for _, t := range n.autoPerceive {
			r.removePerceiver(t, p)
		}
	}
	return r.collect(mark)
}

// ReportDestroyed drops every registration keyed by x. It fails without
// touching anything when x is still initialized.
func (r *Registry) ReportDestroyed(x Lifetime) error {
	n, err := r.resolve(x)
	if err != nil {
		return r.reject(Destroyed, x, err)
	}
	if x.IsLifetimeInitialized() || n.own.contains(x) {
		return r.reject(Destroyed, x, fmt.Errorf("%w: %s", ErrDestroyedWhileInitialized, n.key))
	}
	r.purge(n, x)
	for _, a := range n.upward() {
		r.purge(a, x)
	}
	return nil
}

// Subscribe registers p for every transition of kind key and immediately
// replays OnInitialized for each instance already active, in list order.
// Subscribing twice is a no-op.
func (r *Registry) Subscribe(key Key, p Perceiver) error {
	n, err := r.node(key)
	if err != nil {
		return err
	}
	if !validSubscriber(p) {
		return ErrInvalidSubscriber
	}
	mark := len(r.failures)
	r.addPerceiver(n, p)
	return r.collect(mark)
}

// Unsubscribe removes p and replays OnDisposed for each active instance so
// p can release whatever it built up. Unknown subscribers are ignored.
func (r *Registry) Unsubscribe(key Key, p Perceiver) error {
	n, err := r.node(key)
	if err != nil {
		return err
	}
	if !validSubscriber(p) {
		return nil
	}
	mark := len(r.failures)
	r.removePerceiver(n, p)
	return r.collect(mark)
}

// Observe registers o for the transitions of x as seen through kind key,
// which must be x's kind or one of its ancestors or capabilities. With
// replay, o receives OnInitialized at once if x is active.
func (r *Registry) Observe(key Key, x Lifetime, o Observer, replay bool) error {
	n, err := r.observationNode(key, x)
	if err != nil {
		return err
	}
	if !validSubscriber(o) {
		return ErrInvalidSubscriber
	}
	mark := len(r.failures)
	if n.addObserver(x, o) && replay && x.IsLifetimeInitialized() {
		r.invoke(n, Initialized, func() { o.OnInitialized(x) })
	}
	return r.collect(mark)
}

// Unobserve removes o from x. With replay, o receives OnDisposed at once if
// x is still active.
func (r *Registry) Unobserve(key Key, x Lifetime, o Observer, replay bool) error {
	n, err := r.observationNode(key, x)
	if err != nil {
		return err
	}
	if !validSubscriber(o) {
		return nil
	}
	mark := len(r.failures)
	if n.removeObserver(x, o) && replay && x.IsLifetimeInitialized() {
		r.invoke(n, Disposed, func() { o.OnDisposed(x) })
	}
	return r.collect(mark)
}

// ObserveInstance is Observe on x's exact kind with replay.
func (r *Registry) ObserveInstance(x Lifetime, o Observer) error {
	if !validInstance(x) {
		return ErrInvalidInstance
	}
	return r.Observe(kindOf(x), x, o, true)
}

// UnobserveInstance is Unobserve on x's exact kind with replay.
func (r *Registry) UnobserveInstance(x Lifetime, o Observer) error {
	if !validInstance(x) {
		return ErrInvalidInstance
	}
	return r.Unobserve(kindOf(x), x, o, true)
}

// List returns the live list of kind key.
func (r *Registry) List(key Key) (*List, error) {
	n, err := r.node(key)
	if err != nil {
		return nil, err
	}
	return n.list, nil
}

// First returns the first active instance of kind key.
func (r *Registry) First(key Key) (Lifetime, bool) {
	n, err := r.node(key)
	if err != nil {
		return nil, false
	}
	return n.list.First()
}

// OnTypeInitialized appends fn to the type-wide initialized chain of key.
func (r *Registry) OnTypeInitialized(key Key, fn func(Lifetime)) (Handle, error) {
	return r.addTypeCallback(key, Initialized, fn)
}

// OnTypeDisposed appends fn to the type-wide disposed chain of key.
func (r *Registry) OnTypeDisposed(key Key, fn func(Lifetime)) (Handle, error) {
	return r.addTypeCallback(key, Disposed, fn)
}

// OnInstanceInitialized appends fn to x's initialized chain. The chain is
// dropped when x is destroyed.
func (r *Registry) OnInstanceInitialized(x Lifetime, fn func(Lifetime)) (Handle, error) {
	return r.addInstanceCallback(x, Initialized, fn)
}

// OnInstanceDisposed appends fn to x's disposed chain.
func (r *Registry) OnInstanceDisposed(x Lifetime, fn func(Lifetime)) (Handle, error) {
	return r.addInstanceCallback(x, Disposed, fn)
}

// RemoveCallback removes the callback registered under h. It reports false
// for handles that are unknown or already removed.
func (r *Registry) RemoveCallback(h Handle) bool {
	ref, ok := r.callbacks[h]
	if !ok {
		return false
	}
	delete(r.callbacks, h)
	r.handles.Destroy(ecs.EntityID(h))
	if ref.instance == nil {
		ref.node.typeCallbacks[ref.transition].remove(h)
		return true
	}
	chains := ref.node.instanceCallbacks[ref.transition]
	if c := chains[ref.instance]; c != nil {
		c.remove(h)
		if c.len() == 0 {
			delete(chains, ref.instance)
		}
	}
	return true
}

// Track registers type-wide callbacks for both transitions of key and
// replays onInitialized for every active instance. Either func may be nil.
func (r *Registry) Track(key Key, onInitialized, onDisposed func(Lifetime)) (Tracking, error) {
	var t Tracking
	n, err := r.node(key)
	if err != nil {
		return t, err
	}
	active := n.list.Snapshot()
	if onInitialized != nil {
		if t.Initialized, err = r.addTypeCallback(key, Initialized, onInitialized); err != nil {
			return t, err
		}
	}
	if onDisposed != nil {
		if t.Disposed, err = r.addTypeCallback(key, Disposed, onDisposed); err != nil {
			r.RemoveCallback(t.Initialized)
			return Tracking{}, err
		}
	}
	if onInitialized == nil {
		return t, nil
	}
	mark := len(r.failures)
	for _, x := range active {
		if _, live := r.callbacks[t.Initialized]; !live {
			break
		}
		if !n.list.Contains(x) {
			continue
		}
		r.invoke(n, Initialized, func() { onInitialized(x) })
	}
	return t, r.collect(mark)
}

// Untrack removes both callbacks of t. With replayDisposed, the disposed
// callback runs once for every instance active when Untrack was called.
func (r *Registry) Untrack(t Tracking, replayDisposed bool) error {
	r.RemoveCallback(t.Initialized)
	ref, ok := r.callbacks[t.Disposed]
	if !ok {
		return nil
	}
	active := ref.node.list.Snapshot()
	r.RemoveCallback(t.Disposed)
	if !replayDisposed {
		return nil
	}
	mark := len(r.failures)
	for _, x := range active {
		r.invoke(ref.node, Disposed, func() { ref.fn(x) })
	}
	return r.collect(mark)
}

// Close tears the registry down: every subscriber, callback and open cursor
// is dropped and later calls fail with ErrClosed.
func (r *Registry) Close() {
	if r.closed {
		return
	}
	r.closed = true
	for _, n := range r.order {
		for len(n.list.cursors) > 0 {
			n.list.cursors[0].Close()
		}
		n.perceivers = nil
		n.perceiving = make(map[Perceiver]struct{})
		n.observers = make(map[Lifetime][]Observer)
		n.observed = nil
		for t := range n.instanceCallbacks {
			n.instanceCallbacks[t] = make(map[Lifetime]*chain)
			n.typeCallbacks[t] = chain{}
		}
	}
	r.callbacks = make(map[Handle]callbackRef)
	r.log.Debug("lifetime registry closed", zap.Int("kinds", len(r.order)))
}

// ── internals ──────────────────────────────────────────────────────

func (r *Registry) node(key Key) (*node, error) {
	if r.closed {
		return nil, ErrClosed
	}
	n, ok := r.nodes[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, key)
	}
	return n, nil
}

// resolve finds x's exact node, creating it under Root when the registry is
// not strict.
func (r *Registry) resolve(x Lifetime) (*node, error) {
	if r.closed {
		return nil, ErrClosed
	}
	if !validInstance(x) {
		return nil, ErrInvalidInstance
	}
	key := kindOf(x)
	if n, ok := r.nodes[key]; ok {
		return n, nil
	}
	if r.strict {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, key)
	}
	n := newNode(key)
	n.lazy = true
	if _, kinded := x.(Kinded); !kinded {
		n.goType = reflect.TypeOf(x)
	}
	n.interfaces = []*node{r.root}
	r.root.children = append(r.root.children, n)
	r.root.list.attach(n.own)
	r.insert(n)
	r.log.Debug("lifetime kind created on first report", zap.String("kind", string(key)))
	return n, nil
}

func (r *Registry) observationNode(key Key, x Lifetime) (*node, error) {
	exact, err := r.resolve(x)
	if err != nil {
		return nil, err
	}
	n, err := r.node(key)
	if err != nil {
		return nil, err
	}
	if !exact.satisfies(n) {
		return nil, fmt.Errorf("%w: %s is not a %s", ErrUnrelatedKind, exact.key, n.key)
	}
	return n, nil
}

// fire delivers one transition of x at n: observers of x, x's callback
// chain, perceivers of n, then n's type-wide chain. Subscribers withdrawn
// earlier in the same fan-out are skipped.
func (r *Registry) fire(n *node, t Transition, x Lifetime) {
	if obs := n.observers[x]; len(obs) > 0 {
		for _, o := range append([]Observer(nil), obs...) {
			if !n.hasObserver(x, o) {
				continue
			}
			r.invoke(n, t, func() { deliver(o, t, x) })
		}
	}
	if c := n.instanceCallbacks[t][x]; c != nil {
		r.runChain(n, t, c, x)
	}
	if len(n.perceivers) > 0 {
		for _, p := range append([]Perceiver(nil), n.perceivers...) {
			if !n.hasPerceiver(p) {
				continue
			}
			r.invoke(n, t, func() { deliver(p, t, x) })
		}
	}
	r.runChain(n, t, &n.typeCallbacks[t], x)
}

func (r *Registry) runChain(n *node, t Transition, c *chain, x Lifetime) {
	for _, cb := range c.snapshot() {
		if _, live := r.callbacks[cb.h]; !live {
			continue
		}
		fn := cb.fn
		r.invoke(n, t, func() { fn(x) })
	}
}

type subscriber interface {
	OnInitialized(x Lifetime)
	OnDisposed(x Lifetime)
}

func deliver(s subscriber, t Transition, x Lifetime) {
	if t == Initialized {
		s.OnInitialized(x)
	} else {
		s.OnDisposed(x)
	}
}

// invoke runs one subscriber in isolation. A panic is recorded and logged;
// the fan-out carries on with the next subscriber.
func (r *Registry) invoke(n *node, t Transition, fn func()) {
	defer func() {
		if v := recover(); v != nil {
			r.failures = append(r.failures, &SubscriberError{
				Kind:       n.key,
				Transition: t,
				Value:      v,
				Stack:      string(debug.Stack()),
			})
			r.log.Error("lifetime subscriber panicked",
				zap.String("kind", string(n.key)),
				zap.Stringer("transition", t),
				zap.Any("panic", v))
		}
	}()
	fn()
}

// collect returns the failures appended since mark and forgets them.
func (r *Registry) collect(mark int) error {
	if len(r.failures) == mark {
		return nil
	}
	err := multierr.Combine(r.failures[mark:]...)
	clear(r.failures[mark:])
	r.failures = r.failures[:mark]
	return err
}

func (r *Registry) reject(t Transition, x Lifetime, err error) error {
	r.log.Error("lifetime report rejected",
		zap.Stringer("transition", t),
		zap.String("instance", fmt.Sprintf("%T", x)),
		zap.Error(err))
	return err
}

// addPerceiver registers p and replays the instances active beforehand.
// Instances initialized during the replay reach p through their own fan-out.
func (r *Registry) addPerceiver(n *node, p Perceiver) {
	if n.hasPerceiver(p) {
		return
	}
	active := n.list.Snapshot()
	n.addPerceiver(p)
	for _, x := range active {
		if !n.hasPerceiver(p) {
			return
		}
		if !n.list.Contains(x) {
			continue
		}
		r.invoke(n, Initialized, func() { p.OnInitialized(x) })
	}
}

func (r *Registry) removePerceiver(n *node, p Perceiver) {
	if !n.hasPerceiver(p) {
		return
	}
	active := n.list.Snapshot()
	n.removePerceiver(p)
	// Instances disposed during the replay no longer reach p through their
	// own fan-out, so they are replayed too.
	for _, x := range active {
		if n.hasPerceiver(p) {
			return
		}
		r.invoke(n, Disposed, func() { p.OnDisposed(x) })
	}
}

// sweepObserver ends every observation o holds at n. Observed instances
// that are still active get a final OnDisposed.
func (r *Registry) sweepObserver(n *node, o Observer) {
	if len(n.observed) == 0 {
		return
	}
	for _, x := range append([]Lifetime(nil), n.observed...) {
		if n.removeObserver(x, o) && n.list.Contains(x) {
			r.invoke(n, Disposed, func() { o.OnDisposed(x) })
		}
	}
}

func (r *Registry) purge(n *node, x Lifetime) {
	n.forgetObserved(x)
	for t, chains := range n.instanceCallbacks {
		c, ok := chains[x]
		if !ok {
			continue
		}
		for _, cb := range c.entries {
			delete(r.callbacks, cb.h)
			r.handles.Destroy(ecs.EntityID(cb.h))
		}
		delete(n.instanceCallbacks[t], x)
	}
}

func (r *Registry) addTypeCallback(key Key, t Transition, fn func(Lifetime)) (Handle, error) {
	n, err := r.node(key)
	if err != nil {
		return 0, err
	}
	if fn == nil {
		return 0, ErrInvalidSubscriber
	}
	h := Handle(r.handles.Create())
	n.typeCallbacks[t].add(h, fn)
	r.callbacks[h] = callbackRef{node: n, transition: t, fn: fn}
	return h, nil
}

func (r *Registry) addInstanceCallback(x Lifetime, t Transition, fn func(Lifetime)) (Handle, error) {
	n, err := r.resolve(x)
	if err != nil {
		return 0, err
	}
	if fn == nil {
		return 0, ErrInvalidSubscriber
	}
	chains := n.instanceCallbacks[t]
	c, ok := chains[x]
	if !ok {
		c = &chain{}
		chains[x] = c
	}
	h := Handle(r.handles.Create())
	c.add(h, fn)
	r.callbacks[h] = callbackRef{node: n, transition: t, instance: x, fn: fn}
	return h, nil
}

func validInstance(x Lifetime) bool {
	if x == nil {
		return false
	}
	v := reflect.ValueOf(x)
	return v.Kind() == reflect.Pointer && !v.IsNil()
}

func validSubscriber(s subscriber) bool {
	if s == nil {
		return false
	}
	return reflect.TypeOf(s).Comparable()
}
