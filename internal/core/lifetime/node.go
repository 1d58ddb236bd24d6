package lifetime

import "reflect"

// node is the per-kind hub: the kind's own active store, its merged live
// list, its subscribers and its edges to related kinds.
type node struct {
	key        Key
	goType     reflect.Type // nil for data-declared and lazy kinds
	capability bool
	lazy       bool

	parent     *node
	interfaces []*node
	children   []*node // kinds naming this one as parent or interface

	autoPerceive []*node // kinds whose events this kind's instances perceive while active
	observable   []*node // kinds whose instances this kind's instances may observe

	own  *store
	list *List

	perceivers []Perceiver
	perceiving map[Perceiver]struct{}

	observers map[Lifetime][]Observer
	observed  []Lifetime // observers keys in first-subscription order

	instanceCallbacks [2]map[Lifetime]*chain
	typeCallbacks     [2]chain

	closure      []*node
	closureReady bool
}

func newNode(key Key) *node {
	own := newStore()
	return &node{
		key:        key,
		own:        own,
		list:       newList(key, own),
		perceiving: make(map[Perceiver]struct{}),
		observers:  make(map[Lifetime][]Observer),
		instanceCallbacks: [2]map[Lifetime]*chain{
			make(map[Lifetime]*chain),
			make(map[Lifetime]*chain),
		},
	}
}

// upward returns every ancestor and capability of n, breadth-first through
// parent then interface edges, each once, n excluded. Cached on first use.
func (n *node) upward() []*node {
	if n.closureReady {
		return n.closure
	}
	n.closure = n.walk(func(m *node) []*node {
		if m.parent == nil {
			return m.interfaces
		}
		up := make([]*node, 0, 1+len(m.interfaces))
		up = append(up, m.parent)
		return append(up, m.interfaces...)
	})
	n.closureReady = true
	return n.closure
}

// descendants returns every kind reachable through child edges, breadth-first.
func (n *node) descendants() []*node {
	return n.walk(func(m *node) []*node { return m.children })
}

func (n *node) walk(next func(*node) []*node) []*node {
	seen := map[*node]struct{}{n: {}}
	var out []*node
	queue := []*node{n}
	for len(queue) > 0 {
		m := queue[0]
		queue = queue[1:]
		for _, e := range next(m) {
			if _, ok := seen[e]; ok {
				continue
			}
			seen[e] = struct{}{}
			out = append(out, e)
			queue = append(queue, e)
		}
	}
	return out
}

// satisfies reports whether instances of n also count as instances of k.
func (n *node) satisfies(k *node) bool {
	if n == k {
		return true
	}
	for _, a := range n.upward() {
		if a == k {
			return true
		}
	}
	return false
}

func (n *node) hasPerceiver(p Perceiver) bool {
	_, ok := n.perceiving[p]
	return ok
}

func (n *node) addPerceiver(p Perceiver) bool {
	if n.hasPerceiver(p) {
		return false
	}
	n.perceiving[p] = struct{}{}
	n.perceivers = append(n.perceivers, p)
	return true
}

func (n *node) removePerceiver(p Perceiver) bool {
	if !n.hasPerceiver(p) {
		return false
	}
	delete(n.perceiving, p)
	for i, q := range n.perceivers {
		if q == p {
			n.perceivers = append(n.perceivers[:i], n.perceivers[i+1:]...)
			break
		}
	}
	return true
}

func (n *node) hasObserver(x Lifetime, o Observer) bool {
	for _, q := range n.observers[x] {
		if q == o {
			return true
		}
	}
	return false
}

func (n *node) addObserver(x Lifetime, o Observer) bool {
	list, ok := n.observers[x]
	if !ok {
		n.observed = append(n.observed, x)
	}
	for _, q := range list {
		if q == o {
			return false
		}
	}
	n.observers[x] = append(list, o)
	return true
}

func (n *node) removeObserver(x Lifetime, o Observer) bool {
	list := n.observers[x]
	for i, q := range list {
		if q != o {
			continue
		}
		list = append(list[:i], list[i+1:]...)
		if len(list) == 0 {
			n.forgetObserved(x)
		} else {
			n.observers[x] = list
		}
		return true
	}
	return false
}

func (n *node) forgetObserved(x Lifetime) {
	if _, ok := n.observers[x]; !ok {
		return
	}
	delete(n.observers, x)
	for i, y := range n.observed {
		if y == x {
			n.observed = append(n.observed[:i], n.observed[i+1:]...)
			return
		}
	}
}

func (n *node) String() string { return string(n.key) }
