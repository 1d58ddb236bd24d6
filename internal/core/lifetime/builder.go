package lifetime

import (
	"reflect"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Decl declares one participating kind and its edges. Every key named here
// must itself be declared, otherwise Build fails.
type Decl struct {
	Parent     Key   // immediate base kind, if any
	Implements []Key // capabilities declared directly
	Perceives  []Key // kinds whose events active instances receive automatically
	Observes   []Key // kinds whose instances active instances may observe one by one
	Capability bool  // an interface-like kind; it can be implemented, not extended
}

type declaration struct {
	key    Key
	decl   Decl
	goType reflect.Type
}

var (
	lifetimeType  = reflect.TypeFor[Lifetime]()
	perceiverType = reflect.TypeFor[Perceiver]()
	observerType  = reflect.TypeFor[Observer]()
)

// Builder collects declarations and turns them into a Registry.
type Builder struct {
	log    *zap.Logger
	strict bool
	decls  []*declaration
	byKey  map[Key]*declaration
	errs   []error
}

func NewBuilder(log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{
		log:   log,
		byKey: make(map[Key]*declaration),
	}
}

// Strict makes the registry reject reports for undeclared kinds instead of
// creating their node on first use.
func (b *Builder) Strict(on bool) *Builder {
	b.strict = on
	return b
}

// Declare adds a data-driven kind. Declaration order is edge order.
func (b *Builder) Declare(key Key, d Decl) *Builder {
	b.declare(key, d, nil)
	return b
}

func (b *Builder) declare(key Key, d Decl, t reflect.Type) {
	switch {
	case key == "":
		b.errs = append(b.errs, configErrorf(key, "empty key"))
		return
	case key == Root:
		b.errs = append(b.errs, configErrorf(key, "root capability is implicit"))
		return
	}
	if _, dup := b.byKey[key]; dup {
		b.errs = append(b.errs, configErrorf(key, "declared twice"))
		return
	}
	decl := &declaration{key: key, decl: d, goType: t}
	b.decls = append(b.decls, decl)
	b.byKey[key] = decl
}

// Option configures a Go-typed declaration made with Register.
type Option func(*Decl)

// Extends sets P as the base kind.
func Extends[P any]() Option {
	return func(d *Decl) { d.Parent = KeyOf[P]() }
}

// Implements adds capability I.
func Implements[I any]() Option {
	return func(d *Decl) { d.Implements = append(d.Implements, KeyOf[I]()) }
}

// Perceives makes active instances receive every transition of kind X.
func Perceives[X any]() Option {
	return func(d *Decl) { d.Perceives = append(d.Perceives, KeyOf[X]()) }
}

// ObservesInstances lets instances observe single X instances; their
// observations are swept when they are disposed.
func ObservesInstances[X any]() Option {
	return func(d *Decl) { d.Observes = append(d.Observes, KeyOf[X]()) }
}

// Capability marks a non-interface Go type as a capability.
func Capability() Option {
	return func(d *Decl) { d.Capability = true }
}

// Register declares the Go type T. Interface types are capabilities.
func Register[T any](b *Builder, opts ...Option) {
	var d Decl
	for _, opt := range opts {
		opt(&d)
	}
	t := reflect.TypeFor[T]()
	if t.Kind() == reflect.Interface {
		d.Capability = true
	}
	b.declare(KeyOf[T](), d, t)
}

// Build links every declaration into the type graph. All configuration
// problems are reported together; no Registry is returned if there is any.
func (b *Builder) Build() (*Registry, error) {
	errs := append([]error(nil), b.errs...)
	r := newRegistry(b.log, b.strict)

	for _, d := range b.decls {
		n := newNode(d.key)
		n.goType = d.goType
		n.capability = d.decl.Capability
		r.insert(n)
	}
	for _, d := range b.decls {
		errs = append(errs, r.link(r.nodes[d.key], d)...)
	}
	if len(errs) == 0 {
		errs = append(errs, r.checkAcyclic()...)
	}
	if len(errs) > 0 {
		return nil, multierr.Combine(errs...)
	}

	for _, n := range r.order {
		for _, d := range n.descendants() {
			n.list.attach(d.own)
		}
	}
	b.log.Debug("lifetime graph built",
		zap.Int("kinds", len(r.order)),
		zap.Bool("strict", b.strict))
	return r, nil
}

func (r *Registry) link(n *node, d *declaration) []error {
	var errs []error
	if p := d.decl.Parent; p != "" {
		pn, ok := r.nodes[p]
		switch {
		case !ok:
			errs = append(errs, configErrorf(n.key, "unknown parent %s", p))
		case n.capability:
			errs = append(errs, configErrorf(n.key, "capability cannot extend %s; use Implements", p))
		case pn.capability:
			errs = append(errs, configErrorf(n.key, "parent %s is a capability; use Implements", p))
		default:
			n.parent = pn
			pn.children = append(pn.children, n)
		}
	}
	for _, ik := range d.decl.Implements {
		in, ok := r.nodes[ik]
		switch {
		case !ok:
			errs = append(errs, configErrorf(n.key, "unknown capability %s", ik))
		case !in.capability:
			errs = append(errs, configErrorf(n.key, "%s is not a capability", ik))
		case containsNode(n.interfaces, in):
		case n.goType != nil && in.goType != nil && in.goType.Kind() == reflect.Interface && !n.goType.Implements(in.goType):
			errs = append(errs, configErrorf(n.key, "Go type %s does not implement %s", n.goType, in.goType))
		default:
			n.interfaces = append(n.interfaces, in)
			in.children = append(in.children, n)
		}
	}
	if n.parent == nil && len(n.interfaces) == 0 {
		n.interfaces = append(n.interfaces, r.root)
		r.root.children = append(r.root.children, n)
	}

	concrete := n.goType != nil && n.goType.Kind() != reflect.Interface
	if concrete && !n.goType.Implements(lifetimeType) {
		errs = append(errs, configErrorf(n.key, "%s does not implement Lifetime", n.goType))
	}
	for _, tk := range d.decl.Perceives {
		tn, ok := r.nodes[tk]
		switch {
		case !ok:
			errs = append(errs, configErrorf(n.key, "perceives unknown kind %s", tk))
		case concrete && !n.goType.Implements(perceiverType):
			errs = append(errs, configErrorf(n.key, "perceives %s but %s is not a Perceiver", tk, n.goType))
		case !containsNode(n.autoPerceive, tn):
			n.autoPerceive = append(n.autoPerceive, tn)
		}
	}
	for _, tk := range d.decl.Observes {
		tn, ok := r.nodes[tk]
		switch {
		case !ok:
			errs = append(errs, configErrorf(n.key, "observes unknown kind %s", tk))
		case concrete && !n.goType.Implements(observerType):
			errs = append(errs, configErrorf(n.key, "observes %s but %s is not an Observer", tk, n.goType))
		case !containsNode(n.observable, tn):
			n.observable = append(n.observable, tn)
		}
	}
	return errs
}

// checkAcyclic walks parent and interface edges depth-first.
func (r *Registry) checkAcyclic() []error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[*node]int, len(r.order))
	var errs []error
	var visit func(n *node) bool
	visit = func(n *node) bool {
		switch state[n] {
		case visiting:
			return false
		case done:
			return true
		}
		state[n] = visiting
		up := n.interfaces
		if n.parent != nil {
			up = append([]*node{n.parent}, up...)
		}
		for _, a := range up {
			if !visit(a) {
				errs = append(errs, configErrorf(n.key, "inheritance cycle through %s", a.key))
			}
		}
		state[n] = done
		return true
	}
	for _, n := range r.order {
		visit(n)
	}
	return errs
}

func containsNode(ns []*node, n *node) bool {
	for _, m := range ns {
		if m == n {
			return true
		}
	}
	return false
}
