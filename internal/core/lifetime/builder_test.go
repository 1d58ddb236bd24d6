package lifetime

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap/zaptest"
)

type actor struct {
	name   string
	active bool
}

func (a *actor) IsLifetimeInitialized() bool { return a.active }
func (a *actor) Name() string                { return a.name }
func (a *actor) setActive(v bool)            { a.active = v }

type Unit struct{ actor }
type Enemy struct{ Unit }
type Tower struct{ actor }

type Damageable interface {
	Lifetime
	TakeDamage(n int)
}

func (*Enemy) TakeDamage(int) {}
func (*Tower) TakeDamage(int) {}

// Hunter perceives every Unit while active.
type Hunter struct {
	actor
	seen []string
}

func (h *Hunter) OnInitialized(x Lifetime) { h.seen = append(h.seen, "+"+nameOf(x)) }
func (h *Hunter) OnDisposed(x Lifetime)    { h.seen = append(h.seen, "-"+nameOf(x)) }

// Watcher may observe single Units.
type Watcher struct {
	actor
	seen []string
}

func (w *Watcher) OnInitialized(x Lifetime) { w.seen = append(w.seen, "+"+nameOf(x)) }
func (w *Watcher) OnDisposed(x Lifetime)    { w.seen = append(w.seen, "-"+nameOf(x)) }

func newUnit(name string) *Unit   { return &Unit{actor{name: name}} }
func newEnemy(name string) *Enemy { return &Enemy{Unit{actor{name: name}}} }
func newTower(name string) *Tower { return &Tower{actor{name: name}} }

func nameOf(x Lifetime) string {
	if n, ok := x.(interface{ Name() string }); ok {
		return n.Name()
	}
	return "?"
}

func buildArena(t *testing.T) *Registry {
	t.Helper()
	b := NewBuilder(zaptest.NewLogger(t))
	Register[*Unit](b)
	Register[Damageable](b)
	Register[*Enemy](b, Extends[*Unit](), Implements[Damageable]())
	Register[*Tower](b, Implements[Damageable]())
	Register[*Hunter](b, Perceives[*Unit]())
	Register[*Watcher](b, ObservesInstances[*Unit]())
	r, err := b.Build()
	require.NoError(t, err)
	return r
}

func TestBuild_Graph(t *testing.T) {
	r := buildArena(t)

	enemy := r.nodes[KeyOf[*Enemy]()]
	require.NotNil(t, enemy)
	assert.Equal(t, []*node{
		r.nodes[KeyOf[*Unit]()],
		r.nodes[KeyOf[Damageable]()],
		r.root,
	}, enemy.upward())

	assert.Equal(t, []Key{
		Root,
		KeyOf[*Unit](),
		KeyOf[Damageable](),
		KeyOf[*Enemy](),
		KeyOf[*Tower](),
		KeyOf[*Hunter](),
		KeyOf[*Watcher](),
	}, r.Kinds())

	dmg := r.nodes[KeyOf[Damageable]()]
	assert.True(t, dmg.capability)
	assert.Len(t, dmg.list.sources, 3) // own, Enemy, Tower
	assert.Len(t, r.nodes[KeyOf[*Unit]()].list.sources, 2)
}

func TestBuild_CollectsEveryProblem(t *testing.T) {
	b := NewBuilder(nil)
	b.Declare("a", Decl{Parent: "missing"})
	b.Declare("a", Decl{})
	b.Declare("cap", Decl{Capability: true})
	b.Declare("b", Decl{Parent: "cap"})
	b.Declare("c", Decl{Implements: []Key{"b"}})
	b.Declare("", Decl{})
	Register[Damageable](b)
	Register[*Unit](b, Implements[Damageable]())
	Register[*Tower](b, Perceives[*Unit]())

	r, err := b.Build()
	require.Error(t, err)
	assert.Nil(t, r)
	assert.ErrorIs(t, err, ErrConfig)

	errs := multierr.Errors(err)
	assert.Len(t, errs, 7)
	for _, e := range errs {
		var ce *ConfigError
		assert.True(t, errors.As(e, &ce), e.Error())
	}
}

func TestBuild_RejectsCycle(t *testing.T) {
	b := NewBuilder(nil)
	b.Declare("x", Decl{Parent: "y"})
	b.Declare("y", Decl{Parent: "x"})

	_, err := b.Build()
	require.ErrorIs(t, err, ErrConfig)
	assert.Contains(t, err.Error(), "cycle")
}

func TestBuild_RejectsRootRedeclaration(t *testing.T) {
	b := NewBuilder(nil)
	b.Declare(Root, Decl{})
	_, err := b.Build()
	assert.ErrorIs(t, err, ErrConfig)
}

func TestKeyOf_QualifiesPointers(t *testing.T) {
	k := KeyOf[*Unit]()
	assert.Equal(t, Key("*github.com/cerea1/lifetime/internal/core/lifetime.Unit"), k)
	assert.Equal(t, Key("github.com/cerea1/lifetime/internal/core/lifetime.Lifetime"), Root)
	assert.Equal(t, k, kindOf(newUnit("u")))
}
