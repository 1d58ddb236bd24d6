package world

import (
	"slices"

	"github.com/cerea1/lifetime/internal/core/ecs"
	"github.com/cerea1/lifetime/internal/core/lifetime"
)

// Actor is one arena object. Its kind comes from the kinds table, so every
// kind shares this Go type and names itself through LifetimeKind.
//
// An actor perceives the kinds its kind declares and may observe single
// actors it was told to watch; both feed the same tracked set.
// Accessed only from the game loop goroutine; no locks needed.
type Actor struct {
	ID        ecs.EntityID
	Kind      string
	SpawnTick uint64
	Picked    bool // set by the pool at the end of the spawn tick
	Pooled    bool

	key     lifetime.Key
	active  bool
	tracked map[ecs.EntityID]struct{}
}

func newActor(kind string) *Actor {
	a := &Actor{Kind: kind, key: lifetime.Key(kind)}
	a.Construct()
	return a
}

func (a *Actor) IsLifetimeInitialized() bool { return a.active }
func (a *Actor) LifetimeKind() lifetime.Key  { return a.key }

// OnInitialized records another actor coming into view, either through
// perception of its kind or an explicit watch.
func (a *Actor) OnInitialized(x lifetime.Lifetime) {
	if o, ok := x.(*Actor); ok && o != a {
		a.tracked[o.ID] = struct{}{}
	}
}

func (a *Actor) OnDisposed(x lifetime.Lifetime) {
	if o, ok := x.(*Actor); ok {
		delete(a.tracked, o.ID)
	}
}

// Tracked returns the IDs of every actor a currently tracks, ascending.
func (a *Actor) Tracked() []ecs.EntityID {
	ids := make([]ecs.EntityID, 0, len(a.tracked))
	for id := range a.tracked {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Tracks reports whether a tracks id.
func (a *Actor) Tracks(id ecs.EntityID) bool {
	_, ok := a.tracked[id]
	return ok
}

// Active reports whether a is currently initialized.
func (a *Actor) Active() bool { return a.active }

// Construct, Pick and Release make actors poolable.

func (a *Actor) Construct() {
	a.tracked = make(map[ecs.EntityID]struct{})
}

func (a *Actor) Pick() { a.Picked = true }

func (a *Actor) Release() {
	a.ID = 0
	a.SpawnTick = 0
	a.Picked = false
	a.active = false
	clear(a.tracked)
}
