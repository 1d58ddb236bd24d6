package event

import (
	"github.com/cerea1/lifetime/internal/core/ecs"
	"github.com/cerea1/lifetime/internal/core/lifetime"
)

// Transitioned is emitted for every lifecycle transition of an arena actor.
type Transitioned struct {
	Entity     ecs.EntityID
	Kind       lifetime.Key
	Transition lifetime.Transition
	Tick       uint64
}

// SubscriberFailed is emitted when a lifetime subscriber panicked during a
// report made by the arena.
type SubscriberFailed struct {
	Kind       lifetime.Key
	Transition lifetime.Transition
	Tick       uint64
}
