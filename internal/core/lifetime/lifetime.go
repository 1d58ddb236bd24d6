// Package lifetime tracks initialized / disposed / destroyed transitions of
// polymorphic objects and fans each transition out to subscribers of the
// object's exact type, every ancestor type and every capability it declares.
//
// A Registry is built once from explicit declarations (see Builder). Afterwards
// the host calls ReportInitialized, ReportDisposed and ReportDestroyed exactly
// once per transition, in that order. Each participating type keeps a live
// List of its active instances merged with those of all its descendants.
//
// A Registry is not safe for concurrent use. It is meant to be driven from the
// single goroutine that runs the game loop; callbacks may re-enter it freely.
package lifetime

import (
	"reflect"
	"strings"
)

// Lifetime is the capability every participating object implements.
type Lifetime interface {
	// IsLifetimeInitialized reports whether the object is currently active.
	// The owner flips it before reporting the matching transition.
	IsLifetimeInitialized() bool
}

// Kinded is implemented by objects whose participating type is data-driven
// rather than their Go type.
type Kinded interface {
	LifetimeKind() Key
}

// Perceiver receives the transitions of every instance of one type.
type Perceiver interface {
	OnInitialized(x Lifetime)
	OnDisposed(x Lifetime)
}

// Observer receives the transitions of one specific instance.
type Observer interface {
	OnInitialized(x Lifetime)
	OnDisposed(x Lifetime)
}

// Key identifies one participating type.
type Key string

// Root is the universal capability every node reaches.
var Root = KeyOf[Lifetime]()

// KeyOf returns the key of the Go type T.
func KeyOf[T any]() Key {
	return KeyFor(reflect.TypeFor[T]())
}

// KeyFor returns the key of t, qualified by package path so equally named
// types from different packages do not collide.
func KeyFor(t reflect.Type) Key {
	var sb strings.Builder
	for t.Kind() == reflect.Pointer {
		sb.WriteByte('*')
		t = t.Elem()
	}
	if t.PkgPath() == "" || t.Name() == "" {
		sb.WriteString(t.String())
	} else {
		sb.WriteString(t.PkgPath())
		sb.WriteByte('.')
		sb.WriteString(t.Name())
	}
	return Key(sb.String())
}

// kindOf resolves the exact participating type of x.
func kindOf(x Lifetime) Key {
	if k, ok := x.(Kinded); ok {
		return k.LifetimeKind()
	}
	return KeyFor(reflect.TypeOf(x))
}

// Transition is one of the three lifecycle events.
type Transition uint8

const (
	Initialized Transition = iota
	Disposed
	Destroyed
)

func (t Transition) String() string {
	switch t {
	case Initialized:
		return "initialized"
	case Disposed:
		return "disposed"
	case Destroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}
