package lifetime

import "github.com/cerea1/lifetime/internal/core/ecs"

// Handle identifies one registered callback. Handles are generational, so a
// handle that was already removed never matches a later registration.
type Handle ecs.EntityID

// IsZero reports whether h was never issued.
func (h Handle) IsZero() bool { return h == 0 }

type callback struct {
	h  Handle
	fn func(Lifetime)
}

// chain is an ordered list of callbacks, removable by handle.
type chain struct {
	entries []callback
}

func (c *chain) add(h Handle, fn func(Lifetime)) {
	c.entries = append(c.entries, callback{h: h, fn: fn})
}

func (c *chain) remove(h Handle) bool {
	for i, e := range c.entries {
		if e.h == h {
			copy(c.entries[i:], c.entries[i+1:])
			c.entries[len(c.entries)-1] = callback{}
			c.entries = c.entries[:len(c.entries)-1]
			return true
		}
	}
	return false
}

func (c *chain) len() int { return len(c.entries) }

// snapshot copies the entries so fan-out is immune to mutation by callbacks.
func (c *chain) snapshot() []callback {
	if len(c.entries) == 0 {
		return nil
	}
	out := make([]callback, len(c.entries))
	copy(out, c.entries)
	return out
}

// callbackRef locates a registered callback for removal by handle.
type callbackRef struct {
	node       *node
	transition Transition
	instance   Lifetime // nil for type-wide callbacks
	fn         func(Lifetime)
}

// Tracking pairs the handles returned by Registry.Track.
type Tracking struct {
	Initialized Handle
	Disposed    Handle
}
