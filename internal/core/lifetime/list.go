package lifetime

import (
	"fmt"
	"iter"
)

// List is the live, index-addressable view of one kind's active instances:
// the kind's own store followed by the store of every descendant kind,
// flattened one level. Indices are not stable across removals.
//
// Lookups by index scan the merged stores linearly; iterate with a Cursor or
// All instead of indexing in a loop when the list can change underneath.
type List struct {
	key     Key
	sources []*store
	cursors []*Cursor
}

func newList(key Key, own *store) *List {
	l := &List{key: key}
	l.attach(own)
	return l
}

// attach merges s into the view once.
func (l *List) attach(s *store) bool {
	for _, src := range l.sources {
		if src == s {
			return false
		}
	}
	l.sources = append(l.sources, s)
	s.views = append(s.views, l)
	return true
}

// Key returns the kind this list belongs to.
func (l *List) Key() Key { return l.key }

// Len returns the number of active instances in the view.
func (l *List) Len() int {
	n := 0
	for _, s := range l.sources {
		n += s.len()
	}
	return n
}

// Get returns the instance at flattened index i.
func (l *List) Get(i int) (Lifetime, bool) {
	if i < 0 {
		return nil, false
	}
	for _, s := range l.sources {
		if i < s.len() {
			return s.items[i], true
		}
		i -= s.len()
	}
	return nil, false
}

// At is Get that panics when i is out of range, like a slice index.
func (l *List) At(i int) Lifetime {
	x, ok := l.Get(i)
	if !ok {
		panic(fmt.Sprintf("lifetime: index %d out of range [0:%d] in list %s", i, l.Len(), l.key))
	}
	return x
}

// First returns the first active instance, if any.
func (l *List) First() (Lifetime, bool) {
	return l.Get(0)
}

// Contains reports whether x is active in this view.
func (l *List) Contains(x Lifetime) bool {
	for _, s := range l.sources {
		if s.contains(x) {
			return true
		}
	}
	return false
}

// Snapshot copies the current contents in list order.
func (l *List) Snapshot() []Lifetime {
	out := make([]Lifetime, 0, l.Len())
	for _, s := range l.sources {
		out = append(out, s.items...)
	}
	return out
}

// Cursor opens a live enumeration. The cursor must be closed once done.
func (l *List) Cursor() *Cursor {
	c := &Cursor{list: l, pos: -1, open: true}
	l.cursors = append(l.cursors, c)
	return c
}

// All enumerates the list through a cursor, so instances may be initialized
// or disposed from inside the loop body.
func (l *List) All() iter.Seq[Lifetime] {
	return func(yield func(Lifetime) bool) {
		c := l.Cursor()
		defer c.Close()
		for c.Next() {
			if !yield(c.Value()) {
				return
			}
		}
	}
}

func (l *List) offset(s *store) int {
	off := 0
	for _, src := range l.sources {
		if src == s {
			return off
		}
		off += src.len()
	}
	return off
}

// added shifts every open cursor whose visited prefix grew. The new instance
// is queued on those cursors so the pass still yields it.
func (l *List) added(s *store, i int, x Lifetime) {
	if len(l.cursors) == 0 {
		return
	}
	p := l.offset(s) + i
	for _, c := range l.cursors {
		if p <= c.pos {
			c.pos++
			c.pending = append(c.pending, x)
		}
	}
}

// removed adjusts cursors after x left flattened position p and the store's
// last element (at q before removal) was swapped into p.
func (l *List) removed(s *store, i, last int, x, moved Lifetime) {
	if len(l.cursors) == 0 {
		return
	}
	off := l.offset(s)
	p, q := off+i, off+last
	for _, c := range l.cursors {
		c.drop(x)
		switch {
		case q <= c.pos:
			c.pos--
		case p <= c.pos:
			// moved has not been visited yet but now sits behind the cursor.
			c.pending = append(c.pending, moved)
		}
	}
}

func (l *List) closeCursor(c *Cursor) {
	for i, open := range l.cursors {
		if open == c {
			copy(l.cursors[i:], l.cursors[i+1:])
			l.cursors[len(l.cursors)-1] = nil
			l.cursors = l.cursors[:len(l.cursors)-1]
			return
		}
	}
}

// Cursor walks a List while it is being mutated. Every instance present when
// the pass starts is yielded exactly once, instances added during the pass at
// most once, and instances removed during the pass are not yielded again.
type Cursor struct {
	list    *List
	pos     int // flattened index of the last instance reached by forward progress
	pending []Lifetime
	current Lifetime
	open    bool
}

// Next advances the cursor. Queued additions are yielded first.
func (c *Cursor) Next() bool {
	if !c.open {
		return false
	}
	if len(c.pending) > 0 {
		c.current = c.pending[0]
		c.pending[0] = nil
		c.pending = c.pending[1:]
		return true
	}
	if x, ok := c.list.Get(c.pos + 1); ok {
		c.pos++
		c.current = x
		return true
	}
	c.current = nil
	return false
}

// Value returns the instance yielded by the last Next.
func (c *Cursor) Value() Lifetime { return c.current }

// Reset restarts the pass from the beginning.
func (c *Cursor) Reset() {
	c.pos = -1
	c.pending = nil
	c.current = nil
}

// Close detaches the cursor from its list. Close is idempotent.
func (c *Cursor) Close() {
	if !c.open {
		return
	}
	c.open = false
	c.pending = nil
	c.current = nil
	c.list.closeCursor(c)
}

func (c *Cursor) drop(x Lifetime) {
	for i, p := range c.pending {
		if p == x {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}
