// Package pool recycles arena objects per kind. Objects taken out are picked
// once at the end of the tick they were taken in; objects put back are
// released at once.
package pool

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrNotPooled is returned by Put for objects this pool did not hand out.
var ErrNotPooled = errors.New("pool: object not taken from this pool")

// Poolable is implemented by recycled objects.
type Poolable interface {
	Construct() // once, right after the object is created
	Pick()      // after Get, deferred to FlushPicks
	Release()   // on Put
}

type bucket[T any] struct {
	in  []T
	out int
}

// Pool keeps one free list per kind. Not safe for concurrent use.
type Pool[T interface {
	comparable
	Poolable
}] struct {
	log    *zap.Logger
	create func(kind string) T

	buckets map[string]*bucket[T]
	owner   map[T]string // objects out of the pool, by kind
	picks   []T
}

func New[T interface {
	comparable
	Poolable
}](create func(kind string) T, log *zap.Logger) *Pool[T] {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pool[T]{
		log:     log,
		create:  create,
		buckets: make(map[string]*bucket[T]),
		owner:   make(map[T]string),
	}
}

func (p *Pool[T]) bucket(kind string) *bucket[T] {
	b, ok := p.buckets[kind]
	if !ok {
		b = &bucket[T]{}
		p.buckets[kind] = b
	}
	return b
}

func (p *Pool[T]) construct(kind string) T {
	obj := p.create(kind)
	obj.Construct()
	return obj
}

// Prewarm grows the pool of kind until it holds at least n objects in and
// out of the pool together. It returns the number of objects created.
func (p *Pool[T]) Prewarm(kind string, n int) int {
	b := p.bucket(kind)
	created := 0
	for len(b.in)+b.out < n {
		b.in = append(b.in, p.construct(kind))
		created++
	}
	if created > 0 {
		p.log.Debug("pool prewarmed", zap.String("kind", kind), zap.Int("created", created))
	}
	return created
}

// Get takes an object of kind out of the pool, constructing one when the
// free list is empty. Its Pick runs on the next FlushPicks.
func (p *Pool[T]) Get(kind string) T {
	b := p.bucket(kind)
	var obj T
	if last := len(b.in) - 1; last >= 0 {
		obj = b.in[last]
		var zero T
		b.in[last] = zero
		b.in = b.in[:last]
	} else {
		obj = p.construct(kind)
	}
	b.out++
	p.owner[obj] = kind
	p.picks = append(p.picks, obj)
	return obj
}

// Put releases obj and returns it to its kind's free list. Objects that did
// not come from Get are still released, but ErrNotPooled is returned.
func (p *Pool[T]) Put(obj T) error {
	kind, ok := p.owner[obj]
	p.dropPick(obj)
	obj.Release()
	if !ok {
		return fmt.Errorf("%w: %v", ErrNotPooled, obj)
	}
	delete(p.owner, obj)
	b := p.bucket(kind)
	b.out--
	b.in = append(b.in, obj)
	return nil
}

// FlushPicks runs Pick on every object taken since the last flush. A
// panicking Pick is logged and the remaining objects are still picked.
func (p *Pool[T]) FlushPicks() int {
	n := 0
	for len(p.picks) > 0 {
		obj := p.picks[0]
		p.picks = p.picks[1:]
		p.pick(obj)
		n++
	}
	p.picks = nil
	return n
}

func (p *Pool[T]) pick(obj T) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("pool pick panicked", zap.Any("panic", r))
		}
	}()
	obj.Pick()
}

func (p *Pool[T]) dropPick(obj T) {
	for i, q := range p.picks {
		if q == obj {
			p.picks = append(p.picks[:i], p.picks[i+1:]...)
			return
		}
	}
}

// Drain drops every free object of kind. Objects out of the pool are kept
// track of and may still be Put back.
func (p *Pool[T]) Drain(kind string) int {
	b, ok := p.buckets[kind]
	if !ok {
		return 0
	}
	n := len(b.in)
	clear(b.in)
	b.in = b.in[:0]
	return n
}

// Stats returns how many objects of kind are in and out of the pool.
func (p *Pool[T]) Stats(kind string) (in, out int) {
	b, ok := p.buckets[kind]
	if !ok {
		return 0, 0
	}
	return len(b.in), b.out
}

// Owns reports whether obj is currently out of this pool.
func (p *Pool[T]) Owns(obj T) bool {
	_, ok := p.owner[obj]
	return ok
}
