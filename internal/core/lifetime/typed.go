package lifetime

import "iter"

// Funcs adapts a pair of typed funcs into a Perceiver and Observer. Use it
// by pointer: the pointer is the subscriber identity. Instances that are not
// a T are ignored, as is a nil func.
type Funcs[T any] struct {
	Initialized func(T)
	Disposed    func(T)
}

func (f *Funcs[T]) OnInitialized(x Lifetime) {
	if v, ok := x.(T); ok && f.Initialized != nil {
		f.Initialized(v)
	}
}

func (f *Funcs[T]) OnDisposed(x Lifetime) {
	if v, ok := x.(T); ok && f.Disposed != nil {
		f.Disposed(v)
	}
}

// ListOf returns the live list of the Go type T.
func ListOf[T any](r *Registry) (*List, error) {
	return r.List(KeyOf[T]())
}

// FirstOf returns the first active instance of T.
func FirstOf[T any](r *Registry) (T, bool) {
	var zero T
	x, ok := r.First(KeyOf[T]())
	if !ok {
		return zero, false
	}
	v, ok := x.(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// Each enumerates the active instances of T live; see List.All.
func Each[T any](r *Registry) iter.Seq[T] {
	return func(yield func(T) bool) {
		l, err := ListOf[T](r)
		if err != nil {
			return
		}
		for x := range l.All() {
			v, ok := x.(T)
			if !ok {
				continue
			}
			if !yield(v) {
				return
			}
		}
	}
}

func SubscribeTo[T any](r *Registry, p Perceiver) error {
	return r.Subscribe(KeyOf[T](), p)
}

func UnsubscribeFrom[T any](r *Registry, p Perceiver) error {
	return r.Unsubscribe(KeyOf[T](), p)
}

// ObserveAs observes x through kind T with replay.
func ObserveAs[T any](r *Registry, x Lifetime, o Observer) error {
	return r.Observe(KeyOf[T](), x, o, true)
}

// OnInitialized registers fn on the type-wide initialized chain of T.
func OnInitialized[T any](r *Registry, fn func(T)) (Handle, error) {
	return r.OnTypeInitialized(KeyOf[T](), typed(fn))
}

// OnDisposed registers fn on the type-wide disposed chain of T.
func OnDisposed[T any](r *Registry, fn func(T)) (Handle, error) {
	return r.OnTypeDisposed(KeyOf[T](), typed(fn))
}

func typed[T any](fn func(T)) func(Lifetime) {
	if fn == nil {
		return nil
	}
	return func(x Lifetime) {
		if v, ok := x.(T); ok {
			fn(v)
		}
	}
}
