// Package observable provides a replay-latest value holder with
// subscribe/cancel semantics and a bag for releasing subscriptions together.
package observable

import (
	"sync"
	"sync/atomic"
)

type subscriber[T any] struct {
	fn        func(T)
	cancelled atomic.Bool
}

// Value holds the latest T and notifies subscribers on every Set.
//
// A subscriber receives the current value synchronously when it subscribes,
// then every later value in the order they were set. Subscribers are called
// in subscription order on the goroutine calling Set. A subscriber must not
// call Set or Subscribe on the same Value.
type Value[T any] struct {
	emit sync.Mutex // serialises delivery

	mu     sync.Mutex
	v      T
	subs   []*subscriber[T]
	closed bool
}

// NewValue returns a Value holding initial.
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{v: initial}
}

// Get returns the current value.
func (o *Value[T]) Get() T {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.v
}

// Set stores v and delivers it to every live subscriber. After Close the
// value is still stored but nobody is notified.
func (o *Value[T]) Set(v T) {
	o.emit.Lock()
	defer o.emit.Unlock()

	o.mu.Lock()
	o.v = v
	subs := append([]*subscriber[T](nil), o.subs...)
	o.mu.Unlock()

	for _, s := range subs {
		if !s.cancelled.Load() {
			s.fn(v)
		}
	}
}

// Subscribe registers fn, delivers the current value to it and returns a
// cancel func. Cancel is idempotent and safe to call from inside fn.
// Subscribing to a closed Value delivers nothing.
func (o *Value[T]) Subscribe(fn func(T)) (cancel func()) {
	o.emit.Lock()
	defer o.emit.Unlock()

	s := &subscriber[T]{fn: fn}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return func() {}
	}
	o.subs = append(o.subs, s)
	v := o.v
	o.mu.Unlock()

	fn(v)

	return func() {
		if s.cancelled.Swap(true) {
			return
		}
		o.mu.Lock()
		defer o.mu.Unlock()
		for i, cur := range o.subs {
			if cur == s {
				o.subs = append(o.subs[:i], o.subs[i+1:]...)
				break
			}
		}
	}
}

// Len reports the number of live subscribers.
func (o *Value[T]) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.subs)
}

// Close drops every subscriber. Later Subscribe calls are no-ops.
func (o *Value[T]) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, s := range o.subs {
		s.cancelled.Store(true)
	}
	o.subs = nil
	o.closed = true
}
