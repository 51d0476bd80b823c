// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package observable provides a minimal synchronous observable.
package observable

import "sync"

// Subscription detaches an observer.
type Subscription interface {
	Unsubscribe()
}

type observer[T any] struct {
	fn func(T)
}

// Observable delivers values to observers synchronously, in subscription order.
// Notify iterates a snapshot, so observers may subscribe, unsubscribe or notify
// again from inside a callback.
type Observable[T any] struct {
	mu        sync.Mutex
	observers []*observer[T]
}

// New returns an empty Observable.
func New[T any]() *Observable[T] {
	return &Observable[T]{}
}

// Subscribe registers fn and returns its subscription.
func (o *Observable[T]) Subscribe(fn func(T)) Subscription {
	obs := &observer[T]{fn: fn}
	o.mu.Lock()
	o.observers = append(o.observers, obs)
	o.mu.Unlock()
	return &subscription[T]{o: o, obs: obs}
}

// Notify calls every current observer with v.
func (o *Observable[T]) Notify(v T) {
	o.mu.Lock()
	snapshot := o.observers
	o.mu.Unlock()
	for _, obs := range snapshot {
		obs.fn(v)
	}
}

// Len returns the number of current observers.
func (o *Observable[T]) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.observers)
}

// Clear removes every observer.
func (o *Observable[T]) Clear() {
	o.mu.Lock()
	o.observers = nil
	o.mu.Unlock()
}

func (o *Observable[T]) remove(target *observer[T]) {
	o.mu.Lock()
	defer o.mu.Unlock()
	// Build a fresh slice: a Notify in progress keeps iterating its snapshot.
	out := make([]*observer[T], 0, len(o.observers))
	for _, obs := range o.observers {
		if obs != target {
			out = append(out, obs)
		}
	}
	o.observers = out
}

type subscription[T any] struct {
	o    *Observable[T]
	obs  *observer[T]
	once sync.Once
}

func (s *subscription[T]) Unsubscribe() {
	s.once.Do(func() { s.o.remove(s.obs) })
}
