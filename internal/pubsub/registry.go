// Package pubsub is the generic multi-subscriber callback registry (C8)
// used throughout to wire sensors to consumers without hard coupling.
// Grounded on original_source/unros/unros-core/src/pubsub/caller.rs and
// original_source/misc/tasker/src/callbacks/caller/mod.rs.
package pubsub

import "sync"

// Callback is invoked with each published event. Returning false asks the
// registry to drop the callback after this call; the default ("keep") is
// true.
type Callback[T any] func(T) (keep bool)

// Registry is a generic multi-subscriber dispatcher. Its mutable path
// (Call) drains an incoming queue into an active slice before dispatch;
// its immutable path (CallImmutable) does the same when the write lock is
// free, and otherwise dispatches to the active slice under a read lock
// without draining. The incoming queue is a buffered channel, the
// idiomatic Go stand-in for crossbeam::SegQueue feeding a mutable Vec.
type Registry[T any] struct {
	mu       sync.RWMutex
	incoming chan Callback[T]
	active   []Callback[T]
}

// NewRegistry constructs a Registry with the given incoming-queue
// capacity. A capacity of 0 selects a reasonable default.
func NewRegistry[T any](capacity int) *Registry[T] {
	if capacity <= 0 {
		capacity = 64
	}
	return &Registry[T]{incoming: make(chan Callback[T], capacity)}
}

// Subscribe enqueues a new callback without blocking the hot path; it is
// merged into the active set on the next Call.
func (r *Registry[T]) Subscribe(cb Callback[T]) {
	r.incoming <- cb
}

// drain moves every queued callback into the active slice. Callers must
// hold the write lock.
func (r *Registry[T]) drain() {
	for {
		select {
		case cb := <-r.incoming:
			r.active = append(r.active, cb)
		default:
			return
		}
	}
}

// Call drains newly registered callbacks into the active set, then
// invokes each one, removing those that return false.
func (r *Registry[T]) Call(event T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drain()

	kept := r.active[:0]
	for _, cb := range r.active {
		if cb(event) {
			kept = append(kept, cb)
		}
	}
	r.active = kept
}

// CallImmutable attempts to acquire the write lock to drain and dispatch
// as Call does; if the lock is already held elsewhere, it falls back to
// dispatching only against a read-locked snapshot of the active set,
// mirroring the reference's try_write-with-read-fallback pattern so a
// contended hot path never blocks on registration.
func (r *Registry[T]) CallImmutable(event T) {
	if r.mu.TryLock() {
		defer r.mu.Unlock()
		r.drain()
		kept := r.active[:0]
		for _, cb := range r.active {
			if cb(event) {
				kept = append(kept, cb)
			}
		}
		r.active = kept
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, cb := range r.active {
		cb(event)
	}
}
