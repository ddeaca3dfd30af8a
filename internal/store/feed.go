package store

import "sync"

// Feed fans a full collection snapshot out to subscribers after every
// mutation.  It backs the Subscribe method of both store implementations;
// UI consumers receive the complete current collection, not deltas.
type Feed[T any] struct {
	mu   sync.Mutex
	next int
	subs map[int]func([]T)
}

// Subscribe registers fn and returns a cancel func.  fn is invoked from the
// mutating goroutine; subscribers that need isolation should copy or hand
// off.
func (f *Feed[T]) Subscribe(fn func([]T)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.subs == nil {
		f.subs = make(map[int]func([]T))
	}
	id := f.next
	f.next++
	f.subs[id] = fn

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}
}

// Publish delivers snapshot to every current subscriber.
func (f *Feed[T]) Publish(snapshot []T) {
	f.mu.Lock()
	fns := make([]func([]T), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}
