package domain

import "sync"

// resolution holds the result of resolving an import node. The first bound
// value wins and is never replaced.
type resolution[T any] struct {
	mu    sync.RWMutex
	value T
	bound bool
}

func (r *resolution[T]) get() (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.value, r.bound
}

func (r *resolution[T]) bind(value T) T {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.bound {
		r.value = value
		r.bound = true
	}
	return r.value
}
