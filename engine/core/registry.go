package core

import (
	"fmt"
	"sync"
)

// Registry hands out small integer identifiers for owned objects and reuses
// released slots. Identifier 0 is never issued so it can be used as "null".
type Registry[T any] struct {
	mu     sync.Mutex
	owners []*T
	live   int
}

func NewRegistry[T any](capacity int) *Registry[T] {
	return &Registry[T]{
		owners: make([]*T, 0, capacity),
	}
}

// Acquire stores owner and returns its identifier.
func (r *Registry[T]) Acquire(owner T) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.live++
	for i := range r.owners {
		// Existing free spot. Take it.
		if r.owners[i] == nil {
			r.owners[i] = &owner
			return uint64(i + 1)
		}
	}
	r.owners = append(r.owners, &owner)
	return uint64(len(r.owners))
}

func (r *Registry[T]) Get(id uint64) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	if id == 0 || id > uint64(len(r.owners)) || r.owners[id-1] == nil {
		return zero, false
	}
	return *r.owners[id-1], true
}

// Release frees the slot for id, returning the owner that was stored in it.
func (r *Registry[T]) Release(id uint64) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	if id == 0 || id > uint64(len(r.owners)) || r.owners[id-1] == nil {
		return zero, fmt.Errorf("release of id '%d' (max=%d): %w", id, len(r.owners), ErrUnknownHandle)
	}
	owner := *r.owners[id-1]
	r.owners[id-1] = nil
	r.live--
	return owner, nil
}

// Len returns the number of live identifiers.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live
}

// Each calls fn for every live identifier in ascending order.
func (r *Registry[T]) Each(fn func(id uint64, owner T)) {
	r.mu.Lock()
	snapshot := make([]*T, len(r.owners))
	copy(snapshot, r.owners)
	r.mu.Unlock()

	for i, o := range snapshot {
		if o != nil {
			fn(uint64(i+1), *o)
		}
	}
}
