// Package sortedx provides a mutex guarded vector kept in ascending order
// by a comparison function. Lookups are binary searches, inserts and removes
// shift the vector. Enumeration order is the comparison order.
package sortedx

import (
	"slices"
	"sync"
)

// Search finds key in the ascending items. It returns the index of the
// match, or -(insertionIndex)-1 when key is absent.
func Search[T any](items []T, key T, cmp func(a, b T) int) int {
	idx, found := slices.BinarySearchFunc(items, key, cmp)
	if !found {
		return -idx - 1
	}
	return idx
}

// InsertionIndex decodes a negative Search result.
func InsertionIndex(encoded int) int {
	return -encoded - 1
}

type Repo[T any] struct {
	mu      sync.Mutex
	items   []T
	cmp     func(a, b T) int
	factory func(key T) T
}

// New builds a repo ordered by cmp. factory turns a lookup key into the
// stored entity on creation; nil stores the key itself.
func New[T any](cmp func(a, b T) int, factory func(key T) T) *Repo[T] {
	if factory == nil {
		factory = func(key T) T { return key }
	}
	return &Repo[T]{cmp: cmp, factory: factory}
}

// Get returns the entity equal to key. With createNew an absent entity is
// created and inserted in place.
func (r *Repo[T]) Get(key T, createNew bool) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := Search(r.items, key, r.cmp)
	if idx >= 0 {
		return r.items[idx], true
	}
	if !createNew {
		var zero T
		return zero, false
	}

	created := r.factory(key)
	r.items = slices.Insert(r.items, InsertionIndex(idx), created)
	return created, true
}

// Put inserts v or replaces the entity equal to it. It reports whether an
// entity was replaced.
func (r *Repo[T]) Put(v T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := Search(r.items, v, r.cmp)
	if idx >= 0 {
		r.items[idx] = v
		return true
	}
	r.items = slices.Insert(r.items, InsertionIndex(idx), v)
	return false
}

func (r *Repo[T]) Remove(key T) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := Search(r.items, key, r.cmp)
	if idx < 0 {
		var zero T
		return zero, false
	}

	removed := r.items[idx]
	r.items = slices.Delete(r.items, idx, idx+1)
	return removed, true
}

// RemoveFunc drops every entity matching pred and returns them.
func (r *Repo[T]) RemoveFunc(pred func(T) bool) []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := []T{}
	kept := r.items[:0]
	for _, it := range r.items {
		if pred(it) {
			removed = append(removed, it)
			continue
		}
		kept = append(kept, it)
	}
	clear(r.items[len(kept):])
	r.items = kept
	return removed
}

// Scan returns entities from the first one not less than lower for as long
// as keep holds.
func (r *Repo[T]) Scan(lower T, keep func(T) bool) []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := Search(r.items, lower, r.cmp)
	if idx < 0 {
		idx = InsertionIndex(idx)
	}

	res := []T{}
	for ; idx < len(r.items) && keep(r.items[idx]); idx++ {
		res = append(res, r.items[idx])
	}
	return res
}

func (r *Repo[T]) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// List returns a snapshot in ascending order.
func (r *Repo[T]) List() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.items)
}

func (r *Repo[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}

// Sorted reports whether the backing vector is strictly ascending.
func (r *Repo[T]) Sorted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 1; i < len(r.items); i++ {
		if r.cmp(r.items[i-1], r.items[i]) >= 0 {
			return false
		}
	}
	return true
}
