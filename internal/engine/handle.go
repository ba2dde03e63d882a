package engine

import "sync/atomic"

// Handle holds the loaded backend state of an adapter. Calls read it once at
// call start and keep that value for their whole duration; a reload swaps in
// a fully loaded replacement, so a failed reload never disturbs the current
// value.
type Handle[T any] struct {
	p atomic.Pointer[T]
}

// Get returns the current value, or nil before the first load.
func (h *Handle[T]) Get() *T { return h.p.Load() }

// Swap installs v and returns the previous value.
func (h *Handle[T]) Swap(v *T) *T { return h.p.Swap(v) }
