package heap

import (
	"sync"
)

// Slab_t recycles fixed-size objects of type T via a free list, avoiding an
// allocation per object on the hot create/destroy path (TCBs, capability
// backing structs). Unlike Bump_t and Buddy_t it leans on Go's own
// allocator for backing storage — sync.Pool is itself the idiomatic Go slab
// allocator, so Slab_t is a thin, explicitly-typed wrapper rather than a
// hand-rolled free list, matching spec's instruction to keep each
// allocation tier doing only the work the others can't.
type Slab_t[T any] struct {
	pool sync.Pool
}

// NewSlab creates a slab for T, constructing fresh zero values on demand.
func NewSlab[T any]() *Slab_t[T] {
	return &Slab_t[T]{pool: sync.Pool{New: func() any { return new(T) }}}
}

// Get returns a recycled or freshly zeroed *T.
func (s *Slab_t[T]) Get() *T {
	return s.pool.Get().(*T)
}

// Put returns t to the slab for reuse. The caller must not touch t again.
func (s *Slab_t[T]) Put(t *T) {
	var zero T
	*t = zero
	s.pool.Put(t)
}
