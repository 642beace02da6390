// Package heap implements the kernel-side allocators layered over a raw
// byte arena: an early bump allocator for boot-time structures that are
// never individually freed, a buddy allocator for general power-of-two
// kernel allocations, and a slab allocator for fixed-size, frequently
// recycled objects (TCBs, capability slots). None of these replace Go's own
// allocator for ordinary kernel data structures — they exist for memory a
// module or a pinned kernel object must come from without depending on the
// Go runtime's own GC-backed heap being healthy, the condition ENOHEAP
// reports.
package heap

import (
	"github.com/Redstone-OS/forge/defs"
)

// Bump_t is a strictly-growing allocator over a fixed arena; nothing it
// hands out is ever freed individually; the whole arena is reclaimed at
// once (or never, for permanent boot structures).
type Bump_t struct {
	arena []byte
	off int
}

// NewBump wraps arena as a bump allocator.
func NewBump(arena []byte) *Bump_t {
	return &Bump_t{arena: arena}
}

// Alloc returns size bytes aligned to align (which must be a power of two),
// or ENOHEAP if the arena is exhausted.
func (b *Bump_t) Alloc(size, align int) ([]byte, defs.Err_t) {
	start := roundup(b.off, align)
	end := start + size
	if end > len(b.arena) {
		return nil, defs.ENOHEAP
	}
	b.off = end
	return b.arena[start:end], 0
}

// Used reports how many bytes have been handed out so far.
func (b *Bump_t) Used() int { return b.off }

// Remaining reports how many bytes are left in the arena.
func (b *Bump_t) Remaining() int { return len(b.arena) - b.off }

func roundup(v, align int) int {
	if align <= 1 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}
