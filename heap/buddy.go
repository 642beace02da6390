package heap

import (
	"unsafe"

	"github.com/Redstone-OS/forge/defs"
	"github.com/Redstone-OS/forge/sync2"
)

func uintptrOf(s []byte) uintptr { return uintptr(unsafe.Pointer(&s[0])) }

// MinOrder/MaxOrder bound the block sizes a Buddy_t manages, as powers of
// two: order o covers blocks of 1<<o bytes.
const (
	MinOrder = 6 // 64 bytes, the smallest kernel allocation this serves
	MaxOrder = 22 // 4 MiB, above which callers should go to the frame allocator directly
)

// Buddy_t is a classic buddy allocator over a byte arena whose length must
// be a power of two: splitting a free block in two
// produces a pair of "buddies" that can be coalesced back into their parent
// the moment both halves are free again.
type Buddy_t struct {
	lock sync2.Mutex_t
	arena []byte
	base int // order of the whole arena
	free [MaxOrder + 1][]int
}

// NewBuddy creates a buddy allocator over arena, whose length must equal
// 1<<order for some MinOrder <= order <= MaxOrder.
func NewBuddy(arena []byte, order int) *Buddy_t {
	if len(arena) != 1<<uint(order) {
		panic("buddy arena size does not match order")
	}
	b := &Buddy_t{arena: arena, base: order}
	b.free[order] = append(b.free[order], 0)
	return b
}

// sizeToOrder returns the smallest order whose block size is >= n.
func sizeToOrder(n int) int {
	o := MinOrder
	for (1 << uint(o)) < n {
		o++
	}
	return o
}

// Alloc returns a slice of at least n bytes carved from the arena.
func (b *Buddy_t) Alloc(n int) ([]byte, defs.Err_t) {
	want := sizeToOrder(n)
	if want > b.base {
		notifyOOM(n)
		return nil, defs.ENOHEAP
	}
	b.lock.Lock()
	defer b.lock.Unlock()

	off, ok := b.take(want)
	if !ok {
		notifyOOM(n)
		return nil, defs.ENOHEAP
	}
	return b.arena[off : off+1<<uint(want)], 0
}

// take finds a free block of exactly order o, splitting a larger one if
// necessary, and returns its offset.
func (b *Buddy_t) take(o int) (int, bool) {
	if o > b.base {
		return 0, false
	}
	if n := len(b.free[o]); n > 0 {
		off := b.free[o][n-1]
		b.free[o] = b.free[o][:n-1]
		return off, true
	}
	parentOff, ok := b.take(o + 1)
	if !ok {
		return 0, false
	}
	buddyOff := parentOff + 1<<uint(o)
	b.free[o] = append(b.free[o], buddyOff)
	return parentOff, true
}

// Free returns a previously allocated block of size n back to the pool,
// coalescing with its buddy when possible.
func (b *Buddy_t) Free(block []byte, n int) {
	o := sizeToOrder(n)
	off := int(uintptrOf(block) - uintptrOf(b.arena))

	b.lock.Lock()
	defer b.lock.Unlock()
	b.give(off, o)
}

func (b *Buddy_t) give(off, o int) {
	if o < b.base {
		buddyOff := off ^ (1 << uint(o))
		list := b.free[o]
		for i, f := range list {
			if f == buddyOff {
				b.free[o] = append(list[:i], list[i+1:]...)
				b.give(min(off, buddyOff), o+1)
				return
			}
		}
	}
	b.free[o] = append(b.free[o], off)
}
