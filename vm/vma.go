package vm

import (
	"sort"

	"github.com/Redstone-OS/forge/drivers"
	"github.com/Redstone-OS/forge/mem"
)

// Prot_t is a protection bitmask.
type Prot_t uint8

const (
	PROT_READ Prot_t = 1 << iota
	PROT_WRITE
	PROT_EXEC
)

// Flags_t are the VMA behavior flags.
type Flags_t uint16

const (
	FLAG_GROWABLE Flags_t = 1 << iota
	FLAG_GROWS_DOWN
	FLAG_COW
	FLAG_SHARED
	FLAG_LOCKED
	FLAG_DISCARDABLE
	FLAG_NO_COW
)

// Intent_t records the semantic purpose of a VMA, for diagnostics. The
// fault path does not consult it: a Guard VMA is populated on fault like
// any other VMA whose protection allows the access.
type Intent_t int

const (
	INTENT_CODE Intent_t = iota
	INTENT_DATA
	INTENT_BSS
	INTENT_HEAP
	INTENT_STACK
	INTENT_FILE_RO
	INTENT_FILE_PRIVATE
	INTENT_SHARED_MEM
	INTENT_DEVICE_BUFFER
	INTENT_GUARD
)

// BackingKind_t tags which variant of Backing_t a VMA uses.
type BackingKind_t int

const (
	BACKING_ANON BackingKind_t = iota
	BACKING_FILE
	BACKING_VMO
)

// Backing_t is the union described in: Anonymous | File{vnode,
// offset} | Vmo{vmo, offset}.
type Backing_t struct {
	Kind BackingKind_t
	Vnode drivers.Vnode
	Vmo *Vmo_t
	Offset int64
}

// Vma_t is a half-open virtual range [Start, End) with uniform protection
// and backing.
type Vma_t struct {
	Start mem.Va_t
	End mem.Va_t
	Prot Prot_t
	Flags Flags_t
	Intent Intent_t
	Backing Backing_t
}

// Contains reports whether a lies in [Start, End).
func (v *Vma_t) Contains(a mem.Va_t) bool { return a >= v.Start && a < v.End }

// Len returns the VMA's length in bytes.
func (v *Vma_t) Len() int { return int(v.End - v.Start) }

// vmatree_t is the ordered, disjoint collection of VMAs for one address
// space. It is implemented as a
// slice kept sorted by Start and searched with binary search; disjointness
// is the tree's only structural invariant, and a sorted slice gives the same
// O(log n) lookup and ordered-iteration guarantees a balanced tree would,
// without the bookkeeping of rebalancing for the sizes the kernel actually
// holds per process (a few dozen VMAs, not millions).
type vmatree_t struct {
	vmas []*Vma_t
}

// find returns the index of the VMA containing a, or -1.
func (t *vmatree_t) find(a mem.Va_t) int {
	i := sort.Search(len(t.vmas), func(i int) bool { return t.vmas[i].End > a })
	if i < len(t.vmas) && t.vmas[i].Contains(a) {
		return i
	}
	return -1
}

// insertionPoint returns the insertion point for a new VMA starting at start.
func (t *vmatree_t) insertionPoint(start mem.Va_t) int {
	return sort.Search(len(t.vmas), func(i int) bool { return t.vmas[i].Start >= start })
}

// overlaps reports whether [start,end) intersects any existing VMA.
func (t *vmatree_t) overlaps(start, end mem.Va_t) bool {
	i := t.insertionPoint(start)
	if i > 0 && t.vmas[i-1].End > start {
		return true
	}
	if i < len(t.vmas) && t.vmas[i].Start < end {
		return true
	}
	return false
}

// insert adds v, which must not overlap any existing VMA.
func (t *vmatree_t) insert(v *Vma_t) bool {
	if t.overlaps(v.Start, v.End) {
		return false
	}
	i := t.insertionPoint(v.Start)
	t.vmas = append(t.vmas, nil)
	copy(t.vmas[i+1:], t.vmas[i:])
	t.vmas[i] = v
	return true
}

// remove deletes the VMA starting exactly at start, if one exists.
func (t *vmatree_t) remove(start mem.Va_t) bool {
	i := sort.Search(len(t.vmas), func(i int) bool { return t.vmas[i].Start >= start })
	if i >= len(t.vmas) || t.vmas[i].Start != start {
		return false
	}
	t.vmas = append(t.vmas[:i], t.vmas[i+1:]...)
	return true
}

// vmaAfter returns the VMA with the smallest Start strictly greater than a,
// or nil. Used by the page-fault resolver's guard-page/stack-growth check:
// a growable-down stack's guard page lies just below its
// current Start, so the VMA that would absorb the fault is the next one in
// ascending order, not the one before it.
func (t *vmatree_t) vmaAfter(a mem.Va_t) *Vma_t {
	i := t.insertionPoint(a)
	if i >= len(t.vmas) {
		return nil
	}
	return t.vmas[i]
}
