package vm

import (
	"github.com/Redstone-OS/forge/caller"
	"github.com/Redstone-OS/forge/console"
	"github.com/Redstone-OS/forge/defs"
	"github.com/Redstone-OS/forge/mem"
)

// FaultKind_t classifies what a page fault resolved to, for diagnostics and
// the scheduler's block/retry decision.
type FaultKind_t int

// noVMAFaulters tracks distinct call chains that hit HandleFault with no
// covering VMA and no stack-growth match, so a debug build logs the first
// instance of each faulting path rather than flooding the console on a
// hot, already-diagnosed one.
var noVMAFaulters = caller.Distinct_caller_t{Enabled: false}

// EnableFaultDiagnostics turns on the distinct-caller log for unresolved
// faults; left off by default since Distinct() walks the stack on every call.
func EnableFaultDiagnostics(on bool) { noVMAFaulters.Enabled = on }

const (
	FAULT_RESOLVED FaultKind_t = iota
	FAULT_STACK_GROWTH
	FAULT_COW
	FAULT_POPULATED
	FAULT_PROTECTION
	FAULT_NO_VMA
)

// growthChunk is how far a growable-down VMA extends per fault, rather than
// exactly to the faulting address, to avoid a fault-per-page storm on a
// deeply recursive call stack.
const growthChunk = 16 * mem.Va_t(mem.PGSIZE)

// maxStackGrowth bounds how large a growable stack VMA may become.
const maxStackGrowth = 8 << 20

// HandleFault resolves a page fault at virtual address a. wr reports whether
// the faulting access was a write, exec whether it was an instruction fetch.
// It implements the four cases of: no VMA (with guard-page stack
// growth), protection violation, lazy population, and copy-on-write.
func (as *AddressSpace_t) HandleFault(a mem.Va_t, wr, exec bool) (FaultKind_t, defs.Err_t) {
	pg := mem.PageRound(a)

	as.vmaLock.RLock()
	i := as.vmas.find(a)
	var v *Vma_t
	if i >= 0 {
		v = as.vmas.vmas[i]
	}
	as.vmaLock.RUnlock()

	if v == nil {
		return as.tryStackGrowth(a)
	}

	if wr && v.Prot&PROT_WRITE == 0 {
		return FAULT_PROTECTION, defs.EFAULT
	}
	if exec && v.Prot&PROT_EXEC == 0 {
		return FAULT_PROTECTION, defs.EFAULT
	}

	if wr && v.Flags&FLAG_COW != 0 {
		if err := as.resolveCOW(v, pg); err != 0 {
			return FAULT_COW, err
		}
		return FAULT_COW, 0
	}

	if err := as.populate(v, pg); err != 0 {
		return FAULT_POPULATED, err
	}
	return FAULT_POPULATED, 0
}

// tryStackGrowth implements the guard-page case: if a lies below a
// FLAG_GROWS_DOWN VMA by no more than one guard page, the VMA is extended
// downward to cover it instead of faulting the process.
func (as *AddressSpace_t) tryStackGrowth(a mem.Va_t) (FaultKind_t, defs.Err_t) {
	as.vmaLock.Lock()
	defer as.vmaLock.Unlock()

	next := as.vmas.vmaAfter(a)
	if next == nil || next.Flags&FLAG_GROWS_DOWN == 0 {
		if fresh, trace := noVMAFaulters.Distinct(); fresh {
			console.Printf("vm: unresolved fault at %v from new call chain:\n%s", a, trace)
		}
		return FAULT_NO_VMA, defs.EFAULT
	}
	if a >= next.Start {
		return FAULT_NO_VMA, defs.EFAULT
	}
	newStart := mem.PageRound(a)
	if next.Start-newStart > mem.Va_t(mem.PGSIZE) || next.End-newStart > maxStackGrowth {
		return FAULT_NO_VMA, defs.EFAULT
	}
	grown := newStart
	if next.End-grown < growthChunk && grown > growthChunk {
		grown = next.Start - growthChunk
	}
	if as.vmas.overlapsExcluding(grown, next.Start, next) {
		grown = newStart
	}
	next.Start = grown
	return FAULT_STACK_GROWTH, 0
}

// populate resolves a not-yet-present access by fetching (or allocating) the
// backing frame and installing it.
func (as *AddressSpace_t) populate(v *Vma_t, pg mem.Va_t) defs.Err_t {
	pa, err := as.framesFor(v, pg)
	if err != 0 {
		return err
	}
	return as.MapFrame(pg, pa, v.Prot)
}

// PopulateEager installs a frame for every page in v's range up front,
// rather than leaving each to be faulted in on first touch. Shared-memory
// mappings need this: every mapper must find the same frames resolvable
// immediately, not race each other to populate them lazily.
func (as *AddressSpace_t) PopulateEager(v *Vma_t) defs.Err_t {
	for pg := v.Start; pg < v.End; pg += mem.Va_t(mem.PGSIZE) {
		if err := as.populate(v, pg); err != 0 {
			return err
		}
	}
	return 0
}

// resolveCOW handles a write fault on a copy-on-write page: if the
// underlying frame is privately held (refcount 1) the mapping is simply
// upgraded to writable; otherwise a private copy is made.
func (as *AddressSpace_t) resolveCOW(v *Vma_t, pg mem.Va_t) defs.Err_t {
	old, terr := as.Translate(pg)
	if terr != 0 {
		return as.populate(v, pg)
	}
	if as.phys.Refcnt(old) == 1 {
		return as.UpgradeProt(pg, v.Prot)
	}
	newpa, err := as.phys.Alloc(-1, as.Pid, mem.FRAME_OWNED)
	if err != 0 {
		return err
	}
	copy(as.phys.Dmap(newpa)[:], as.phys.Dmap(old)[:])
	if err := as.MapFrame(pg, newpa, v.Prot); err != 0 {
		as.phys.Free(-1, newpa, as.Pid)
		return err
	}
	return 0
}

// framesFor returns the physical frame that should back pg within v,
// allocating/populating via the VMO page cache for file/shared backing, or a
// fresh zero frame for purely anonymous VMAs with no VMO.
func (as *AddressSpace_t) framesFor(v *Vma_t, pg mem.Va_t) (mem.Pa_t, defs.Err_t) {
	if v.Backing.Kind == BACKING_VMO && v.Backing.Vmo != nil {
		pgidx := (int64(pg-v.Start) + v.Backing.Offset) / int64(mem.PGSIZE)
		pa, err := v.Backing.Vmo.PageAt(pgidx)
		if err != 0 {
			return 0, err
		}
		// the VMO's page cache holds its own reference distinct from this
		// new PTE's reference.
		as.phys.Refup(pa)
		return pa, 0
	}
	pa, err := as.phys.Alloc(-1, as.Pid, mem.FRAME_OWNED)
	if err != 0 {
		return 0, err
	}
	zeroTable(as.phys.Dmap(pa))
	return pa, 0
}

// overlapsExcluding is like overlaps but ignores self, used when growing a
// VMA in place so it doesn't spuriously collide with itself.
func (t *vmatree_t) overlapsExcluding(start, end mem.Va_t, self *Vma_t) bool {
	i := t.insertionPoint(start)
	if i > 0 && t.vmas[i-1] != self && t.vmas[i-1].End > start {
		return true
	}
	if i < len(t.vmas) && t.vmas[i] != self && t.vmas[i].Start < end {
		return true
	}
	return false
}
