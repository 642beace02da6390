package vm

import (
	"sync"
	"sync/atomic"

	"github.com/Redstone-OS/forge/defs"
	"github.com/Redstone-OS/forge/mem"
)

// pcidCounter hands out address-space tags used both as the hardware PCID
// and as the opaque mem.Rmap_t.AS back-reference tag.
var pcidCounter uint32

// nextPcid returns a rolling PCID; PCIDs wrap at 12 bits (the field's
// hardware width) since forge trades a rare spurious TLB flush on wraparound
// for never needing a dedicated PCID-reclaim pass.
func nextPcid() uint32 {
	return atomic.AddUint32(&pcidCounter, 1) & 0xfff
}

// AddressSpace_t is one process's virtual address space: a top-level page
// table plus the VMA tree describing what should be mapped where. The lower half is process-private; the upper half is shared kernel
// mapping, copied read-only into every address space at construction.
type AddressSpace_t struct {
	Pid int
	Top mem.Pa_t // physical address of the top-level (PML4) table
	Pcid uint32

	phys *mem.Physmem_t

	vmaLock sync.RWMutex
	vmas vmatree_t

	ptLock sync.Mutex // serializes page-table mutation (walk/map/unmap)

	invalGen uint64 // bumped on every mapping change requiring a shootdown
}

// kernelTop is the physical address of the template top-level table whose
// upper 256 entries (indices 256-511, i.e. the canonical upper half) are
// copied into every freshly constructed address space. It is set once by the HAL during boot via SetKernelTop.
var kernelTop mem.Pa_t
var kernelTopSet bool

// SetKernelTop records the boot-time kernel top-level table used as the
// template for the shared upper half of every address space.
func SetKernelTop(pa mem.Pa_t) {
	kernelTop = pa
	kernelTopSet = true
}

// NewAddressSpace allocates a fresh top-level table for pid: the lower 256
// entries (user half) start zeroed, the upper 256 entries are copied from the
// kernel template.
func NewAddressSpace(phys *mem.Physmem_t, pid int) (*AddressSpace_t, defs.Err_t) {
	top, err := phys.Alloc(-1, pid, mem.FRAME_KERNEL)
	if err != 0 {
		return nil, err
	}
	buf := phys.Dmap(top)
	zeroTable(buf)
	as := &AddressSpace_t{
		Pid: pid,
		Top: top,
		Pcid: nextPcid(),
		phys: phys,
	}
	if kernelTopSet {
		src := as.tableAt(kernelTop)
		dstTab := as.tableAt(top)
		for i := 256; i < 512; i++ {
			dstTab[i] = src[i]
		}
	}
	return as, 0
}

// Destroy tears down every user-half mapping, recursively frees every
// interior page-table frame the user half reaches, and frees the top-level
// table itself. It must be called with no other goroutine touching this
// address space.
func (as *AddressSpace_t) Destroy() {
	as.vmaLock.Lock()
	vmas := as.vmas.vmas
	as.vmas.vmas = nil
	as.vmaLock.Unlock()

	as.ptLock.Lock()
	top := as.tableAt(as.Top)
	for i := 0; i < 256; i++ {
		if top[i]&PTE_P == 0 {
			continue
		}
		// top[i] points at the PDPT reached via this PML4 entry; its own
		// entries are indexed by bits 30-38.
		as.teardownTable(ptAddr(top[i]), 30, mem.Va_t(i)<<39)
		top[i] = 0
	}
	as.phys.Free(-1, as.Top, as.Pid)
	as.ptLock.Unlock()

	// Drop each VMA's own reference to its backing only after every PTE
	// reference this address space held has been removed above, so a VMO
	// whose refcount reaches zero here is not still mapped by this AS.
	for _, v := range vmas {
		releaseBacking(&v.Backing)
	}
}

// teardownTable recursively frees every frame reachable from the table at
// pa, including pa itself once its entries are handled. entryShift is the
// bit position the table's own entries are indexed by (30 for a PDPT, 21 for
// a PD, 12 for a PT, whose entries are leaf data frames rather than further
// tables). prefix is the virtual-address bits already fixed by the path
// taken to reach pa, used to clear the reverse map on leaf frames before
// freeing them. Called only while as.ptLock is held.
func (as *AddressSpace_t) teardownTable(pa mem.Pa_t, entryShift uint, prefix mem.Va_t) {
	t := as.tableAt(pa)
	for i := range t {
		e := t[i]
		if e&PTE_P == 0 {
			continue
		}
		childPrefix := prefix | mem.Va_t(i)<<entryShift
		if entryShift == 12 || e&PTE_PS != 0 {
			as.phys.RemoveRmap(ptAddr(e), mem.Rmap_t{AS: as.Pcid, Va: childPrefix})
			if as.phys.Refdown(ptAddr(e)) {
				as.phys.Free(-1, ptAddr(e), as.Pid)
			}
			continue
		}
		as.teardownTable(ptAddr(e), entryShift-9, childPrefix)
	}
	as.phys.Free(-1, pa, as.Pid)
}

func releaseBacking(b *Backing_t) {
	if b.Kind == BACKING_VMO && b.Vmo != nil {
		b.Vmo.Unref()
	}
}

// bumpInval increments this address space's invalidation generation,
// signaling other CPUs sharing it that a TLB shootdown is due.
func (as *AddressSpace_t) bumpInval() uint64 {
	return atomic.AddUint64(&as.invalGen, 1)
}

// InvalGen reports the current invalidation generation.
func (as *AddressSpace_t) InvalGen() uint64 {
	return atomic.LoadUint64(&as.invalGen)
}

// FindVma returns the VMA containing a, or nil, taking the VMA-tree read lock.
func (as *AddressSpace_t) FindVma(a mem.Va_t) *Vma_t {
	as.vmaLock.RLock()
	defer as.vmaLock.RUnlock()
	i := as.vmas.find(a)
	if i < 0 {
		return nil
	}
	return as.vmas.vmas[i]
}

// InsertVma adds v to the tree, failing with EINVAL if it overlaps an
// existing VMA.
func (as *AddressSpace_t) InsertVma(v *Vma_t) defs.Err_t {
	as.vmaLock.Lock()
	defer as.vmaLock.Unlock()
	if !as.vmas.insert(v) {
		return defs.EINVAL
	}
	return 0
}

// RemoveVma deletes the VMA starting at start, unmapping its range and
// releasing its backing reference.
func (as *AddressSpace_t) RemoveVma(start mem.Va_t) defs.Err_t {
	as.vmaLock.Lock()
	i := as.vmas.insertionPoint(start)
	if i >= len(as.vmas.vmas) || as.vmas.vmas[i].Start != start {
		as.vmaLock.Unlock()
		return defs.EINVAL
	}
	v := as.vmas.vmas[i]
	as.vmas.remove(start)
	as.vmaLock.Unlock()

	as.unmapRange(v.Start, v.End)
	releaseBacking(&v.Backing)
	return 0
}

// unmapRange clears every present leaf PTE in [start,end), dropping frame
// references and bumping the invalidation generation once at the end rather
// than per page.
func (as *AddressSpace_t) unmapRange(start, end mem.Va_t) {
	as.ptLock.Lock()
	defer as.ptLock.Unlock()
	changed := false
	for va := mem.PageRound(start); va < end; va += mem.Va_t(mem.PGSIZE) {
		lvl, slot, present := as.walk(va, false)
		if !present || lvl != 1 {
			continue
		}
		pa := ptAddr(*slot)
		*slot = 0
		as.phys.RemoveRmap(pa, mem.Rmap_t{AS: as.Pcid, Va: va})
		if as.phys.Refdown(pa) {
			as.phys.Free(-1, pa, as.Pid)
		}
		changed = true
	}
	if changed {
		as.bumpInval()
	}
}

// MapFrame installs a present leaf PTE mapping va to pa with the given
// protection, allocating intermediate tables as needed, and records the
// reverse mapping.
func (as *AddressSpace_t) MapFrame(va mem.Va_t, pa mem.Pa_t, prot Prot_t) defs.Err_t {
	if !mem.IsCanonical(va) {
		return defs.EINVAL
	}
	as.ptLock.Lock()
	defer as.ptLock.Unlock()
	_, slot, present := as.walk(va, true)
	if slot == nil {
		return defs.ENOFRAME
	}
	if present {
		old := ptAddr(*slot)
		as.phys.RemoveRmap(old, mem.Rmap_t{AS: as.Pcid, Va: va})
		if as.phys.Refdown(old) {
			as.phys.Free(-1, old, as.Pid)
		}
	}
	flags := PTE_P | PTE_U
	if prot&PROT_WRITE != 0 {
		flags |= PTE_W
	}
	if prot&PROT_EXEC == 0 {
		flags |= PTE_NX
	}
	*slot = ptAddr(pa) | flags
	as.phys.AddRmap(pa, mem.Rmap_t{AS: as.Pcid, Va: va})
	as.bumpInval()
	return 0
}

// UpgradeProt updates the protection bits of an already-present mapping at
// va to prot, leaving the mapped frame's refcount and reverse-map entry
// untouched. This is distinct from MapFrame, which always treats the slot
// as being handed a (possibly new) frame and so drops the old mapping's
// rmap/refcount first: calling MapFrame with the frame already installed at
// va would remove its own rmap entry and refdown it to zero, freeing a
// frame that is still mapped. UpgradeProt is for the copy-on-write
// promote-in-place case, where the frame keeps the same single owner and
// only the PTE's write permission needs to change.
func (as *AddressSpace_t) UpgradeProt(va mem.Va_t, prot Prot_t) defs.Err_t {
	as.ptLock.Lock()
	defer as.ptLock.Unlock()
	_, slot, present := as.walk(va, false)
	if !present {
		return defs.ENOTMAP
	}
	pa := ptAddr(*slot)
	flags := PTE_P | PTE_U
	if prot&PROT_WRITE != 0 {
		flags |= PTE_W
	}
	if prot&PROT_EXEC == 0 {
		flags |= PTE_NX
	}
	*slot = ptAddr(pa) | flags
	as.bumpInval()
	return 0
}

// Translate walks the page table to find the physical address backing va,
// returning ENOTMAP if it is not present.
func (as *AddressSpace_t) Translate(va mem.Va_t) (mem.Pa_t, defs.Err_t) {
	as.ptLock.Lock()
	defer as.ptLock.Unlock()
	lvl, slot, present := as.walk(va, false)
	if !present || lvl != 1 {
		return 0, defs.ENOTMAP
	}
	return ptAddr(*slot), 0
}
