package mem

import (
	"sync"
	"sync/atomic"

	"github.com/Redstone-OS/forge/defs"
)

// FrameState_t is the ownership state of a physical frame.
type FrameState_t int

const (
	FRAME_FREE FrameState_t = iota
	FRAME_OWNED
	FRAME_SHARED
	FRAME_KERNEL
	FRAME_PINNED
	FRAME_DEVICE
)

// rmapInline is the number of back-references kept inline in a Frame_t
// before the reverse map escalates to a hashed overflow set.
const rmapInline = 4

// Rmap_t identifies one page-table-entry back-reference to a frame. AS is an
// opaque address-space tag (an AddressSpace's PCID), not a pointer: mem must
// not import vm, so the relation is recorded non-owning, as requires.
type Rmap_t struct {
	AS uint32
	Va Va_t
}

type rmapset_t struct {
	inline [rmapInline]Rmap_t
	n int
	overflow map[Rmap_t]struct{}
}

func (rs *rmapset_t) add(r Rmap_t) {
	if rs.overflow != nil {
		rs.overflow[r] = struct{}{}
		return
	}
	if rs.n < rmapInline {
		rs.inline[rs.n] = r
		rs.n++
		return
	}
	rs.overflow = make(map[Rmap_t]struct{}, rs.n*2)
	for i := 0; i < rs.n; i++ {
		rs.overflow[rs.inline[i]] = struct{}{}
	}
	rs.overflow[r] = struct{}{}
}

func (rs *rmapset_t) remove(r Rmap_t) {
	if rs.overflow != nil {
		delete(rs.overflow, r)
		return
	}
	for i := 0; i < rs.n; i++ {
		if rs.inline[i] == r {
			rs.inline[i] = rs.inline[rs.n-1]
			rs.n--
			return
		}
	}
}

// Each returns a copy of every recorded back-reference, used when a frame is
// destroyed and must clear every PTE that still points at it.
func (rs *rmapset_t) Each(f func(Rmap_t)) {
	if rs.overflow != nil {
		for r := range rs.overflow {
			f(r)
		}
		return
	}
	for i := 0; i < rs.n; i++ {
		f(rs.inline[i])
	}
}

func (rs *rmapset_t) Len() int {
	if rs.overflow != nil {
		return len(rs.overflow)
	}
	return rs.n
}

// Frame_t is the per-frame metadata record. Refcnt and InvalGen are
// accessed atomically since many CPUs may touch a shared frame concurrently.
type Frame_t struct {
	State FrameState_t
	Owner int // meaningful only when State == FRAME_OWNED/FRAME_PINNED
	Refcnt int32
	Numa uint8
	InvalGen uint64 // TLB shootdown fast-path invalidation counter
	Rmap rmapset_t
	nexti uint32 // free-list link
}

func (f *Frame_t) refup() int32 { return atomic.AddInt32(&f.Refcnt, 1) }
func (f *Frame_t) refdown() int32 { return atomic.AddInt32(&f.Refcnt, -1) }

// pcpuFree is a per-CPU free list of frame indices, mirroring biscuit's
// pcpuphys_t fast path so common alloc/free does not contend the global lock.
type pcpuFree struct {
	sync.Mutex
	head uint32
	n int32
}

const noFrame = ^uint32(0)

// Physmem_t is the global physical frame allocator. Backing holds the actual
// bytes of every tracked frame. On real hardware those bytes already exist
// as RAM and the HHDM just exposes them at PhysToVirt(p); in a hosted Go
// process there is no such hardware mapping, so Backing gives Dmap a
// well-defined (non-UB) byte store to hand out instead of dereferencing an
// unmapped fixed virtual address.
type Physmem_t struct {
	sync.Mutex
	Frames []Frame_t
	Backing [][PGSIZE]byte
	startn uint32
	freehead uint32
	freelen int32
	Dmapinit bool
	percpu [maxCPUs]pcpuFree
}

const maxCPUs = 64

// Physmem is the global physical memory allocator instance.
var Physmem = &Physmem_t{}

func pfn(p Pa_t) uint32 { return uint32(p >> PGSHIFT) }

// Reserve seeds the allocator with count free frames starting at
// page-frame-number startPfn, all usable as general memory (the caller
// passes a range already clear of the kernel image, initramfs, framebuffer,
// and bootloader-reserved regions). cpuCount must not exceed maxCPUs.
func (p *Physmem_t) Reserve(startPfn uint32, count int, cpuCount int) {
	if cpuCount > maxCPUs {
		panic("too many cpus for per-cpu free lists")
	}
	p.Frames = make([]Frame_t, count)
	p.Backing = make([][PGSIZE]byte, count)
	p.startn = startPfn
	p.freehead = noFrame
	p.freelen = 0
	for i := count - 1; i >= 0; i-- {
		p.Frames[i].nexti = p.freehead
		p.freehead = uint32(i)
		p.freelen++
	}
	for i := range p.percpu {
		p.percpu[i].head = noFrame
	}
	p.Dmapinit = true
}

// Alloc reserves one free frame, tags it with state and owner, and returns its
// physical address. cpu selects which per-CPU free list to try first.
func (p *Physmem_t) Alloc(cpu int, owner int, state FrameState_t) (Pa_t, defs.Err_t) {
	if idx, ok := p.allocFromCPU(cpu); ok {
		return p.claim(idx, owner, state), 0
	}
	idx, ok := p.allocGlobal()
	if !ok {
		return 0, defs.ENOFRAME
	}
	return p.claim(idx, owner, state), 0
}

func (p *Physmem_t) claim(idx uint32, owner int, state FrameState_t) Pa_t {
	fr := &p.Frames[idx]
	fr.State = state
	fr.Owner = owner
	fr.Refcnt = 1
	fr.Rmap = rmapset_t{}
	return Pa_t(idx+p.startn) << PGSHIFT
}

func (p *Physmem_t) allocFromCPU(cpu int) (uint32, bool) {
	if cpu < 0 || cpu >= len(p.percpu) {
		return 0, false
	}
	pc := &p.percpu[cpu]
	pc.Lock()
	defer pc.Unlock()
	if pc.head == noFrame {
		return 0, false
	}
	idx := pc.head
	pc.head = p.Frames[idx].nexti
	pc.n--
	return idx, true
}

func (p *Physmem_t) allocGlobal() (uint32, bool) {
	p.Lock()
	defer p.Unlock()
	if p.freehead == noFrame {
		return 0, false
	}
	idx := p.freehead
	p.freehead = p.Frames[idx].nexti
	p.freelen--
	return idx, true
}

// Free releases a frame back to the allocator. It verifies that owner
// matches the frame's recorded owner and panics on mismatch โ€” a double free or a
// free-by-the-wrong-owner is a broken invariant, not a recoverable error.
func (p *Physmem_t) Free(cpu int, pagenum Pa_t, owner int) {
	idx := pfn(pagenum) - p.startn
	fr := &p.Frames[int(idx)]
	if fr.State == FRAME_FREE {
		panic("double free of physical frame")
	}
	if (fr.State == FRAME_OWNED || fr.State == FRAME_PINNED) && fr.Owner != owner {
		panic("frame freed by non-owner")
	}
	if fr.Rmap.Len() != 0 {
		panic("freeing frame with live reverse-map entries")
	}
	fr.State = FRAME_FREE
	fr.Refcnt = 0
	if cpu >= 0 && cpu < len(p.percpu) {
		pc := &p.percpu[cpu]
		pc.Lock()
		if pc.n < 256 {
			fr.nexti = pc.head
			pc.head = idx
			pc.n++
			pc.Unlock()
			return
		}
		pc.Unlock()
	}
	p.Lock()
	fr.nexti = p.freehead
	p.freehead = idx
	p.freelen++
	p.Unlock()
}

// Refup increments a frame's refcount; used when a new PTE starts sharing it.
func (p *Physmem_t) Refup(pagenum Pa_t) int32 {
	fr := &p.Frames[pfn(pagenum)-p.startn]
	c := fr.refup()
	if c <= 0 {
		panic("frame refcount went non-positive on refup")
	}
	return c
}

// Refdown decrements a frame's refcount and reports whether it reached zero
// (the caller is then responsible for freeing it).
func (p *Physmem_t) Refdown(pagenum Pa_t) bool {
	fr := &p.Frames[pfn(pagenum)-p.startn]
	c := fr.refdown()
	if c < 0 {
		panic("frame refcount went negative on refdown")
	}
	return c == 0
}

// Refcnt reports the current reference count of a frame.
func (p *Physmem_t) Refcnt(pagenum Pa_t) int32 {
	return atomic.LoadInt32(&p.Frames[pfn(pagenum)-p.startn].Refcnt)
}

// AddRmap records a new PTE back-reference on a frame.
func (p *Physmem_t) AddRmap(pagenum Pa_t, r Rmap_t) {
	p.Frames[pfn(pagenum)-p.startn].Rmap.add(r)
}

// RemoveRmap removes a PTE back-reference from a frame.
func (p *Physmem_t) RemoveRmap(pagenum Pa_t, r Rmap_t) {
	p.Frames[pfn(pagenum)-p.startn].Rmap.remove(r)
}

// RmapEach iterates the back-references of a frame; used when a frame is
// destroyed to clear every mapping PTE.
func (p *Physmem_t) RmapEach(pagenum Pa_t, f func(Rmap_t)) {
	p.Frames[pfn(pagenum)-p.startn].Rmap.Each(f)
}

// BumpInvalGen increments a frame's TLB invalidation generation and returns
// the new value, used by the cross-CPU TLB shootdown fast path.
func (p *Physmem_t) BumpInvalGen(pagenum Pa_t) uint64 {
	return atomic.AddUint64(&p.Frames[pfn(pagenum)-p.startn].InvalGen, 1)
}

// FreeCount reports the number of frames on all free lists (global and per-CPU).
func (p *Physmem_t) FreeCount() int {
	p.Lock()
	n := int(p.freelen)
	p.Unlock()
	for i := range p.percpu {
		pc := &p.percpu[i]
		pc.Lock()
		n += int(pc.n)
		pc.Unlock()
	}
	return n
}
