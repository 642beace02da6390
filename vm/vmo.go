package vm

import (
	"sync"

	"github.com/Redstone-OS/forge/defs"
	"github.com/Redstone-OS/forge/drivers"
	"github.com/Redstone-OS/forge/mem"
)

// VmoKind_t tags a VMO's backing variant.
type VmoKind_t int

const (
	VMO_ANON VmoKind_t = iota
	VMO_FILE
	VMO_PINNED
)

// Vmo_t is a page-indexed physical-backing object. Multiple VMAs may
// reference the same Vmo_t at different offsets.
type Vmo_t struct {
	sync.Mutex
	Kind VmoKind_t
	Vnode drivers.Vnode // only for VMO_FILE
	Pages map[int64]mem.Pa_t // page-index -> frame; the "page cache"
	Refcnt int32
	phys *mem.Physmem_t
	owner int
}

// NewAnonVmo creates a zero-filled-on-fault anonymous VMO.
func NewAnonVmo(phys *mem.Physmem_t, owner int) *Vmo_t {
	return &Vmo_t{Kind: VMO_ANON, Pages: make(map[int64]mem.Pa_t), Refcnt: 1, phys: phys, owner: owner}
}

// NewFileVmo creates a file-backed VMO reading through vn.
func NewFileVmo(phys *mem.Physmem_t, owner int, vn drivers.Vnode) *Vmo_t {
	return &Vmo_t{Kind: VMO_FILE, Vnode: vn, Pages: make(map[int64]mem.Pa_t), Refcnt: 1, phys: phys, owner: owner}
}

// NewPinnedVmo wraps an already-allocated, already-pinned set of frames (for
// DMA buffers or a framebuffer); pages is indexed by page number from 0.
func NewPinnedVmo(phys *mem.Physmem_t, owner int, frames []mem.Pa_t) *Vmo_t {
	v := &Vmo_t{Kind: VMO_PINNED, Pages: make(map[int64]mem.Pa_t, len(frames)), Refcnt: 1, phys: phys, owner: owner}
	for i, f := range frames {
		v.Pages[int64(i)] = f
		phys.Refup(f)
	}
	return v
}

// Ref increments the VMO's refcount; called when a new VMA starts
// referencing it.
func (v *Vmo_t) Ref() { v.Lock(); v.Refcnt++; v.Unlock() }

// Unref decrements the refcount and, on reaching zero, releases every backing
// frame.
func (v *Vmo_t) Unref() {
	v.Lock()
	v.Refcnt--
	dead := v.Refcnt == 0
	v.Unlock()
	if !dead {
		return
	}
	v.Lock()
	for _, pa := range v.Pages {
		if v.phys.Refdown(pa) {
			v.phys.Free(-1, pa, v.owner)
		}
	}
	v.Pages = nil
	v.Unlock()
}

// PageAt returns the frame backing page index pgidx, populating it
// (zero-filled for anonymous, read from Vnode for file-backed) if it is not
// already resident.
func (v *Vmo_t) PageAt(pgidx int64) (mem.Pa_t, defs.Err_t) {
	v.Lock()
	defer v.Unlock()
	if pa, ok := v.Pages[pgidx]; ok {
		return pa, 0
	}
	switch v.Kind {
		case VMO_PINNED:
		return 0, defs.ENOTMAP
		case VMO_ANON:
		pa, err := v.phys.Alloc(0, v.owner, mem.FRAME_OWNED)
		if err != 0 {
			return 0, err
		}
		zeroTable(v.phys.Dmap(pa))
		v.Pages[pgidx] = pa
		return pa, 0
		case VMO_FILE:
		pa, err := v.phys.Alloc(0, v.owner, mem.FRAME_OWNED)
		if err != 0 {
			return 0, err
		}
		buf := v.phys.Dmap(pa)
		n, rerr := v.Vnode.Read(pgidx*int64(mem.PGSIZE), buf[:])
		if rerr != 0 && rerr != defs.EOF {
			v.phys.Free(-1, pa, v.owner)
			return 0, rerr
		}
		for i := n; i < len(buf); i++ {
			buf[i] = 0
		}
		v.Pages[pgidx] = pa
		return pa, 0
	}
	return 0, defs.EINVAL
}
