package ipc

import (
	"github.com/Redstone-OS/forge/defs"
	"github.com/Redstone-OS/forge/mem"
	"github.com/Redstone-OS/forge/vm"
)

// Shm_t is a shared-memory object: an anonymous vm.Vmo_t meant to be mapped
// into more than one address space at once. It carries nothing beyond the Vmo itself; the sharing is entirely
// a property of how many VMAs reference it.
type Shm_t struct {
	Vmo *vm.Vmo_t
}

// NewShm creates a fresh, zero-filled shared region backed by phys.
func NewShm(phys *mem.Physmem_t, owner int) *Shm_t {
	return &Shm_t{Vmo: vm.NewAnonVmo(phys, owner)}
}

// MapInto installs s into as spanning [start, start+length), referencing the
// same Vmo (and hence the same physical frames) as any other address space
// that has already mapped it. Frames are installed eagerly, here, rather
// than left for the first touch to fault in: a shared region must be
// immediately resolvable by every mapper, not just whichever one happens to
// fault a given page first.
func (s *Shm_t) MapInto(as *vm.AddressSpace_t, start mem.Va_t, length mem.Va_t, prot vm.Prot_t) defs.Err_t {
	s.Vmo.Ref()
	v := &vm.Vma_t{
		Start: start,
		End: start + length,
		Prot: prot,
		Flags: vm.FLAG_SHARED,
		Backing: vm.Backing_t{
			Kind: vm.BACKING_VMO,
			Vmo: s.Vmo,
		},
	}
	if err := as.InsertVma(v); err != 0 {
		s.Vmo.Unref()
		return err
	}
	if err := as.PopulateEager(v); err != 0 {
		as.RemoveVma(start)
		return err
	}
	return 0
}
