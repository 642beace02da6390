package vm

import (
	"unsafe"

	"github.com/Redstone-OS/forge/mem"
)

// PTE bits, matching the x86_64 page-table-entry layout.
const (
	PTE_P mem.Pa_t = 1 << 0 // present
	PTE_W mem.Pa_t = 1 << 1 // writable
	PTE_U mem.Pa_t = 1 << 2 // user-accessible
	PTE_PS mem.Pa_t = 1 << 7 // page size (huge page at this level)
	PTE_G mem.Pa_t = 1 << 8 // global
	pteAddrMask mem.Pa_t = 0x000f_ffff_ffff_f000
	PTE_NX mem.Pa_t = 1 << 63 // no-execute
)

// pmapEntries is a single level of the 4-level page table: 512 eight-byte
// entries, exactly one 4 KiB frame, matching biscuit's Pmap_t.
type pmapEntries [512]mem.Pa_t

func indices(va mem.Va_t) (l4, l3, l2, l1 int) {
	v := uint64(va)
	l4 = int((v >> 39) & 0x1ff)
	l3 = int((v >> 30) & 0x1ff)
	l2 = int((v >> 21) & 0x1ff)
	l1 = int((v >> 12) & 0x1ff)
	return
}

func ptAddr(e mem.Pa_t) mem.Pa_t { return e & pteAddrMask }

// tableAt returns the page-table-entries view of the table rooted at
// physical address pa, via the direct map.
func (as *AddressSpace_t) tableAt(pa mem.Pa_t) *pmapEntries {
	b := as.phys.Dmap(pa)
	return (*pmapEntries)(unsafe.Pointer(b))
}

// walk descends the 4-level table from as.Top to the entry controlling va,
// allocating interior tables lazily when create is true. It returns the
// level at which it stopped (1 for an ordinary 4 KiB leaf, 2 or 3 if a huge
// page entry was found first), a pointer to the entry slot, and whether that
// slot was already present. The slot is nil if an interior table could not
// be allocated.
func (as *AddressSpace_t) walk(va mem.Va_t, create bool) (level int, slot *mem.Pa_t, present bool) {
	l4, l3, l2, l1 := indices(va)
	idxs := [4]int{l4, l3, l2, l1}
	cur := as.Top
	for lvl := 4; lvl >= 1; lvl-- {
		t := as.tableAt(cur)
		e := &t[idxs[4-lvl]]
		if *e&PTE_P == 0 {
			if !create {
				return lvl, e, false
			}
			if lvl == 1 {
				return lvl, e, false
			}
			np, err := as.phys.Alloc(0, as.Pid, mem.FRAME_OWNED)
			if err != 0 {
				return lvl, nil, false
			}
			zeroTable(as.phys.Dmap(np))
			*e = np | PTE_P | PTE_W | PTE_U
			cur = np
			continue
		}
		if lvl == 1 || *e&PTE_PS != 0 {
			return lvl, e, true
		}
		cur = ptAddr(*e)
	}
	return 1, nil, false
}

func zeroTable(b *[mem.PGSIZE]uint8) {
	for i := range b {
		b[i] = 0
	}
}
