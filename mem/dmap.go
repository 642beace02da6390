package mem

import "fmt"

// HHDM_BASE is the fixed virtual base of the higher-half direct map: every
// physical byte of RAM is visible once at HHDM_BASE+phys. On
// real hardware the HAL installs this mapping during boot; forge's own byte
// access goes through Physmem.Dmap (below) against an explicit backing
// store, so PhysToVirt/VirtToPhys remain pure address arithmetic usable
// before or independent of that mapping actually being installed (e.g. to
// log what virtual address a frame corresponds to).
const HHDM_BASE Va_t = 0xFFFF_8000_0000_0000

// PhysToVirt implements phys_to_virt(p) = HHDM_BASE + p.
func PhysToVirt(p Pa_t) Va_t {
	return HHDM_BASE + Va_t(p)
}

// VirtToPhys is the inverse of PhysToVirt. It panics only in debug builds if
// v lies outside the HHDM range.
func VirtToPhys(v Va_t) Pa_t {
	if v < HHDM_BASE {
		if debugBuilds {
			panic("VirtToPhys: address outside HHDM range")
		}
		return 0
	}
	return Pa_t(v - HHDM_BASE)
}

// debugBuilds gates the panic-on-out-of-range behavior of VirtToPhys:
// panics only in debug builds if the input is outside the HHDM range.
// Production boot code should set this false before going live.
var debugBuilds = true

// SetDebugBuilds toggles the debug-only range check in VirtToPhys.
func SetDebugBuilds(on bool) { debugBuilds = on }

// Dmap returns a pointer to the page-sized backing array for physical page
// p, analogous to biscuit's Physmem_t.Dmap method (src/mem/mem.go).
func (p *Physmem_t) Dmap(pa Pa_t) *[PGSIZE]uint8 {
	idx := pfn(pa.Mask()&^PGOFFSET) - p.startn
	return &p.Backing[idx]
}

// Dmap8 returns a byte slice, offset within its page, mapped to physical
// address pa through the direct map.
func (p *Physmem_t) Dmap8(pa Pa_t) []uint8 {
	pg := p.Dmap(pa)
	off := pa & PGOFFSET
	return pg[off:]
}

// Dmaplen returns a slice of l bytes starting at physical address pa. The
// range must lie within pa's own frame: it panics if it would cross a frame
// boundary, even when the next frame is contiguous in Backing.
func (p *Physmem_t) Dmaplen(pa Pa_t, l int) []uint8 {
	b := p.Dmap8(pa)
	if l > len(b) {
		panic("Dmaplen: request crosses frame boundary")
	}
	return b[:l]
}

// hugePageSupport records which huge page sizes the running CPU can use to
// back the direct map, decided once at Dmap_init time.
type hugePageSupport struct {
	gb bool // 1 GiB pages (PDPE.PS)
	mb bool // 2 MiB pages (PDE.PS) โ€” always true on any amd64 CPU forge targets
}

var Hugepages hugePageSupport

// CpuidFn abstracts the runtime.Cpuid hook biscuit's patched Go runtime
// exposes, so tests can substitute a fake without real CPUID access.
type CpuidFn func(eax, ecx uint32) (uint32, uint32, uint32, uint32)

// DmapInit probes huge-page support via cpuid and records it. The real
// mapping of the direct map into the kernel's top-level page table is the
// VMM's job (package vm); this only decides the page-size policy, mirroring
// biscuit's Dmap_init gbpages/gse detection in dmap.go.
func DmapInit(cpuid CpuidFn) {
	_, _, _, edx := cpuid(0x80000001, 0)
	Hugepages.gb = edx&(1<<26) != 0
	_, _, _, edx = cpuid(0x1, 0)
	gse := edx&(1<<13) != 0
	if !gse {
		panic("cpu does not support global pages")
	}
	Hugepages.mb = true
	if Hugepages.gb {
		fmt.Println("hal: direct map via 1GiB pages")
	} else {
		fmt.Println("hal: direct map via 2MiB pages (no 1GiB page support)")
	}
}
