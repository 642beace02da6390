package hal

import "sync"

// Msivec_t represents an MSI interrupt vector, carried from biscuit's msi
// package (src/msi/msi.go) as the concrete mechanism a future PCI driver
// (out of scope ) would call into.
type Msivec_t uint

type msivecs_t struct {
	sync.Mutex
	avail map[Msivec_t]bool
}

var msiVecs = msivecs_t{
	avail: map[Msivec_t]bool{56: true, 57: true, 58: true, 59: true, 60: true,
		61: true, 62: true, 63: true},
}

// MsiAlloc allocates an available MSI vector, panicking if none remain —
// the vector space is a fixed, small hardware resource, not something a
// caller can usefully retry past exhaustion.
func MsiAlloc() Msivec_t {
	msiVecs.Lock()
	defer msiVecs.Unlock()
	for v := range msiVecs.avail {
		delete(msiVecs.avail, v)
		return v
	}
	panic("no more MSI vecs")
}

// MsiFree releases a previously allocated MSI vector.
func MsiFree(v Msivec_t) {
	msiVecs.Lock()
	defer msiVecs.Unlock()
	if msiVecs.avail[v] {
		panic("double free")
	}
	msiVecs.avail[v] = true
}
