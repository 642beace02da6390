package cap

import (
	"github.com/Redstone-OS/forge/defs"
	"github.com/Redstone-OS/forge/sync2"
)

// Handle_t is an index into a CSpace_t's slot table; it is meaningless
// outside the CSpace that issued it.
type Handle_t uint32

// Cap_t is one capability slot: a reference to an object, the rights this
// particular capability carries (which may be narrower than the object
// supports), and the object generation recorded at derivation time.
type Cap_t struct {
	Obj *Object_t
	Rights defs.Rights_t
	generation uint64
}

// stale reports whether the object has been revoked since this capability
// was derived.
func (c *Cap_t) stale() bool { return c.Obj.Generation() != c.generation }

type slot_t struct {
	cap Cap_t
	used bool
	next uint32 // free-list link when !used
}

const noSlot = ^uint32(0)

// CSpace_t is a process's private capability table.
type CSpace_t struct {
	lock sync2.Mutex_t
	slots []slot_t
	freehead uint32
	limit int
}

// NewCSpace creates an empty capability space that holds at most limit live
// capabilities (spec resource errors include CSpaceFull). Slot 0 is
// pre-consumed as the permanent null handle: reserve() never hands it out
// of the free list because it is never put there, and at() refuses it
// outright regardless of table state.
func NewCSpace(limit int) *CSpace_t {
	cs := &CSpace_t{freehead: noSlot, limit: limit}
	cs.slots = append(cs.slots, slot_t{used: true})
	return cs
}

// Insert stores obj with the given rights and returns a fresh handle.
func (cs *CSpace_t) Insert(obj *Object_t, rights defs.Rights_t) (Handle_t, defs.Err_t) {
	cs.lock.Lock()
	defer cs.lock.Unlock()

	idx, err := cs.reserve()
	if err != 0 {
		return 0, err
	}
	cs.slots[idx] = slot_t{
		cap: Cap_t{Obj: obj, Rights: rights, generation: obj.Generation()},
		used: true,
	}
	return Handle_t(idx), 0
}

func (cs *CSpace_t) reserve() (uint32, defs.Err_t) {
	if cs.freehead != noSlot {
		idx := cs.freehead
		cs.freehead = cs.slots[idx].next
		return idx, 0
	}
	// len(cs.slots)-1 excludes the permanent null handle at index 0, which
	// does not count against the caller's requested limit of live capabilities.
	if len(cs.slots)-1 >= cs.limit {
		return 0, defs.ECSFULL
	}
	cs.slots = append(cs.slots, slot_t{})
	return uint32(len(cs.slots) - 1), 0
}

// Lookup resolves h, requiring that every bit in want is present in the
// capability's rights.
func (cs *CSpace_t) Lookup(h Handle_t, want defs.Rights_t) (*Object_t, defs.Rights_t, defs.Err_t) {
	cs.lock.Lock()
	defer cs.lock.Unlock()

	s, err := cs.at(h)
	if err != 0 {
		return nil, 0, err
	}
	if s.cap.stale() {
		return nil, 0, defs.EBADF
	}
	if !s.cap.Rights.Has(want) {
		return nil, 0, defs.EACCES
	}
	return s.cap.Obj, s.cap.Rights, 0
}

// LookupType is Lookup plus a kind check, returning TypeMismatch when the
// handle resolves to an object of the wrong kind.
func (cs *CSpace_t) LookupType(h Handle_t, kind defs.ObjType_t, want defs.Rights_t) (*Object_t, defs.Rights_t, defs.Err_t) {
	obj, rights, err := cs.Lookup(h, want)
	if err != 0 {
		return nil, 0, err
	}
	if obj.Kind != kind {
		return nil, 0, defs.EBADTYPE
	}
	return obj, rights, 0
}

func (cs *CSpace_t) at(h Handle_t) (*slot_t, defs.Err_t) {
	if h == 0 || int(h) >= len(cs.slots) || !cs.slots[h].used {
		return nil, defs.EBADF
	}
	return &cs.slots[h], 0
}

// Derive creates a new capability for the same object with rights narrowed
// to want & parent.Rights, with RIGHT_GRANT stripped unless keepGrant is set.
func (cs *CSpace_t) Derive(h Handle_t, want defs.Rights_t, keepGrant bool) (Handle_t, defs.Err_t) {
	cs.lock.Lock()
	s, err := cs.at(h)
	if err != 0 {
		cs.lock.Unlock()
		return 0, err
	}
	if s.cap.stale() {
		cs.lock.Unlock()
		return 0, defs.EBADF
	}
	obj := s.cap.Obj
	newRights := want & s.cap.Rights
	if !keepGrant {
		newRights &^= defs.RIGHT_GRANT
	}
	cs.lock.Unlock()

	return cs.Insert(obj, newRights)
}

// Close removes h from the table; the underlying object is unaffected
// (other capabilities, in this or another CSpace, may still reference it).
func (cs *CSpace_t) Close(h Handle_t) defs.Err_t {
	cs.lock.Lock()
	defer cs.lock.Unlock()
	if h == 0 || int(h) >= len(cs.slots) || !cs.slots[h].used {
		return defs.EBADF
	}
	cs.slots[h] = slot_t{used: false, next: cs.freehead}
	cs.freehead = uint32(h)
	return 0
}

// Len reports the number of live (used) capability slots, for diagnostics
// and CSpace-full policy decisions. Slot 0, the permanently reserved null
// handle, never counts as a live capability.
func (cs *CSpace_t) Len() int {
	cs.lock.Lock()
	defer cs.lock.Unlock()
	n := 0
	for i := 1; i < len(cs.slots); i++ {
		if cs.slots[i].used {
			n++
		}
	}
	return n
}

// TransferOut atomically removes h from cs's sender-side table, for a handle
// move through IPC. The caller is responsible for inserting the returned
// capability into the
// receiver's CSpace; if that insert fails, the caller must not silently
// drop the object and should treat the whole message send as failed, per
// the all-or-nothing contract.
func (cs *CSpace_t) TransferOut(h Handle_t, need defs.Rights_t) (*Object_t, defs.Rights_t, defs.Err_t) {
	cs.lock.Lock()
	defer cs.lock.Unlock()
	s, err := cs.at(h)
	if err != 0 {
		return nil, 0, err
	}
	if s.cap.stale() {
		return nil, 0, defs.EBADF
	}
	if !s.cap.Rights.Has(need) {
		return nil, 0, defs.EACCES
	}
	obj, rights := s.cap.Obj, s.cap.Rights
	cs.slots[h] = slot_t{used: false, next: cs.freehead}
	cs.freehead = uint32(h)
	return obj, rights, 0
}
