// Package cap implements the capability/object model: every
// kernel object is reached only through a typed, rights-carrying handle
// resolved in the caller's CSpace, grounded on the same per-process-table
// idiom biscuit uses for its fd table (src/fd/fd.go) and thread registry
// (src/tinfo/tinfo.go), generalized with a rights mask and a generation
// counter so a revocation invalidates every derivative in O(1) rather than
// walking the whole tree eagerly.
package cap

import (
	"sync/atomic"

	"github.com/Redstone-OS/forge/defs"
)

// Object_t is the generation-tagged header every kernel object embeds (by
// value, as the first field) so cap can type-switch on Kind without the
// object's own package importing cap.
type Object_t struct {
	Kind defs.ObjType_t
	generation uint64
	payload any
}

// NewObject wraps payload (the concrete object: *Port_t, *Vmo_t,...) as a
// capability-trackable object of the given kind.
func NewObject(kind defs.ObjType_t, payload any) *Object_t {
	return &Object_t{Kind: kind, payload: payload}
}

// Payload returns the underlying object value.
func (o *Object_t) Payload() any { return o.payload }

// Generation returns the object's current generation; a capability whose
// recorded generation differs is closed.
func (o *Object_t) Generation() uint64 { return atomic.LoadUint64(&o.generation) }

// Revoke bumps the generation, invalidating every outstanding capability
// derived before this call. It does not itself walk any CSpace: validity is
// checked lazily on lookup, where a capability whose generation does not
// match the object's current generation is treated as closed.
func (o *Object_t) Revoke() {
	atomic.AddUint64(&o.generation, 1)
}
