package sync2

import (
	"sync"
	"sync/atomic"
)

// Rcu_t protects a read-mostly pointer. It is used for
// global read-mostly tables such as the module registry.
//
// Each CPU's reader counter is even while quiescent and odd while inside a
// read-side section (classic quiescent-state reclamation). Update waits
// until every CPU that was mid-section at the moment of the swap has either
// left that section or entered and left a later one — either way it is
// guaranteed to have last read the pointer no earlier than the swap.
type Rcu_t struct {
	ptr atomic.Pointer[any]
	writerMu sync.Mutex
	readers [maxRcuReaders]atomic.Uint64
}

const maxRcuReaders = 64

// NewRcu creates an Rcu_t holding an initial snapshot.
func NewRcu(initial any) *Rcu_t {
	r := &Rcu_t{}
	r.ptr.Store(&initial)
	return r
}

// ReadBegin marks cpu as inside a read-side critical section and returns the
// current snapshot. The caller must call ReadEnd(cpu) before blocking or
// returning, never across a suspension point.
func (r *Rcu_t) ReadBegin(cpu int) any {
	r.readers[cpu%maxRcuReaders].Add(1)
	p := r.ptr.Load()
	return *p
}

// ReadEnd closes the read-side critical section opened by ReadBegin.
func (r *Rcu_t) ReadEnd(cpu int) {
	r.readers[cpu%maxRcuReaders].Add(1)
}

// Update installs newVal as the new snapshot and blocks until every CPU has
// passed through a quiescent point observed after the swap (spec's "grace
// period"), then returns the old snapshot for the caller to free.
func (r *Rcu_t) Update(newVal any) any {
	r.writerMu.Lock()
	defer r.writerMu.Unlock()

	old := r.ptr.Swap(&newVal)

	snapshot := [maxRcuReaders]uint64{}
	for i := range r.readers {
		snapshot[i] = r.readers[i].Load()
	}
	for i := range r.readers {
		if snapshot[i]&1 == 0 {
			continue // was already quiescent at swap time
		}
		for r.readers[i].Load() == snapshot[i] {
			hooks.Pause()
		}
	}
	return *old
}
