package ipc

import (
	"sync/atomic"

	"github.com/Redstone-OS/forge/defs"
	"github.com/Redstone-OS/forge/mem"
	"github.com/Redstone-OS/forge/sched"
	"github.com/Redstone-OS/forge/sync2"
	"github.com/Redstone-OS/forge/vm"
)

// futexKey identifies a futex word by the address space and virtual address
// it lives at.
type futexKey struct {
	as *vm.AddressSpace_t
	va mem.Va_t
}

// Futextbl_t is the global futex table: one wait queue per distinct
// (address-space, address) pair, created lazily and never removed.
type Futextbl_t struct {
	lock sync2.Mutex_t
	tbl map[futexKey]*sched.Waitq_t
}

// NewFutextbl allocates an empty futex table.
func NewFutextbl() *Futextbl_t {
	return &Futextbl_t{tbl: make(map[futexKey]*sched.Waitq_t)}
}

func (f *Futextbl_t) queueFor(k futexKey, create bool) *sched.Waitq_t {
	f.lock.Lock()
	defer f.lock.Unlock()
	q := f.tbl[k]
	if q == nil && create {
		q = &sched.Waitq_t{}
		f.tbl[k] = q
	}
	return q
}

// Wait atomically checks *word == expected and, only if so, blocks the
// calling task on cpu's scheduler; otherwise it returns EAGAIN immediately.
func (f *Futextbl_t) Wait(cpu int, as *vm.AddressSpace_t, va mem.Va_t, word *int32, expected int32) defs.Err_t {
	k := futexKey{as, va}
	f.lock.Lock()
	if atomic.LoadInt32(word) != expected {
		f.lock.Unlock()
		return defs.EAGAIN
	}
	q := f.tbl[k]
	if q == nil {
		q = &sched.Waitq_t{}
		f.tbl[k] = q
	}
	f.lock.Unlock()
	sched.Block(cpu, q)
	return 0
}

// Wake removes up to n waiters blocked on (as, va) and makes them Ready,
// returning the count actually woken.
func (f *Futextbl_t) Wake(as *vm.AddressSpace_t, va mem.Va_t, n int) int {
	q := f.queueFor(futexKey{as, va}, false)
	if q == nil {
		return 0
	}
	woken := 0
	for woken < n {
		if q.WakeOne() == nil {
			break
		}
		woken++
	}
	return woken
}
