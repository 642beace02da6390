// Package sync2 implements the kernel's lock kinds:
// Spinlock (IRQ-safe, busy-wait), Mutex and RwLock (blocking, built on the Go
// runtime's own scheduler the way biscuit's packages lean on sync.Mutex
// throughout rather than hand-rolling a futex), and an RCU table for
// read-mostly global state.
package sync2

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// IrqHooks lets the HAL install the real cli/sti (and pause-hint) sequences;
// tests substitute a no-op pair so Spinlock is exercisable hosted, the same
// way mem.CpuidFn stands in for real CPUID.
type IrqHooks struct {
	Disable func() bool // returns the prior interrupt-enable flag
	Restore func(prevEnabled bool)
	Pause func()
}

var hooks = IrqHooks{
	Disable: func() bool { return false },
	Restore: func(bool) {},
	Pause: runtime.Gosched,
}

// SetIrqHooks installs the platform hooks; called once by hal during boot.
func SetIrqHooks(h IrqHooks) { hooks = h }

// Spinlock_t is the IRQ-safe lock mandated for any data an interrupt handler
// touches. Lock disables interrupts and busy-waits with a pause
// hint; no blocking primitive may be called while held.
type Spinlock_t struct {
	held int32
	priorI bool
}

// Lock disables interrupts, then busy-waits for the lock.
func (l *Spinlock_t) Lock() {
	prev := hooks.Disable()
	for !atomic.CompareAndSwapInt32(&l.held, 0, 1) {
		hooks.Pause()
	}
	l.priorI = prev
}

// Unlock releases the lock and restores the interrupt-enable flag that was
// in effect before the matching Lock.
func (l *Spinlock_t) Unlock() {
	prev := l.priorI
	atomic.StoreInt32(&l.held, 0)
	hooks.Restore(prev)
}

// TryLock attempts the lock without blocking, for the reclaimer back-off
// discipline: back off and retry, never block on an address space while
// holding a frame lock.
func (l *Spinlock_t) TryLock() bool {
	prev := hooks.Disable()
	if atomic.CompareAndSwapInt32(&l.held, 0, 1) {
		l.priorI = prev
		return true
	}
	hooks.Restore(prev)
	return false
}

// Mutex_t is the blocking lock: suspends the caller via the scheduler's own
// wait queue on contention, forbidden inside interrupt handlers. It is a
// thin, explicitly-named wrapper over sync.Mutex so call sites read as
// kernel code rather than borrowing a stdlib type directly, matching the
// rest of forge's _t-suffixed kernel types.
type Mutex_t struct {
	mu sync.Mutex
}

func (m *Mutex_t) Lock() { m.mu.Lock() }
func (m *Mutex_t) Unlock() { m.mu.Unlock() }
func (m *Mutex_t) TryLock() bool { return m.mu.TryLock() }

// RwLock_t permits many readers or one writer, both of which may block.
type RwLock_t struct {
	mu sync.RWMutex
}

func (l *RwLock_t) RLock() { l.mu.RLock() }
func (l *RwLock_t) RUnlock() { l.mu.RUnlock() }
func (l *RwLock_t) Lock() { l.mu.Lock() }
func (l *RwLock_t) Unlock() { l.mu.Unlock() }
