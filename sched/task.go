// Package sched implements the task lifecycle and per-CPU scheduler,
// grounded on biscuit's tinfo.Tnote_t/runtime.Gptr pattern
// (src/tinfo/tinfo.go) for the current-task pointer and its proc package's
// general shape (now generalized from a Unix process table to task
// control blocks addressed through capabilities rather than pids alone).
package sched

import (
	"runtime"
	"sync"
	"unsafe"

	"github.com/Redstone-OS/forge/defs"
	"github.com/Redstone-OS/forge/vm"
)

// State_t is a task's lifecycle state.
type State_t int

const (
	TASK_CREATED State_t = iota
	TASK_READY
	TASK_RUNNING
	TASK_BLOCKED
	TASK_ZOMBIE
	TASK_DEAD
)

// CtxSave_t is the saved CPU context of a non-running task: callee-saved
// GPRs, RSP, RIP, RFLAGS, segment selectors, and the 512-byte FPU save area
// biscuit's Mkfxbuf produces 16-byte aligned.
type CtxSave_t struct {
	Rbx, Rbp, R12, R13, R14, R15 uint64
	Rsp, Rip, Rflags uint64
	Cs, Ss uint16
	Fpu *[64]uintptr
}

// Task_t is a thread control block: heap-allocated and pinned —
// its kernel stack holds pointers back into it, so it must never move once
// created.
type Task_t struct {
	sync.Mutex
	Tid defs.Tid_t
	Pid defs.Pid_t
	As *vm.AddressSpace_t
	State State_t
	Priority int
	Quantum int32
	KStack uint64 // pinned kernel-stack virtual address
	UStack uint64 // pinned user-stack virtual address
	Ctx CtxSave_t
	Name string
	Accnt Accnt_t
	Cpu int // last CPU this task ran/was queued on, used to pick a wake target runqueue

	killed bool
	killCh chan bool
	exitCode int

	waitq *waitlink // set while blocked on a Waitq_t; nil otherwise
	resumeCh chan struct{}
}

// mkfxbuf allocates a 16-byte aligned FPU save area, matching biscuit's
// Mkfxbuf (src/vm/userbuf.go).
func mkfxbuf() *[64]uintptr {
	ret := new([64]uintptr)
	if uintptr(unsafe.Pointer(ret))&0xf != 0 {
		panic("fxsave area not 16 byte aligned")
	}
	*ret = runtime.Fxinit
	return ret
}

// DefaultQuantum is the default tick count a task runs before preemption.
const DefaultQuantum = 10

// NewTask allocates a fresh, Created-state task bound to as.
func NewTask(tid defs.Tid_t, pid defs.Pid_t, as *vm.AddressSpace_t, name string) *Task_t {
	return &Task_t{
		Tid: tid, Pid: pid, As: as, Name: name,
		State: TASK_CREATED, Priority: 0, Quantum: DefaultQuantum,
		Ctx: CtxSave_t{Fpu: mkfxbuf()},
		killCh: make(chan bool, 1),
		resumeCh: make(chan struct{}),
	}
}

// ShouldReschedule reports whether the current tick exhausted the task's
// quantum.
func (t *Task_t) ShouldReschedule() bool {
	t.Quantum--
	return t.Quantum <= 0
}

// ResetQuantum reloads the per-task tick counter for its next turn running.
func (t *Task_t) ResetQuantum() { t.Quantum = DefaultQuantum }

// MarkKilled flips the task to Ready-to-die without touching its wait-queue
// membership directly; the caller (the scheduler) is responsible for
// dequeuing it from whatever wait queue it was on under that queue's own
// lock.
func (t *Task_t) MarkKilled() {
	t.Lock()
	t.killed = true
	t.Unlock()
	select {
		case t.killCh <- true:
		default:
	}
}

// Killed reports whether this task has been marked for forced termination.
func (t *Task_t) Killed() bool {
	t.Lock()
	defer t.Unlock()
	return t.killed
}

// Exit marks the task Zombie and records its exit code; a reaper later
// transitions it to Dead.
func (t *Task_t) Exit(code int) {
	t.Lock()
	t.State = TASK_ZOMBIE
	t.exitCode = code
	t.Unlock()
}

// ExitCode returns the code recorded by Exit.
func (t *Task_t) ExitCode() int {
	t.Lock()
	defer t.Unlock()
	return t.exitCode
}

// Reap transitions a Zombie task to Dead, destroying its address space; the
// kernel stack recorded in KStack is not released here. It panics if called
// on a non-Zombie task —
// that is a scheduler invariant violation, not a recoverable error.
func (t *Task_t) Reap() {
	t.Lock()
	defer t.Unlock()
	if t.State != TASK_ZOMBIE {
		panic("Reap called on non-zombie task")
	}
	if t.As != nil {
		t.As.Destroy()
		t.As = nil
	}
	t.State = TASK_DEAD
}
