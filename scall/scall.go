// Package scall is the syscall dispatch layer: a fixed,
// sparse dispatch table keyed by syscall number, each handler validating
// its own handles, rights and userspace pointers before touching them.
package scall

import (
	"github.com/Redstone-OS/forge/cap"
	"github.com/Redstone-OS/forge/defs"
	"github.com/Redstone-OS/forge/hal"
	"github.com/Redstone-OS/forge/vm"
)

// NumSlots is the dispatch table size.
const NumSlots = 512

// Args_t is the decoded argument set a handler receives: the platform C
// calling convention's integer registers, with arg4 already moved from RCX
// into R10 by the entry stub.
type Args_t struct {
	A0, A1, A2, A3, A4, A5 uint64
}

// Handler_t is one syscall implementation. task carries the caller's
// CSpace and address space so every handler can validate handles/pointers
// itself.
type Handler_t func(task *Caller_t, a Args_t) int64

// Caller_t is the minimal view a handler needs of the calling task: its
// capability space (for handle validation) and address space (for pointer
// validation), deliberately decoupled from sched.Task_t so scall does not
// need to import sched.
type Caller_t struct {
	CSpace *cap.CSpace_t
	AS *vm.AddressSpace_t
}

var table [NumSlots]Handler_t

// Register installs h at syscall number num. Numbers are stable once
// assigned —
// Register itself does not enforce that; it is a boot-time wiring call, not
// a runtime API.
func Register(num int, h Handler_t) {
	table[num] = h
}

// Dispatch looks up and runs the handler for num, returning ENOSYS if the
// slot is empty.
func Dispatch(task *Caller_t, num int, a Args_t) int64 {
	if num < 0 || num >= NumSlots || table[num] == nil {
		return int64(defs.ENOSYS)
	}
	return table[num](task, a)
}

// FromTrapFrame builds an Args_t from a hal.TrapFrame_t using the syscall
// ABI register mapping: RDI, RSI, RDX, R10 (not RCX), R8, R9.
func FromTrapFrame(f *hal.TrapFrame_t) Args_t {
	return Args_t{A0: f.Rdi, A1: f.Rsi, A2: f.Rdx, A3: f.R10, A4: f.R8, A5: f.R9}
}

// CheckHandle validates that h exists in task's CSpace with at least want,
// returning the looked-up object on success.
func CheckHandle(task *Caller_t, h cap.Handle_t, want defs.Rights_t) (*cap.Object_t, defs.Err_t) {
	obj, _, err := task.CSpace.Lookup(h, want)
	return obj, err
}

// CheckHandleType is CheckHandle plus an object-kind check.
func CheckHandleType(task *Caller_t, h cap.Handle_t, kind defs.ObjType_t, want defs.Rights_t) (*cap.Object_t, defs.Err_t) {
	obj, _, err := task.CSpace.LookupType(h, kind, want)
	return obj, err
}
