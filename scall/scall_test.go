package scall

import (
	"testing"

	"github.com/Redstone-OS/forge/cap"
	"github.com/Redstone-OS/forge/defs"
	"github.com/Redstone-OS/forge/hal"
	"github.com/Redstone-OS/forge/mem"
	"github.com/Redstone-OS/forge/vm"
)

func freshCaller(t *testing.T) *Caller_t {
	t.Helper()
	phys := &mem.Physmem_t{}
	phys.Reserve(0x1000, 32, 1)
	as, err := vm.NewAddressSpace(phys, 1)
	if err != 0 {
		t.Fatalf("NewAddressSpace: %v", err)
	}
	return &Caller_t{CSpace: cap.NewCSpace(16), AS: as}
}

func TestDispatchUnregisteredSlotReturnsENOSYS(t *testing.T) {
	task := freshCaller(t)
	if got := Dispatch(task, 5, Args_t{}); got != int64(defs.ENOSYS) {
		t.Fatalf("Dispatch() = %d, want ENOSYS", got)
	}
}

func TestDispatchRunsRegisteredHandler(t *testing.T) {
	Register(1, func(task *Caller_t, a Args_t) int64 { return int64(a.A0 + a.A1) })
	task := freshCaller(t)
	if got := Dispatch(task, 1, Args_t{A0: 3, A1: 4}); got != 7 {
		t.Fatalf("Dispatch() = %d, want 7", got)
	}
}

func TestFromTrapFrameMapsR10NotRcx(t *testing.T) {
	f := &hal.TrapFrame_t{Rdi: 1, Rsi: 2, Rdx: 3, R10: 4, R8: 5, R9: 6, Rcx: 999}
	a := FromTrapFrame(f)
	if a != (Args_t{A0: 1, A1: 2, A2: 3, A3: 4, A4: 5, A5: 6}) {
		t.Fatalf("FromTrapFrame() = %+v, want A3 from R10 (4), not Rcx", a)
	}
}

func TestCheckHandleRejectsInsufficientRights(t *testing.T) {
	task := freshCaller(t)
	obj := cap.NewObject(defs.OBJ_PORT, "x")
	h, err := task.CSpace.Insert(obj, defs.RIGHT_READ)
	if err != 0 {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := CheckHandle(task, h, defs.RIGHT_WRITE); err != defs.EACCES {
		t.Fatalf("err = %v, want EACCES", err)
	}
}

func TestCopyOutThenCopyInRoundTrip(t *testing.T) {
	task := freshCaller(t)
	va := mem.Va_t(0x40_0000_0000)
	v := &vm.Vma_t{Start: va, End: va + mem.Va_t(mem.PGSIZE), Prot: vm.PROT_READ | vm.PROT_WRITE}
	if err := task.AS.InsertVma(v); err != 0 {
		t.Fatalf("InsertVma: %v", err)
	}
	if err := CopyOut(task, va, []byte("hello")); err != 0 {
		t.Fatalf("CopyOut: %v", err)
	}
	got, err := CopyIn(task, va, 5)
	if err != 0 {
		t.Fatalf("CopyIn: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("CopyIn = %q, want hello", got)
	}
}

func TestCopyInRejectsKernelHalfAddress(t *testing.T) {
	task := freshCaller(t)
	if _, err := CopyIn(task, mem.Va_t(0xffff_8000_0000_0000), 8); err != defs.EFAULT {
		t.Fatalf("err = %v, want EFAULT", err)
	}
}

func TestCopyInRejectsOverflowingLength(t *testing.T) {
	task := freshCaller(t)
	if _, err := CopyIn(task, mem.Va_t(1)<<46, -1); err != defs.EINVAL {
		t.Fatalf("err = %v, want EINVAL", err)
	}
}
