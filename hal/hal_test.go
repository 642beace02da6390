package hal

import "testing"

func TestTrapFrameFromUserMode(t *testing.T) {
	f := &TrapFrame_t{CS: 0x1b} // ring-3 selector, RPL 3
	if !f.FromUserMode() {
		t.Fatalf("FromUserMode() = false for CS=0x1b")
	}
	f.CS = 0x08 // ring-0 kernel code selector
	if f.FromUserMode() {
		t.Fatalf("FromUserMode() = true for CS=0x08")
	}
}

func TestRegisterAndDispatchTrap(t *testing.T) {
	called := false
	RegisterTrap(14, func(cpu int, f *TrapFrame_t) { called = true })
	DispatchTrap(0, 14, &TrapFrame_t{})
	if !called {
		t.Fatalf("trap handler for vector 14 did not run")
	}
}

func TestRegisterAndDispatchSyscall(t *testing.T) {
	RegisterSyscall(func(cpu int, f *TrapFrame_t) int64 { return 42 })
	if got := DispatchSyscall(0, &TrapFrame_t{}); got != 42 {
		t.Fatalf("DispatchSyscall() = %d, want 42", got)
	}
}

func TestMsiAllocFreeRoundTrip(t *testing.T) {
	v := MsiAlloc()
	MsiFree(v)
	v2 := MsiAlloc()
	MsiFree(v2)
}

func TestMsiFreeUnallocatedPanics(t *testing.T) {
	v := MsiAlloc()
	MsiFree(v)
	defer func() {
		if recover() == nil {
			t.Fatalf("double MsiFree did not panic")
		}
	}()
	MsiFree(v)
}

func TestTLBShootdownFlushInvokesInvlpgPerPage(t *testing.T) {
	var s TLBShootdown_t
	s.AddPage(0x1000)
	s.AddPage(0x2000)
	var invalidated []uint64
	s.Flush(func(va uint64) { invalidated = append(invalidated, va) }, func() { t.Fatalf("reloadCR3 called for page-range flush") })
	if len(invalidated) != 2 {
		t.Fatalf("invalidated %d pages, want 2", len(invalidated))
	}
}

func TestTLBShootdownMarkFullUsesCR3Reload(t *testing.T) {
	var s TLBShootdown_t
	s.AddPage(0x1000)
	s.MarkFull()
	reloaded := false
	s.Flush(func(va uint64) { t.Fatalf("invalidatePage called after MarkFull") }, func() { reloaded = true })
	if !reloaded {
		t.Fatalf("reloadCR3 was not called")
	}
}

func TestTLBShootdownGenerationAdvancesPerFlush(t *testing.T) {
	var s TLBShootdown_t
	g1 := s.Flush(func(uint64) {}, func() {})
	g2 := s.Flush(func(uint64) {}, func() {})
	if g2 <= g1 {
		t.Fatalf("generation did not advance: g1=%d g2=%d", g1, g2)
	}
}
