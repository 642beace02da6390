package mod

import (
	"testing"
	"time"

	"github.com/Redstone-OS/forge/cap"
	"github.com/Redstone-OS/forge/defs"
	"github.com/Redstone-OS/forge/mem"
	"github.com/Redstone-OS/forge/vm"
)

func freshAS(t *testing.T) *vm.AddressSpace_t {
	t.Helper()
	phys := &mem.Physmem_t{}
	phys.Reserve(0x1000, 64, 1)
	as, err := vm.NewAddressSpace(phys, 1)
	if err != 0 {
		t.Fatalf("NewAddressSpace: %v", err)
	}
	return as
}

func TestVerifyCodeRejectsForbiddenOpOutsideTrampoline(t *testing.T) {
	// 0xfa is the CLI opcode.
	code := []byte{0xfa}
	if err := VerifyCode(code, 0, 0); err != defs.EPERM {
		t.Fatalf("err = %v, want EPERM", err)
	}
}

func TestVerifyCodeAllowsForbiddenOpInsideTrampoline(t *testing.T) {
	code := []byte{0xfa}
	if err := VerifyCode(code, 0, 1); err != 0 {
		t.Fatalf("err = %v, want 0 (inside trampoline)", err)
	}
}

func TestVerifyCodeAllowsOrdinaryCode(t *testing.T) {
	// 0x90 = nop.
	code := []byte{0x90, 0x90, 0x90}
	if err := VerifyCode(code, 0, 0); err != 0 {
		t.Fatalf("err = %v, want 0", err)
	}
}

func TestTrustRootSkipsVerificationWhenNotRequired(t *testing.T) {
	tr := TrustRoot_t{RequireSignature: false}
	if err := tr.VerifySignature([]byte("anything"), nil); err != 0 {
		t.Fatalf("err = %v, want 0", err)
	}
}

func TestTrustRootRejectsBadSignatureWhenRequired(t *testing.T) {
	tr := TrustRoot_t{RequireSignature: true}
	if err := tr.VerifySignature([]byte("anything"), []byte("bad")); err != defs.EPERM {
		t.Fatalf("err = %v, want EPERM", err)
	}
}

func TestSupervisorLoadRejectsOversizedCode(t *testing.T) {
	as := freshAS(t)
	sup := NewSupervisor(TrustRoot_t{}, nil)
	m := &Manifest_t{
		Name: "big",
		Code: make([]byte, 3*mem.PGSIZE),
		MaxCodePages: 1,
	}
	if _, err := sup.Load(as, 0x40_0000_0000, 0x40_0010_0000, m, Callbacks_t{}); err != defs.ELIMIT {
		t.Fatalf("err = %v, want ELIMIT", err)
	}
}

func TestSupervisorLoadRunsInitAndMarksRunning(t *testing.T) {
	as := freshAS(t)
	sup := NewSupervisor(TrustRoot_t{}, nil)
	m := &Manifest_t{Name: "ok", Code: []byte{0x90}}
	initCalled := false
	mod, err := sup.Load(as, 0x40_0000_0000, 0x40_0010_0000, m, Callbacks_t{
			Init: func(g *cap.CSpace_t) defs.Err_t { initCalled = true; return 0 },
	})
	if err != 0 {
		t.Fatalf("Load: %v", err)
	}
	if !initCalled {
		t.Fatalf("Init callback was not invoked")
	}
	if mod.State != MOD_RUNNING {
		t.Fatalf("State = %v, want MOD_RUNNING", mod.State)
	}
}

func TestSupervisorLoadRegistersModuleAndUnloadRemovesIt(t *testing.T) {
	as := freshAS(t)
	sup := NewSupervisor(TrustRoot_t{}, nil)
	m := &Manifest_t{Name: "svc", Code: []byte{0x90}}
	mod, err := sup.Load(as, 0x40_0000_0000, 0x40_0010_0000, m, Callbacks_t{})
	if err != 0 {
		t.Fatalf("Load: %v", err)
	}
	if got, ok := sup.Registry.Get("svc"); !ok || got != mod {
		t.Fatalf("Registry.Get(%q) = %v, %v, want %v, true", "svc", got, ok, mod)
	}
	sup.Unload(as, mod)
	if _, ok := sup.Registry.Get("svc"); ok {
		t.Fatalf("Registry still holds %q after Unload", "svc")
	}
}

func TestModuleBansAfterThreeConsecutiveFaults(t *testing.T) {
	m := &Module_t{State: MOD_RUNNING}
	now := time.Now()
	for i := 0; i < 2; i++ {
		if fb := m.RecordHealthResult(false, now); fb != FallbackNone {
			t.Fatalf("banned too early at fault %d: %v", i+1, fb)
		}
	}
	if fb := m.RecordHealthResult(false, now); fb != FallbackDisable {
		t.Fatalf("fallback = %v, want FallbackDisable after 3rd fault", fb)
	}
	if m.State != MOD_BANNED {
		t.Fatalf("State = %v, want MOD_BANNED", m.State)
	}
}

func TestModuleCriticalBanPanics(t *testing.T) {
	m := &Module_t{State: MOD_RUNNING, WD: Watchdog_t{Critical: true}}
	now := time.Now()
	m.RecordHealthResult(false, now)
	m.RecordHealthResult(false, now)
	if fb := m.RecordHealthResult(false, now); fb != FallbackPanic {
		t.Fatalf("fallback = %v, want FallbackPanic", fb)
	}
}

func TestModuleHealthOKResetsFaultCounter(t *testing.T) {
	m := &Module_t{State: MOD_RUNNING}
	now := time.Now()
	m.RecordHealthResult(false, now)
	m.RecordHealthResult(true, now)
	if m.WD.FaultN != 0 {
		t.Fatalf("FaultN = %d, want 0 after a healthy check", m.WD.FaultN)
	}
}

func TestWatchRunsHealthOnRunningModulesOnly(t *testing.T) {
	ran := 0
	running := &Module_t{State: MOD_RUNNING, Cb: Callbacks_t{Health: func(time.Time) defs.Err_t { ran++; return 0 }}}
	stopped := &Module_t{State: MOD_STOPPED, Cb: Callbacks_t{Health: func(time.Time) defs.Err_t { ran++; return 0 }}}
	Watch([]*Module_t{running, stopped}, func() time.Time { return time.Unix(0, 0) })
	if ran != 1 {
		t.Fatalf("health callback ran %d times, want 1", ran)
	}
}
