// Package hal is the hardware abstraction layer: CPU
// primitives, GDT/IDT installation, the trap/syscall trampoline contract,
// MSR/TLB/APIC access, and the per-CPU block every other subsystem reads
// its local CPU id and scratch slots from. It is built directly on the
// patched-runtime contract forge assumes: runtime.Cpuid,
// runtime.Outb/Inb, runtime.Rcr4, and friends.
package hal

import (
	"runtime"
	"sync/atomic"

	"github.com/Redstone-OS/forge/sync2"
)

// Cpu_i is the CPU-primitive contract: disable/enable
// interrupts, halt, read current core id, read/write MSRs, read/write CR3.
// It is an interface, not bare package functions, so tests can substitute a
// software fake instead of needing real ring-0 privileges.
type Cpu_i interface {
	DisableInterrupts() bool
	RestoreInterrupts(was bool)
	Halt()
	CoreID() int
	ReadMSR(reg uint32) uint64
	WriteMSR(reg uint32, val uint64)
	ReadCR3() uint64
	WriteCR3(val uint64)
}

// IOPort_i is the I/O-port contract: byte/word/dword access.
type IOPort_i interface {
	InB(port uint16) uint8
	OutB(port uint16, val uint8)
	InW(port uint16) uint16
	OutW(port uint16, val uint16)
	InL(port uint16) uint32
	OutL(port uint16, val uint32)
}

// Well-known MSR numbers the syscall entry contract configures.
const (
	MSR_STAR uint32 = 0xC0000081
	MSR_LSTAR uint32 = 0xC0000082
	MSR_SFMASK uint32 = 0xC0000084
)

// runtimeCpu is the real Cpu_i backed by the patched runtime's exported
// primitives.
type runtimeCpu struct{}

// RuntimeCpu is the production Cpu_i implementation.
var RuntimeCpu Cpu_i = runtimeCpu{}

func (runtimeCpu) DisableInterrupts() bool { return runtime.Cli() }
func (runtimeCpu) RestoreInterrupts(was bool) {
	if was {
		runtime.Sti()
	}
}
func (runtimeCpu) Halt() { runtime.Hlt() }
func (runtimeCpu) CoreID() int {
	_, ebx, _, _ := runtime.Cpuid(0x1, 0)
	return int((ebx >> 24) & 0xff)
}
func (runtimeCpu) ReadMSR(reg uint32) uint64 { return runtime.Rdmsr(reg) }
func (runtimeCpu) WriteMSR(reg uint32, val uint64) { runtime.Wrmsr(reg, val) }
func (runtimeCpu) ReadCR3() uint64 { return runtime.Rcr3() }
func (runtimeCpu) WriteCR3(val uint64) { runtime.Wcr3(val) }

// runtimeIO is the real IOPort_i backed by runtime.Inb/Outb and friends.
type runtimeIO struct{}

// RuntimeIO is the production IOPort_i implementation.
var RuntimeIO IOPort_i = runtimeIO{}

func (runtimeIO) InB(port uint16) uint8 { return runtime.Inb(port) }
func (runtimeIO) OutB(port uint16, val uint8) { runtime.Outb(port, val) }
func (runtimeIO) InW(port uint16) uint16 { return runtime.Inw(port) }
func (runtimeIO) OutW(port uint16, val uint16) { runtime.Outw(port, val) }
func (runtimeIO) InL(port uint16) uint32 { return runtime.Inl(port) }
func (runtimeIO) OutL(port uint16, val uint32) { runtime.Outl(port, val) }

// init wires sync2's IrqHooks to the real CPU primitives, so every
// Spinlock_t in the kernel disables interrupts on the core that holds it
// without sync2 importing hal
// (which would create an import cycle: hal's trap wrappers themselves take
// spinlocks).
func init() {
	sync2.SetIrqHooks(sync2.IrqHooks{
			Disable: RuntimeCpu.DisableInterrupts,
			Restore: RuntimeCpu.RestoreInterrupts,
			Pause: runtime.Gosched,
	})
}

// percpu holds the local-CPU scratch every HAL consumer needs: the kernel
// RSP syscall entry loads from GS:8, the user RSP it saves to GS:0, and the
// TLB generation counter cross-CPU invalidation consults.
type percpu struct {
	userRSP uint64
	kernelRSP uint64
	tlbGen uint64
	id int
}

const maxCPUs = 64

var cpus [maxCPUs]percpu

// CPU returns the per-CPU scratch block for the given core.
func CPU(id int) *percpu { return &cpus[id%maxCPUs] }

// TLBGen returns this CPU's last-observed TLB generation.
func (p *percpu) TLBGen() uint64 { return atomic.LoadUint64(&p.tlbGen) }

// BumpTLBGen advances this CPU's TLB generation past target if it is
// behind, used by the IPI handler servicing a cross-CPU invalidation: a
// receiver observes its address space's TLB generation counter to decide
// whether the IPI affects it.
func (p *percpu) BumpTLBGen(target uint64) {
	for {
		cur := atomic.LoadUint64(&p.tlbGen)
		if cur >= target {
			return
		}
		if atomic.CompareAndSwapUint64(&p.tlbGen, cur, target) {
			return
		}
	}
}
