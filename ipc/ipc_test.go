package ipc

import (
	"testing"

	"github.com/Redstone-OS/forge/defs"
	"github.com/Redstone-OS/forge/mem"
	"github.com/Redstone-OS/forge/vm"
)

func freshPhys(t *testing.T, frames int) *mem.Physmem_t {
	t.Helper()
	p := &mem.Physmem_t{}
	p.Reserve(0x1000, frames, 1)
	return p
}

func TestPortTrySendTryRecvRoundTrip(t *testing.T) {
	p := NewPort(2)
	if err := p.TrySend(Message_t{Payload: []byte("hi")}); err != 0 {
		t.Fatalf("TrySend: %v", err)
	}
	msg, err := p.TryRecv()
	if err != 0 {
		t.Fatalf("TryRecv: %v", err)
	}
	if string(msg.Payload) != "hi" {
		t.Fatalf("payload = %q, want hi", msg.Payload)
	}
}

func TestPortTrySendQueueFull(t *testing.T) {
	p := NewPort(1)
	if err := p.TrySend(Message_t{}); err != 0 {
		t.Fatalf("first TrySend: %v", err)
	}
	if err := p.TrySend(Message_t{}); err != defs.EBUSY {
		t.Fatalf("err = %v, want EBUSY", err)
	}
}

func TestPortTryRecvEmpty(t *testing.T) {
	p := NewPort(1)
	if _, err := p.TryRecv(); err != defs.EAGAIN {
		t.Fatalf("err = %v, want EAGAIN", err)
	}
}

func TestPortCloseWakesAndReportsClosed(t *testing.T) {
	p := NewPort(1)
	p.Close()
	if _, err := p.TryRecv(); err != defs.EOF {
		t.Fatalf("err = %v, want EOF", err)
	}
	if err := p.TrySend(Message_t{}); err != defs.EPIPE {
		t.Fatalf("err = %v, want EPIPE", err)
	}
}

func TestChannelPairDeliversToPeer(t *testing.T) {
	a, b := NewChannelPair(4)
	if err := a.TrySend(Message_t{Payload: []byte("ping")}); err != 0 {
		t.Fatalf("TrySend: %v", err)
	}
	msg, err := b.TryRecv()
	if err != 0 || string(msg.Payload) != "ping" {
		t.Fatalf("b.TryRecv() = %v, %v, want ping", msg, err)
	}
}

func TestChannelCloseBothDirections(t *testing.T) {
	a, b := NewChannelPair(1)
	a.Close()
	if _, err := b.TryRecv(); err != defs.EOF {
		t.Fatalf("b.TryRecv() err = %v, want EOF", err)
	}
}

func TestFutexWaitRejectsStaleExpected(t *testing.T) {
	f := NewFutextbl()
	word := int32(5)
	as, _ := vm.NewAddressSpace(freshPhys(t, 8), 1)
	if err := f.Wait(0, as, 0x1000, &word, 9); err != defs.EAGAIN {
		t.Fatalf("err = %v, want EAGAIN", err)
	}
}

func TestFutexWakeReturnsZeroWithoutWaiters(t *testing.T) {
	f := NewFutextbl()
	as, _ := vm.NewAddressSpace(freshPhys(t, 8), 1)
	if n := f.Wake(as, 0x2000, 1); n != 0 {
		t.Fatalf("Wake() = %d, want 0", n)
	}
}

func TestShmMapIntoInsertsVma(t *testing.T) {
	phys := freshPhys(t, 8)
	as, err := vm.NewAddressSpace(phys, 1)
	if err != 0 {
		t.Fatalf("NewAddressSpace: %v", err)
	}
	s := NewShm(phys, 1)
	if err := s.MapInto(as, 0x40_0000_0000, mem.Va_t(mem.PGSIZE), vm.PROT_READ|vm.PROT_WRITE); err != 0 {
		t.Fatalf("MapInto: %v", err)
	}
	if v := as.FindVma(0x40_0000_0000); v == nil {
		t.Fatalf("FindVma did not find the mapped shm region")
	}
	// the frame must be resolvable immediately, with no fault required: SHM
	// is populated eagerly at map time.
	if _, err := as.Translate(0x40_0000_0000); err != 0 {
		t.Fatalf("Translate right after MapInto: %v, want the page already mapped", err)
	}
}
