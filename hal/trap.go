package hal

// TrapFrame_t is the layout the trap and syscall entry stubs build on the
// kernel stack before calling into Go: hardware-pushed fields first, in IRET order,
// followed by the GPR set the assembly wrapper pushes.
type TrapFrame_t struct {
	// Pushed by the wrapper, listed from the lowest address up: R15 is
	// pushed last and sits at the frame pointer, Rax is pushed first and is
	// deepest on the stack.
	R15, R14, R13, R12, R11, R10, R9, R8 uint64
	Rbp, Rdi, Rsi, Rdx, Rcx, Rbx, Rax uint64

	// Present only for exceptions that define one; 0 otherwise.
	ErrorCode uint64

	// Hardware-pushed frame, identical for both traps and syscalls.
	RIP uint64
	CS uint64
	RFLAGS uint64
	RSP uint64
	SS uint64
}

// FromUserMode reports whether the frame was built on entry from ring 3
// (user mode) rather than ring 0.
func (f *TrapFrame_t) FromUserMode() bool { return f.CS&3 == 3 }

// TrapHandler_t is the language-level handler the entry wrapper calls with
// a pointer to the frame.
type TrapHandler_t func(cpu int, f *TrapFrame_t)

// SyscallHandler_t is the high-level dispatcher the syscall stub calls with
// the frame pointer once GPRs are saved.
type SyscallHandler_t func(cpu int, f *TrapFrame_t) int64

var (
	trapHandlers [256]TrapHandler_t
	syscallDispatch SyscallHandler_t
)

// RegisterTrap installs the handler for vector vec (0-31 CPU exceptions,
// 32-255 remapped IRQs).
func RegisterTrap(vec int, h TrapHandler_t) {
	trapHandlers[vec] = h
}

// RegisterSyscall installs the kernel's single syscall dispatcher.
func RegisterSyscall(h SyscallHandler_t) {
	syscallDispatch = h
}

// DispatchTrap is called by the assembly trap wrapper with the vector and
// a pointer to the frame it built. It only calls the handler registered for
// vec (vectors with none are ignored); any reschedule decision on a timer
// tick is up to that handler.
func DispatchTrap(cpu, vec int, f *TrapFrame_t) {
	if h := trapHandlers[vec]; h != nil {
		h(cpu, f)
	}
}

// DispatchSyscall is called by the assembly syscall stub with the frame it
// built from RCX/R11 and the GPRs.
func DispatchSyscall(cpu int, f *TrapFrame_t) int64 {
	if syscallDispatch == nil {
		return -1
	}
	return syscallDispatch(cpu, f)
}
