package mod

import (
	"crypto/ed25519"
	"strings"

	"golang.org/x/arch/x86/x86asm"

	"github.com/Redstone-OS/forge/defs"
)

// TrustRoot_t holds the Ed25519 public key(s) module signatures are checked
// against. RequireSignature false allows any module through unsigned,
// matching a debug build's looser policy; release builds set it true.
type TrustRoot_t struct {
	Keys []ed25519.PublicKey
	RequireSignature bool
}

// VerifySignature checks sig against body using any key in the trust root.
func (tr *TrustRoot_t) VerifySignature(body, sig []byte) defs.Err_t {
	if !tr.RequireSignature {
		return 0
	}
	for _, k := range tr.Keys {
		if ed25519.Verify(k, body, sig) {
			return 0
		}
	}
	return defs.EPERM
}

// forbiddenOps names the privileged/ambient-authority instructions a module
// may never contain outside the one stable ABI trampoline:
// cli/sti, hlt, in/out, mov-to-cr, wrmsr, lgdt/lidt, and raw syscall/sysret.
var forbiddenOps = map[x86asm.Op]bool{
	x86asm.CLI: true,
	x86asm.STI: true,
	x86asm.HLT: true,
	x86asm.IN: true,
	x86asm.OUT: true,
	x86asm.WRMSR: true,
	x86asm.LGDT: true,
	x86asm.LIDT: true,
	x86asm.SYSCALL: true,
	x86asm.SYSRET: true,
}

// VerifyCode disassembles code and rejects the module if any instruction
// outside [trampolineStart, trampolineEnd) decodes to a forbidden op, or
// writes to a control register.
func VerifyCode(code []byte, trampolineStart, trampolineEnd int) defs.Err_t {
	off := 0
	for off < len(code) {
		inst, err := x86asm.Decode(code[off:], 64)
		if err != nil {
			// An undecodable byte sequence is as suspicious as a forbidden
			// opcode: reject rather than skip past it.
			return defs.EINVAL
		}
		if off < trampolineStart || off >= trampolineEnd {
			if forbiddenOps[inst.Op] {
				return defs.EPERM
			}
			if writesControlRegister(inst) {
				return defs.EPERM
			}
		}
		if inst.Len == 0 {
			break
		}
		off += inst.Len
	}
	return 0
}

// writesControlRegister reports whether inst's destination operand is a
// control register (mov-to-cr family), which x86asm decodes as a MOV with
// a CR0..CR15 destination register.
func writesControlRegister(inst x86asm.Inst) bool {
	if inst.Op != x86asm.MOV {
		return false
	}
	if len(inst.Args) == 0 {
		return false
	}
	r, ok := inst.Args[0].(x86asm.Reg)
	if !ok {
		return false
	}
	return strings.HasPrefix(r.String(), "CR")
}
