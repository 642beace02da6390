package scall

import (
	"github.com/Redstone-OS/forge/defs"
	"github.com/Redstone-OS/forge/mem"
	"github.com/Redstone-OS/forge/vm"
)

// userHalfLimit is the highest virtual address the user half of an address
// space may reach on forge's 4-level paging layout.
const userHalfLimit = mem.Va_t(1) << 47

// CopyIn validates that [uva, uva+len) lies entirely in the user half and
// copies len bytes from the caller's address space into dst.
func CopyIn(task *Caller_t, uva mem.Va_t, length int) ([]byte, defs.Err_t) {
	if length < 0 || uva+mem.Va_t(length) < uva {
		return nil, defs.EINVAL // overflow
	}
	if uva >= userHalfLimit || uva+mem.Va_t(length) > userHalfLimit {
		return nil, defs.EFAULT
	}
	var ub vm.Userbuf_t
	ub.UbufInit(task.AS, uva, length)
	dst := make([]byte, length)
	n, err := ub.Uioread(dst)
	if err != 0 {
		return nil, err
	}
	return dst[:n], 0
}

// CopyOut validates the same way as CopyIn and writes src into the
// caller's address space at uva.
func CopyOut(task *Caller_t, uva mem.Va_t, src []byte) defs.Err_t {
	length := len(src)
	if uva+mem.Va_t(length) < uva {
		return defs.EINVAL
	}
	if uva >= userHalfLimit || uva+mem.Va_t(length) > userHalfLimit {
		return defs.EFAULT
	}
	var ub vm.Userbuf_t
	ub.UbufInit(task.AS, uva, length)
	_, err := ub.Uiowrite(src)
	return err
}
