package vm

import (
	"fmt"
	"sync"

	"github.com/Redstone-OS/forge/defs"
	"github.com/Redstone-OS/forge/mem"
)

// Userdmap8 returns the direct-mapped byte slice backing va in as, up to the
// end of its containing page, faulting the page in first (as a write access
// if write is true) when it is not yet resident (adapted from biscuit's
// Userdmap8_inner).
func (as *AddressSpace_t) Userdmap8(va mem.Va_t, write bool) ([]uint8, defs.Err_t) {
	pa, err := as.Translate(va)
	if err != 0 {
		if _, ferr := as.HandleFault(va, write, false); ferr != 0 {
			return nil, ferr
		}
		pa, err = as.Translate(va)
		if err != 0 {
			return nil, defs.EFAULT
		}
	}
	return as.phys.Dmap8(pa | mem.Pa_t(va)&mem.PGOFFSET), 0
}

// Userbuf_t assists reading and writing a contiguous range of a process's
// user memory a page at a time, resolving faults as it goes.
type Userbuf_t struct {
	uva mem.Va_t
	len int
	off int
	as *AddressSpace_t
}

// UbufInit initializes ub to describe [uva, uva+length) within as.
func (ub *Userbuf_t) UbufInit(as *AddressSpace_t, uva mem.Va_t, length int) {
	if length < 0 {
		panic("negative length")
	}
	if length >= 1<<39 {
		fmt.Printf("suspiciously large user buffer (%v)\n", length)
	}
	ub.uva = uva
	ub.len = length
	ub.off = 0
	ub.as = as
}

// Remain reports the number of unread/unwritten bytes left in the buffer.
func (ub *Userbuf_t) Remain() int { return ub.len - ub.off }

// Totalsz reports the buffer's total length.
func (ub *Userbuf_t) Totalsz() int { return ub.len }

// Uioread copies from user memory into dst.
func (ub *Userbuf_t) Uioread(dst []uint8) (int, defs.Err_t) { return ub.tx(dst, false) }

// Uiowrite copies src into user memory.
func (ub *Userbuf_t) Uiowrite(src []uint8) (int, defs.Err_t) { return ub.tx(src, true) }

// tx copies min(len(buf), ub.Remain()) bytes, advancing ub.off as it goes so
// a short error leaves the buffer positioned to resume.
func (ub *Userbuf_t) tx(buf []uint8, write bool) (int, defs.Err_t) {
	ret := 0
	for len(buf) != 0 && ub.off != ub.len {
		va := ub.uva + mem.Va_t(ub.off)
		chunk, err := ub.as.Userdmap8(va, write)
		if err != 0 {
			return ret, err
		}
		if end := ub.off + len(chunk); end > ub.len {
			chunk = chunk[:ub.len-ub.off]
		}
		var c int
		if write {
			c = copy(chunk, buf)
		} else {
			c = copy(buf, chunk)
		}
		buf = buf[c:]
		ub.off += c
		ret += c
	}
	return ret, 0
}

type iove_t struct {
	uva mem.Va_t
	sz int
}

// Useriovec_t represents a scatter/gather list of user buffers, as read from
// an iovec array in user memory.
type Useriovec_t struct {
	iovs []iove_t
	tsz int
	as *AddressSpace_t
}

// IovInit reads niovs {va,len} pairs starting at iovarn, each 16 bytes, from
// as's user memory.
func (iov *Useriovec_t) IovInit(as *AddressSpace_t, iovarn mem.Va_t, niovs int) defs.Err_t {
	if niovs > 10 {
		return defs.EINVAL
	}
	iov.tsz = 0
	iov.iovs = make([]iove_t, niovs)
	iov.as = as
	for i := range iov.iovs {
		elmsz := mem.Va_t(16)
		va := iovarn + mem.Va_t(i)*elmsz
		dstva, err := readUserWord(as, va)
		if err != 0 {
			return err
		}
		sz, err := readUserWord(as, va+8)
		if err != 0 {
			return err
		}
		iov.iovs[i].uva = mem.Va_t(dstva)
		iov.iovs[i].sz = int(sz)
		iov.tsz += int(sz)
	}
	return 0
}

// readUserWord reads one 8-byte little-endian word from user memory at va.
func readUserWord(as *AddressSpace_t, va mem.Va_t) (uint64, defs.Err_t) {
	var word uint64
	got := 0
	for got < 8 {
		chunk, err := as.Userdmap8(va+mem.Va_t(got), false)
		if err != 0 {
			return 0, err
		}
		n := 8 - got
		if n > len(chunk) {
			n = len(chunk)
		}
		for i := 0; i < n; i++ {
			word |= uint64(chunk[i]) << (8 * uint(got+i))
		}
		got += n
	}
	return word, 0
}

// Remain reports the total bytes remaining across every iovec.
func (iov *Useriovec_t) Remain() int {
	n := 0
	for i := range iov.iovs {
		n += iov.iovs[i].sz
	}
	return n
}

// Totalsz reports the iovec list's total declared length.
func (iov *Useriovec_t) Totalsz() int { return iov.tsz }

func (iov *Useriovec_t) tx(buf []uint8, touser bool) (int, defs.Err_t) {
	ub := &Userbuf_t{}
	did := 0
	for len(buf) > 0 && len(iov.iovs) > 0 {
		cur := &iov.iovs[0]
		ub.UbufInit(iov.as, cur.uva, cur.sz)
		var c int
		var err defs.Err_t
		if touser {
			c, err = ub.tx(buf, true)
		} else {
			c, err = ub.tx(buf, false)
		}
		cur.uva += mem.Va_t(c)
		cur.sz -= c
		if cur.sz == 0 {
			iov.iovs = iov.iovs[1:]
		}
		buf = buf[c:]
		did += c
		if err != 0 {
			return did, err
		}
	}
	return did, 0
}

// Uioread reads from the iovec list into dst.
func (iov *Useriovec_t) Uioread(dst []uint8) (int, defs.Err_t) { return iov.tx(dst, false) }

// Uiowrite writes src into the iovec list.
func (iov *Useriovec_t) Uiowrite(src []uint8) (int, defs.Err_t) { return iov.tx(src, true) }

// Fakeubuf_t adapts an ordinary kernel-memory slice to the same read/write
// interface as Userbuf_t, so code that copies to/from "user memory" can be
// reused verbatim when the other end is actually kernel-resident.
type Fakeubuf_t struct {
	buf []uint8
	len int
}

// FakeInit points fb at buf.
func (fb *Fakeubuf_t) FakeInit(buf []uint8) {
	fb.buf = buf
	fb.len = len(buf)
}

// Remain reports the bytes left unread/unwritten.
func (fb *Fakeubuf_t) Remain() int { return len(fb.buf) }

// Totalsz reports the fake buffer's original length.
func (fb *Fakeubuf_t) Totalsz() int { return fb.len }

func (fb *Fakeubuf_t) tx(buf []uint8, tofbuf bool) (int, defs.Err_t) {
	var c int
	if tofbuf {
		c = copy(fb.buf, buf)
	} else {
		c = copy(buf, fb.buf)
	}
	fb.buf = fb.buf[c:]
	return c, 0
}

// Uioread copies from the fake buffer into dst.
func (fb *Fakeubuf_t) Uioread(dst []uint8) (int, defs.Err_t) { return fb.tx(dst, false) }

// Uiowrite copies src into the fake buffer.
func (fb *Fakeubuf_t) Uiowrite(src []uint8) (int, defs.Err_t) { return fb.tx(src, true) }

// UbufPool recycles Userbuf_t values across IPC sends to avoid an allocation
// on every message.
var UbufPool = sync.Pool{New: func() interface{} { return new(Userbuf_t) }}
