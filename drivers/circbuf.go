package drivers

import "github.com/Redstone-OS/forge/defs"

// Circbuf_t is a fixed-capacity byte ring, grounded on biscuit's own
// circbuf package but rewritten against plain []byte reads/writes instead
// of the Userio_i/mem.Page_i indirection a filesystem-backed pipe needs —
// forge has no pipe file descriptors, only the console and other
// CharDevice backends this buffers for. Not safe for concurrent use; a
// caller needing that wraps one in a sync2.Mutex_t.
type Circbuf_t struct {
	buf  []byte
	head int // write position, ever-increasing
	tail int // read position, ever-increasing
}

// NewCircbuf allocates a ring of the given capacity.
func NewCircbuf(capacity int) *Circbuf_t {
	if capacity <= 0 {
		panic("bad circbuf size")
	}
	return &Circbuf_t{buf: make([]byte, capacity)}
}

// Full reports whether the buffer cannot accept more data.
func (cb *Circbuf_t) Full() bool { return cb.head-cb.tail == len(cb.buf) }

// Empty reports whether the buffer holds no data.
func (cb *Circbuf_t) Empty() bool { return cb.head == cb.tail }

// Used returns the number of unread bytes currently buffered.
func (cb *Circbuf_t) Used() int { return cb.head - cb.tail }

// Left returns the remaining write capacity in bytes.
func (cb *Circbuf_t) Left() int { return len(cb.buf) - cb.Used() }

// WriteString copies as much of s into the ring as fits, returning the
// number of bytes actually written (never an error — a full ring just
// accepts fewer bytes, matching WriteString never blocking a log caller).
func (cb *Circbuf_t) WriteString(s string) (int, defs.Err_t) {
	n := 0
	for n < len(s) && !cb.Full() {
		cb.buf[cb.head%len(cb.buf)] = s[n]
		cb.head++
		n++
	}
	return n, 0
}

// WriteByte appends one byte if the ring has room.
func (cb *Circbuf_t) WriteByte(b byte) defs.Err_t {
	if cb.Full() {
		return defs.EAGAIN
	}
	cb.buf[cb.head%len(cb.buf)] = b
	cb.head++
	return 0
}

// Read drains up to len(dst) buffered bytes into dst in FIFO order.
func (cb *Circbuf_t) Read(dst []byte) int {
	n := 0
	for n < len(dst) && !cb.Empty() {
		dst[n] = cb.buf[cb.tail%len(cb.buf)]
		cb.tail++
		n++
	}
	return n
}
