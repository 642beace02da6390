package ipc

import "github.com/Redstone-OS/forge/defs"

// Channel_t is a pair of linked ports: each endpoint holds a send-side reference to the peer's
// receive-side port. Closing one endpoint marks the other with
// end-of-stream on its next recv, which Port_t.Close already implements by
// waking receivers into the EOF path once the queue drains.
type Channel_t struct {
	local, peer *Port_t
}

// NewChannelPair builds two linked endpoints, each able to send to the
// other's queue and receive from its own.
func NewChannelPair(capacity int) (*Channel_t, *Channel_t) {
	a := NewPort(capacity)
	b := NewPort(capacity)
	return &Channel_t{local: a, peer: b}, &Channel_t{local: b, peer: a}
}

// Send delivers msg to the peer endpoint's queue.
func (c *Channel_t) Send(cpu int, msg Message_t) defs.Err_t {
	return c.peer.Send(cpu, msg)
}

// TrySend is the non-blocking form of Send.
func (c *Channel_t) TrySend(msg Message_t) defs.Err_t {
	return c.peer.TrySend(msg)
}

// Recv receives from this endpoint's own queue.
func (c *Channel_t) Recv(cpu int) (Message_t, defs.Err_t) {
	return c.local.Recv(cpu)
}

// TryRecv is the non-blocking form of Recv.
func (c *Channel_t) TryRecv() (Message_t, defs.Err_t) {
	return c.local.TryRecv()
}

// Close shuts both directions: the peer observes EOF on recv, and the local
// side stops accepting further sends.
func (c *Channel_t) Close() {
	c.local.Close()
	c.peer.Close()
}
