// Package ipc implements the message-passing and shared-memory primitives:
// bounded-queue ports, channels (linked port pairs), shared-memory
// VMOs, and futexes, all built on sched.Waitq_t exactly as a mutex or a pager
// wait is — there is only one wait-queue primitive in the kernel.
package ipc

import (
	"github.com/Redstone-OS/forge/defs"
	"github.com/Redstone-OS/forge/sched"
	"github.com/Redstone-OS/forge/sync2"
)

// Status_t is a port's lifecycle state.
type Status_t int

const (
	PORT_OPEN Status_t = iota
	PORT_CLOSED
)

// Message_t is one queued entry: an opaque payload plus any capability
// handles being transferred alongside it.
type Message_t struct {
	Payload []byte
	Handles []uint32
}

// Port_t is a bounded FIFO IPC endpoint. Send and receive each have their own wait queue so a full queue
// only blocks senders and an empty queue only blocks receivers.
type Port_t struct {
	lock sync2.Mutex_t
	status Status_t
	cap int
	queue []Message_t
	sendWait sched.Waitq_t
	recvWait sched.Waitq_t
}

// NewPort allocates an open port with the given queue capacity.
func NewPort(capacity int) *Port_t {
	return &Port_t{status: PORT_OPEN, cap: capacity}
}

// TrySend appends msg without blocking; returns EBUSY if the queue is full
// and EPIPE if the port is closed.
func (p *Port_t) TrySend(msg Message_t) defs.Err_t {
	p.lock.Lock()
	if p.status != PORT_OPEN {
		p.lock.Unlock()
		return defs.EPIPE
	}
	if len(p.queue) >= p.cap {
		p.lock.Unlock()
		return defs.EBUSY
	}
	p.queue = append(p.queue, msg)
	p.lock.Unlock()
	p.recvWait.WakeOne()
	return 0
}

// Send blocks (via cpu's scheduler) until there is room, then enqueues msg.
func (p *Port_t) Send(cpu int, msg Message_t) defs.Err_t {
	for {
		err := p.TrySend(msg)
		if err != defs.EBUSY {
			return err
		}
		sched.Block(cpu, &p.sendWait)
	}
}

// TryRecv pops the head message without blocking; returns EAGAIN if empty
// and EOF once the port is closed and drained.
func (p *Port_t) TryRecv() (Message_t, defs.Err_t) {
	p.lock.Lock()
	if len(p.queue) == 0 {
		closed := p.status == PORT_CLOSED
		p.lock.Unlock()
		if closed {
			return Message_t{}, defs.EOF
		}
		return Message_t{}, defs.EAGAIN
	}
	msg := p.queue[0]
	p.queue = p.queue[1:]
	p.lock.Unlock()
	p.sendWait.WakeOne()
	return msg, 0
}

// Recv blocks until a message is available or the port closes.
func (p *Port_t) Recv(cpu int) (Message_t, defs.Err_t) {
	for {
		msg, err := p.TryRecv()
		if err != defs.EAGAIN {
			return msg, err
		}
		sched.Block(cpu, &p.recvWait)
	}
}

// Close transitions the port to Closed and wakes every waiter. A woken
// sender's retry gets EPIPE; a receiver drains any queued messages and then
// gets EOF.
func (p *Port_t) Close() {
	p.lock.Lock()
	p.status = PORT_CLOSED
	p.lock.Unlock()
	p.sendWait.WakeAll()
	p.recvWait.WakeAll()
}

// Len reports the number of queued-but-unreceived messages.
func (p *Port_t) Len() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return len(p.queue)
}
