package sched

import (
	"github.com/Redstone-OS/forge/sync2"
)

// rqlink is the intrusive node linking a Ready task into its CPU's runqueue.
type rqlink struct {
	task *Task_t
	next *rqlink
}

// Runqueue_t is one CPU's ready list. The lock is a spinlock, not a mutex: it is taken from
// interrupt context (the timer tick) and must never be held across a
// context switch.
type Runqueue_t struct {
	lock sync2.Spinlock_t
	head, tail *rqlink
	current *Task_t
}

// Enqueue appends t to the back of the runqueue.
func (rq *Runqueue_t) Enqueue(t *Task_t) {
	link := &rqlink{task: t}
	rq.lock.Lock()
	if rq.tail == nil {
		rq.head, rq.tail = link, link
	} else {
		rq.tail.next = link
		rq.tail = link
	}
	rq.lock.Unlock()
}

// Dequeue removes and returns the task at the front, or nil if empty.
func (rq *Runqueue_t) Dequeue() *Task_t {
	rq.lock.Lock()
	defer rq.lock.Unlock()
	link := rq.head
	if link == nil {
		return nil
	}
	rq.head = link.next
	if rq.head == nil {
		rq.tail = nil
	}
	return link.task
}

// Steal removes and returns the task at the back of the runqueue, for a
// neighboring CPU's work-stealing pass. It returns nil when fewer than two
// tasks are queued, leaving a lone task to the owner's Dequeue.
func (rq *Runqueue_t) Steal() *Task_t {
	rq.lock.Lock()
	defer rq.lock.Unlock()
	if rq.tail == nil || rq.head == rq.tail {
		return nil
	}
	var prev *rqlink
	for cur := rq.head; cur != rq.tail; cur = cur.next {
		prev = cur
	}
	t := rq.tail.task
	rq.tail = prev
	if prev == nil {
		rq.head = nil
	} else {
		prev.next = nil
	}
	return t
}

// Current returns the task presently running on this CPU, or nil.
func (rq *Runqueue_t) Current() *Task_t {
	rq.lock.Lock()
	defer rq.lock.Unlock()
	return rq.current
}

// SetCurrent records the task now running on this CPU.
func (rq *Runqueue_t) SetCurrent(t *Task_t) {
	rq.lock.Lock()
	rq.current = t
	rq.lock.Unlock()
}

// Len reports the number of Ready tasks waiting, used by the load-balancer
// to pick a steal target.
func (rq *Runqueue_t) Len() int {
	rq.lock.Lock()
	defer rq.lock.Unlock()
	n := 0
	for cur := rq.head; cur != nil; cur = cur.next {
		n++
	}
	return n
}
