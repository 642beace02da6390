package sched

import "github.com/Redstone-OS/forge/sync2"

// waitlink is the intrusive list node linking a blocked task into a
// Waitq_t, so wake_one can remove exactly the one it dequeues without a
// second lookup.
type waitlink struct {
	task *Task_t
	next *waitlink
}

// Waitq_t is an ordered (FIFO) list of blocked task references, the
// primitive every blocking facility — ports, futexes, mutexes — is built
// from.
type Waitq_t struct {
	lock sync2.Spinlock_t
	head, tail *waitlink
}

// Wait atomically marks cur Blocked and appends it to the queue. The actual
// suspension (invoking the scheduler) is the caller's responsibility once
// this returns, matching spec's "wait atomically marks the current task
// Blocked, enqueues it, and calls the scheduler" — split here so the
// scheduler call itself never happens while q.lock is held.
func (q *Waitq_t) Wait(cur *Task_t) {
	cur.Lock()
	cur.State = TASK_BLOCKED
	link := &waitlink{task: cur}
	cur.waitq = link
	cur.Unlock()

	q.lock.Lock()
	if q.tail == nil {
		q.head, q.tail = link, link
	} else {
		q.tail.next = link
		q.tail = link
	}
	q.lock.Unlock()
}

// WakeOne removes the first blocked task, marks it Ready, and re-enqueues
// it onto the runqueue of the CPU it last ran on so the scheduler will
// actually dispatch it again; without this a task that blocked via
// sched.Block would never be chosen as a Yield/Block "next" and would hang
// forever. Returns the woken task, or nil if the queue was empty.
func (q *Waitq_t) WakeOne() *Task_t {
	q.lock.Lock()
	link := q.head
	if link != nil {
		q.head = link.next
		if q.head == nil {
			q.tail = nil
		}
	}
	q.lock.Unlock()
	if link == nil {
		return nil
	}
	t := link.task
	t.Lock()
	t.State = TASK_READY
	t.waitq = nil
	cpu := t.Cpu
	t.Unlock()
	RunqueueFor(cpu).Enqueue(t)
	return t
}

// WakeAll removes and readies every task on the queue, returning them in
// FIFO order.
func (q *Waitq_t) WakeAll() []*Task_t {
	var woken []*Task_t
	for {
		t := q.WakeOne()
		if t == nil {
			return woken
		}
		woken = append(woken, t)
	}
}

// Remove detaches t from the queue it is currently linked into, used when a
// task is forcibly killed while blocked.
func (q *Waitq_t) Remove(t *Task_t) bool {
	q.lock.Lock()
	defer q.lock.Unlock()
	var prev *waitlink
	for cur := q.head; cur != nil; cur = cur.next {
		if cur.task == t {
			if prev == nil {
				q.head = cur.next
			} else {
				prev.next = cur.next
			}
			if cur == q.tail {
				q.tail = prev
			}
			t.waitq = nil
			return true
		}
		prev = cur
	}
	return false
}
