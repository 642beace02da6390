package sched

import (
	"runtime"
	"unsafe"
)

// MaxCPUs mirrors the patched runtime's runtime.MAXCPUS, kept as a forge-side constant so packages that don't
// need the runtime import (tests, in particular) can still size per-CPU
// arrays.
const MaxCPUs = 64

var runqueues [MaxCPUs]Runqueue_t

// RunqueueFor returns the runqueue owned by the given CPU.
func RunqueueFor(cpu int) *Runqueue_t { return &runqueues[cpu%MaxCPUs] }

// ContextSwitch performs a switch away from old to next. Like biscuit,
// forge runs every kernel thread as a goroutine on the patched runtime
// rather than hand-rolling register save/restore: the Go scheduler already
// does the M:N multiplexing onto CPUs, so "switching" a task off the CPU
// means parking its goroutine on resumeCh and waking next's. CtxSave_t
// still exists because a task's FPU state is not part of a goroutine's own
// saved state and must be spilled explicitly across the park.
func ContextSwitch(old, next *Task_t) {
	next.resumeCh <- struct{}{}
	<-old.resumeCh
}

// currentTask returns the task bound to the calling goroutine, via the same
// runtime.Gptr/Setgptr goroutine-local slot biscuit's tinfo package uses
// (src/tinfo/tinfo.go) instead of a full TLS variable.
func currentTask() *Task_t {
	p := runtime.Gptr()
	if p == nil {
		return nil
	}
	return (*Task_t)(p)
}

func setCurrentTask(t *Task_t) {
	runtime.Setgptr(unsafe.Pointer(t))
}

// Current returns the task running on the calling CPU.
func Current() *Task_t { return currentTask() }

// Spawn launches t's body on its own goroutine, parked until the scheduler
// first dispatches it. run must not return until t is ready to exit; its
// return marks t a Zombie with exit code 0. Callers wanting a specific exit
// code should call t.Exit themselves and return.
func Spawn(cpu int, t *Task_t, run func()) {
	rq := RunqueueFor(cpu)
	go func() {
		<-t.resumeCh
		setCurrentTask(t)
		run()
		t.Lock()
		if t.State != TASK_ZOMBIE {
			t.State = TASK_ZOMBIE
		}
		t.Unlock()
		Yield(cpu)
	}()
	t.Cpu = cpu
	t.State = TASK_READY
	rq.Enqueue(t)
}

// Yield performs a cooperative switch away from the task running on cpu to
// the next Ready one, handing the CPU back to whichever goroutine should
// run next. If nothing else is runnable it returns immediately
// and the caller keeps running.
func Yield(cpu int) {
	rq := RunqueueFor(cpu)
	cur := rq.Current()
	next := rq.Dequeue()
	if next == nil {
		return
	}
	if cur != nil && cur.State == TASK_RUNNING {
		cur.State = TASK_READY
		cur.Cpu = cpu
		rq.Enqueue(cur)
	}
	next.State = TASK_RUNNING
	rq.SetCurrent(next)
	if cur != nil {
		ContextSwitch(cur, next)
	} else {
		next.resumeCh <- struct{}{}
	}
}

// Block marks the current task Blocked on q and switches away. It must be
// called with interrupts already disabled by the caller up through the
// point the new context resumes.
func Block(cpu int, q *Waitq_t) {
	rq := RunqueueFor(cpu)
	cur := rq.Current()
	if cur == nil {
		panic("Block called with no current task")
	}
	cur.Cpu = cpu
	q.Wait(cur)
	next := rq.Dequeue()
	for next == nil {
		next = rq.Dequeue()
	}
	next.State = TASK_RUNNING
	rq.SetCurrent(next)
	ContextSwitch(cur, next)
}

// TickNanos is the nominal nanosecond duration of one timer tick, used to
// approximate per-task CPU accounting at tick granularity rather than
// instrumenting every entry/exit path for exact timing.
const TickNanos = 1_000_000

// TimerTick is called on every timer interrupt for the local CPU; it
// decrements the running task's quantum and yields if it has expired.
func TimerTick(cpu int) {
	rq := RunqueueFor(cpu)
	cur := rq.Current()
	if cur == nil || cur.State != TASK_RUNNING {
		return
	}
	cur.Accnt.Utadd(TickNanos)
	if cur.ShouldReschedule() {
		cur.ResetQuantum()
		Yield(cpu)
	}
}
