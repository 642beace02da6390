package sched

import (
	"testing"

	"github.com/Redstone-OS/forge/defs"
)

func newTestTask(name string) *Task_t {
	return NewTask(defs.Tid_t(1), defs.Pid_t(1), nil, name)
}

func TestRunqueueFIFOOrder(t *testing.T) {
	var rq Runqueue_t
	a, b, c := newTestTask("a"), newTestTask("b"), newTestTask("c")
	rq.Enqueue(a)
	rq.Enqueue(b)
	rq.Enqueue(c)
	if got := rq.Dequeue(); got != a {
		t.Fatalf("first dequeue = %v, want a", got.Name)
	}
	if got := rq.Dequeue(); got != b {
		t.Fatalf("second dequeue = %v, want b", got.Name)
	}
	if got := rq.Dequeue(); got != c {
		t.Fatalf("third dequeue = %v, want c", got.Name)
	}
	if got := rq.Dequeue(); got != nil {
		t.Fatalf("dequeue on empty queue = %v, want nil", got)
	}
}

func TestRunqueueStealTakesFromTail(t *testing.T) {
	var rq Runqueue_t
	a, b, c := newTestTask("a"), newTestTask("b"), newTestTask("c")
	rq.Enqueue(a)
	rq.Enqueue(b)
	rq.Enqueue(c)
	stolen := rq.Steal()
	if stolen != c {
		t.Fatalf("stolen = %v, want c", stolen.Name)
	}
	if rq.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", rq.Len())
	}
	if got := rq.Dequeue(); got != a {
		t.Fatalf("remaining head = %v, want a", got.Name)
	}
}

func TestRunqueueStealOnSingletonReturnsNil(t *testing.T) {
	var rq Runqueue_t
	a := newTestTask("a")
	rq.Enqueue(a)
	if got := rq.Steal(); got != nil {
		t.Fatalf("Steal() on singleton = %v, want nil (owner's Dequeue should take it)", got)
	}
}

func TestTaskQuantumExpiresAfterDefaultTicks(t *testing.T) {
	task := newTestTask("a")
	for i := 0; i < DefaultQuantum-1; i++ {
		if task.ShouldReschedule() {
			t.Fatalf("ShouldReschedule returned true early, at tick %d", i)
		}
	}
	if !task.ShouldReschedule() {
		t.Fatalf("ShouldReschedule() = false on final tick, want true")
	}
}

func TestTaskMarkKilledIsObservable(t *testing.T) {
	task := newTestTask("a")
	if task.Killed() {
		t.Fatalf("fresh task reports Killed()")
	}
	task.MarkKilled()
	if !task.Killed() {
		t.Fatalf("Killed() = false after MarkKilled()")
	}
}

func TestTaskExitRecordsCode(t *testing.T) {
	task := newTestTask("a")
	task.Exit(7)
	if task.State != TASK_ZOMBIE {
		t.Fatalf("State = %v, want TASK_ZOMBIE", task.State)
	}
	if task.ExitCode() != 7 {
		t.Fatalf("ExitCode() = %d, want 7", task.ExitCode())
	}
}

func TestTaskReapRequiresZombie(t *testing.T) {
	task := newTestTask("a")
	defer func() {
		if recover() == nil {
			t.Fatalf("Reap on non-zombie task did not panic")
		}
	}()
	task.Reap()
}

func TestWaitqWakeOneIsFIFO(t *testing.T) {
	var q Waitq_t
	a, b := newTestTask("a"), newTestTask("b")
	q.Wait(a)
	q.Wait(b)
	if got := q.WakeOne(); got != a {
		t.Fatalf("WakeOne() = %v, want a", got.Name)
	}
	if a.State != TASK_READY {
		t.Fatalf("woken task state = %v, want TASK_READY", a.State)
	}
	if got := q.WakeOne(); got != b {
		t.Fatalf("WakeOne() = %v, want b", got.Name)
	}
}

func TestWaitqRemoveDetachesMidList(t *testing.T) {
	var q Waitq_t
	a, b, c := newTestTask("a"), newTestTask("b"), newTestTask("c")
	q.Wait(a)
	q.Wait(b)
	q.Wait(c)
	if !q.Remove(b) {
		t.Fatalf("Remove(b) = false, want true")
	}
	if q.Remove(b) {
		t.Fatalf("second Remove(b) = true, want false (already detached)")
	}
	woken := q.WakeAll()
	if len(woken) != 2 || woken[0] != a || woken[1] != c {
		t.Fatalf("WakeAll() = %v, want [a c]", woken)
	}
}

func TestBlockedTaskResumesWhenWoken(t *testing.T) {
	const cpu = 4
	var q Waitq_t
	done := make(chan string, 2)

	blocker := newTestTask("blocker")
	waker := newTestTask("waker")

	Spawn(cpu, blocker, func() {
		Block(cpu, &q)
		done <- "blocker"
	})
	Spawn(cpu, waker, func() {
		if woken := q.WakeOne(); woken != blocker {
			t.Errorf("WakeOne() = %v, want blocker", woken)
		}
		done <- "waker"
	})

	// Dispatch the first Ready task, as the idle loop on a real CPU would.
	rq := RunqueueFor(cpu)
	t0 := rq.Dequeue()
	t0.State = TASK_RUNNING
	rq.SetCurrent(t0)
	t0.resumeCh <- struct{}{}

	got1 := <-done
	got2 := <-done
	if got1 != "waker" || got2 != "blocker" {
		t.Fatalf("done order = [%s %s], want [waker blocker]: a blocked task must be re-enqueued by WakeOne before the scheduler can ever dispatch it again", got1, got2)
	}
	if blocker.State != TASK_RUNNING {
		t.Fatalf("blocker.State = %v, want TASK_RUNNING after resuming", blocker.State)
	}
}

func TestSpawnAndYieldHandOffToNextTask(t *testing.T) {
	const cpu = 0
	ran := make(chan string, 2)

	first := newTestTask("first")
	second := newTestTask("second")

	Spawn(cpu, first, func() {
			ran <- "first"
			Yield(cpu)
	})
	Spawn(cpu, second, func() {
			ran <- "second"
	})

	// Dispatch the first task manually, as the idle loop on a real CPU
	// would: dequeue whoever is Ready and hand the CPU to them.
	rq := RunqueueFor(cpu)
	t0 := rq.Dequeue()
	t0.State = TASK_RUNNING
	rq.SetCurrent(t0)
	t0.resumeCh <- struct{}{}

	got1 := <-ran
	got2 := <-ran
	if got1 != "first" || got2 != "second" {
		t.Fatalf("ran order = [%s %s], want [first second]", got1, got2)
	}
}
