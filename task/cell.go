package task

import "sync/atomic"

// Scheduler is the contract a task needs from whatever drives it. A
// concrete scheduler (see package taskrt) implements this once; the
// task package never depends on taskrt, avoiding an import cycle.
type Scheduler interface {
	// Bind is called exactly once per task, the first time it is
	// polled, so the scheduler can add the task to its owned set.
	Bind(h *Header)
	// Schedule pushes a runnable task onto the scheduler's run queue.
	// Every call hands the queue one task reference, granted by the
	// caller before calling Schedule; the poll that eventually pops
	// the entry consumes it.
	Schedule(h *Header)
	// Release removes the task from the scheduler's owned set. It
	// returns true if the scheduler actually held an owned-set
	// reference that the caller must now account for in the state
	// word's reference count.
	Release(h *Header) bool
}

// vtable is the type-erased operation table rooted at a Header. Poll,
// Dealloc, TryReadOutput, DropJoinHandleSlow and Shutdown are the five
// primary harness operations; WakeByVal, WakeByRef and DropReference
// back the waker adapter (they are built the same way — a closure
// capturing the concrete *cell[T] — because waking a task ultimately
// needs the same harness logic the other five operations do).
type vtable struct {
	poll               func(h *Header)
	dealloc            func(h *Header)
	tryReadOutput      func(h *Header, waker WakerRef) (out any, ready bool)
	dropJoinHandleSlow func(h *Header)
	shutdown           func(h *Header)
	wakeByVal          func(h *Header)
	wakeByRef          func(h *Header)
	dropReference      func(h *Header)
}

// listLinks embeds a doubly linked list node used by a scheduler's
// owned-task set. Only the owning scheduler ever touches these
// fields; the list itself lives in list.go.
type listLinks struct {
	prev *Header
	next *Header
}

// Header is the fixed-identity, type-erased prefix of a task cell.
// Every pointer any other component holds into a task is a *Header.
type Header struct {
	state State
	vt    *vtable

	links listLinks

	// queueNext threads this task onto a scheduler's intrusive FIFO
	// run queue without any per-enqueue allocation.
	queueNext atomic.Pointer[Header]

	// stackNext threads this task onto the shutdown transfer stack
	// (an intrusive, CAS-push, single-consumer-drain LIFO) so a
	// notification racing a scheduler shutdown is never dropped.
	stackNext atomic.Pointer[Header]
}

// State exposes the task's atomic state word.
func (h *Header) State() *State { return &h.state }

// Poll drives the task's future once.
func (h *Header) Poll() { h.vt.poll(h) }

// Dealloc runs the cell's release hook. It is only ever invoked by
// harness code immediately after the reference count reaches zero.
func (h *Header) Dealloc() { h.vt.dealloc(h) }

// TryReadOutput is the join handle's poll operation.
func (h *Header) TryReadOutput(waker WakerRef) (any, bool) {
	return h.vt.tryReadOutput(h, waker)
}

// DropJoinHandleSlow is the join handle's slow drop path, taken when
// the fast CAS in DropJoinHandleFast could not apply.
func (h *Header) DropJoinHandleSlow() { h.vt.dropJoinHandleSlow(h) }

// ShutdownTask idempotently cancels the task.
func (h *Header) ShutdownTask() { h.vt.shutdown(h) }

func (h *Header) wakeByVal()     { h.vt.wakeByVal(h) }
func (h *Header) wakeByRef()     { h.vt.wakeByRef(h) }
func (h *Header) dropReference() { h.vt.dropReference(h) }

// stage is the tagged union of a task's in-flight state: a running
// future, a finished result waiting to be consumed, or an already
// consumed slot.
type stageKind uint8

const (
	stageRunning stageKind = iota
	stageFinished
	stageConsumed
)

// Result is what a task ultimately produces: either the future's
// output or a JoinError describing why it did not.
type Result[T any] struct {
	Value T
	Err   *JoinError
}

// core carries the two logically mutable fields whose access is
// serialised entirely by the state word rather than by a mutex: the
// scheduler binding and the stage. Every access is preceded by an
// acquiring state-word CAS and followed by a releasing one on the same
// *State — under the Go memory model (sync/atomic, Go >= 1.19) that is
// sufficient for a plain field to be race-free across goroutines. This
// is the one place in the package where that subtlety is load-bearing.
type core[T any] struct {
	scheduler Scheduler
	bound     bool

	kind   stageKind
	future Future[T]
	result Result[T]
}

// trailer holds the join-side waker, gated by the JOIN_WAKER bit.
type trailer struct {
	waker *Waker
}

// cell is the generic harness: header, core and trailer in
// declaration order, with T recovered purely through Go generics and
// closures rather than any unsafe pointer cast.
type cell[T any] struct {
	header  Header
	core    core[T]
	trailer trailer
}

// Spawn allocates a task cell around fut, wires its vtable, and
// returns the task's Header and a JoinHandle the caller uses to
// observe the result. The header is born scheduled: it carries one
// reference for the join handle and one for the run-queue entry, so
// the caller must push it onto sched's run queue exactly once.
func Spawn[T any](sched Scheduler, fut Future[T]) (*Header, *JoinHandle[T]) {
	c := &cell[T]{}
	c.core.scheduler = sched
	c.core.kind = stageRunning
	c.core.future = fut
	c.header.state.init()
	c.header.vt = newVtable(c)
	return &c.header, &JoinHandle[T]{h: &c.header}
}
