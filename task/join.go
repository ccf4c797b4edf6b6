package task

// JoinHandle is the single-owner future that observes a spawned
// task's output. It holds exactly one reference on the task; Close
// must be called exactly once, the same way callers are expected to
// call Close on an io.Closer.
type JoinHandle[T any] struct {
	h *Header
}

// Poll reports the task's output once it is ready. cx's waker is
// registered to be woken on the next completion if the task is still
// running. Polling again after a ready result is a programming error,
// matching the contract of the harness this wraps.
func (j *JoinHandle[T]) Poll(cx *Context) (Result[T], bool) {
	out, ready := j.h.TryReadOutput(cx.Waker())
	if !ready {
		var zero Result[T]
		return zero, false
	}
	return out.(Result[T]), true
}

// Close releases this handle's interest in the task's output. If the
// task has already completed and stored a value nobody will ever
// read, Close discards it.
func (j *JoinHandle[T]) Close() {
	if j.h.State().DropJoinHandleFast() {
		j.h.dropReference()
	} else {
		j.h.DropJoinHandleSlow()
	}
}
