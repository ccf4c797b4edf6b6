package task

import "reflect"

// sameFunc compares two func values by entry pointer. A false
// negative (distinct closures that happen to wake the same thing)
// only costs a redundant waker clone, never a correctness bug, so a
// reflect-based comparison is an acceptable, if imprecise, check here.
func sameFunc(a, b func()) bool {
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}

// wakerImpl is the operation set behind every waker in the runtime.
// Task-rooted wakers dispatch through a Header's vtable; the
// executor's block-on waker, which wakes a parker rather than a task,
// implements it directly over a plain callback. Keeping the interface
// narrow lets both live behind the same Waker / WakerRef types.
type wakerImpl interface {
	clone() wakerImpl
	wake()
	wakeByRef()
	release()
	sameAs(other wakerImpl) bool
}

// headerWaker is the task-rooted implementation: cloning bumps the
// task's reference count, waking dispatches through the vtable.
type headerWaker struct{ h *Header }

func (w headerWaker) clone() wakerImpl {
	w.h.State().RefInc()
	return w
}
func (w headerWaker) wake()       { w.h.wakeByVal() }
func (w headerWaker) wakeByRef()  { w.h.wakeByRef() }
func (w headerWaker) release()    { w.h.dropReference() }
func (w headerWaker) sameAs(other wakerImpl) bool {
	o, ok := other.(headerWaker)
	return ok && o.h == w.h
}

// funcWaker adapts a plain callback into a waker, with no reference
// counting of its own — used for roots that aren't tasks, such as the
// block-on executor loop's waker over a parker's unpark.
type funcWaker struct{ fn func() }

func (w funcWaker) clone() wakerImpl                { return w }
func (w funcWaker) wake()                           { w.fn() }
func (w funcWaker) wakeByRef()                      { w.fn() }
func (w funcWaker) release()                        {}
func (w funcWaker) sameAs(other wakerImpl) bool {
	o, ok := other.(funcWaker)
	return ok && sameFunc(o.fn, w.fn)
}

// Waker is an owned handle: for a task-rooted waker it holds one
// reference on the task it was created from. Its sole effect is to
// cause one more poll of whatever it was created from. The zero value
// is an inert no-op waker.
type Waker struct {
	impl wakerImpl
}

// NewFuncWaker builds an owned Waker around a plain callback — for
// roots that are not task cells (see BlockOn).
func NewFuncWaker(wake func()) Waker { return Waker{impl: funcWaker{fn: wake}} }

// Clone returns a new Waker equivalent to this one; for a task-rooted
// waker this bumps the reference count. The original remains valid.
func (w Waker) Clone() Waker {
	if w.impl == nil {
		return Waker{}
	}
	return Waker{impl: w.impl.clone()}
}

// Wake consumes the waker: for a task-rooted waker this schedules one
// more poll and releases this waker's reference in the same
// operation. The waker must not be used again afterwards.
func (w Waker) Wake() {
	if w.impl != nil {
		w.impl.wake()
	}
}

// WakeByRef has the same effect as Wake but does not consume a
// reference; the waker remains usable.
func (w Waker) WakeByRef() {
	if w.impl != nil {
		w.impl.wakeByRef()
	}
}

// Release drops this waker's reference (if any) without waking
// whatever it points to. Used when a registration slot is about to be
// overwritten by a fresh waker for the same direction.
func (w Waker) Release() {
	if w.impl != nil {
		w.impl.release()
	}
}

// WakerRef is a borrowed waker: valid only for as long as the caller
// that handed it out guarantees the underlying reference stays alive
// (for the duration of one Poll call, by convention). It does not
// hold its own reference, so copying one is free, but retaining it
// past its borrow window is a programming error — call ToOwned first.
type WakerRef struct {
	impl wakerImpl
}

// NewFuncWakerRef builds a borrowed WakerRef around a plain callback.
func NewFuncWakerRef(wake func()) WakerRef { return WakerRef{impl: funcWaker{fn: wake}} }

// WakeByRef schedules one more poll of whatever this ref points to.
func (w WakerRef) WakeByRef() {
	if w.impl != nil {
		w.impl.wakeByRef()
	}
}

// WillWake reports whether waking w would wake the same target as
// other.
func (w WakerRef) WillWake(other WakerRef) bool {
	if w.impl == nil || other.impl == nil {
		return false
	}
	return w.impl.sameAs(other.impl)
}

// ToOwned produces an owned Waker, bumping the reference count (for a
// task-rooted waker) so it remains valid beyond the current call.
func (w WakerRef) ToOwned() Waker {
	if w.impl == nil {
		return Waker{}
	}
	return Waker{impl: w.impl.clone()}
}

// WillWake on a *Waker receiver lets trailer code compare a possibly
// nil stored waker against a freshly borrowed one without a nil check
// at every call site.
func (w *Waker) WillWake(other WakerRef) bool {
	if w == nil || w.impl == nil || other.impl == nil {
		return false
	}
	return w.impl.sameAs(other.impl)
}
