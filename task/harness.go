package task

// newVtable builds the operation table for one concrete task. Every
// entry is a closure over c, which is how this package erases the
// future's type without any unsafe pointer cast: the Header is the
// only thing ever passed around outside this file, and it carries
// just the closures needed to get back to c.
func newVtable[T any](c *cell[T]) *vtable {
	return &vtable{
		poll:               func(h *Header) { harnessPoll(c) },
		dealloc:            func(h *Header) { harnessDealloc(c) },
		tryReadOutput:      func(h *Header, w WakerRef) (any, bool) { return harnessTryReadOutput(c, w) },
		dropJoinHandleSlow: func(h *Header) { harnessDropJoinHandleSlow(c) },
		shutdown:           func(h *Header) { harnessShutdown(c) },
		wakeByVal:          func(h *Header) { harnessWakeByVal(c) },
		wakeByRef:          func(h *Header) { harnessWakeByRef(c) },
		dropReference:      func(h *Header) { harnessDropReference(c) },
	}
}

func bindScheduler[T any](c *cell[T]) {
	if c.core.bound {
		return
	}
	c.core.bound = true
	c.core.scheduler.Bind(&c.header)
}

func dropFutureOrOutput[T any](c *cell[T]) {
	switch c.core.kind {
	case stageRunning:
		var zero Future[T]
		c.core.future = zero
	case stageFinished:
		var zero Result[T]
		c.core.result = zero
	}
	c.core.kind = stageConsumed
}

// harnessPoll drives the future once. The caller is a run-queue
// consumer, so it owns exactly one queue reference; the poll consumes
// it one way or another — dropped on a failed running transition or a
// quiet idle, transferred back to the queue on a yield, or retired by
// the terminal transition on completion.
func harnessPoll[T any](c *cell[T]) {
	refInc := !c.core.bound
	snap, ok := c.header.state.TransitionToRunning(refInc)
	if !ok {
		harnessDropReference(c)
		return
	}

	bindScheduler(c)

	var (
		result   Result[T]
		ready    bool
		panicked bool
	)

	func() {
		polled := false
		defer func() {
			if !polled {
				dropFutureOrOutput(c)
			}
		}()
		defer func() {
			if r := recover(); r != nil {
				panicked = true
				result = Result[T]{Err: NewPanicError(r)}
			}
		}()

		if snap.IsCancelled() {
			result = Result[T]{Err: NewCancelledError()}
			ready = true
			return
		}

		out, done := c.core.future.Poll(&Context{waker: WakerRef{impl: headerWaker{h: &c.header}}})
		polled = true
		if done {
			result = Result[T]{Value: out}
			ready = true
		}
	}()

	switch {
	case panicked, ready:
		harnessComplete(c, result, snap.IsJoinInterested(), true)
	default:
		idle, ok := c.header.state.TransitionToIdle()
		if !ok {
			harnessCancelTask(c, true)
			return
		}
		if idle.IsNotified() {
			// A wake arrived during the poll: yield, handing this
			// poll's queue reference straight back to the scheduler.
			c.core.scheduler.Schedule(&c.header)
		} else {
			harnessDropReference(c)
		}
	}
}

func harnessDealloc[T any](c *cell[T]) {
	if w := c.trailer.waker; w != nil {
		c.trailer.waker = nil
		w.Release()
	}
	var zeroFuture Future[T]
	c.core.future = zeroFuture
	var zeroResult Result[T]
	c.core.result = zeroResult
	c.core.scheduler = nil
}

func harnessTryReadOutput[T any](c *cell[T], waker WakerRef) (any, bool) {
	snap := c.header.state.Load()

	if !snap.IsComplete() {
		if snap.HasJoinWaker() {
			if c.trailer.waker.WillWake(waker) {
				return nil, false
			}
			// Replacing a stale waker: clearing JOIN_WAKER only
			// succeeds while the task is incomplete, which is what
			// makes touching the trailer slot safe here — after
			// COMPLETE the completing side owns the slot.
			if _, ok := c.header.state.UnsetJoinWaker(); ok {
				old := c.trailer.waker
				_, installed := setJoinWaker(c, waker)
				if old != nil {
					old.Release()
				}
				if installed {
					return nil, false
				}
			}
		} else if _, ok := setJoinWaker(c, waker); ok {
			return nil, false
		}
	}

	out := c.core.result
	var zero Result[T]
	c.core.result = zero
	c.core.kind = stageConsumed
	return out, true
}

func setJoinWaker[T any](c *cell[T], waker WakerRef) (Snapshot, bool) {
	owned := waker.ToOwned()
	c.trailer.waker = &owned
	snap, ok := c.header.state.SetJoinWaker()
	if !ok {
		c.trailer.waker = nil
		owned.Release()
	}
	return snap, ok
}

func harnessDropJoinHandleSlow[T any](c *cell[T]) {
	if _, ok := c.header.state.UnsetJoinInterested(); !ok {
		dropFutureOrOutput(c)
	}
	harnessDropReference(c)
}

func harnessWakeByVal[T any](c *cell[T]) {
	harnessWakeByRef(c)
	harnessDropReference(c)
}

func harnessWakeByRef[T any](c *cell[T]) {
	if c.header.state.TransitionToNotified() {
		// The new queue entry carries its own reference; the waker
		// keeps the one it already holds.
		c.header.state.RefInc()
		c.core.scheduler.Schedule(&c.header)
	}
}

func harnessDropReference[T any](c *cell[T]) {
	if c.header.state.RefDec() {
		harnessDealloc(c)
	}
}

func harnessShutdown[T any](c *cell[T]) {
	if !c.header.state.TransitionToShutdown() {
		// Running, queued, complete, or already cancelled: the
		// in-flight poll (if any) observes CANCELLED and drives the
		// cancel completion itself.
		return
	}
	// The CAS claimed RUNNING on an idle task, so this caller owns the
	// future exclusively and no queue reference exists to retire.
	harnessCancelTask(c, false)
}

func harnessCancelTask[T any](c *cell[T], pollRef bool) {
	var result Result[T]
	func() {
		defer func() {
			if r := recover(); r != nil {
				result = Result[T]{Err: NewPanicError(r)}
			}
		}()
		dropFutureOrOutput(c)
		result = Result[T]{Err: NewCancelledError()}
	}()
	harnessComplete(c, result, true, pollRef)
}

// harnessComplete finishes the task: stores the output if a join
// handle still wants it, publishes COMPLETE, wakes the join side,
// releases the scheduler binding, and retires the finishing caller's
// references in one terminal transition. pollRef is true when the
// caller entered through a poll and therefore holds a queue reference
// of its own to retire.
func harnessComplete[T any](c *cell[T], result Result[T], joinInterested, pollRef bool) {
	if joinInterested {
		c.core.result = result
		c.core.kind = stageFinished
	}
	snap := c.header.state.TransitionToComplete()
	if !snap.IsJoinInterested() {
		dropFutureOrOutput(c)
	} else if snap.HasJoinWaker() {
		harnessWakeJoin(c)
	}

	var refs uint64
	if pollRef {
		refs++
	}
	if c.core.bound && c.core.scheduler.Release(&c.header) {
		refs++
	}

	term := c.header.state.TransitionToTerminal(!joinInterested, refs)
	if term.RefCount() == 0 {
		harnessDealloc(c)
	}
}

func harnessWakeJoin[T any](c *cell[T]) {
	if c.trailer.waker == nil {
		panic("task: join waker missing")
	}
	c.trailer.waker.WakeByRef()
}
