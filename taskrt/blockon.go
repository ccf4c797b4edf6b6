package taskrt

import (
	"github.com/joeycumines/taskrt/park"
	"github.com/joeycumines/taskrt/task"
)

// BlockOn drives a single root future to completion on the calling
// goroutine. It is independent of Scheduler: the waker it hands to
// fut's Poll talks directly to a local parker rather than to any
// task's state word, since fut need not be a task at all.
//
// Go has no stable goroutine-local storage to cache the (parker,
// waker) pair across calls, so BlockOn allocates a fresh parker per
// call.
func BlockOn[T any](fut task.Future[T]) T {
	p := park.New(nil, nil)
	unparker := p.Handle()
	waker := task.NewFuncWakerRef(func() { unparker.Unpark() })
	cx := task.NewContext(waker)

	for {
		out, ready := fut.Poll(cx)
		if ready {
			return out
		}
		// No driver is configured, so Park cannot fail.
		_ = p.Park()
	}
}
