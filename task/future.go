package task

// Future is a lazy, resumable computation. Poll is called by the
// harness with a waker rooted at the task's own header; returning
// ready=false means the future has arranged for that waker (or a
// clone/borrow of it) to eventually be woken, and must not be polled
// again until then.
type Future[T any] interface {
	Poll(cx *Context) (out T, ready bool)
}

// Context is handed to a future's Poll method. It carries a borrowed
// waker valid only for the duration of the call; futures that need to
// retain it past the call must clone it via Waker().ToOwned().
type Context struct {
	waker WakerRef
}

// Waker returns the borrowed waker for this poll.
func (c *Context) Waker() WakerRef { return c.waker }

// NewContext builds a Context around a borrowed waker. Only roots
// that are not tasks themselves need this directly (see
// taskrt.BlockOn); the harness builds one internally for every task
// poll.
func NewContext(w WakerRef) *Context { return &Context{waker: w} }

// FuncFuture adapts a plain poll function into a Future, for simple
// cases (tests, demos) that don't want to declare a named type.
type FuncFuture[T any] func(cx *Context) (T, bool)

func (f FuncFuture[T]) Poll(cx *Context) (T, bool) { return f(cx) }
