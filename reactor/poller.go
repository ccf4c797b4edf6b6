package reactor

// rawEvent is one OS readiness notification, already translated into
// the platform-independent Interest bits.
type rawEvent struct {
	fd   int
	bits uint32
}

// poller is the OS-specific half of the reactor: epoll on Linux,
// kqueue on Darwin (see poller_linux.go / poller_darwin.go). Both
// register every source for both directions and rely on Registration
// to track per-direction interest, since narrowing the OS-level
// interest set on every PollReady would add a syscall per call for no
// benefit under edge-triggered semantics.
type poller interface {
	registerRaw(fd int, interest uint32) error
	deregisterRaw(fd int) error
	poll(timeoutMs int) ([]rawEvent, error)
	close() error
}

// wakeSource is the self-pipe (or eventfd) used to interrupt a
// blocked poll call from any goroutine.
type wakeSource interface {
	readFD() int
	notify() error
	drain() error
	close() error
}
