package park

import (
	"sync"
	"time"
)

// Driver is the subset of a reactor a Parker can fall back to driving
// while parked: an OS poll with a millisecond timeout (negative blocks
// indefinitely, zero ticks without blocking) and a way to interrupt a
// blocked poll from any goroutine. package reactor's *Reactor
// satisfies this without either package importing the other.
type Driver interface {
	Turn(timeoutMs int) error
	Wake() error
}

// spinLimit bounds how many times Park spins consuming a pending
// notification before falling back to locking or waiting.
const spinLimit = 32

// Parker is one goroutine's parking endpoint. It is not safe for
// concurrent Park calls from multiple goroutines (a goroutine parks on
// its own Parker), but its Unparker may be used concurrently from any
// number of goroutines.
type Parker struct {
	state state

	mu   sync.Mutex
	cond *sync.Cond

	driver     Driver
	driverLock *sync.Mutex

	// timedOut is set by a timer goroutine under mu to break a
	// condvar wait early for ParkTimeout; sync.Cond has no native
	// timed wait, so a timer paired with a Broadcast stands in for
	// one.
	timedOut bool
}

// New builds a Parker. driver and driverLock may both be nil, in
// which case Park always falls back to the condition variable — this
// is how taskrt.BlockOn's executor loop uses it, since the root future
// it drives is not itself backed by a shared reactor. driverLock, when
// non-nil, is shared by every Parker drawing on the same driver: it is
// only ever touched via TryLock, so exactly one parked goroutine drives
// the reactor at a time and the rest fall back to the condvar.
func New(driver Driver, driverLock *sync.Mutex) *Parker {
	p := &Parker{driver: driver, driverLock: driverLock}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Handle returns an Unparker wired to this Parker, safe to hand to any
// number of other goroutines.
func (p *Parker) Handle() Unparker { return Unparker{p: p} }

// Park blocks the calling goroutine until Unpark is called, or
// (when a driver is configured and this Parker wins the race to drive
// it) until the shared reactor observes readiness. A non-nil error is
// an OS poll failure from the driver, surfaced so the caller can log
// or back off; the park itself has still completed.
func (p *Parker) Park() error { return p.park(-1) }

// ParkTimeout is like Park but returns after at most timeoutMs even
// without an Unpark. A zero timeout still ticks the reactor once (if
// this Parker wins the drive race) without blocking.
func (p *Parker) ParkTimeout(timeoutMs int) error { return p.park(timeoutMs) }

func (p *Parker) park(timeoutMs int) error {
	for i := 0; i < spinLimit; i++ {
		if p.state.load() == notified {
			if p.state.compareAndSwap(notified, empty) {
				return nil
			}
		}
	}

	if p.driver != nil && p.driverLock.TryLock() {
		if !p.state.compareAndSwap(empty, parkedOnDriver) {
			// A notification landed between the spin above and here;
			// we still hold the drive lock, so release it and treat
			// this as an already-satisfied park.
			p.driverLock.Unlock()
			p.state.reset()
			return nil
		}
		err := p.driver.Turn(timeoutMs)
		p.driverLock.Unlock()
		if got := p.state.load(); got != parkedOnDriver && got != notified {
			panic("park: protocol violation: unexpected state after driving reactor")
		}
		p.state.reset()
		return err
	}

	p.mu.Lock()
	if !p.state.compareAndSwap(empty, parkedOnCondvar) {
		p.mu.Unlock()
		// Already notified (or, degenerately, a concurrent park — the
		// type's contract forbids that) — consume it and return.
		p.state.compareAndSwap(notified, empty)
		return nil
	}

	p.timedOut = false
	var timer *time.Timer
	if timeoutMs >= 0 {
		timer = time.AfterFunc(time.Duration(timeoutMs)*time.Millisecond, func() {
			p.mu.Lock()
			p.timedOut = true
			p.mu.Unlock()
			p.cond.Broadcast()
		})
	}
	for p.state.load() != notified && !p.timedOut {
		p.cond.Wait()
	}
	p.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}
	p.state.reset()
	return nil
}

// Unparker wakes a specific Parker. It is safe for concurrent use from
// any goroutine, including the goroutine that owns the Parker.
type Unparker struct {
	p *Parker
}

// Unpark wakes the parker. If it is not currently parked, the
// notification is latched so the next Park call returns immediately.
func (u Unparker) Unpark() {
	switch u.p.state.swapNotified() {
	case empty, notified:
		// Nothing parked; the latched NOTIFIED will be observed by the
		// next Park call.
	case parkedOnCondvar:
		// Lock/unlock around the swap's effect is already visible to
		// the waiter via the atomic state word; acquiring mu here
		// only ensures we are not broadcasting before Wait has
		// actually been entered.
		u.p.mu.Lock()
		u.p.mu.Unlock()
		u.p.cond.Broadcast()
	case parkedOnDriver:
		if u.p.driver != nil {
			_ = u.p.driver.Wake()
		}
	}
}
