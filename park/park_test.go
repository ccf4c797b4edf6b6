package park_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeycumines/taskrt/park"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDriver is a minimal Driver: Turn blocks until either woken or the
// timeout elapses, counting how many times each method is called.
type fakeDriver struct {
	turns  atomic.Int32
	wakes  atomic.Int32
	wakeCh chan struct{}
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{wakeCh: make(chan struct{}, 8)}
}

func (d *fakeDriver) Turn(timeoutMs int) error {
	d.turns.Add(1)
	if timeoutMs < 0 {
		<-d.wakeCh
		return nil
	}
	select {
	case <-d.wakeCh:
	case <-time.After(time.Duration(timeoutMs) * time.Millisecond):
	}
	return nil
}

func (d *fakeDriver) Wake() error {
	d.wakes.Add(1)
	select {
	case d.wakeCh <- struct{}{}:
	default:
	}
	return nil
}

func TestUnparkBeforePark(t *testing.T) {
	p := park.New(nil, nil)
	p.Handle().Unpark()

	done := make(chan struct{})
	go func() {
		p.Park()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Park did not return for a notification latched before it was called")
	}
}

func TestParkThenUnpark(t *testing.T) {
	p := park.New(nil, nil)
	u := p.Handle()

	done := make(chan struct{})
	go func() {
		p.Park()
		close(done)
	}()

	// Give the parking goroutine a chance to actually block before
	// waking it, exercising the condvar-wait path rather than the
	// spin-then-latch path covered by TestUnparkBeforePark.
	time.Sleep(20 * time.Millisecond)
	u.Unpark()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Park did not return after Unpark")
	}
}

func TestUnparkIdempotentAndOneShot(t *testing.T) {
	p := park.New(nil, nil)
	u := p.Handle()

	u.Unpark()
	u.Unpark()
	u.Unpark()

	done := make(chan struct{})
	go func() {
		p.Park()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Park should return immediately after any number of Unparks")
	}

	// The notification was consumed by the first Park; a second Park
	// with no intervening Unpark must actually block until one arrives.
	done2 := make(chan struct{})
	go func() {
		p.Park()
		close(done2)
	}()
	select {
	case <-done2:
		t.Fatal("second Park returned without a matching Unpark")
	case <-time.After(50 * time.Millisecond):
	}
	u.Unpark()
	select {
	case <-done2:
	case <-time.After(time.Second):
		t.Fatal("second Park did not return after its Unpark")
	}
}

func TestParkTimeoutElapses(t *testing.T) {
	p := park.New(nil, nil)
	start := time.Now()
	p.ParkTimeout(20)
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestParkTimeoutWokenEarly(t *testing.T) {
	p := park.New(nil, nil)
	u := p.Handle()
	go func() {
		time.Sleep(10 * time.Millisecond)
		u.Unpark()
	}()
	start := time.Now()
	p.ParkTimeout(2000)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestParkDrivesSharedDriver(t *testing.T) {
	d := newFakeDriver()
	var lock sync.Mutex
	p := park.New(d, &lock)
	u := p.Handle()

	done := make(chan struct{})
	go func() {
		p.Park()
		close(done)
	}()

	require.Eventually(t, func() bool { return d.turns.Load() > 0 }, time.Second, time.Millisecond)
	u.Unpark()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Park did not return once the drive race winner was woken")
	}
	assert.Equal(t, int32(1), d.wakes.Load())
}

// errDriver always fails its poll, to exercise the error path out of
// a driver-backed park.
type errDriver struct{ err error }

func (d *errDriver) Turn(int) error { return d.err }
func (d *errDriver) Wake() error    { return nil }

func TestParkSurfacesDriverError(t *testing.T) {
	sentinel := errors.New("poll failed")
	var lock sync.Mutex
	p := park.New(&errDriver{err: sentinel}, &lock)

	err := p.ParkTimeout(0)
	require.ErrorIs(t, err, sentinel)

	// The park still completed; the parker must be reusable.
	p.Handle().Unpark()
	require.NoError(t, func() error {
		done := make(chan error, 1)
		go func() { done <- p.Park() }()
		select {
		case err := <-done:
			return err
		case <-time.After(time.Second):
			t.Fatal("Park did not consume the latched notification")
			return nil
		}
	}())
}

func TestParkFallsBackToCondvarWhenDriveLockHeld(t *testing.T) {
	d := newFakeDriver()
	var lock sync.Mutex
	lock.Lock()
	defer lock.Unlock()

	p := park.New(d, &lock)
	u := p.Handle()

	done := make(chan struct{})
	go func() {
		p.Park()
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	u.Unpark()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Park did not fall back to the condvar when the drive lock was unavailable")
	}
	assert.Equal(t, int32(0), d.turns.Load())
}
