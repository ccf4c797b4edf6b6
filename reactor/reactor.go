// Package reactor translates OS-level I/O readiness into task wake-ups.
// It wraps an edge-triggered poller (epoll on Linux, kqueue on Darwin,
// selected by Go build tags) behind a registration table keyed by an
// opaque [Token] rather than a direct file-descriptor index, since
// registrants are not required to use small descriptors.
package reactor

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Register and Turn once the reactor has
// been closed.
var ErrClosed = errors.New("reactor: closed")

// Token is an opaque key chosen by the registrant. SelfToken is
// reserved for the reactor's own wake-up source and must never be
// passed to Register.
type Token uint64

// SelfToken is reserved and never handed to registrants: Register
// panics if asked to use it. The self-pipe itself is not stored in
// the token table; Turn recognises its events by descriptor.
const SelfToken Token = ^Token(0)

// Reactor owns one OS poller and the registration table keyed by
// Token. The registration map is guarded by a RWMutex: Register and
// Deregister are the writers, readiness dispatch inside Turn takes a
// read lock, since merging bits into a Registration is atomic on the
// registration itself.
type Reactor struct {
	poller poller
	wake   wakeSource

	mu     sync.RWMutex
	regs   map[Token]*Registration
	byFD   map[int]*Registration

	nSources atomic.Int64
	closed   atomic.Bool
}

// New creates a Reactor bound to a freshly created OS poller and
// self-pipe wake-up source.
func New() (*Reactor, error) {
	p, err := newPoller()
	if err != nil {
		return nil, err
	}
	w, err := newWakeSource()
	if err != nil {
		_ = p.close()
		return nil, err
	}
	r := &Reactor{
		poller: p,
		wake:   w,
		regs:   make(map[Token]*Registration),
		byFD:   make(map[int]*Registration),
	}
	if err := p.registerRaw(w.readFD(), uint32(Readable)); err != nil {
		_ = w.close()
		_ = p.close()
		return nil, err
	}
	return r, nil
}

// Register adds a new source, interested in both directions
// (edge-triggered). Interest narrowing per direction happens purely
// through PollReady/Register on the returned Registration — the OS
// registration itself always asks for both read and write readiness.
func (r *Reactor) Register(tok Token, fd int) (*Registration, error) {
	if tok == SelfToken {
		panic("reactor: Register called with the reserved self token")
	}
	if r.closed.Load() {
		return nil, ErrClosed
	}

	reg := &Registration{fd: fd}

	r.mu.Lock()
	if _, exists := r.regs[tok]; exists {
		r.mu.Unlock()
		return nil, errors.New("reactor: token already registered")
	}
	r.regs[tok] = reg
	r.byFD[fd] = reg
	r.mu.Unlock()

	if err := r.poller.registerRaw(fd, uint32(Readable|Writable)); err != nil {
		r.mu.Lock()
		delete(r.regs, tok)
		delete(r.byFD, fd)
		r.mu.Unlock()
		return nil, err
	}
	r.nSources.Add(1)
	return reg, nil
}

// Deregister removes a source. Any waker still stored on it is woken
// so its task gets polled again; the registration's readiness bits
// are left as they were.
func (r *Reactor) Deregister(tok Token) error {
	r.mu.Lock()
	reg, ok := r.regs[tok]
	if ok {
		delete(r.regs, tok)
		delete(r.byFD, reg.fd)
	}
	r.mu.Unlock()
	if !ok {
		return nil
	}
	r.nSources.Add(-1)
	reg.reader.wake()
	reg.writer.wake()
	return r.poller.deregisterRaw(reg.fd)
}

// NumSources reports the number of currently registered sources,
// excluding the reactor's own self-pipe.
func (r *Reactor) NumSources() int64 { return r.nSources.Load() }

// Turn polls the OS for up to timeoutMs milliseconds (a negative
// value blocks indefinitely, zero returns immediately) and dispatches
// any events observed to the matching registration's wakers.
func (r *Reactor) Turn(timeoutMs int) error {
	if r.closed.Load() {
		return ErrClosed
	}
	events, err := r.poller.poll(timeoutMs)
	if err != nil {
		return err
	}
	for _, ev := range events {
		if ev.fd == r.wake.readFD() {
			_ = r.wake.drain()
			continue
		}
		r.dispatch(ev.fd, ev.bits)
	}
	return nil
}

func (r *Reactor) dispatch(fd int, bits uint32) {
	r.mu.RLock()
	target := r.byFD[fd]
	r.mu.RUnlock()
	if target == nil {
		return
	}
	target.merge(bits)
}

// Wake causes a blocked Turn to return promptly, from any goroutine.
func (r *Reactor) Wake() error { return r.wake.notify() }

// Close releases the poller and self-pipe. Registrations are not
// individually notified; callers are expected to have already
// deregistered or to be shutting down entirely.
func (r *Reactor) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	err1 := r.poller.close()
	err2 := r.wake.close()
	if err1 != nil {
		return err1
	}
	return err2
}
