// Package park implements the block-with-fallback protocol (component
// H) that lets a goroutine sleep without busy-waiting, either on a
// condition variable or inside a shared I/O reactor's OS poll,
// whichever it wins the race for.
package park

import "sync/atomic"

// word is the four-valued park state: empty, notified, parked on the
// condition variable, or parked inside the shared driver's OS poll.
type word uint32

const (
	empty word = iota
	notified
	parkedOnCondvar
	parkedOnDriver
)

// state wraps the atomic park word. Every transition here is a single
// CAS or swap; nothing outside the word is consulted to decide the
// next move.
type state struct {
	v atomic.Uint32
}

func (s *state) load() word { return word(s.v.Load()) }

func (s *state) compareAndSwap(old, new word) bool {
	return s.v.CompareAndSwap(uint32(old), uint32(new))
}

// swapNotified unconditionally marks the state notified and returns
// whatever it previously was.
func (s *state) swapNotified() word {
	return word(s.v.Swap(uint32(notified)))
}

// reset unconditionally returns the state to empty. Any state other
// than the one the caller just parked from indicates a protocol
// violation in the caller.
func (s *state) reset() {
	s.v.Store(uint32(empty))
}
