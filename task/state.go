// Package task implements the heap-allocated, reference-counted task
// cell at the core of the runtime: a single atomic state word drives
// the task's lifecycle, and a type-erased operation table lets the
// scheduler, the waker adapter, and the join handle all operate on a
// task without knowing its concrete future type.
package task

import "sync/atomic"

// bit layout of the state word. Positions are an implementation
// choice; only the meanings are load-bearing.
const (
	bitRunning uint64 = 1 << iota
	bitComplete
	bitNotified
	bitCancelled
	bitJoinInterest
	bitJoinWaker

	refCountShift = 6
	refCountOne   = 1 << refCountShift
)

// Snapshot is an immutable view of a state word observed at one point
// in time. Harness code decides its next move purely from a Snapshot,
// never from any field outside the state word.
type Snapshot uint64

func (s Snapshot) IsRunning() bool        { return uint64(s)&bitRunning != 0 }
func (s Snapshot) IsComplete() bool       { return uint64(s)&bitComplete != 0 }
func (s Snapshot) IsNotified() bool       { return uint64(s)&bitNotified != 0 }
func (s Snapshot) IsCancelled() bool      { return uint64(s)&bitCancelled != 0 }
func (s Snapshot) IsJoinInterested() bool { return uint64(s)&bitJoinInterest != 0 }
func (s Snapshot) HasJoinWaker() bool     { return uint64(s)&bitJoinWaker != 0 }
func (s Snapshot) RefCount() uint64       { return uint64(s) >> refCountShift }

// State is a lock-free task state machine with cache-line padding to
// avoid false sharing with neighbouring header fields.
type State struct { // betteralign:ignore
	_ [64]byte
	v atomic.Uint64
	_ [56]byte
}

// init seeds a freshly allocated state word: two references (one held
// by the join handle, one by the initial run-queue entry the spawner
// is about to push), JOIN_INTEREST set (Spawn always returns a join
// handle), and NOTIFIED set (the task is born scheduled).
func (s *State) init() {
	s.v.Store(2*refCountOne | bitJoinInterest | bitNotified)
}

func (s *State) Load() Snapshot { return Snapshot(s.v.Load()) }

// TransitionToRunning attempts to move the task into the running
// state, clearing NOTIFIED. If refInc is true, a reference is
// atomically added at the same time (used the first time a task is
// polled, to account for the scheduler binding established by that
// poll). Returns ok=false if the task is already running or already
// complete; the caller then owns nothing but the queue entry's
// reference, which it must drop.
func (s *State) TransitionToRunning(refInc bool) (Snapshot, bool) {
	for {
		cur := s.v.Load()
		snap := Snapshot(cur)
		if snap.IsRunning() || snap.IsComplete() {
			return snap, false
		}
		next := cur | bitRunning
		next &^= bitNotified
		if refInc {
			next += refCountOne
		}
		if s.v.CompareAndSwap(cur, next) {
			return snap, true
		}
	}
}

// TransitionToIdle clears RUNNING after a pending poll result. ok is
// false if the task was cancelled while running, in which case RUNNING
// stays set and the caller must drive cancellation instead of going
// idle. On success the returned snapshot's NOTIFIED bit tells the
// caller whether a wake arrived during the poll: if set, the caller
// must reschedule (yield) rather than drop its queue reference.
func (s *State) TransitionToIdle() (Snapshot, bool) {
	for {
		cur := s.v.Load()
		snap := Snapshot(cur)
		if snap.IsCancelled() {
			return snap, false
		}
		next := cur &^ bitRunning
		if s.v.CompareAndSwap(cur, next) {
			return Snapshot(next), true
		}
	}
}

// TransitionToNotified latches a wake-up. The NOTIFIED bit is set even
// while the task is running, so the wake is consumed by the poll's own
// idle transition rather than lost. It returns true exactly when the
// caller is responsible for scheduling the task: the task was idle and
// not already notified. A false return with the bit latched means the
// in-flight poll will reschedule; a false return on a complete or
// already-notified task means the wake collapses into one already in
// flight.
func (s *State) TransitionToNotified() bool {
	for {
		cur := s.v.Load()
		snap := Snapshot(cur)
		if snap.IsComplete() || snap.IsNotified() {
			return false
		}
		next := cur | bitNotified
		if s.v.CompareAndSwap(cur, next) {
			return !snap.IsRunning()
		}
	}
}

// TransitionToComplete sets COMPLETE and returns the resulting
// snapshot so the caller can decide whether to drop the output or wake
// a join waker.
func (s *State) TransitionToComplete() Snapshot {
	for {
		cur := s.v.Load()
		next := cur | bitComplete
		if s.v.CompareAndSwap(cur, next) {
			return Snapshot(next)
		}
	}
}

// TransitionToShutdown sets CANCELLED. It returns true only when the
// caller is the one that must drive cancellation: the task was idle,
// unnotified, and not complete. In that case RUNNING is claimed in the
// same CAS, so no concurrent wake can schedule a poll that would race
// the caller's teardown of the future. If the task is running or
// queued, CANCELLED is merely latched and the in-flight poll drives
// cancellation when it observes the bit; if already complete or
// already cancelled, nothing changes.
func (s *State) TransitionToShutdown() bool {
	for {
		cur := s.v.Load()
		snap := Snapshot(cur)
		if snap.IsComplete() || snap.IsCancelled() {
			return false
		}
		if snap.IsRunning() || snap.IsNotified() {
			if s.v.CompareAndSwap(cur, cur|bitCancelled) {
				return false
			}
			continue
		}
		if s.v.CompareAndSwap(cur, cur|bitCancelled|bitRunning) {
			return true
		}
	}
}

// TransitionToTerminal performs the bookkeeping that runs once, at the
// end of a task's life: optionally clearing join interest (when the
// output was dropped rather than delivered) and decrementing the
// reference count by refs units in one atomic step — typically the
// completing poll's queue reference plus the scheduler binding
// released alongside it. Returns the resulting snapshot.
func (s *State) TransitionToTerminal(dropJoinInterest bool, refs uint64) Snapshot {
	for {
		cur := s.v.Load()
		next := cur
		if dropJoinInterest {
			next &^= bitJoinInterest | bitJoinWaker
		}
		next -= refs * refCountOne
		if s.v.CompareAndSwap(cur, next) {
			return Snapshot(next)
		}
	}
}

// SetJoinWaker sets JOIN_WAKER, failing if the task is already
// complete (the caller must then read the output directly) or if a
// waker is already installed (the caller raced another registration
// and must go through UnsetJoinWaker first).
func (s *State) SetJoinWaker() (Snapshot, bool) {
	for {
		cur := s.v.Load()
		snap := Snapshot(cur)
		if snap.IsComplete() || snap.HasJoinWaker() {
			return snap, false
		}
		next := cur | bitJoinWaker
		if s.v.CompareAndSwap(cur, next) {
			return Snapshot(next), true
		}
	}
}

// UnsetJoinWaker clears JOIN_WAKER, failing if the task is already
// complete. The failure matters: once COMPLETE is set the completing
// side owns the trailer slot (it may be reading the waker to signal
// it), so the join side must not touch the slot and should read the
// output instead.
func (s *State) UnsetJoinWaker() (Snapshot, bool) {
	for {
		cur := s.v.Load()
		snap := Snapshot(cur)
		if snap.IsComplete() {
			return snap, false
		}
		next := cur &^ bitJoinWaker
		if s.v.CompareAndSwap(cur, next) {
			return Snapshot(next), true
		}
	}
}

// DropJoinHandleFast clears JOIN_INTEREST with a single CAS, succeeding
// only when the task is neither complete nor has a waker installed. A
// false result means the caller must take the slow path.
func (s *State) DropJoinHandleFast() bool {
	for {
		cur := s.v.Load()
		snap := Snapshot(cur)
		if snap.IsComplete() || snap.HasJoinWaker() {
			return false
		}
		next := cur &^ bitJoinInterest
		if s.v.CompareAndSwap(cur, next) {
			return true
		}
	}
}

// UnsetJoinInterested clears JOIN_INTEREST and JOIN_WAKER, failing
// (returning ok=false) if the task is already complete — the slow
// join-handle drop path uses the failure to decide it must drop the
// stored output itself.
func (s *State) UnsetJoinInterested() (Snapshot, bool) {
	for {
		cur := s.v.Load()
		snap := Snapshot(cur)
		if snap.IsComplete() {
			return snap, false
		}
		next := cur &^ (bitJoinInterest | bitJoinWaker)
		if s.v.CompareAndSwap(cur, next) {
			return Snapshot(next), true
		}
	}
}

// RefInc adds one reference.
func (s *State) RefInc() { s.v.Add(refCountOne) }

// RefDec removes one reference and reports whether it was the last
// one (the caller must then run the cell's dealloc hook).
func (s *State) RefDec() bool {
	return s.v.Add(^uint64(refCountOne-1))>>refCountShift == 0
}
