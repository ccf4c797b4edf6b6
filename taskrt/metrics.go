package taskrt

import "sync/atomic"

// Metrics tracks low-overhead, lock-free runtime counters for a
// Scheduler. There is no per-task latency histogram: tasks are
// arbitrary futures, not discrete timed jobs, so only the counters
// that make sense at the run-queue level are kept — work scheduled,
// polls executed, and how often a worker found the queue empty and
// had to park.
type Metrics struct {
	scheduled atomic.Uint64
	polled    atomic.Uint64
	parked    atomic.Uint64
}

// Snapshot is a point-in-time copy of a Metrics, safe to read after
// the call returns without racing further updates.
type Snapshot struct {
	Scheduled uint64
	Polled    uint64
	Parked    uint64
}

// Snapshot copies the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Scheduled: m.scheduled.Load(),
		Polled:    m.polled.Load(),
		Parked:    m.parked.Load(),
	}
}

// Metrics returns the scheduler's counters. The pointer is stable for
// the scheduler's lifetime and may be read concurrently with ongoing
// scheduling.
func (s *Scheduler) Metrics() *Metrics { return &s.metrics }
