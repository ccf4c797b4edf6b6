// Package taskrt wires package task, package reactor and package park
// into a runnable whole: a FIFO scheduler with a fixed worker pool,
// and the BlockOn executor loop that drives a single root future on
// the calling goroutine.
package taskrt

import (
	"sync"
	"time"

	"github.com/joeycumines/taskrt/park"
	"github.com/joeycumines/taskrt/reactor"
	"github.com/joeycumines/taskrt/task"
)

// Scheduler is a global FIFO run queue backed by a fixed pool of
// worker goroutines, each of which pops a runnable task, polls it via
// the task package's vtable, and — finding the queue empty — parks,
// falling back to driving a shared reactor when it wins the race to
// do so. It satisfies task.Scheduler.
type Scheduler struct {
	logger Logger

	mu    sync.Mutex
	owned task.OwnedList
	queue task.RunQueue

	shuttingDown bool
	transfer     task.TransferStack

	reactor    *reactor.Reactor
	ownReactor bool
	driverLock sync.Mutex

	parkers []*park.Parker
	wg      sync.WaitGroup

	metrics Metrics
}

// NewScheduler builds and starts a Scheduler with a fixed worker pool.
// Unless WithReactor(nil) is passed, it creates its own *reactor.Reactor
// for workers to fall back to driving while idle; Reactor exposes it
// so callers (cmd/echo, tests) can register I/O sources against it.
func NewScheduler(opts ...Option) (*Scheduler, error) {
	cfg := resolveOptions(opts)

	s := &Scheduler{logger: cfg.logger}

	switch {
	case cfg.disableReactor:
		// No reactor fallback; workers park purely on the condvar.
	case cfg.reactor != nil:
		s.reactor = cfg.reactor
	default:
		r, err := reactor.New()
		if err != nil {
			return nil, err
		}
		s.reactor = r
		s.ownReactor = true
	}

	var driver park.Driver
	if s.reactor != nil {
		driver = s.reactor
	}

	s.parkers = make([]*park.Parker, cfg.workers)
	for i := range s.parkers {
		s.parkers[i] = park.New(driver, &s.driverLock)
	}

	s.wg.Add(len(s.parkers))
	for i, p := range s.parkers {
		go s.workerLoop(i, p)
	}
	return s, nil
}

// Reactor returns the reactor this scheduler's workers fall back to
// driving, or nil if WithReactor(nil) was passed to NewScheduler.
func (s *Scheduler) Reactor() *reactor.Reactor { return s.reactor }

// Bind implements task.Scheduler: the first poll of a task adds it to
// the owned set.
func (s *Scheduler) Bind(h *task.Header) {
	s.mu.Lock()
	s.owned.PushBack(h)
	s.mu.Unlock()
}

// Schedule implements task.Scheduler: push h onto the run queue and
// wake a worker. If the scheduler is shutting down, h is pushed onto
// the shutdown transfer stack instead, so Shutdown's drain (rather
// than a worker that may have already exited) is the one to poll it.
func (s *Scheduler) Schedule(h *task.Header) {
	s.mu.Lock()
	if s.shuttingDown {
		s.mu.Unlock()
		s.transfer.Push(h)
		return
	}
	s.queue.PushBack(h)
	s.mu.Unlock()
	s.metrics.scheduled.Add(1)
	s.logger.Debug("scheduler: task queued")
	s.wakeAll()
}

// Release implements task.Scheduler: remove h from the owned set.
func (s *Scheduler) Release(h *task.Header) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owned.Remove(h)
}

// wakeAll nudges every worker. Any idle worker can service a new item,
// so every parker is nudged; an Unpark on a worker that is not
// currently parked just latches a notification its next Park consumes
// immediately, which costs nothing but an atomic swap.
func (s *Scheduler) wakeAll() {
	for _, p := range s.parkers {
		p.Handle().Unpark()
	}
}

func (s *Scheduler) workerLoop(id int, p *park.Parker) {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		h, ok := s.queue.PopFront()
		if !ok {
			if s.shuttingDown {
				s.mu.Unlock()
				return
			}
			s.mu.Unlock()
			s.metrics.parked.Add(1)
			if err := p.Park(); err != nil {
				// An OS poll failure is survivable; back off briefly
				// so a persistent error cannot spin this worker hot.
				s.logger.Error("scheduler: reactor turn failed", F("worker", id), F("err", err))
				time.Sleep(time.Millisecond)
			}
			continue
		}
		s.mu.Unlock()

		s.logger.Debug("scheduler: polling task", F("worker", id))
		h.Poll()
		s.metrics.polled.Add(1)
	}
}

// Shutdown idempotently cancels every task this scheduler still owns
// and waits for its worker pool to exit. Safe to call more than once;
// only the first call does anything.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	if s.shuttingDown {
		s.mu.Unlock()
		return
	}
	s.shuttingDown = true
	ownedLen := s.owned.Len()
	s.mu.Unlock()

	s.logger.Info("scheduler: shutdown starting", F("owned", ownedLen))
	s.wakeAll()

	// Cancel every task the scheduler still owns. For an idle task
	// ShutdownTask runs the harness's cancel-completion path directly;
	// a queued or running task only has CANCELLED latched, and the
	// worker that polls it next (workers keep draining the run queue
	// until it is empty) completes it as cancelled.
	s.mu.Lock()
	var toCancel []*task.Header
	s.owned.ForEach(func(h *task.Header) { toCancel = append(toCancel, h) })
	s.mu.Unlock()
	for _, h := range toCancel {
		h.ShutdownTask()
	}

	// Drain anything that raced the walk above via Schedule's
	// shutting-down branch: tasks spawned or woken moments before the
	// flag flipped. Each is cancelled first so its poll terminates
	// rather than re-queueing itself, then polled once to retire the
	// queue entry's reference and drive the cancel completion.
	drain := func(h *task.Header) {
		h.ShutdownTask()
		h.Poll()
	}
	s.transfer.Drain(drain)

	s.wg.Wait()

	// Workers can push to the transfer stack on their way out (a task
	// they were polling may have woken itself), so drain once more now
	// that no producer is left.
	s.transfer.Drain(drain)

	if s.ownReactor {
		_ = s.reactor.Close()
	}
	s.logger.Info("scheduler: shutdown complete")
}

// Spawn schedules fut on s and returns a handle to observe its
// output.
func Spawn[T any](s *Scheduler, fut task.Future[T]) *task.JoinHandle[T] {
	h, jh := task.Spawn[T](s, fut)
	s.Schedule(h)
	return jh
}
