package task

import "sync/atomic"

// OwnedList is the doubly linked list of every task a scheduler has
// bound. It is not internally synchronised; the caller supplies the
// external lock.
type OwnedList struct {
	head, tail *Header
	length     int
}

// PushBack adds h to the end of the list. h must not already belong
// to any list.
func (l *OwnedList) PushBack(h *Header) {
	h.links.prev = l.tail
	h.links.next = nil
	if l.tail != nil {
		l.tail.links.next = h
	} else {
		l.head = h
	}
	l.tail = h
	l.length++
}

// Remove splices h out of the list. It is a no-op (returns false) if
// h has no predecessor and is not the head, i.e. h is not linked in;
// otherwise it assumes h is a member of this exact list, which the
// scheduler guarantees by construction.
func (l *OwnedList) Remove(h *Header) bool {
	if h.links.prev == nil && l.head != h {
		return false
	}
	if h.links.prev != nil {
		h.links.prev.links.next = h.links.next
	} else {
		l.head = h.links.next
	}
	if h.links.next != nil {
		h.links.next.links.prev = h.links.prev
	} else {
		l.tail = h.links.prev
	}
	h.links.prev = nil
	h.links.next = nil
	l.length--
	return true
}

// Len returns the number of tasks currently owned.
func (l *OwnedList) Len() int { return l.length }

// ForEach visits every task currently in the list, in insertion
// order. fn must not mutate the list.
func (l *OwnedList) ForEach(fn func(*Header)) {
	for n := l.head; n != nil; n = n.links.next {
		fn(n)
	}
}

// RunQueue is the scheduler's intrusive singly linked FIFO run queue,
// threaded through each task's queueNext field — pushing a task never
// allocates. Like OwnedList, it relies on an external lock.
type RunQueue struct {
	head, tail *Header
	length     int
}

// PushBack enqueues h. h must not currently be queued.
func (q *RunQueue) PushBack(h *Header) {
	h.queueNext.Store(nil)
	if q.tail != nil {
		q.tail.queueNext.Store(h)
	} else {
		q.head = h
	}
	q.tail = h
	q.length++
}

// PopFront dequeues the oldest runnable task, or returns false if
// empty.
func (q *RunQueue) PopFront() (*Header, bool) {
	h := q.head
	if h == nil {
		return nil, false
	}
	q.head = h.queueNext.Load()
	if q.head == nil {
		q.tail = nil
	}
	h.queueNext.Store(nil)
	q.length--
	return h, true
}

// Len returns the number of queued tasks.
func (q *RunQueue) Len() int { return q.length }

// TransferStack is a lock-free, multi-producer, single-consumer LIFO
// threaded through each task's stackNext field. It exists solely to
// catch notifications that race a scheduler shutdown's walk of the
// owned list: instead of dropping the wake-up, the scheduler's
// Schedule (once shutting down) pushes here, and the
// shutdown sequence drains it after the walk completes.
type TransferStack struct {
	top atomic.Pointer[Header]
}

// Push adds h to the stack. Safe to call concurrently with Drain and
// with other Push calls.
func (s *TransferStack) Push(h *Header) {
	for {
		old := s.top.Load()
		h.stackNext.Store(old)
		if s.top.CompareAndSwap(old, h) {
			return
		}
	}
}

// Drain atomically empties the stack and calls fn once per task, most
// recently pushed first. Must not be called concurrently with another
// Drain.
func (s *TransferStack) Drain(fn func(*Header)) {
	n := s.top.Swap(nil)
	for n != nil {
		next := n.stackNext.Load()
		n.stackNext.Store(nil)
		fn(n)
		n = next
	}
}
