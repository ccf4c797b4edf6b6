//go:build linux

package reactor

import (
	"golang.org/x/sys/unix"
)

// epollPoller wraps a Linux epoll instance: an epoll fd, a
// preallocated event buffer, and straight EpollCtl/EpollWait calls
// with no lock held during the wait itself.
type epollPoller struct {
	epfd     int
	eventBuf [256]unix.EpollEvent
}

func newPoller() (poller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollPoller{epfd: fd}, nil
}

func eventsToEpoll(interest uint32) uint32 {
	var out uint32
	if interest&uint32(Readable) != 0 {
		out |= unix.EPOLLIN
	}
	if interest&uint32(Writable) != 0 {
		out |= unix.EPOLLOUT
	}
	return out
}

func epollToEvents(flags uint32) uint32 {
	var out uint32
	if flags&unix.EPOLLIN != 0 {
		out |= uint32(Readable)
	}
	if flags&unix.EPOLLOUT != 0 {
		out |= uint32(Writable)
	}
	if flags&unix.EPOLLERR != 0 {
		out |= uint32(ErrorReady)
	}
	if flags&unix.EPOLLHUP != 0 {
		out |= uint32(Hangup)
	}
	return out
}

func (p *epollPoller) registerRaw(fd int, interest uint32) error {
	ev := unix.EpollEvent{Events: eventsToEpoll(interest) | unix.EPOLLET, Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (p *epollPoller) deregisterRaw(fd int) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *epollPoller) poll(timeoutMs int) ([]rawEvent, error) {
	n, err := unix.EpollWait(p.epfd, p.eventBuf[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	out := make([]rawEvent, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, rawEvent{
			fd:   int(p.eventBuf[i].Fd),
			bits: epollToEvents(p.eventBuf[i].Events),
		})
	}
	return out, nil
}

func (p *epollPoller) close() error {
	return unix.Close(p.epfd)
}

// eventfdWake is the Linux self-pipe: a single eventfd used both for
// reading and writing, saving a descriptor over a pipe pair.
type eventfdWake struct {
	fd int
}

func newWakeSource() (wakeSource, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, err
	}
	return &eventfdWake{fd: fd}, nil
}

func (w *eventfdWake) readFD() int { return w.fd }

func (w *eventfdWake) notify() error {
	var buf [8]byte
	buf[7] = 1
	_, err := unix.Write(w.fd, buf[:])
	return err
}

func (w *eventfdWake) drain() error {
	var buf [8]byte
	for {
		if _, err := unix.Read(w.fd, buf[:]); err != nil {
			break
		}
	}
	return nil
}

func (w *eventfdWake) close() error { return unix.Close(w.fd) }
