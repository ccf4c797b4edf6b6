//go:build darwin

package reactor

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// kqueuePoller wraps a kqueue fd and a preallocated Kevent_t buffer,
// registering both a read and a write filter per source so
// Registration alone decides per-direction interest.
type kqueuePoller struct {
	kq       int
	eventBuf [256]unix.Kevent_t
}

func newPoller() (poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(kq)
	return &kqueuePoller{kq: kq}, nil
}

func (p *kqueuePoller) registerRaw(fd int, interest uint32) error {
	changes := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_ADD | unix.EV_CLEAR},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_ADD | unix.EV_CLEAR},
	}
	_, err := unix.Kevent(p.kq, changes, nil, nil)
	return err
}

func (p *kqueuePoller) deregisterRaw(fd int) error {
	changes := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
	}
	_, err := unix.Kevent(p.kq, changes, nil, nil)
	return err
}

func (p *kqueuePoller) poll(timeoutMs int) ([]rawEvent, error) {
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMs) * 1e6)
		ts = &t
	}
	n, err := unix.Kevent(p.kq, nil, p.eventBuf[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	byFD := make(map[int]uint32, n)
	for i := 0; i < n; i++ {
		ev := p.eventBuf[i]
		fd := int(ev.Ident)
		var bits uint32
		switch ev.Filter {
		case unix.EVFILT_READ:
			bits = uint32(Readable)
		case unix.EVFILT_WRITE:
			bits = uint32(Writable)
		}
		if ev.Flags&unix.EV_EOF != 0 {
			bits |= uint32(Hangup)
		}
		if ev.Flags&unix.EV_ERROR != 0 {
			bits |= uint32(ErrorReady)
		}
		byFD[fd] |= bits
	}
	out := make([]rawEvent, 0, len(byFD))
	for fd, bits := range byFD {
		out = append(out, rawEvent{fd: fd, bits: bits})
	}
	return out, nil
}

func (p *kqueuePoller) close() error {
	return unix.Close(p.kq)
}

// pipeWake is the Darwin self-pipe: a non-blocking pipe pair, since
// eventfd does not exist on this platform.
type pipeWake struct {
	readFd, writeFd int
}

func newWakeSource() (wakeSource, error) {
	var fds [2]int
	if err := syscall.Pipe(fds[:]); err != nil {
		return nil, err
	}
	syscall.CloseOnExec(fds[0])
	syscall.CloseOnExec(fds[1])
	if err := syscall.SetNonblock(fds[0], true); err != nil {
		syscall.Close(fds[0])
		syscall.Close(fds[1])
		return nil, err
	}
	if err := syscall.SetNonblock(fds[1], true); err != nil {
		syscall.Close(fds[0])
		syscall.Close(fds[1])
		return nil, err
	}
	return &pipeWake{readFd: fds[0], writeFd: fds[1]}, nil
}

func (w *pipeWake) readFD() int { return w.readFd }

func (w *pipeWake) notify() error {
	_, err := syscall.Write(w.writeFd, []byte{1})
	return err
}

func (w *pipeWake) drain() error {
	var buf [64]byte
	for {
		if _, err := syscall.Read(w.readFd, buf[:]); err != nil {
			break
		}
	}
	return nil
}

func (w *pipeWake) close() error {
	err1 := syscall.Close(w.readFd)
	err2 := syscall.Close(w.writeFd)
	if err1 != nil {
		return err1
	}
	return err2
}
