//go:build linux || darwin

package main

import (
	"net"

	"golang.org/x/sys/unix"
)

// rawFD extracts the underlying socket fd from a *net.TCPListener
// without duplicating it, and flips it non-blocking so the reactor's
// edge-triggered registration semantics hold.
func rawFD(ln *net.TCPListener) (int, error) {
	raw, err := ln.SyscallConn()
	if err != nil {
		return 0, err
	}
	var fd int
	var ctrlErr error
	err = raw.Control(func(ufd uintptr) {
		fd = int(ufd)
		ctrlErr = unix.SetNonblock(fd, true)
	})
	if err != nil {
		return 0, err
	}
	return fd, ctrlErr
}
