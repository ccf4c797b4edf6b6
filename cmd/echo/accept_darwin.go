//go:build darwin

package main

import "golang.org/x/sys/unix"

// acceptConn accepts one connection off fd. Darwin's unix package has
// no Accept4, so non-blocking and close-on-exec are applied to the
// accepted descriptor after the fact rather than atomically at
// accept() time.
func acceptConn(fd int) (int, error) {
	nfd, _, err := unix.Accept(fd)
	if err != nil {
		return nfd, err
	}
	if err := unix.SetNonblock(nfd, true); err != nil {
		_ = unix.Close(nfd)
		return 0, err
	}
	unix.CloseOnExec(nfd)
	return nfd, nil
}
