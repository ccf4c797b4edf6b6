//go:build linux

package main

import "golang.org/x/sys/unix"

// acceptConn accepts one connection off fd, pre-marked non-blocking
// via accept4's flags.
func acceptConn(fd int) (int, error) {
	nfd, _, err := unix.Accept4(fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	return nfd, err
}
