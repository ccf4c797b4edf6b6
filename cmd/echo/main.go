// Command echo is a minimal TCP echo server demonstrating the
// reactor and scheduler driving real, non-blocking sockets. It is a
// consumer of the core task/reactor/park contracts, not part of the
// importable API surface.
package main

import (
	"errors"
	"flag"
	"log"
	"net"
	"sync/atomic"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/taskrt/reactor"
	"github.com/joeycumines/taskrt/task"
	"github.com/joeycumines/taskrt/taskrt"
	"golang.org/x/sys/unix"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:0", "address to listen on")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := logiface.LevelInformational
	if *verbose {
		level = logiface.LevelDebug
	}
	logger := taskrt.NewStdoutLogifaceLogger(log.Writer(), level)

	sched, err := taskrt.NewScheduler(taskrt.WithLogger(logger))
	if err != nil {
		log.Fatalf("echo: new scheduler: %v", err)
	}
	defer sched.Shutdown()

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatalf("echo: listen: %v", err)
	}
	defer ln.Close()
	log.Printf("echo: listening on %s", ln.Addr())

	lfd, err := rawFD(ln.(*net.TCPListener))
	if err != nil {
		log.Fatalf("echo: raw listener fd: %v", err)
	}

	var nextToken atomic.Uint64
	nextToken.Store(1) // 0 reserved below for the listener itself.

	r := sched.Reactor()
	if r == nil {
		log.Fatal("echo: scheduler has no reactor to register against")
	}
	listenReg, err := r.Register(reactor.Token(0), lfd)
	if err != nil {
		log.Fatalf("echo: register listener: %v", err)
	}

	// The demo never observes task results, so every handle is closed
	// immediately: the tasks run to completion regardless, and closing
	// up front lets each cell be reclaimed as soon as its task ends.
	taskrt.Spawn[struct{}](sched, task.FuncFuture[struct{}](acceptLoop(r, listenReg, lfd, sched, &nextToken, logger))).Close()

	select {}
}

// acceptLoop returns a Future that repeatedly accepts connections off
// the listening fd, spawning one echoConn task per accepted socket.
// It completes only when accept fails with an error other than
// EAGAIN; the demo has no graceful shutdown signal, so otherwise it
// runs until the process exits.
func acceptLoop(r *reactor.Reactor, reg *reactor.Registration, lfd int, sched *taskrt.Scheduler, nextToken *atomic.Uint64, logger taskrt.Logger) func(cx *task.Context) (struct{}, bool) {
	return func(cx *task.Context) (struct{}, bool) {
		for {
			connFD, err := acceptConn(lfd)
			if err != nil {
				if errors.Is(err, unix.EAGAIN) {
					reg.Register(reactor.Read, cx.Waker())
					return struct{}{}, false
				}
				// Pending with no waker arranged would park this task
				// forever; a real accept failure ends the loop instead.
				logger.Error("echo: accept failed, stopping accept loop", taskrt.F("err", err))
				return struct{}{}, true
			}

			tok := reactor.Token(nextToken.Add(1))
			connReg, err := r.Register(tok, connFD)
			if err != nil {
				logger.Error("echo: register conn failed", taskrt.F("err", err))
				_ = unix.Close(connFD)
				continue
			}
			logger.Debug("echo: accepted connection", taskrt.F("fd", connFD), taskrt.F("token", tok))
			taskrt.Spawn[struct{}](sched, task.FuncFuture[struct{}](echoConn(r, connReg, tok, connFD, logger))).Close()
		}
	}
}

// echoConn returns a Future implementing a byte-for-byte echo over
// connFD, working against the Registration surface directly rather
// than any framed codec or buffered connection wrapper.
func echoConn(r *reactor.Reactor, reg *reactor.Registration, tok reactor.Token, fd int, logger taskrt.Logger) func(cx *task.Context) (struct{}, bool) {
	var buf [4096]byte
	var pending []byte

	closeConn := func() {
		_ = r.Deregister(tok)
		_ = unix.Close(fd)
	}

	return func(cx *task.Context) (struct{}, bool) {
		for {
			if len(pending) > 0 {
				n, err := unix.Write(fd, pending)
				if err != nil {
					if errors.Is(err, unix.EAGAIN) {
						reg.Register(reactor.Write, cx.Waker())
						return struct{}{}, false
					}
					logger.Debug("echo: write failed, closing", taskrt.F("fd", fd), taskrt.F("err", err))
					closeConn()
					return struct{}{}, true
				}
				pending = pending[n:]
				continue
			}

			n, err := unix.Read(fd, buf[:])
			switch {
			case err != nil && errors.Is(err, unix.EAGAIN):
				reg.Register(reactor.Read, cx.Waker())
				return struct{}{}, false
			case n == 0 && err == nil:
				logger.Debug("echo: peer closed", taskrt.F("fd", fd))
				closeConn()
				return struct{}{}, true
			case err != nil:
				logger.Debug("echo: read failed, closing", taskrt.F("fd", fd), taskrt.F("err", err))
				closeConn()
				return struct{}{}, true
			default:
				pending = append(pending[:0], buf[:n]...)
			}
		}
	}
}
