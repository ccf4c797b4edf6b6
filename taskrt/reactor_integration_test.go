//go:build linux || darwin

package taskrt_test

import (
	"testing"
	"time"

	"github.com/joeycumines/taskrt/reactor"
	"github.com/joeycumines/taskrt/task"
	"github.com/joeycumines/taskrt/taskrt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// TestSchedulerDrivesReactorIO exercises the full loop: a worker parks
// inside the shared reactor's OS poll, another goroutine makes a pipe
// readable, and the resulting readiness event wakes the suspended task
// through its registration.
func TestSchedulerDrivesReactorIO(t *testing.T) {
	s, err := taskrt.NewScheduler(taskrt.WithWorkers(2))
	require.NoError(t, err)
	t.Cleanup(s.Shutdown)

	r := s.Reactor()
	require.NotNil(t, r)

	var fds [2]int
	require.NoError(t, unix.Pipe(fds[:]))
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	require.NoError(t, unix.SetNonblock(fds[0], true))
	require.NoError(t, unix.SetNonblock(fds[1], true))

	reg, err := r.Register(reactor.Token(7), fds[0])
	require.NoError(t, err)

	jh := taskrt.Spawn[string](s, task.FuncFuture[string](func(cx *task.Context) (string, bool) {
		if _, ready := reg.PollReady(reactor.Read, cx.Waker()); !ready {
			return "", false
		}
		var buf [16]byte
		n, err := unix.Read(fds[0], buf[:])
		if err != nil || n <= 0 {
			return "", false
		}
		return string(buf[:n]), true
	}))

	// Let the first poll go pending and a worker settle into the
	// reactor before making the pipe readable.
	time.Sleep(30 * time.Millisecond)
	_, err = unix.Write(fds[1], []byte("ping"))
	require.NoError(t, err)

	res := waitJoin(t, jh, 2*time.Second)
	require.Nil(t, res.Err)
	assert.Equal(t, "ping", res.Value)
	require.NoError(t, r.Deregister(reactor.Token(7)))
}
