//go:build linux || darwin

package reactor_test

import (
	"os"
	"testing"
	"time"

	"github.com/joeycumines/taskrt/reactor"
	"github.com/joeycumines/taskrt/task"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndPollReady(t *testing.T) {
	r, err := reactor.New()
	require.NoError(t, err)
	defer r.Close()

	rd, wr, err := os.Pipe()
	require.NoError(t, err)
	defer rd.Close()
	defer wr.Close()

	reg, err := r.Register(1, int(rd.Fd()))
	require.NoError(t, err)

	woken := make(chan struct{}, 1)
	interest, ready := reg.PollReady(reactor.Read, task.NewFuncWakerRef(func() {
		select {
		case woken <- struct{}{}:
		default:
		}
	}))
	require.False(t, ready)
	require.Zero(t, interest)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Turn(500)
	}()

	_, err = wr.Write([]byte("x"))
	require.NoError(t, err)

	select {
	case <-woken:
	case <-time.After(time.Second):
		t.Fatal("registration waker was never woken")
	}
	<-done

	interest, ready = reg.PollReady(reactor.Read, task.WakerRef{})
	require.True(t, ready)
	require.NotZero(t, interest&reactor.Readable)
}

func TestReactorWake(t *testing.T) {
	r, err := reactor.New()
	require.NoError(t, err)
	defer r.Close()

	done := make(chan error, 1)
	go func() {
		done <- r.Turn(-1)
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, r.Wake())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Turn never returned after Wake")
	}
}

func TestClearReadyDiscardsWithoutWaking(t *testing.T) {
	r, err := reactor.New()
	require.NoError(t, err)
	defer r.Close()

	rd, wr, err := os.Pipe()
	require.NoError(t, err)
	defer rd.Close()
	defer wr.Close()

	reg, err := r.Register(3, int(rd.Fd()))
	require.NoError(t, err)

	_, err = wr.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, r.Turn(500))

	reg.ClearReady(reactor.Read, reactor.Readable)

	_, ready := reg.PollReady(reactor.Read, task.WakerRef{})
	require.False(t, ready)
}

func TestDeregisterWakesPendingWaiters(t *testing.T) {
	r, err := reactor.New()
	require.NoError(t, err)
	defer r.Close()

	rd, wr, err := os.Pipe()
	require.NoError(t, err)
	defer rd.Close()
	defer wr.Close()

	reg, err := r.Register(2, int(rd.Fd()))
	require.NoError(t, err)

	woken := make(chan struct{}, 1)
	_, ready := reg.PollReady(reactor.Read, task.NewFuncWakerRef(func() {
		woken <- struct{}{}
	}))
	require.False(t, ready)

	require.NoError(t, r.Deregister(2))

	select {
	case <-woken:
	case <-time.After(time.Second):
		t.Fatal("deregister did not wake the pending waiter")
	}
}
