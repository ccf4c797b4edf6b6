package taskrt_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeycumines/taskrt/task"
	"github.com/joeycumines/taskrt/taskrt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitJoin[T any](t *testing.T, jh *task.JoinHandle[T], timeout time.Duration) task.Result[T] {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for join handle")
		default:
		}
		res, ready := jh.Poll(&task.Context{})
		if ready {
			return res
		}
		time.Sleep(time.Millisecond)
	}
}

func newTestScheduler(t *testing.T, opts ...taskrt.Option) *taskrt.Scheduler {
	t.Helper()
	s, err := taskrt.NewScheduler(append([]taskrt.Option{taskrt.WithReactor(nil), taskrt.WithWorkers(2)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(s.Shutdown)
	return s
}

func TestSchedulerImmediateCompletion(t *testing.T) {
	s := newTestScheduler(t)
	jh := taskrt.Spawn[int](s, task.FuncFuture[int](func(cx *task.Context) (int, bool) {
		return 7, true
	}))
	res := waitJoin(t, jh, time.Second)
	assert.Nil(t, res.Err)
	assert.Equal(t, 7, res.Value)
}

func TestSchedulerPendingThenWake(t *testing.T) {
	s := newTestScheduler(t)
	var polls atomic.Int32
	jh := taskrt.Spawn[string](s, task.FuncFuture[string](func(cx *task.Context) (string, bool) {
		if polls.Add(1) == 1 {
			w := cx.Waker().ToOwned()
			go func() {
				time.Sleep(10 * time.Millisecond)
				w.Wake()
			}()
			return "", false
		}
		return "done", true
	}))
	res := waitJoin(t, jh, time.Second)
	assert.Nil(t, res.Err)
	assert.Equal(t, "done", res.Value)
	assert.GreaterOrEqual(t, polls.Load(), int32(2))
}

func TestSchedulerManyTasksFanOut(t *testing.T) {
	s := newTestScheduler(t, taskrt.WithWorkers(4))
	const n = 200
	handles := make([]*task.JoinHandle[int], n)
	for i := 0; i < n; i++ {
		i := i
		handles[i] = taskrt.Spawn[int](s, task.FuncFuture[int](func(cx *task.Context) (int, bool) {
			return i * i, true
		}))
	}
	for i, jh := range handles {
		res := waitJoin(t, jh, time.Second)
		assert.Nil(t, res.Err)
		assert.Equal(t, i*i, res.Value)
	}
}

func TestSchedulerShutdownCancelsPending(t *testing.T) {
	s, err := taskrt.NewScheduler(taskrt.WithReactor(nil), taskrt.WithWorkers(2))
	require.NoError(t, err)

	var started sync.WaitGroup
	started.Add(1)
	var once sync.Once
	jh := taskrt.Spawn[int](s, task.FuncFuture[int](func(cx *task.Context) (int, bool) {
		once.Do(started.Done)
		return 0, false
	}))
	started.Wait()

	s.Shutdown()

	res := waitJoin(t, jh, time.Second)
	require.NotNil(t, res.Err)
	assert.Equal(t, task.Cancelled, res.Err.Kind())

	// A second Shutdown call must be a harmless no-op.
	s.Shutdown()
}

func TestSchedulerReactorNilWhenDisabled(t *testing.T) {
	s := newTestScheduler(t)
	assert.Nil(t, s.Reactor())
}

func TestSchedulerMetrics(t *testing.T) {
	s := newTestScheduler(t)
	jh := taskrt.Spawn[int](s, task.FuncFuture[int](func(cx *task.Context) (int, bool) {
		return 1, true
	}))
	waitJoin(t, jh, time.Second)

	require.Eventually(t, func() bool {
		snap := s.Metrics().Snapshot()
		return snap.Scheduled >= 1 && snap.Polled >= 1
	}, time.Second, time.Millisecond)
}
