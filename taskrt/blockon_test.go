package taskrt_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeycumines/taskrt/task"
	"github.com/joeycumines/taskrt/taskrt"
	"github.com/stretchr/testify/assert"
)

func TestBlockOnImmediate(t *testing.T) {
	out := taskrt.BlockOn(task.FuncFuture[int](func(cx *task.Context) (int, bool) {
		return 99, true
	}))
	assert.Equal(t, 99, out)
}

func TestBlockOnPendingThenWake(t *testing.T) {
	var polls atomic.Int32
	out := taskrt.BlockOn(task.FuncFuture[string](func(cx *task.Context) (string, bool) {
		if polls.Add(1) == 1 {
			w := cx.Waker().ToOwned()
			go func() {
				time.Sleep(10 * time.Millisecond)
				w.Wake()
			}()
			return "", false
		}
		return "ready", true
	}))
	assert.Equal(t, "ready", out)
	assert.GreaterOrEqual(t, polls.Load(), int32(2))
}

func TestBlockOnMultipleWakesBeforeReady(t *testing.T) {
	var polls atomic.Int32
	out := taskrt.BlockOn(task.FuncFuture[int](func(cx *task.Context) (int, bool) {
		n := polls.Add(1)
		if n < 4 {
			cx.Waker().ToOwned().Wake()
			return 0, false
		}
		return int(n), true
	}))
	assert.Equal(t, 4, out)
}
