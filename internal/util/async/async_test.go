package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunParallel_Success(t *testing.T) {
	t.Parallel()
	var count atomic.Int32
	task := func(_ context.Context) error {
		count.Add(1)
		return nil
	}

	err := RunParallel(context.Background(), []Task{
		{Name: "a", Func: task},
		{Name: "b", Func: task},
		{Name: "c", Func: task},
	})

	require.NoError(t, err)
	assert.Equal(t, int32(3), count.Load())
}

func TestRunParallel_EmptyTasks(t *testing.T) {
	t.Parallel()
	assert.NoError(t, RunParallel(context.Background(), nil))
}

func TestRunBounded_CollectsEveryErrorInOrder(t *testing.T) {
	t.Parallel()
	errA := errors.New("a failed")
	errC := errors.New("c failed")
	var ran atomic.Int32

	err := RunBounded(context.Background(), 2, []Task{
		{Name: "a", Func: func(context.Context) error { ran.Add(1); return errA }},
		{Name: "b", Func: func(context.Context) error { ran.Add(1); return nil }},
		{Name: "c", Func: func(context.Context) error { ran.Add(1); return errC }},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errC)
	assert.Equal(t, "a: a failed\nc: c failed", err.Error())
	assert.Equal(t, int32(3), ran.Load())
}

func TestRunBounded_RespectsLimit(t *testing.T) {
	t.Parallel()
	var running, peak atomic.Int32
	task := func(context.Context) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return nil
	}

	tasks := make([]Task, 8)
	for i := range tasks {
		tasks[i] = Task{Name: "t", Func: task}
	}

	require.NoError(t, RunBounded(context.Background(), 2, tasks))
	assert.LessOrEqual(t, peak.Load(), int32(2))
}
