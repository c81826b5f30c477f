package scan

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// TestMain ensures no worker goroutines outlive Complete.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestExecutor_RunsAllTasks(t *testing.T) {
	exec := NewExecutor(context.Background(), 4)

	var count atomic.Int64
	var seen Collector[int]
	for i := 0; i < 100; i++ {
		i := i
		exec.Submit(func(ctx context.Context) error {
			count.Add(1)
			seen.Add(i)
			return nil
		})
	}

	require.NoError(t, exec.Complete())
	assert.Equal(t, int64(100), count.Load())
	assert.Equal(t, 100, seen.Len())
	assert.Equal(t, int64(100), exec.Submitted())
}

func TestExecutor_BoundsConcurrency(t *testing.T) {
	exec := NewExecutor(context.Background(), 2)

	var active, peak atomic.Int64
	for i := 0; i < 20; i++ {
		exec.Submit(func(ctx context.Context) error {
			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			active.Add(-1)
			return nil
		})
	}

	require.NoError(t, exec.Complete())
	assert.LessOrEqual(t, peak.Load(), int64(2))
}

func TestExecutor_FirstErrorCancelsPending(t *testing.T) {
	exec := NewExecutor(context.Background(), 1)
	boom := errors.New("bad class")

	var ran atomic.Int64
	exec.Submit(func(ctx context.Context) error {
		ran.Add(1)
		return boom
	})
	for i := 0; i < 10; i++ {
		exec.Submit(func(ctx context.Context) error {
			ran.Add(1)
			return nil
		})
	}

	err := exec.Complete()
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int64(1), ran.Load())
	assert.Equal(t, int64(10), exec.Skipped())
}

func TestExecutor_PanicBecomesError(t *testing.T) {
	exec := NewExecutor(context.Background(), 2)
	exec.Submit(func(ctx context.Context) error {
		panic("truncated constant pool")
	})

	err := exec.Complete()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "truncated constant pool")
}

func TestExecutor_SubmitAfterCompletePanics(t *testing.T) {
	exec := NewExecutor(context.Background(), 1)
	require.NoError(t, exec.Complete())

	assert.Panics(t, func() {
		exec.Submit(func(ctx context.Context) error { return nil })
	})
}

func TestExecutor_ParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran atomic.Int64
	exec := NewExecutor(ctx, 2)
	for i := 0; i < 5; i++ {
		exec.Submit(func(ctx context.Context) error {
			ran.Add(1)
			return nil
		})
	}

	err := exec.Complete()
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(0), ran.Load())
	assert.Equal(t, int64(5), exec.Skipped())
}

func TestForEach_CancelledContextFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := ForEach(ctx, 2, []int{1, 2, 3}, func(ctx context.Context, i int) error {
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestForEach(t *testing.T) {
	m := NewMap[string, int]()
	items := []string{"a", "bb", "ccc"}

	err := ForEach(context.Background(), 0, items, func(ctx context.Context, s string) error {
		m.Store(s, len(s))
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 1, "bb": 2, "ccc": 3}, m.Snapshot())

	v, ok := m.Load("bb")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}
