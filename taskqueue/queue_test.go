package taskqueue

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitAndProcess(t *testing.T) {
	q := New[int](4)
	var sum int64

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		q.Process(func(v int) { atomic.AddInt64(&sum, int64(v)) })
	}()

	for i := 1; i <= 10; i++ {
		q.Submit(i)
	}
	q.AwaitCompletion()
	q.Shutdown()
	wg.Wait()

	assert.EqualValues(t, 55, atomic.LoadInt64(&sum))
}

func TestTrySubmitFailsWhenFull(t *testing.T) {
	q := New[int](2)
	require.True(t, q.TrySubmit(1))
	require.True(t, q.TrySubmit(2))
	assert.False(t, q.TrySubmit(3))
	assert.Equal(t, 0, q.MinimumRemainingCapacity())
}

func TestFillStopsWhenSupplierExhausted(t *testing.T) {
	q := New[int](10)
	remaining := []int{1, 2, 3}
	full := q.Fill(func() (int, bool) {
		if len(remaining) == 0 {
			return 0, false
		}
		v := remaining[0]
		remaining = remaining[1:]
		return v, true
	})
	assert.False(t, full)
	assert.Equal(t, 7, q.MinimumRemainingCapacity())
}

func TestProcessReturnsAfterShutdown(t *testing.T) {
	q := New[int](8)
	q.Submit(1)
	q.Submit(2)
	q.Shutdown()

	done := make(chan struct{})
	go func() {
		q.Process(func(int) {})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Process did not return after Shutdown")
	}
}

func TestMultipleWorkersDrainConcurrently(t *testing.T) {
	q := New[int](16)
	var processed int64
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Process(func(int) { atomic.AddInt64(&processed, 1) })
		}()
	}

	for i := 0; i < 100; i++ {
		q.Submit(i)
	}
	q.AwaitCompletion()
	q.Shutdown()
	wg.Wait()

	assert.EqualValues(t, 100, atomic.LoadInt64(&processed))
}
