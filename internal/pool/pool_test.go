package pool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsEveryTask(t *testing.T) {
	p := New(4)

	var count atomic.Int64
	for i := 0; i < 200; i++ {
		require.NoError(t, p.Submit(func() { count.Add(1) }))
	}
	p.Close()

	assert.Equal(t, int64(200), count.Load())
	assert.ErrorIs(t, p.Submit(func() {}), ErrClosed)
}

func TestPoolBoundsConcurrency(t *testing.T) {
	const size = 3
	p := New(size)

	var running, peak, starts atomic.Int64
	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(size)

	for i := 0; i < 10; i++ {
		require.NoError(t, p.Submit(func() {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			if starts.Add(1) <= size {
				started.Done()
			}
			<-release
			running.Add(-1)
		}))
	}

	started.Wait()
	// submission does not block while every worker is busy
	done := make(chan struct{})
	go func() {
		_ = p.Submit(func() {})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a busy pool")
	}

	assert.Equal(t, size, p.Active())
	assert.Equal(t, 8, p.Queued())

	close(release)
	p.Close()
	assert.Equal(t, int64(size), peak.Load())
}

func TestPoolSurvivesPanics(t *testing.T) {
	p := New(1)
	require.NoError(t, p.Submit(func() { panic("boom") }))

	ran := make(chan struct{})
	require.NoError(t, p.Submit(func() { close(ran) }))

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("worker did not recover from panic")
	}
	p.Close()
}

func TestPoolReportsPanics(t *testing.T) {
	got := make(chan any, 1)
	p := New(1, WithPanicHandler(func(v any) { got <- v }))
	require.NoError(t, p.Submit(func() { panic("boom") }))
	p.Close()

	select {
	case v := <-got:
		assert.Equal(t, "boom", v)
	default:
		t.Fatal("panic was not reported")
	}
}

func TestNewRejectsZeroSize(t *testing.T) {
	assert.Panics(t, func() { New(0) })
}
