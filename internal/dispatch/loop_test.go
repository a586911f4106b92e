package dispatch

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostRunsOnLoopGoroutine(t *testing.T) {
	l := NewLoop()
	done := make(chan error, 1)
	go func() { done <- l.Run() }()

	ran := make(chan struct{})
	require.NoError(t, l.Post(func() { close(ran) }))

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}

	l.Terminate()
	assert.NoError(t, <-done)
}

func TestTasksRunInOrder(t *testing.T) {
	l := NewLoop()
	go l.Run()
	defer l.Terminate()

	var mu sync.Mutex
	var got []int
	var wg sync.WaitGroup
	wg.Add(10)
	for i := 0; i < 10; i++ {
		i := i
		require.NoError(t, l.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			wg.Done()
		}))
	}
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestPostAfterTerminate(t *testing.T) {
	l := NewLoop()
	go l.Run()
	l.Terminate()

	err := l.Post(func() { t.Error("must not run") })
	assert.ErrorIs(t, err, ErrClosed)
	assert.True(t, l.Terminated())
}

func TestRunNotReentrant(t *testing.T) {
	l := NewLoop()
	started := make(chan struct{})
	go func() {
		close(started)
		l.Run()
	}()
	<-started
	time.Sleep(10 * time.Millisecond)

	assert.ErrorIs(t, l.Run(), ErrRunning)
	l.Terminate()
}

func TestTerminateIdempotent(t *testing.T) {
	l := NewLoop()
	go l.Run()
	l.Terminate()
	l.Terminate()
	assert.True(t, l.Terminated())
}

func TestPostFromManyGoroutines(t *testing.T) {
	l := NewLoop()
	go l.Run()
	defer l.Terminate()

	var count int
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Post(func() { count++ })
		}()
	}
	wg.Wait()

	flushed := make(chan int)
	require.NoError(t, l.Post(func() { flushed <- count }))
	assert.Equal(t, 100, <-flushed)
}

func TestPostNeverBlocksWhileLoopBusy(t *testing.T) {
	l := NewLoop()
	go l.Run()
	defer l.Terminate()

	gate := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, l.Post(func() { close(started); <-gate }))
	<-started

	posted := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			l.Post(func() {})
		}
		close(posted)
	}()

	select {
	case <-posted:
	case <-time.After(time.Second):
		t.Fatal("Post blocked while the loop was busy")
	}
	close(gate)
}

func TestTerminateDiscardsQueuedTasks(t *testing.T) {
	l := NewLoop()
	finished := make(chan error, 1)
	go func() { finished <- l.Run() }()

	gate := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, l.Post(func() { close(started); <-gate }))
	<-started

	var ran atomic.Bool
	require.NoError(t, l.Post(func() { ran.Store(true) }))

	l.Terminate()
	close(gate)

	require.NoError(t, <-finished)
	assert.False(t, ran.Load())
}

func TestDoneClosesOnTerminate(t *testing.T) {
	l := NewLoop()
	select {
	case <-l.Done():
		t.Fatal("Done closed before Terminate")
	default:
	}

	l.Terminate()
	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Fatal("Done never closed")
	}
}
