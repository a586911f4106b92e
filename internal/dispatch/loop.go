// Package dispatch owns the host's single UI thread.
//
// The loop drains a task queue on one goroutine; any other goroutine may
// enqueue continuations. This is the only way work crosses into the
// UI-owning execution context.
package dispatch

import (
	"errors"
	"sync"
	"sync/atomic"
)

var (
	// ErrClosed is returned by Post after Terminate. Dispatching into a
	// stopped loop is a caller error, not a crash.
	ErrClosed = errors.New("dispatch: loop terminated")

	// ErrRunning is returned by a reentrant Run.
	ErrRunning = errors.New("dispatch: loop already running")
)

// Loop is a single-threaded task loop. The queue is unbounded so Post
// never blocks the caller; the single local front-end cannot generate
// enough traffic for that to matter.
type Loop struct {
	mu    sync.Mutex
	queue []func()

	wake     chan struct{}
	done     chan struct{}
	running  atomic.Bool
	closed   atomic.Bool
	stopOnce sync.Once
}

// NewLoop creates a stopped loop ready to Run.
func NewLoop() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Run blocks draining the queue until Terminate. It must not be called
// reentrantly; a second call returns ErrRunning. Tasks run one at a time
// on the calling goroutine.
func (l *Loop) Run() error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	for {
		select {
		case <-l.done:
			return nil
		case <-l.wake:
		}
		for {
			fn, ok := l.pop()
			if !ok {
				break
			}
			fn()
			select {
			case <-l.done:
				return nil
			default:
			}
		}
	}
}

func (l *Loop) pop() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue = l.queue[1:]
	return fn, true
}

// Post enqueues fn to run on the loop's goroutine. Safe from any
// goroutine, never blocks. After Terminate it returns ErrClosed without
// running fn.
func (l *Loop) Post(fn func()) error {
	l.mu.Lock()
	if l.closed.Load() {
		l.mu.Unlock()
		return ErrClosed
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// Terminate stops the loop. Thread-safe and idempotent. Tasks still queued
// when Terminate wins the race may never run; waiters must pair their
// reply channel with Done.
func (l *Loop) Terminate() {
	l.stopOnce.Do(func() {
		l.closed.Store(true)
		close(l.done)
	})
}

// Terminated reports whether Terminate has been called.
func (l *Loop) Terminated() bool {
	return l.closed.Load()
}

// Done returns a channel closed by Terminate. Callers waiting on a queued
// task's outcome select on it so shutdown unblocks them even when the
// task is discarded.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
