package realtime

import (
	"context"
	"errors"
)

// ErrLoopStopped is returned by Do once the loop has shut down.
var ErrLoopStopped = errors.New("realtime: event loop stopped")

const defaultQueueSize = 256

type task struct {
	fn   func()
	done chan struct{}
}

// Loop runs submitted functions one at a time on a single goroutine. Registry, session
// and engine state are only touched from inside the loop.
type Loop struct {
	tasks   chan task
	stopped chan struct{}
}

// NewLoop constructs a loop with the given queue capacity.
func NewLoop(queue int) *Loop {
	if queue <= 0 {
		queue = defaultQueueSize
	}
	return &Loop{
		tasks:   make(chan task, queue),
		stopped: make(chan struct{}),
	}
}

// Run processes tasks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.stopped)
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-l.tasks:
			t.fn()
			close(t.done)
		}
	}
}

// Do queues fn and blocks until it has run. Tasks run in submission order. fn must not
// call Do itself. If ctx ends after fn was queued, Do returns ctx.Err() and fn still runs
// in its turn.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	t := task{fn: fn, done: make(chan struct{})}
	select {
	case l.tasks <- t:
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopped:
		return ErrLoopStopped
	}

	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopped:
		return ErrLoopStopped
	}
}
