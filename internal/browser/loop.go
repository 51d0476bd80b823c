// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package browser

import (
	"context"
	"sync"
)

// Loop is a single-threaded task queue. Worker goroutines post results to it;
// tasks run one at a time, in posting order, on whichever goroutine drives the
// loop (Run in production, RunOne/RunPending in tests).
type Loop struct {
	mu      sync.Mutex
	tasks   []func()
	wake    chan struct{}
	closed  bool
	pending sync.WaitGroup
}

// NewLoop returns an empty loop.
func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Post queues task. Posting to a closed loop drops the task.
func (l *Loop) Post(task func()) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.tasks = append(l.tasks, task)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Go runs work on a new goroutine and tracks it so Close can wait for it.
// work typically performs I/O and posts its result back with Post.
func (l *Loop) Go(work func()) {
	l.pending.Add(1)
	go func() {
		defer l.pending.Done()
		work()
	}()
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.tasks) == 0 {
		return nil, false
	}
	task := l.tasks[0]
	l.tasks[0] = nil
	l.tasks = l.tasks[1:]
	return task, true
}

// RunPending runs every queued task, including tasks queued while running,
// and returns how many ran.
func (l *Loop) RunPending() int {
	n := 0
	for {
		task, ok := l.next()
		if !ok {
			return n
		}
		task()
		n++
	}
}

// RunOne waits for a task and runs it.
func (l *Loop) RunOne(ctx context.Context) error {
	for {
		if task, ok := l.next(); ok {
			task()
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Run processes tasks until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if err := l.RunOne(ctx); err != nil {
			return err
		}
	}
}

// Close stops accepting tasks and waits for workers started with Go.
func (l *Loop) Close() {
	l.mu.Lock()
	l.closed = true
	l.tasks = nil
	l.mu.Unlock()
	l.pending.Wait()
}
