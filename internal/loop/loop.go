// Package loop runs every mutation of shared bot state on one goroutine.
//
// Telegram updates, timers and HTTP handlers all submit closures here, so the
// tournament, match registry and registration sessions need no locks.
package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

var (
	ErrNotRunning     = errors.New("loop: not running")
	ErrAlreadyRunning = errors.New("loop: already running")
	ErrTimeout        = errors.New("loop: timed out waiting for task")
)

type onLoopKey struct{}

type task struct {
	fn   func(context.Context) error
	done chan error // nil for fire-and-forget
}

type Loop struct {
	tasks   chan task
	running atomic.Bool
	stopped chan struct{}
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a loop. A zero timeout means Execute waits as long as the
// caller's context allows.
func New(timeout time.Duration, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		tasks:   make(chan task, 256),
		stopped: make(chan struct{}),
		timeout: timeout,
		logger:  logger,
	}
}

// Run executes tasks until ctx is cancelled. It may be called once.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer func() {
		l.running.Store(false)
		close(l.stopped)
	}()

	ctx = context.WithValue(ctx, onLoopKey{}, l)
	l.logger.Info("loop started")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("loop stopped")
			return ctx.Err()
		case t := <-l.tasks:
			err := l.exec(ctx, t.fn)
			if t.done != nil {
				t.done <- err
			} else if err != nil {
				l.logger.Error("loop task failed", "error", err)
			}
		}
	}
}

func (l *Loop) Running() bool { return l.running.Load() }

func (l *Loop) exec(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("loop: task panicked: %v", r)
		}
	}()
	return fn(ctx)
}

// Execute runs fn on the loop and blocks until it finishes. Called from a
// task already on this loop, fn runs inline. A task abandoned by timeout or
// cancellation still runs once it reaches the front of the queue.
func (l *Loop) Execute(ctx context.Context, fn func(context.Context) error) error {
	if owner, _ := ctx.Value(onLoopKey{}).(*Loop); owner == l {
		return l.exec(ctx, fn)
	}
	if !l.running.Load() {
		return ErrNotRunning
	}

	var deadline <-chan time.Time
	if l.timeout > 0 {
		timer := time.NewTimer(l.timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	t := task{fn: fn, done: make(chan error, 1)}
	select {
	case l.tasks <- t:
	case <-l.stopped:
		return ErrNotRunning
	case <-deadline:
		return ErrTimeout
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-t.done:
		return err
	case <-l.stopped:
		return ErrNotRunning
	case <-deadline:
		return ErrTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Call is Execute for tasks that produce a value. The value travels over a
// channel so an abandoned task never writes into the caller's frame.
func Call[T any](ctx context.Context, l *Loop, fn func(context.Context) (T, error)) (T, error) {
	out := make(chan T, 1)
	err := l.Execute(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out <- v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return <-out, nil
}

// Post enqueues fn without waiting for it. Errors are logged by the loop.
func (l *Loop) Post(fn func(context.Context) error) error {
	select {
	case <-l.stopped:
		return ErrNotRunning
	default:
	}
	select {
	case l.tasks <- task{fn: fn}:
		return nil
	case <-l.stopped:
		return ErrNotRunning
	}
}

// After posts fn once d has elapsed. The returned func cancels a timer that
// has not fired yet and reports whether it did.
func (l *Loop) After(d time.Duration, fn func(context.Context) error) func() bool {
	timer := time.AfterFunc(d, func() {
		if err := l.Post(fn); err != nil {
			l.logger.Warn("dropping delayed task", "error", err)
		}
	})
	return timer.Stop
}
