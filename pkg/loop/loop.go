// Package loop runs a task repeatedly, threading a value from one run to the next.
package loop

import (
	"context"
	"fmt"
	"time"
)

// Next tells Start what to do after a run.
//
// The zero value continues immediately.
type Next struct {
	err      error
	quit     bool
	interval time.Duration
}

func (n Next) String() string {
	switch {
	case n.err != nil:
		return fmt.Sprintf("[break] with error: %v", n.err)
	case n.quit:
		return "[break] without error"
	default:
		return fmt.Sprintf("[continue] interval: %s", n.interval)
	}
}

// Continue runs the task again after interval.
func Continue(interval time.Duration) Next {
	return Next{interval: interval}
}

// Break stops the loop. Start returns err as it is.
func Break(err error) Next {
	return Next{quit: true, err: err}
}

// Task is one run of a loop.
//
// It receives the value returned by the previous run (or the initial value),
// and returns the value for the next run with what to do next.
type Task[T any] func(context.Context, T) (T, Next)

// Start runs task until it breaks or ctx is done.
//
// For example, a pass repeated while it finds work:
//
//	report, err := loop.Start(ctx, PackReport{}, func(ctx context.Context, _ PackReport) (PackReport, loop.Next) {
//		r, err := coordinator.PackagePending(ctx)
//		if err != nil {
//			return r, loop.Break(err)
//		}
//		if len(r.Packaged()) == 0 {
//			return r, loop.Break(nil)
//		}
//		return r, loop.Continue(0)
//	})
//
// It returns the last value the task returned, with the error given to Break.
// When ctx is done, it returns ctx.Err() and the value of the last completed run.
func Start[T any](ctx context.Context, init T, task Task[T], options ...LoopOption) (T, error) {
	if err := ctx.Err(); err != nil {
		return init, err
	}

	value := init
	for {
		v, next := runOnce(ctx, value, task, options)
		if next.quit {
			return v, next.err
		}
		value = v

		timer := time.NewTimer(next.interval)
		select {
		case <-ctx.Done():
			// cancellation wins over an expired timer.
			timer.Stop()
			return value, ctx.Err()
		case <-timer.C:
		}
	}
}

func runOnce[T any](ctx context.Context, value T, task Task[T], options []LoopOption) (T, Next) {
	lc := &loopConfig{ctx: ctx}
	for _, opt := range options {
		lc = opt(lc)
	}
	for _, d := range lc.deferred {
		defer d()
	}
	return task(lc.ctx, value)
}

type loopConfig struct {
	ctx      context.Context
	deferred []func()
}

type LoopOption func(*loopConfig) *loopConfig

// WithTimeout bounds each run of the task.
//
// The deadline is set on the context passed to the task, not on the whole loop.
func WithTimeout(d time.Duration) LoopOption {
	return func(lc *loopConfig) *loopConfig {
		ctx, cancel := context.WithTimeout(lc.ctx, d)
		return &loopConfig{ctx: ctx, deferred: append(lc.deferred, cancel)}
	}
}
