package recurring

import (
	"context"

	"github.com/opst/fieldarchive/pkg/loop"
)

// Task is one pass of a recurring loop.
//
// It returns the report of the pass, whether it has updated something
// (so more backlog can remain), and an infrastructure error if any.
type Task[T any] func(context.Context, T) (T, bool, error)

// Applied makes a loop.Task which runs the pass and lets p decide what comes next.
func (rt Task[T]) Applied(p Policy) loop.Task[T] {
	return func(ctx context.Context, last T) (T, loop.Next) {
		report, updated, err := rt(ctx, last)
		return report, p.Next(updated, err)
	}
}
