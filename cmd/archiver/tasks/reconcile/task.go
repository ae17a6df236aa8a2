package reconcile

import (
	"context"

	"github.com/opst/fieldarchive/cmd/archiver/recurring"
	"github.com/opst/fieldarchive/pkg/lifecycle"
)

type Reconciler interface {
	Reconcile(ctx context.Context) (lifecycle.ReconcileReport, error)
}

// initial value for task
func Seed() lifecycle.ReconcileReport {
	return lifecycle.ReconcileReport{}
}

// return:
//
// - task: resolve inconsistencies left by crashed passes.
// It is "updated" when something is resolved.
func Task(r Reconciler) recurring.Task[lifecycle.ReconcileReport] {
	return func(ctx context.Context, _ lifecycle.ReconcileReport) (lifecycle.ReconcileReport, bool, error) {
		report, err := r.Reconcile(ctx)
		if err != nil {
			return report, false, err
		}
		return report, report.Resolved(), nil
	}
}
