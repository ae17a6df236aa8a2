package packaging

import (
	"context"

	"github.com/opst/fieldarchive/cmd/archiver/recurring"
	"github.com/opst/fieldarchive/pkg/lifecycle"
)

type Packager interface {
	PackagePending(ctx context.Context) (lifecycle.PackReport, error)
}

// initial value for task
func Seed() lifecycle.PackReport {
	return lifecycle.PackReport{}
}

// return:
//
// - task: package waiting files into artifacts.
// It is "updated" when some artifacts are made.
func Task(p Packager) recurring.Task[lifecycle.PackReport] {
	return func(ctx context.Context, _ lifecycle.PackReport) (lifecycle.PackReport, bool, error) {
		report, err := p.PackagePending(ctx)
		if err != nil {
			return report, false, err
		}
		return report, 0 < len(report.Packaged()), nil
	}
}
