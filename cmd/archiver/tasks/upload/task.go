package upload

import (
	"context"
	"errors"
	"log"

	"github.com/opst/fieldarchive/cmd/archiver/recurring"
	"github.com/opst/fieldarchive/pkg/domain"
	"github.com/opst/fieldarchive/pkg/lifecycle"
)

type Uploader interface {
	UploadPending(ctx context.Context, endpoint string) (lifecycle.UploadReport, error)
}

// initial value for task
func Seed(endpoint string) lifecycle.UploadReport {
	return lifecycle.UploadReport{Endpoint: endpoint}
}

// return:
//
// - task: upload pending artifacts to the endpoint.
// It is "updated" when some artifacts are archived.
//
// Losing connection to the endpoint is not an error of the task:
// the pass ends and the next pass tries again.
func Task(logger *log.Logger, u Uploader, endpoint string) recurring.Task[lifecycle.UploadReport] {
	return func(ctx context.Context, _ lifecycle.UploadReport) (lifecycle.UploadReport, bool, error) {
		report, err := u.UploadPending(ctx, endpoint)
		if err != nil {
			if errors.Is(err, domain.ErrConnection) && ctx.Err() == nil {
				logger.Printf("%s is unreachable: %v", endpoint, err)
				return report, false, nil
			}
			return report, false, err
		}
		return report, 0 < len(report.Uploaded), nil
	}
}
