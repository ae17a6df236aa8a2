package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/dustin/go-humanize"
	kdb "github.com/opst/fieldarchive/pkg/db"
	"github.com/opst/fieldarchive/pkg/domain"
	"github.com/opst/fieldarchive/pkg/remote"
)

// UploadReport is the outcome of an upload pass.
type UploadReport struct {
	Endpoint string

	// names of artifacts archived in this pass.
	Uploaded []string

	// names of artifacts failed to be uploaded. They stay pending.
	Failed []string

	// names of artifacts skipped, because they are uploading or archived (by others).
	Skipped []string

	// true when the pass is stopped by losing connection.
	Aborted bool
}

// UploadPending uploads pending artifacts for the endpoint.
func (c *Coordinator) UploadPending(ctx context.Context, endpointName string) (UploadReport, error) {
	endpoint, ok := c.config.Endpoints[endpointName]
	if !ok {
		return UploadReport{Endpoint: endpointName}, fmt.Errorf("%w: %s", ErrUnknownEndpoint, endpointName)
	}
	pending, err := c.db.Artifacts().Find(ctx, kdb.ArtifactQuery{
		State: domain.Pending, Endpoint: endpointName,
	})
	if err != nil {
		return UploadReport{Endpoint: endpointName}, err
	}
	return c.CheckAndUpload(ctx, endpoint, pending)
}

// CheckAndUpload uploads artifacts to the endpoint one by one.
//
// The connection is established once for the pass. When it cannot be established,
// the pass is aborted before locking anything.
//
// For each artifact, the pass takes the uploading lock, uploads, and then completes the artifact.
// An artifact which is failed to be uploaded is unlocked and left pending.
// When the connection is lost (and not recovered under the retry policy), the pass stops.
//
// # Returns
//
// - UploadReport
//
// - error: *remote.ConnectionError when the pass is aborted, or infrastructure errors.
// Upload failures of each artifact are not errors.
func (c *Coordinator) CheckAndUpload(ctx context.Context, endpoint remote.Endpoint, pending []domain.Artifact) (UploadReport, error) {
	report := UploadReport{
		Endpoint: endpoint.Name,
		Uploaded: []string{},
		Failed:   []string{},
		Skipped:  []string{},
	}

	candidates := []domain.Artifact{}
	for _, a := range pending {
		if a.Uploading || a.Archived {
			report.Skipped = append(report.Skipped, a.Name)
			continue
		}
		candidates = append(candidates, a)
	}
	if len(candidates) == 0 {
		return report, nil
	}

	conn, err := remote.Connect(ctx, c.dialer, endpoint, c.config.Retry, c.logger)
	if err != nil {
		report.Aborted = true
		uploads.WithLabelValues(endpoint.Name, "aborted").Inc()
		c.logger.Printf("%s: cannot connect. upload pass is aborted: %v", endpoint.Name, err)
		return report, err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			c.logger.Printf("%s: failed to close connection: %v", endpoint.Name, err)
		}
	}()

	for _, a := range candidates {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if err := c.db.Artifacts().Lock(ctx, a.Name); err != nil {
			if errors.Is(err, kdb.ErrConflict) || errors.Is(err, kdb.ErrMissing) {
				report.Skipped = append(report.Skipped, a.Name)
				continue
			}
			return report, err
		}

		remoteDir := c.naming.Dir(a.Key())
		filename := c.naming.FileName(a.Name)
		c.logger.Printf(
			"%s: uploading to %s:%s (%s)",
			a.Name, endpoint.Name, path.Join(remoteDir, filename), humanize.IBytes(uint64(a.Size)),
		)
		if err := conn.Upload(ctx, a.LocalPath, remoteDir, filename); err != nil {
			if uerr := c.db.Artifacts().Unlock(context.WithoutCancel(ctx), a.Name); uerr != nil {
				c.logger.Printf("%s: failed to unlock. it is left for reconciliation: %v", a.Name, uerr)
			}
			if errors.Is(err, domain.ErrConnection) {
				report.Aborted = true
				uploads.WithLabelValues(endpoint.Name, "aborted").Inc()
				c.logger.Printf("%s: connection is lost. upload pass is aborted: %v", endpoint.Name, err)
				return report, err
			}
			report.Failed = append(report.Failed, a.Name)
			uploads.WithLabelValues(endpoint.Name, "failure").Inc()
			c.logger.Printf("%s: upload failed: %v", a.Name, err)
			continue
		}

		if err := c.db.Artifacts().Complete(ctx, a.Name, path.Join(remoteDir, filename)); err != nil {
			// the lock is kept, and released by reconciliation later.
			return report, err
		}
		report.Uploaded = append(report.Uploaded, a.Name)
		uploads.WithLabelValues(endpoint.Name, "success").Inc()
		uploadedBytes.WithLabelValues(endpoint.Name).Add(float64(a.Size))

		if err := removeLocal(a.LocalPath); err != nil {
			c.logger.Printf("%s: archived, but local copy is not removed: %v", a.Name, err)
		} else {
			c.logger.Printf("%s: archived", a.Name)
		}
	}

	return report, nil
}
