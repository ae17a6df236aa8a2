package lifecycle

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/dustin/go-humanize"
	kdb "github.com/opst/fieldarchive/pkg/db"
	"github.com/opst/fieldarchive/pkg/domain"
	xe "github.com/opst/fieldarchive/pkg/errors"
	"github.com/opst/fieldarchive/pkg/grouping"
)

// KeyReport is the outcome of packaging files of a grouping key.
type KeyReport struct {
	Key domain.GroupKey

	// number of files claimed.
	Claimed int

	// names of artifacts registered.
	Artifacts []string

	// number of files released because their group is too small.
	TooSmall int

	// number of groups failed to be packaged or registered.
	Failed int
}

type PackReport struct {
	Keys []KeyReport
}

// Packaged returns names of all artifacts registered.
func (r PackReport) Packaged() []string {
	names := []string{}
	for _, k := range r.Keys {
		names = append(names, k.Artifacts...)
	}
	return names
}

// PackagePending packages waiting files of every grouping key.
//
// # Returns
//
// - PackReport: outcomes per key.
//
// - error: infrastructure errors (for example, the database is unreachable).
// Failures of packaging itself are not errors; they are counted in the report.
func (c *Coordinator) PackagePending(ctx context.Context) (PackReport, error) {
	report := PackReport{Keys: []KeyReport{}}
	keys, err := c.db.Files().Keys(ctx)
	if err != nil {
		return report, err
	}

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		kr, err := c.PackageKey(ctx, key)
		report.Keys = append(report.Keys, kr)
		if err != nil {
			return report, err
		}
	}
	return report, nil
}

// PackageKey packages waiting files of the key.
//
// It claims the waiting files, groups them, and makes an artifact for each qualifying group.
// Files in too small groups and in failed groups are released to be tried again later.
func (c *Coordinator) PackageKey(ctx context.Context, key domain.GroupKey) (KeyReport, error) {
	report := KeyReport{Key: key, Artifacts: []string{}}

	claim, err := c.db.Files().Claim(ctx, key)
	if err != nil {
		return report, err
	}
	report.Claimed = len(claim.Files)
	if len(claim.Files) == 0 {
		return report, nil
	}

	groups := grouping.Group(claim.Files, c.config.MaxGroupBytes)
	qualifying, tooSmall := grouping.Partition(groups, c.config.MinArchiveBytes)

	for _, g := range tooSmall {
		report.TooSmall += len(g.Files)
		if err := c.release(ctx, claim.Token, g); err != nil {
			return report, err
		}
	}
	if 0 < report.TooSmall {
		c.logger.Printf(
			"%s: %d files are waiting for more (less than %s)",
			key, report.TooSmall, humanize.IBytes(uint64(c.config.MinArchiveBytes)),
		)
	}

	dir := filepath.Join(c.config.StorageRoot, c.naming.Dir(key))
	for nth, g := range qualifying {
		if ctx.Err() != nil {
			for _, rest := range qualifying[nth:] {
				if err := c.release(ctx, claim.Token, rest); err != nil {
					return report, err
				}
			}
			return report, ctx.Err()
		}

		name, err := c.packageGroup(ctx, claim, g, dir)
		if err == nil {
			report.Artifacts = append(report.Artifacts, name)
			artifactsPackaged.Inc()
			continue
		}

		report.Failed += 1
		packagingFailures.Inc()
		if rerr := c.release(ctx, claim.Token, g); rerr != nil {
			return report, rerr
		}
		if !isGroupFailure(err) {
			return report, err
		}
		c.logger.Printf("%s: failed to package %d files: %v", key, len(g.Files), err)
	}

	return report, nil
}

// isGroupFailure reports that err is confined to the group, and next groups can go on.
func isGroupFailure(err error) bool {
	return errors.Is(err, domain.ErrPackaging) ||
		errors.Is(err, domain.ErrManifestBuild) ||
		errors.Is(err, kdb.ErrConflict)
}

func (c *Coordinator) packageGroup(ctx context.Context, claim kdb.Claim, g domain.SizeGroup, dir string) (string, error) {
	result, err := c.packager.Package(ctx, g, dir)
	if err != nil {
		return "", err
	}
	if !result.Success {
		removeLocal(result.LocalPath)
		return "", xe.Wrap(domain.ErrPackaging)
	}

	members := make([]domain.FileStatus, len(g.Files))
	for nth, f := range g.Files {
		members[nth] = domain.FileStatus{FileDescriptor: f, LocalStorage: true}
	}
	key := g.Key()
	artifact := domain.Artifact{
		Name:         result.Name,
		Endpoint:     c.config.Endpoint,
		Project:      key.Project,
		DeviceType:   key.DeviceType,
		LocalPath:    result.LocalPath,
		Size:         result.Size,
		FileCount:    len(g.Files),
		LocalStorage: true,
		CreatedAt:    result.CreatedAt,
		Members:      members,
	}
	if err := c.db.Artifacts().Register(ctx, artifact, claim.Token); err != nil {
		if rerr := removeLocal(result.LocalPath); rerr != nil {
			c.logger.Printf("%s: failed to remove unregistered artifact file: %v", result.Name, rerr)
		}
		return "", err
	}

	c.logger.Printf(
		"%s: registered (%d files, %s) for %s",
		artifact.Name, artifact.FileCount, humanize.IBytes(uint64(artifact.Size)), artifact.Endpoint,
	)
	return artifact.Name, nil
}

// release returns files of the group to waiting, even if ctx is cancelled.
func (c *Coordinator) release(ctx context.Context, token string, g domain.SizeGroup) error {
	return c.db.Files().Release(context.WithoutCancel(ctx), token, g.Ids())
}
