package lifecycle

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/opst/fieldarchive/pkg/archive"
	kdb "github.com/opst/fieldarchive/pkg/db"
	"github.com/opst/fieldarchive/pkg/domain"
	xe "github.com/opst/fieldarchive/pkg/errors"
)

// ReconcileReport is the outcome of Reconcile.
type ReconcileReport struct {
	// artifacts unlocked because their uploading lock is too old.
	ReleasedLocks []string

	// archived artifacts whose members are marked as archived.
	Repaired []string

	// number of files released from too old claims.
	ReleasedClaims int

	// local copies of archived artifacts removed.
	RemovedCopies []string

	// temporary files left by interrupted packaging, and artifact files not registered.
	RemovedTemporaries []string
}

// Resolved reports that Reconcile has changed something.
func (r ReconcileReport) Resolved() bool {
	return 0 < len(r.ReleasedLocks) ||
		0 < len(r.Repaired) ||
		0 < r.ReleasedClaims ||
		0 < len(r.RemovedCopies) ||
		0 < len(r.RemovedTemporaries)
}

// Reconcile resolves inconsistencies left by crashed or interrupted passes.
//
// - uploading locks older than UploadingTimeout are released. Their artifacts get pending again.
//
// - member files of archived artifacts are marked as archived.
//
// - claims older than ClaimTimeout are released.
//
// - local copies of archived artifacts are removed.
//
// - build directories and partial archives older than ClaimTimeout are removed,
// and so are artifact files which are not registered.
func (c *Coordinator) Reconcile(ctx context.Context) (ReconcileReport, error) {
	report := ReconcileReport{
		ReleasedLocks:      []string{},
		Repaired:           []string{},
		RemovedCopies:      []string{},
		RemovedTemporaries: []string{},
	}

	locks, err := c.db.Artifacts().ReleaseStaleLocks(ctx, c.config.UploadingTimeout)
	if err != nil {
		return report, err
	}
	report.ReleasedLocks = locks
	for _, name := range locks {
		c.logger.Printf("%s: stale uploading lock is released", name)
	}
	reconciled.WithLabelValues("lock").Add(float64(len(locks)))

	repaired, err := c.db.Artifacts().RepairMembers(ctx)
	if err != nil {
		return report, err
	}
	report.Repaired = repaired
	for _, name := range repaired {
		c.logger.Printf("%s: members are marked as archived", name)
	}
	reconciled.WithLabelValues("members").Add(float64(len(repaired)))

	claims, err := c.db.Files().ReleaseStale(ctx, c.config.ClaimTimeout)
	if err != nil {
		return report, err
	}
	report.ReleasedClaims = claims
	if 0 < claims {
		c.logger.Printf("%d files are released from stale claims", claims)
	}
	reconciled.WithLabelValues("claim").Add(float64(claims))

	copies, err := c.removeArchivedCopies(ctx)
	report.RemovedCopies = copies
	reconciled.WithLabelValues("copy").Add(float64(len(copies)))
	if err != nil {
		return report, err
	}

	temps, err := c.removeTemporaries(ctx)
	report.RemovedTemporaries = temps
	reconciled.WithLabelValues("temporary").Add(float64(len(temps)))
	if err != nil {
		return report, err
	}

	return report, nil
}

func (c *Coordinator) removeArchivedCopies(ctx context.Context) ([]string, error) {
	removed := []string{}
	for _, state := range []domain.ArtifactState{domain.Archived, domain.Placeholder} {
		artifacts, err := c.db.Artifacts().Find(ctx, kdb.ArtifactQuery{State: state})
		if err != nil {
			return removed, err
		}
		for _, a := range artifacts {
			if a.LocalPath == "" {
				continue
			}
			if _, err := os.Stat(a.LocalPath); errors.Is(err, os.ErrNotExist) {
				if a.LocalStorage {
					if err := c.db.Artifacts().SetLocalStorage(ctx, a.Name, false); err != nil {
						return removed, err
					}
				}
				continue
			} else if err != nil {
				c.logger.Printf("%s: cannot check local copy: %v", a.Name, err)
				continue
			}

			if err := removeLocal(a.LocalPath); err != nil {
				c.logger.Printf("%s: failed to remove local copy: %v", a.Name, err)
				continue
			}
			if a.LocalStorage {
				if err := c.db.Artifacts().SetLocalStorage(ctx, a.Name, false); err != nil {
					return removed, err
				}
			}
			removed = append(removed, a.Name)
			c.logger.Printf("%s: local copy of archived artifact is removed", a.Name)
		}
	}
	return removed, nil
}

// removeTemporaries walks the storage root and removes files left by interrupted packaging.
func (c *Coordinator) removeTemporaries(ctx context.Context) ([]string, error) {
	removed := []string{}
	if c.config.StorageRoot == "" {
		return removed, nil
	}
	now := c.clock()
	stale := func(p string) bool {
		info, err := os.Lstat(p)
		if err != nil {
			return false
		}
		return c.config.ClaimTimeout < now.Sub(info.ModTime())
	}
	remove := func(p string) {
		if err := os.RemoveAll(p); err != nil {
			c.logger.Printf("failed to remove %s: %v", p, err)
			return
		}
		removed = append(removed, p)
		c.logger.Printf("leftover %s is removed", p)
	}

	err := filepath.WalkDir(c.config.StorageRoot, func(dir string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), archive.BuildDirPrefix) {
			return filepath.SkipDir
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		leftovers, err := archive.Leftovers(dir)
		if err != nil {
			return err
		}
		for _, p := range leftovers {
			if stale(p) {
				remove(p)
			}
		}

		names, err := archive.Names(dir)
		if err != nil {
			return err
		}
		for _, name := range names {
			p := filepath.Join(dir, c.naming.FileName(name))
			if !stale(p) {
				continue
			}
			if _, err := c.db.Artifacts().Get(ctx, name); err == nil {
				continue
			} else if !errors.Is(err, kdb.ErrMissing) {
				return err
			}
			remove(p)
		}
		return nil
	})
	if err != nil {
		return removed, xe.Wrap(err)
	}
	return removed, nil
}
