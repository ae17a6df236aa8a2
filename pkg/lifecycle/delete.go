package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	kdb "github.com/opst/fieldarchive/pkg/db"
	"github.com/opst/fieldarchive/pkg/domain"
	xe "github.com/opst/fieldarchive/pkg/errors"
	"github.com/opst/fieldarchive/pkg/remote"
)

// Delete removes an artifact.
//
// - When some member files are held ("do not remove"), deletion is refused and nothing is changed.
//
// - Not archived artifact: its local file is removed, and member files return to waiting.
//
// - Archived artifact, not forced: it becomes a placeholder. The local copy is removed
// and the record is kept as metadata.
//
// - Forced: under the lock of the artifact in the database, holds are checked again,
// and the remote copy is removed (deletion is refused when it fails,
// unless the copy is already gone), then the local copy and member files.
// Records are removed last.
//
// # Returns
//
// - error: *domain.DeletionRefused, kdb.ErrMissing, or infrastructure errors.
func (c *Coordinator) Delete(ctx context.Context, name string, force bool) error {
	a, err := c.db.Artifacts().Get(ctx, name)
	if err != nil {
		return err
	}

	if held := a.Holds(); 0 < len(held) {
		ids := make([]string, len(held))
		for nth, h := range held {
			ids[nth] = h.Id
		}
		deletions.WithLabelValues("refused").Inc()
		return &domain.DeletionRefused{
			Artifact: name, Reason: "member files are held", HeldBy: ids,
		}
	}
	if a.Uploading {
		deletions.WithLabelValues("refused").Inc()
		return &domain.DeletionRefused{
			Artifact: name, Reason: "being uploaded", Cause: kdb.ErrConflict,
		}
	}

	switch {
	case force:
		err = c.purge(ctx, a)
	case a.Archived:
		err = c.demote(ctx, a)
	default:
		err = c.discard(ctx, a)
	}
	if err != nil {
		if errors.Is(err, domain.ErrDeletionRefused) {
			deletions.WithLabelValues("refused").Inc()
		}
		return err
	}
	return nil
}

// discard removes a local-only artifact. Member files are packaged again later.
//
// The record goes first. A local file left by a failure is not registered,
// and reconciliation removes it as a temporary.
func (c *Coordinator) discard(ctx context.Context, a domain.Artifact) error {
	if err := c.db.Artifacts().Remove(ctx, a.Name, false, nil); err != nil {
		return err
	}
	if err := removeLocal(a.LocalPath); err != nil {
		c.logger.Printf("%s: discarded, but local file is not removed: %v", a.Name, err)
	}
	deletions.WithLabelValues("discard").Inc()
	c.logger.Printf("%s: discarded. %d files are waiting for packaging again", a.Name, len(a.Members))
	return nil
}

// demote keeps only metadata of an archived artifact.
func (c *Coordinator) demote(ctx context.Context, a domain.Artifact) error {
	if a.Placeholder {
		return nil
	}
	if err := c.db.Artifacts().Demote(ctx, a.Name); err != nil {
		return err
	}
	if err := removeLocal(a.LocalPath); err != nil {
		// reconciliation removes it later.
		c.logger.Printf("%s: placeholder, but local copy is not removed: %v", a.Name, err)
	}
	deletions.WithLabelValues("placeholder").Inc()
	c.logger.Printf("%s: became a placeholder", a.Name)
	return nil
}

// purge removes an artifact from everywhere.
//
// Copies and member files are removed while the database locks the artifact and its members,
// after holds are checked there. Records are removed last.
func (c *Coordinator) purge(ctx context.Context, a domain.Artifact) error {
	err := c.db.Artifacts().Remove(ctx, a.Name, true, func() error {
		if a.Archived {
			if err := c.purgeRemote(ctx, a); err != nil {
				return err
			}
		}
		if err := removeLocal(a.LocalPath); err != nil {
			return xe.Wrap(err)
		}
		for _, m := range a.Members {
			if err := removeLocal(m.Path); err != nil {
				return xe.Wrap(err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	deletions.WithLabelValues("purge").Inc()
	c.logger.Printf("%s: purged with %d files", a.Name, len(a.Members))
	return nil
}

// purgeRemote removes the remote copy. It refuses deletion when the copy cannot be removed.
//
// When no candidate names exist on the remote, the copy is taken as removed already.
func (c *Coordinator) purgeRemote(ctx context.Context, a domain.Artifact) error {
	err := c.removeRemote(ctx, a)
	if rerr := new(remote.RemoveError); errors.As(err, &rerr) && errors.Is(err, domain.ErrMissing) {
		c.logger.Printf(
			"WARNING: %s: no remote copy found on %s, taken as removed already. tried: %s",
			a.Name, a.Endpoint, strings.Join(rerr.Tried, ", "),
		)
		return nil
	}
	if err != nil {
		return &domain.DeletionRefused{
			Artifact: a.Name, Reason: "remote copy cannot be removed", Cause: err,
		}
	}
	c.logger.Printf("%s: removed from %s:%s", a.Name, a.Endpoint, a.RemotePath)
	return nil
}

func (c *Coordinator) removeRemote(ctx context.Context, a domain.Artifact) error {
	endpoint, ok := c.config.Endpoints[a.Endpoint]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEndpoint, a.Endpoint)
	}
	conn, err := remote.Connect(ctx, c.dialer, endpoint, c.config.Retry, c.logger)
	if err != nil {
		return err
	}
	defer conn.Close()
	return conn.RemoveRemote(ctx, a.RemotePath)
}
