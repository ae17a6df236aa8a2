package db

import (
	"context"
	"time"

	"github.com/opst/fieldarchive/pkg/domain"
)

// ArtifactQuery filters artifacts. Zero values mean "any".
type ArtifactQuery struct {
	State      domain.ArtifactState
	Endpoint   string
	Project    string
	DeviceType string
}

type ArtifactInterface interface {
	// Register records a new pending artifact and its members.
	//
	// Members are taken from the claim: member files get the artifact,
	// and their claim is cleared in the same transaction.
	//
	// # Returns
	//
	// - error: ErrConflict when some members are no longer claimed by the token,
	// or the name is already used. Nothing is recorded in that case.
	Register(ctx context.Context, artifact domain.Artifact, claimToken string) error

	// Get returns an artifact with its members.
	//
	// # Returns
	//
	// - error: ErrMissing when not found.
	Get(ctx context.Context, name string) (domain.Artifact, error)

	// Find returns artifacts matching the query, without members.
	//
	// Artifacts are ordered by creation time, then name.
	Find(ctx context.Context, query ArtifactQuery) ([]domain.Artifact, error)

	// Lock marks an artifact as being uploaded.
	//
	// Only pending artifacts (not uploading, not archived) can be locked.
	//
	// # Returns
	//
	// - error: ErrConflict when the artifact is uploading or archived.
	// ErrMissing when not found.
	Lock(ctx context.Context, name string) error

	// Unlock clears the uploading mark.
	Unlock(ctx context.Context, name string) error

	// Complete records that the artifact is placed on remote as remotePath.
	//
	// In a transaction, the artifact becomes archived (and not uploading,
	// not on local storage), and all of its members become archived.
	//
	// # Returns
	//
	// - error: ErrConflict when the artifact is not locked.
	Complete(ctx context.Context, name string, remotePath string) error

	// ReleaseStaleLocks clears uploading marks older than the threshold.
	//
	// # Returns
	//
	// - []string: names of artifacts unlocked.
	ReleaseStaleLocks(ctx context.Context, olderThan time.Duration) ([]string, error)

	// RepairMembers marks members of archived artifacts as archived, if they are not.
	//
	// # Returns
	//
	// - []string: names of artifacts repaired.
	RepairMembers(ctx context.Context) ([]string, error)

	// Demote turns an archived artifact into a placeholder: local copy is forgotten,
	// and metadata is kept.
	//
	// # Returns
	//
	// - error: ErrConflict when the artifact is not archived.
	Demote(ctx context.Context, name string) error

	// SetLocalStorage updates the local_storage flag of the artifact.
	SetLocalStorage(ctx context.Context, name string, local bool) error

	// Remove deletes the artifact record.
	//
	// If withFiles is true, member file records are deleted too.
	// Otherwise, member files are returned to waiting for packaging.
	//
	// The artifact and its member files are locked until Remove returns,
	// so no hold or upload can start in between.
	// apply is called under the lock after checks pass, and before records are deleted.
	// It may be nil.
	//
	// # Returns
	//
	// - error: *domain.DeletionRefused when some members have "do not remove" hold.
	// ErrConflict when the artifact is uploading.
	// The error from apply.
	// Nothing is changed in these cases, and apply is not called for the former two.
	Remove(ctx context.Context, name string, withFiles bool, apply func() error) error
}
