package db

import (
	"context"
	"time"

	"github.com/opst/fieldarchive/pkg/domain"
)

// Claim is a set of files assigned to a packaging pass.
type Claim struct {
	// Token identifies the claim. Files claimed have this token until released or registered.
	Token string

	Key domain.GroupKey

	// Files claimed, in the order of (RecordedAt, CreatedAt, Id).
	Files []domain.FileDescriptor
}

type FileInterface interface {
	// Register records files to be archived.
	//
	// Files already registered (same Id) are left as they are.
	//
	// # Returns
	//
	// - int: number of files newly registered.
	Register(ctx context.Context, files []domain.FileDescriptor) (int, error)

	// Keys returns grouping keys which have files waiting for packaging:
	// not archived, not in any artifact, and not claimed.
	Keys(ctx context.Context) ([]domain.GroupKey, error)

	// Claim takes files waiting for packaging with the key.
	//
	// Files being claimed by other passes are skipped.
	//
	// # Returns
	//
	// - Claim: claimed files. When no files are waiting, Claim.Files is empty.
	Claim(ctx context.Context, key domain.GroupKey) (Claim, error)

	// Release returns claimed files to waiting.
	//
	// Files which are not claimed by the token are not affected.
	Release(ctx context.Context, token string, ids []string) error

	// ReleaseStale releases claims older than the threshold.
	//
	// # Returns
	//
	// - int: number of files released.
	ReleaseStale(ctx context.Context, olderThan time.Duration) (int, error)

	// Get returns files with their persisted flags.
	//
	// # Returns
	//
	// - error: ErrMissing when some of ids are not found.
	Get(ctx context.Context, ids []string) ([]domain.FileStatus, error)
}
