// Package lifecycle drives artifacts through their lifecycle:
// packaging waiting files, uploading pending artifacts, guarded deletion and reconciliation.
//
// Exclusion between processes relies only on persisted state (file claims and the uploading flag),
// so any number of coordinators may run against the same database.
package lifecycle

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"time"

	"github.com/opst/fieldarchive/pkg/archive"
	"github.com/opst/fieldarchive/pkg/configs/archiver"
	kdb "github.com/opst/fieldarchive/pkg/db"
	"github.com/opst/fieldarchive/pkg/domain"
	"github.com/opst/fieldarchive/pkg/remote"
	"github.com/opst/fieldarchive/pkg/utils/retry"
)

// Packager makes an artifact file from a group.
//
// *archive.Packager implements this.
type Packager interface {
	Package(ctx context.Context, group domain.SizeGroup, destinationDir string) (archive.Result, error)
}

type Config struct {
	// root directory of artifacts on local storage.
	StorageRoot string

	// upper bound of group size. see grouping.Group.
	MaxGroupBytes int64

	// groups smaller than this are not archived yet.
	MinArchiveBytes int64

	// endpoint name which new artifacts are uploaded to.
	Endpoint string

	// endpoints by name.
	Endpoints map[string]remote.Endpoint

	// claims and temporary files older than this are regarded as left by crashed passes.
	ClaimTimeout time.Duration

	// uploading locks older than this are regarded as left by crashed passes.
	UploadingTimeout time.Duration

	Retry retry.Policy
}

// ConfigFrom builds Config from the configuration file.
func ConfigFrom(conf *archiver.Config) Config {
	return Config{
		StorageRoot:      conf.Archive().StorageRoot(),
		MaxGroupBytes:    conf.Archive().MaxGroupSize(),
		MinArchiveBytes:  conf.Archive().MinArchiveSize(),
		Endpoint:         conf.Archive().Endpoint(),
		Endpoints:        conf.Remote().EndpointsByName(),
		ClaimTimeout:     conf.Archive().ClaimTimeout(),
		UploadingTimeout: conf.Archive().UploadingTimeout(),
		Retry:            conf.Remote().Retry(),
	}
}

type Coordinator struct {
	db       kdb.Database
	packager Packager
	dialer   remote.Dialer
	config   Config
	naming   archive.Naming

	logger *log.Logger
	clock  func() time.Time
}

type Option func(*Coordinator) *Coordinator

func WithLogger(logger *log.Logger) Option {
	return func(c *Coordinator) *Coordinator {
		c.logger = logger
		return c
	}
}

// WithClock replaces the clock used to judge ages of temporary files.
func WithClock(clock func() time.Time) Option {
	return func(c *Coordinator) *Coordinator {
		c.clock = clock
		return c
	}
}

func New(db kdb.Database, packager Packager, dialer remote.Dialer, config Config, options ...Option) *Coordinator {
	c := &Coordinator{
		db:       db,
		packager: packager,
		dialer:   dialer,
		config:   config,
		logger:   log.New(io.Discard, "", 0),
		clock:    time.Now,
	}
	for _, o := range options {
		c = o(c)
	}
	return c
}

// ErrUnknownEndpoint is returned when an endpoint name is not configured.
var ErrUnknownEndpoint = errors.New("unknown endpoint")

// removeLocal removes a local file. A file already removed is not an error.
func removeLocal(p string) error {
	if p == "" {
		return nil
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
