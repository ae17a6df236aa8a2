// Package archive packages groups of files as BagIt-style tar.gz artifacts.
package archive

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/opst/fieldarchive/pkg/bagit"
	"github.com/opst/fieldarchive/pkg/domain"
	xe "github.com/opst/fieldarchive/pkg/errors"
)

const (
	// prefix of temporary build directories in destination directories.
	BuildDirPrefix = ".build-"

	// suffix of archive files being written.
	PartSuffix = ".part"
)

// Result is the outcome of Package.
type Result struct {
	Success bool

	Name string

	// path to the archive file. empty unless Success.
	LocalPath string

	// size of the archive file in bytes.
	Size int64

	CreatedAt time.Time

	Metadata bagit.Metadata
}

type Packager struct {
	naming Naming
	clock  func() time.Time
	logger *log.Logger
}

type Option func(*Packager) *Packager

// WithClock replaces the clock deciding creation timestamps.
func WithClock(clock func() time.Time) Option {
	return func(p *Packager) *Packager {
		p.clock = clock
		return p
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(p *Packager) *Packager {
		p.logger = logger
		return p
	}
}

func New(options ...Option) *Packager {
	p := &Packager{
		clock:  time.Now,
		logger: log.New(io.Discard, "", 0),
	}
	for _, o := range options {
		p = o(p)
	}
	return p
}

// Package writes an artifact of group into destinationDir.
//
// The archive contains bagit.txt, manifest-md5.txt, tagmanifest-md5.txt and
// metadata.json at its root, and each member file at data/<relative path>.
//
// The archive is written as <name>.tar.gz.part and renamed to <name>.tar.gz when completed.
// Tag files are built in a temporary directory <destinationDir>/.build-<name>,
// which is removed in any case.
//
// Source files are never modified.
//
// # Returns
//
// - Result: Success is true only when the archive is in place.
//
// - error: *PackagingError or *bagit.ManifestBuildError.
// When an error is returned, no artifact file is left in destinationDir.
func (p *Packager) Package(ctx context.Context, group domain.SizeGroup, destinationDir string) (Result, error) {
	if len(group.Files) == 0 {
		return Result{}, &PackagingError{Err: ErrEmptyGroup}
	}
	if err := os.MkdirAll(destinationDir, 0755); err != nil {
		return Result{}, &PackagingError{Err: xe.Wrap(err)}
	}

	createdAt := p.clock().UTC().Truncate(time.Second)
	name, err := p.reserveName(group, createdAt, destinationDir)
	if err != nil {
		return Result{}, &PackagingError{Err: err}
	}
	result := Result{Name: name, CreatedAt: createdAt}

	buildDir := filepath.Join(destinationDir, BuildDirPrefix+name)
	defer os.RemoveAll(buildDir)

	tags, err := bagit.NewBuilder(ctx).Build(group, buildDir)
	if err != nil {
		return result, err
	}

	meta, err := bagit.NewMetadata(name, group, createdAt)
	if err != nil {
		return result, &bagit.ManifestBuildError{Path: buildDir, Err: err}
	}
	metapath, err := bagit.WriteMetadata(meta, buildDir)
	if err != nil {
		return result, err
	}
	tags = append(tags, metapath)

	entries := make([]Entry, 0, len(tags)+len(group.Files))
	for _, t := range tags {
		entries = append(entries, Entry{Name: filepath.Base(t), Source: t})
	}
	for _, f := range group.Files {
		payload, err := bagit.PayloadPath(f.RelativePath)
		if err != nil {
			return result, &PackagingError{Name: name, Err: err}
		}
		entries = append(entries, Entry{Name: payload, Source: f.Path})
	}

	dest := filepath.Join(destinationDir, p.naming.FileName(name))
	part := dest + PartSuffix
	if err := writeArchive(ctx, entries, part); err != nil {
		os.Remove(part)
		return result, &PackagingError{Name: name, Err: err}
	}

	stat, err := os.Stat(part)
	if err != nil {
		os.Remove(part)
		return result, &PackagingError{Name: name, Err: xe.Wrap(err)}
	}
	if err := os.Rename(part, dest); err != nil {
		os.Remove(part)
		return result, &PackagingError{Name: name, Err: xe.Wrap(err)}
	}

	result.Success = true
	result.LocalPath = dest
	result.Size = stat.Size()
	result.Metadata = meta
	p.logger.Printf(
		"packaged %s: %d files (%s) -> %s",
		name, len(group.Files), humanize.IBytes(uint64(group.TotalSize)), humanize.IBytes(uint64(stat.Size())),
	)
	return result, nil
}

// reserveName picks the smallest sequence number which is not used in destinationDir.
func (p *Packager) reserveName(group domain.SizeGroup, createdAt time.Time, destinationDir string) (string, error) {
	for seq := 0; ; seq++ {
		name := p.naming.Name(group, createdAt, seq)
		used := false
		for _, candidate := range []string{
			p.naming.FileName(name),
			p.naming.FileName(name) + PartSuffix,
			BuildDirPrefix + name,
		} {
			_, err := os.Lstat(filepath.Join(destinationDir, candidate))
			if err == nil {
				used = true
				break
			}
			if !errors.Is(err, os.ErrNotExist) {
				return "", xe.Wrap(err)
			}
		}
		if !used {
			return name, nil
		}
	}
}

func writeArchive(ctx context.Context, entries []Entry, dest string) error {
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return xe.Wrap(err)
	}

	if _, err := Tar(ctx, entries, f); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return xe.Wrap(err)
	}
	if err := f.Close(); err != nil {
		return xe.Wrap(err)
	}
	return nil
}

// Leftovers lists temporary files and directories in destinationDir
// which are left by interrupted packaging: build directories and partial archives.
func Leftovers(destinationDir string) ([]string, error) {
	entries, err := os.ReadDir(destinationDir)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	} else if err != nil {
		return nil, xe.Wrap(err)
	}
	found := []string{}
	for _, e := range entries {
		n := e.Name()
		if (e.IsDir() && strings.HasPrefix(n, BuildDirPrefix)) ||
			(!e.IsDir() && strings.HasSuffix(n, Extension+PartSuffix)) {
			found = append(found, filepath.Join(destinationDir, n))
		}
	}
	return found, nil
}

// Names lists artifact names of archive files in destinationDir.
func Names(destinationDir string) ([]string, error) {
	entries, err := os.ReadDir(destinationDir)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	} else if err != nil {
		return nil, xe.Wrap(err)
	}
	names := []string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if n, ok := (Naming{}).NameOf(path.Base(e.Name())); ok {
			names = append(names, n)
		}
	}
	return names, nil
}
