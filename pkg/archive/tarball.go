package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/opst/fieldarchive/pkg/bagit"
	kio "github.com/opst/fieldarchive/pkg/utils/io"
)

// Entry is a file to be put in an archive.
type Entry struct {
	// Name is the slash-separated path in the archive.
	Name string

	// Source is the path to the local file.
	Source string
}

var (
	// ErrDuplicatedEntry is caused when two entries have the same name.
	ErrDuplicatedEntry = errors.New("duplicated entry")

	// ErrStopWalk stops Walk without error.
	ErrStopWalk = errors.New("stop walking")
)

type source struct {
	name string
	path string
	info os.FileInfo
}

// sources validates entries before anything is written.
func sources(entries []Entry) ([]source, error) {
	srcs := make([]source, 0, len(entries))
	seen := map[string]bool{}
	for _, e := range entries {
		name, err := bagit.CleanRelativePath(e.Name)
		if err != nil {
			return nil, err
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatedEntry, name)
		}
		seen[name] = true

		info, err := os.Stat(e.Source)
		if err != nil {
			return nil, err
		}
		if !info.Mode().IsRegular() {
			return nil, fmt.Errorf("%s: not a regular file", e.Source)
		}
		srcs = append(srcs, source{name: name, path: e.Source, info: info})
	}
	return srcs, nil
}

// Tar writes entries into dest as a gzip-compressed tar stream, in the given order.
//
// Entries are validated first, and nothing is written for invalid entries:
// absolute or escaping names cause bagit.ErrUnsafePath, and duplicated names
// cause ErrDuplicatedEntry. Symlinks are followed, so every entry is a regular file.
//
// It returns the number of payload bytes written. dest is not closed.
func Tar(ctx context.Context, entries []Entry, dest io.Writer) (int64, error) {
	srcs, err := sources(entries)
	if err != nil {
		return 0, err
	}

	gzw := gzip.NewWriter(dest)
	tw := tar.NewWriter(gzw)
	var written int64
	for _, s := range srcs {
		n, err := writeEntry(ctx, tw, s)
		written += n
		if err != nil {
			return written, err
		}
	}
	if err := tw.Close(); err != nil {
		return written, err
	}
	return written, gzw.Close()
}

func writeEntry(ctx context.Context, tw *tar.Writer, s source) (int64, error) {
	hdr, err := tar.FileInfoHeader(s.info, "")
	if err != nil {
		return 0, err
	}
	hdr.Name = s.name
	hdr.Uname, hdr.Gname = "", ""

	f, err := os.Open(s.path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if err := tw.WriteHeader(hdr); err != nil {
		return 0, err
	}
	// the header fixes the size. a file changing while archived breaks the entry.
	n, err := io.CopyN(tw, kio.ContextReader(ctx, f), hdr.Size)
	if err != nil {
		return n, fmt.Errorf("%s: %w", s.path, err)
	}
	return n, nil
}

// Walk calls fn for each entry of a tar.gz stream, with a reader of its content.
//
// When fn returns ErrStopWalk, Walk stops and returns nil.
// Other errors from fn are returned as they are. src is not closed.
func Walk(src io.Reader, fn func(hdr *tar.Header, content io.Reader) error) error {
	gzr, err := gzip.NewReader(src)
	if err != nil {
		return err
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(hdr, tr); errors.Is(err, ErrStopWalk) {
			return nil
		} else if err != nil {
			return err
		}
	}
}

// Untar extracts regular files of a tar.gz stream into dest. Other entries are skipped.
//
// Entries with unsafe names, absolute or escaping from dest, cause bagit.ErrUnsafePath.
func Untar(ctx context.Context, src io.Reader, dest string) error {
	return Walk(kio.ContextReader(ctx, src), func(hdr *tar.Header, content io.Reader) error {
		if hdr.Typeflag != tar.TypeReg {
			return nil
		}
		name, err := bagit.CleanRelativePath(hdr.Name)
		if err != nil {
			return err
		}
		f, err := kio.CreateAll(
			filepath.Join(dest, filepath.FromSlash(name)), os.FileMode(hdr.Mode).Perm(), 0755,
		)
		if err != nil {
			return err
		}
		if _, err := io.Copy(f, content); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	})
}
