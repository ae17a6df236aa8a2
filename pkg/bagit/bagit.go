// Package bagit builds the tag files of BagIt-style bags.
//
// A bag built by this package is laid out as below when it is extracted:
//
//	bagit.txt            -- bag declaration
//	manifest-md5.txt     -- checksums of payload files
//	tagmanifest-md5.txt  -- checksums of bagit.txt and manifest-md5.txt
//	metadata.json        -- description of the artifact (not in tag manifest)
//	data/...             -- payload files
//
// Only MD5 manifests are supported. Fetch files and bag-info.txt are not implemented.
package bagit

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/opst/fieldarchive/pkg/domain"
	kio "github.com/opst/fieldarchive/pkg/utils/io"
)

const (
	// Version is the version of the BagIt specification this package declares.
	Version = "0.97"

	DeclarationFile = "bagit.txt"
	ManifestFile    = "manifest-md5.txt"
	TagManifestFile = "tagmanifest-md5.txt"
	MetadataFile    = "metadata.json"

	// PayloadDir is the directory in bags where payload files are stored.
	PayloadDir = "data"
)

// Declaration is the content of bagit.txt.
const Declaration = "BagIt-Version: " + Version + "\n" +
	"Tag-File-Character-Encoding: UTF-8\n"

// ManifestBuildError is caused when manifests cannot be built.
type ManifestBuildError struct {
	// path of file being processed
	Path string
	Err  error
}

func (e *ManifestBuildError) Error() string {
	return fmt.Sprintf("failed to build manifest (%s): %v", e.Path, e.Err)
}

func (e *ManifestBuildError) Unwrap() error {
	return e.Err
}

func (e *ManifestBuildError) Is(err error) bool {
	return err == domain.ErrManifestBuild
}

// PayloadPath returns the path of a payload file in bags.
//
// relpath is cleaned and slash-separated.
// It returns an error when relpath is absolute or escapes from the payload directory.
func PayloadPath(relpath string) (string, error) {
	clean, err := CleanRelativePath(relpath)
	if err != nil {
		return "", err
	}
	return path.Join(PayloadDir, clean), nil
}

// CleanRelativePath normalizes a relative path as slash-separated, cleaned path.
func CleanRelativePath(relpath string) (string, error) {
	slashed := filepath.ToSlash(relpath)
	if slashed == "" || path.IsAbs(slashed) || filepath.IsAbs(relpath) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, relpath)
	}
	clean := path.Clean(slashed)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, relpath)
	}
	return clean, nil
}

// Builder builds tag files of a bag.
type Builder struct {
	ctx context.Context
}

func NewBuilder(ctx context.Context) *Builder {
	return &Builder{ctx: ctx}
}

// Build writes bagit.txt, manifest-md5.txt and tagmanifest-md5.txt in outputDir.
//
// Lines in manifest-md5.txt are in the same order as group.Files.
// Payload files are hashed in streaming, so they can be larger than memory.
//
// # Returns
//
// - []string: paths of files written, in the order of
// bagit.txt, manifest-md5.txt and tagmanifest-md5.txt.
// These are transient. Callers should remove them after packaging.
//
// - error: *ManifestBuildError, when outputDir cannot be created or files cannot be read.
func (b *Builder) Build(group domain.SizeGroup, outputDir string) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, &ManifestBuildError{Path: outputDir, Err: err}
	}

	written := []string{}

	declaration := filepath.Join(outputDir, DeclarationFile)
	if err := os.WriteFile(declaration, []byte(Declaration), 0644); err != nil {
		return written, &ManifestBuildError{Path: declaration, Err: err}
	}
	written = append(written, declaration)

	manifest := filepath.Join(outputDir, ManifestFile)
	{
		lines := new(strings.Builder)
		for _, f := range group.Files {
			payload, err := PayloadPath(f.RelativePath)
			if err != nil {
				return written, &ManifestBuildError{Path: f.Path, Err: err}
			}
			sum, _, err := kio.MD5File(b.ctx, f.Path)
			if err != nil {
				return written, &ManifestBuildError{Path: f.Path, Err: err}
			}
			lines.WriteString(ManifestLine(sum, payload))
		}
		if err := os.WriteFile(manifest, []byte(lines.String()), 0644); err != nil {
			return written, &ManifestBuildError{Path: manifest, Err: err}
		}
	}
	written = append(written, manifest)

	tagManifest := filepath.Join(outputDir, TagManifestFile)
	{
		lines := new(strings.Builder)
		for _, tag := range written {
			sum, _, err := kio.MD5File(b.ctx, tag)
			if err != nil {
				return written, &ManifestBuildError{Path: tag, Err: err}
			}
			lines.WriteString(ManifestLine(sum, filepath.Base(tag)))
		}
		if err := os.WriteFile(tagManifest, []byte(lines.String()), 0644); err != nil {
			return written, &ManifestBuildError{Path: tagManifest, Err: err}
		}
	}
	written = append(written, tagManifest)

	return written, nil
}

// ManifestLine formats a line of manifest files: "<md5-hex>  <path>\n".
func ManifestLine(md5hex string, p string) string {
	return md5hex + "  " + p + "\n"
}
