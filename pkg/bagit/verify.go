package bagit

import (
	"bufio"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"strings"
)

// Verify checks content of an extracted bag with its manifests.
//
// It verifies that:
//
// - bagit.txt has the expected declaration,
//
// - each line in manifest-md5.txt matches with the payload file,
//
// - each line in tagmanifest-md5.txt matches with the tag file.
//
// # Returns
//
// - int: number of payload files verified.
//
// - error: wrapping ErrChecksumMismatch when some checksum does not match,
// or other error when bag cannot be read.
func Verify(bag fs.FS) (int, error) {
	decl, err := fs.ReadFile(bag, DeclarationFile)
	if err != nil {
		return 0, err
	}
	if string(decl) != Declaration {
		return 0, fmt.Errorf("%w: unexpected bag declaration: %q", ErrChecksumMismatch, string(decl))
	}

	if _, err := verifyManifest(bag, TagManifestFile); err != nil {
		return 0, err
	}
	return verifyManifest(bag, ManifestFile)
}

func verifyManifest(bag fs.FS, manifest string) (int, error) {
	f, err := bag.Open(manifest)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		sum, p, ok := strings.Cut(line, "  ")
		if !ok {
			return count, fmt.Errorf("%w: malformed line in %s: %q", ErrChecksumMismatch, manifest, line)
		}
		actual, err := md5Of(bag, p)
		if err != nil {
			return count, err
		}
		if actual != sum {
			return count, fmt.Errorf(
				"%w: %s (in %s: %s, actual: %s)", ErrChecksumMismatch, p, manifest, sum, actual,
			)
		}
		count += 1
	}
	if err := scanner.Err(); err != nil {
		return count, err
	}
	return count, nil
}

func md5Of(bag fs.FS, p string) (string, error) {
	f, err := bag.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
