package remote

import (
	"path"
	"regexp"
	"strings"
)

// DefaultLegacySuffix matches sequence suffixes appended by earlier archivers.
const DefaultLegacySuffix = `_[0-9]+$`

// NamingPolicy gives alternative names of a remote file.
type NamingPolicy interface {
	// Alternates returns names the file may be stored as, other than remotePath itself.
	Alternates(remotePath string) []string
}

// SuffixNaming strips a suffix matching Pattern from the base name (before extensions).
//
// For example, with DefaultLegacySuffix, "dir/a_b_3.tar.gz" has an alternate "dir/a_b.tar.gz".
type SuffixNaming struct {
	Pattern *regexp.Regexp
}

func NewSuffixNaming(pattern string) (SuffixNaming, error) {
	if pattern == "" {
		pattern = DefaultLegacySuffix
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return SuffixNaming{}, err
	}
	return SuffixNaming{Pattern: re}, nil
}

func (s SuffixNaming) Alternates(remotePath string) []string {
	if s.Pattern == nil {
		return []string{}
	}
	dir, base := path.Split(remotePath)
	stem, ext := splitExt(base)
	stripped := s.Pattern.ReplaceAllString(stem, "")
	if stripped == stem || stripped == "" {
		return []string{}
	}
	return []string{dir + stripped + ext}
}

// splitExt splits "name.tar.gz" into "name" and ".tar.gz".
func splitExt(base string) (string, string) {
	n := strings.Index(base, ".")
	if n <= 0 {
		return base, ""
	}
	return base[:n], base[n:]
}

// NoAlternates is a NamingPolicy which never gives alternates.
type NoAlternates struct{}

func (NoAlternates) Alternates(string) []string {
	return []string{}
}
