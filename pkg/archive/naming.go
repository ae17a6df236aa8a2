package archive

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/opst/fieldarchive/pkg/domain"
)

const (
	// Extension of artifact files.
	Extension = ".tar.gz"

	DateFormat      = "2006-01-02"
	TimestampFormat = "20060102T150405Z"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9-]+`)

// Naming decides names of artifacts.
//
// A name is
//
//	<project>_<device-type>_<min recording date>_<max recording date>_<creation timestamp>_<sequence>
//
// Project and device type are sanitized into [A-Za-z0-9-], so "_" only separates components.
type Naming struct{}

func (Naming) Name(group domain.SizeGroup, createdAt time.Time, sequence int) string {
	key := group.Key()
	min, max := group.RecordingRange()
	return fmt.Sprintf(
		"%s_%s_%s_%s_%s_%d",
		sanitize(key.Project),
		sanitize(key.DeviceType),
		min.UTC().Format(DateFormat),
		max.UTC().Format(DateFormat),
		createdAt.UTC().Format(TimestampFormat),
		sequence,
	)
}

// Dir returns the relative directory where artifacts of the key are placed,
// on local storage and on remote endpoints.
func (Naming) Dir(key domain.GroupKey) string {
	return path.Join(sanitize(key.Project), sanitize(key.DeviceType))
}

// FileName returns file name of the artifact named name.
func (Naming) FileName(name string) string {
	return name + Extension
}

// NameOf is the inverse of FileName.
//
// It returns false when filename is not an artifact file name.
func (Naming) NameOf(filename string) (string, bool) {
	return strings.CutSuffix(filename, Extension)
}

func sanitize(s string) string {
	s = strings.Trim(unsafeNameChars.ReplaceAllString(s, "-"), "-")
	if s == "" {
		return "unknown"
	}
	return s
}
