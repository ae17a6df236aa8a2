package archive

import (
	"errors"
	"fmt"

	"github.com/opst/fieldarchive/pkg/domain"
)

// ErrEmptyGroup is caused when packaging a group without files.
var ErrEmptyGroup = errors.New("group has no files")

// PackagingError is caused when an archive cannot be written.
type PackagingError struct {
	// name of artifact being packaged. It can be empty when it fails before naming.
	Name string
	Err  error
}

func (e *PackagingError) Error() string {
	return fmt.Sprintf("failed to package %s: %v", e.Name, e.Err)
}

func (e *PackagingError) Unwrap() error {
	return e.Err
}

func (e *PackagingError) Is(err error) bool {
	return err == domain.ErrPackaging
}
