package db

import (
	"errors"

	"github.com/opst/fieldarchive/pkg/domain"
)

type Database interface {
	Files() FileInterface
	Artifacts() ArtifactInterface
	Schema() SchemaInterface
	Close() error
}

var (
	// requested entity is not found.
	ErrMissing = domain.ErrMissing

	// entity is changed or locked by others.
	ErrConflict = domain.ErrConflict

	// found more than expected.
	ErrTooMuch = errors.New("too much")
)
