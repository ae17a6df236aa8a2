package mocks

import (
	"context"

	kdb "github.com/opst/fieldarchive/pkg/db"
)

type Database struct {
	files     *FileInterface
	artifacts *ArtifactInterface
	schema    *SchemaInterface
}

var _ kdb.Database = &Database{}

func NewDatabase() *Database {
	return &Database{
		files:     NewFileInterface(),
		artifacts: NewArtifactInterface(),
		schema:    NewSchemaInterface(),
	}
}

func (d *Database) Files() kdb.FileInterface {
	return d.files
}

func (d *Database) Artifacts() kdb.ArtifactInterface {
	return d.artifacts
}

func (d *Database) Schema() kdb.SchemaInterface {
	return d.schema
}

// MockFiles returns the mock behind Files.
func (d *Database) MockFiles() *FileInterface {
	return d.files
}

// MockArtifacts returns the mock behind Artifacts.
func (d *Database) MockArtifacts() *ArtifactInterface {
	return d.artifacts
}

func (d *Database) MockSchema() *SchemaInterface {
	return d.schema
}

func (d *Database) Close() error {
	return nil
}

type SchemaInterface struct {
	Impl struct {
		Upgrade func(ctx context.Context) error
		Version func(ctx context.Context) (int, error)
		Context func(ctx context.Context) (context.Context, context.CancelFunc)
	}
}

var _ kdb.SchemaInterface = &SchemaInterface{}

func NewSchemaInterface() *SchemaInterface {
	return &SchemaInterface{}
}

func (s *SchemaInterface) Upgrade(ctx context.Context) error {
	if s.Impl.Upgrade != nil {
		return s.Impl.Upgrade(ctx)
	}
	return nil
}

func (s *SchemaInterface) Version(ctx context.Context) (int, error) {
	if s.Impl.Version != nil {
		return s.Impl.Version(ctx)
	}
	return 0, nil
}

// Context returns ctx as it is, unless Impl.Context is set.
func (s *SchemaInterface) Context(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.Impl.Context != nil {
		return s.Impl.Context(ctx)
	}
	return context.WithCancel(ctx)
}
