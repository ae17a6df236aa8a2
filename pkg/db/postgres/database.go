package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"
	kdb "github.com/opst/fieldarchive/pkg/db"
	kpgartifacts "github.com/opst/fieldarchive/pkg/db/postgres/artifacts"
	kpgfiles "github.com/opst/fieldarchive/pkg/db/postgres/files"
	kpool "github.com/opst/fieldarchive/pkg/db/postgres/pool"
	kpgschema "github.com/opst/fieldarchive/pkg/db/postgres/schema"
	xe "github.com/opst/fieldarchive/pkg/errors"
)

type dbPostgres struct {
	pool      kpool.Pool
	files     kdb.FileInterface
	artifacts kdb.ArtifactInterface
	schema    kdb.SchemaInterface
}

type Config struct {
	SchemaRepository string
}

func DefaultConfig() Config {
	return Config{}
}

type Option func(*Config) *Config

func WithSchemaRepository(repository string) Option {
	return func(c *Config) *Config {
		c.SchemaRepository = repository
		return c
	}
}

func New(
	ctx context.Context,
	url string,
	options ...Option,
) (kdb.Database, error) {
	pool, err := pgxpool.Connect(ctx, url)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return Wrap(kpool.Wrap(pool), options...), nil
}

// Wrap builds Database on the pool.
func Wrap(p kpool.Pool, options ...Option) kdb.Database {
	c := DefaultConfig()
	for _, option := range options {
		c = *option(&c)
	}

	var schema kdb.SchemaInterface = kpgschema.Null()
	if c.SchemaRepository != "" {
		schema = kpgschema.New(p, c.SchemaRepository)
	}

	return &dbPostgres{
		pool:      p,
		files:     kpgfiles.New(p),
		artifacts: kpgartifacts.New(p),
		schema:    schema,
	}
}

func (d *dbPostgres) Files() kdb.FileInterface {
	return d.files
}

func (d *dbPostgres) Artifacts() kdb.ArtifactInterface {
	return d.artifacts
}

func (d *dbPostgres) Schema() kdb.SchemaInterface {
	return d.schema
}

func (d *dbPostgres) Close() error {
	d.pool.Close()
	return nil
}
