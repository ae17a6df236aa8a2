// Package testenv runs postgres in a container for tests.
//
// Tests using it are skipped unless FIELDARCHIVE_TEST_INTEGRATION is set.
package testenv

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	kpool "github.com/opst/fieldarchive/pkg/db/postgres/pool"
	kpgschema "github.com/opst/fieldarchive/pkg/db/postgres/schema"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const EnvIntegration = "FIELDARCHIVE_TEST_INTEGRATION"

// PoolBroaker hands pools of one database to tests.
type PoolBroaker interface {
	// GetPool returns a pool of the database.
	//
	// Unless the database is started empty, its tables are truncated now and after t.
	GetPool(ctx context.Context, t *testing.T) kpool.Pool
}

type broaker struct {
	pool  *pgxpool.Pool
	empty bool
}

func (b *broaker) GetPool(ctx context.Context, t *testing.T) kpool.Pool {
	if !b.empty {
		truncate(ctx, t, b.pool)
		t.Cleanup(func() { truncate(context.Background(), t, b.pool) })
	}
	return kpool.Wrap(b.pool)
}

type options struct {
	empty bool
}

type Option func(*options) *options

// WithEmptyDatabase starts a database without any schema applied.
func WithEmptyDatabase() Option {
	return func(o *options) *options {
		o.empty = true
		return o
	}
}

// NewPoolBroaker starts a postgres container living while t, and applies
// the schema repository of this module to it.
func NewPoolBroaker(ctx context.Context, t *testing.T, opts ...Option) PoolBroaker {
	t.Helper()
	if os.Getenv(EnvIntegration) == "" {
		t.Skipf("%s is not set", EnvIntegration)
	}
	o := &options{}
	for _, opt := range opts {
		o = opt(o)
	}

	container, err := postgres.Run(
		ctx, "docker.io/postgres:15.6-bullseye",
		postgres.WithDatabase("fieldarchive"),
		postgres.WithUsername("fieldarchive"),
		postgres.WithPassword("fieldarchive"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		t.Fatalf("starting postgres: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminating postgres: %v", err)
		}
	})

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}
	pool, err := pgxpool.Connect(ctx, url)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)

	if !o.empty {
		repo, err := SchemaRepository()
		if err != nil {
			t.Fatal(err)
		}
		if err := kpgschema.New(kpool.Wrap(pool), repo).Upgrade(ctx); err != nil {
			t.Fatalf("applying schema: %v", err)
		}
	}
	return &broaker{pool: pool, empty: o.empty}
}

// SchemaRepository is the "schema" directory next to go.mod of this module.
func SchemaRepository() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for ; ; dir = filepath.Dir(dir) {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return filepath.Join(dir, "schema"), nil
		}
		if filepath.Dir(dir) == dir {
			return "", errors.New("go.mod is not found")
		}
	}
}

// truncate empties all tables but "schema_version".
func truncate(ctx context.Context, t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	rows, err := pool.Query(
		ctx,
		`select quote_ident("tablename") from "pg_tables"
		where "schemaname" = 'public' and "tablename" <> 'schema_version'`,
	)
	if err != nil {
		t.Errorf("listing tables: %v", err)
		return
	}
	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			t.Errorf("listing tables: %v", err)
			return
		}
		tables = append(tables, name)
	}
	rows.Close()
	if len(tables) == 0 {
		return
	}
	if _, err := pool.Exec(ctx, "truncate "+strings.Join(tables, ", ")+" cascade"); err != nil {
		t.Errorf("truncating tables: %v", err)
	}
}
