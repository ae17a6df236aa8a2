// Package schema applies and checks versioned SQL schema.
//
// A schema repository is a directory of version directories:
//
//	<repository>/1/01_tables.sql
//	<repository>/2/01_more.sql
//
// Versions are applied in numeric order, and files in a version in lexical order.
// The version in the database is recorded in the table "schema_version".
package schema

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	kpool "github.com/opst/fieldarchive/pkg/db/postgres/pool"
	"github.com/opst/fieldarchive/pkg/utils/filewatch"
)

// ErrOutdated is the cause of contexts from Context when the database needs upgrade.
var ErrOutdated = errors.New("schema is outdated")

type Schema struct {
	pool       kpool.Pool
	repository string
}

// New returns Schema of the database in pool, following the repository directory.
func New(pool kpool.Pool, repository string) *Schema {
	return &Schema{pool: pool, repository: repository}
}

type version struct {
	number int
	dir    string
}

// versions lists versions in the repository, in ascending order.
func (s *Schema) versions() ([]version, error) {
	entries, err := os.ReadDir(s.repository)
	if err != nil {
		return nil, err
	}

	vs := []version{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		n, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		vs = append(vs, version{number: n, dir: filepath.Join(s.repository, e.Name())})
	}
	slices.SortFunc(vs, func(a, b version) int { return cmp.Compare(a.number, b.number) })
	return vs, nil
}

func (v version) apply(ctx context.Context, q kpool.Queryer) error {
	return filepath.WalkDir(v.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".sql") {
			return nil
		}
		sql, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if _, err := q.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("version %d, %s: %w", v.number, filepath.Base(path), err)
		}
		return nil
	})
}

// Latest returns the newest version in the repository, or 0 for an empty repository.
func (s *Schema) Latest() (int, error) {
	vs, err := s.versions()
	if err != nil {
		return -1, err
	}
	if len(vs) == 0 {
		return 0, nil
	}
	return vs[len(vs)-1].number, nil
}

// Version returns the version in the database.
//
// It is 0 when the database has no "schema_version" table yet.
func (s *Schema) Version(ctx context.Context) (int, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return -1, err
	}
	defer conn.Release()

	var v int
	err = conn.QueryRow(ctx, `select coalesce(max("version"), 0) from "schema_version"`).Scan(&v)
	if pgerr := new(pgconn.PgError); errors.As(err, &pgerr) && pgerr.Code == pgerrcode.UndefinedTable {
		return 0, nil
	}
	if err != nil {
		return -1, err
	}
	return v, nil
}

// Upgrade applies versions newer than the database in one transaction.
func (s *Schema) Upgrade(ctx context.Context) error {
	vs, err := s.versions()
	if err != nil {
		return err
	}
	current, err := s.Version(ctx)
	if err != nil {
		return err
	}

	return kpool.InTx(ctx, s.pool, func(tx kpool.Tx) error {
		for _, v := range vs {
			if v.number <= current {
				continue
			}
			if err := v.apply(ctx, tx); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `delete from "schema_version"`); err != nil {
				return err
			}
			if _, err := tx.Exec(
				ctx, `insert into "schema_version" ("version") values ($1)`, v.number,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// check returns an error wrapping ErrOutdated when the database is older than the repository.
func (s *Schema) check(ctx context.Context) error {
	latest, err := s.Latest()
	if err != nil {
		return fmt.Errorf("reading schema repository: %w", err)
	}
	current, err := s.Version(ctx)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if current < latest {
		return fmt.Errorf("%w: %d (in db) < %d (in repository)", ErrOutdated, current, latest)
	}
	return nil
}

// Context returns a context canceled when the database gets older than the repository,
// including when a new version appears in the repository later.
//
// The cause of the context tells why.
func (s *Schema) Context(ctx context.Context) (context.Context, context.CancelFunc) {
	cctx, cancel := context.WithCancelCause(ctx)
	if err := s.check(cctx); err != nil {
		cancel(err)
		return cctx, func() {}
	}

	go func() {
		for cctx.Err() == nil {
			wctx, wcancel, err := filewatch.UntilChanged(cctx, s.repository)
			if err != nil {
				cancel(err)
				return
			}
			// recheck after watching starts, not to miss changes in between.
			if err := s.check(cctx); err != nil {
				wcancel()
				cancel(err)
				return
			}
			<-wctx.Done()
			cause := context.Cause(wctx)
			wcancel()
			if cctx.Err() != nil {
				return
			}
			if !errors.Is(cause, filewatch.ErrChanged) {
				cancel(cause)
				return
			}
		}
	}()

	return cctx, func() { cancel(nil) }
}

// Null is a schema without repository.
//
// It can not upgrade, and never cancels contexts.
func Null() *nullSchema {
	return &nullSchema{}
}

type nullSchema struct{}

func (*nullSchema) Upgrade(context.Context) error {
	return errors.New("no schema repository available")
}

func (*nullSchema) Version(context.Context) (int, error) {
	return -1, nil
}

func (*nullSchema) Context(ctx context.Context) (context.Context, context.CancelFunc) {
	return ctx, func() {}
}
