package schema_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	kpool "github.com/opst/fieldarchive/pkg/db/postgres/pool"
	dbtestenv "github.com/opst/fieldarchive/pkg/db/postgres/pool/testenv"
	"github.com/opst/fieldarchive/pkg/db/postgres/scanner"
	"github.com/opst/fieldarchive/pkg/db/postgres/schema"
	"github.com/opst/fieldarchive/pkg/utils/try"
)

// repository writes a schema repository into a temporary directory.
//
// versions maps version number to sql files in the version directory.
func repository(t *testing.T, versions map[int]map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for v, files := range versions {
		dir := filepath.Join(root, fmt.Sprint(v))
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
		for name, content := range files {
			if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
				t.Fatal(err)
			}
		}
	}
	return root
}

var versionsFooBar = map[int]map[string]string{
	1: {
		"01_schema_version.sql": `create table if not exists "schema_version" ("version" integer not null);`,
		"02_foo.sql": `
			create table "foo" ("id" integer primary key, "name" varchar not null);
			insert into "foo" ("id", "name") values (1, 'foo-1');
		`,
	},
	2: {
		"01_foo.sql": `insert into "foo" ("id", "name") values (2, 'foo-2');`,
		"02_bar.sql": `
			create table "bar" ("id" integer primary key, "name" varchar not null);
			insert into "bar" ("id", "name") values (1, 'bar-1');
		`,
	},
}

func testContext(t *testing.T) context.Context {
	ctx := context.Background()
	if dl, ok := t.Deadline(); ok {
		_ctx, cancel := context.WithDeadline(ctx, dl.Add(-1*time.Second))
		t.Cleanup(cancel)
		ctx = _ctx
	}
	return ctx
}

func TestPgSchema_Upgrade(t *testing.T) {
	type When struct {
		Given    string
		Versions map[int]map[string]string
	}

	type Then struct {
		VersionBefore int
		VersionAfter  int

		TableFooNotExists bool
		TableFoo          []exampleTable

		TableBarNotExists bool
		TableBar          []exampleTable
	}

	ctx := testContext(t)
	broker := dbtestenv.NewPoolBroaker(ctx, t, dbtestenv.WithEmptyDatabase())

	theory := func(when When, then Then) func(*testing.T) {
		return func(t *testing.T) {
			pool := broker.GetPool(ctx, t)
			dropAll(ctx, t, pool)
			t.Cleanup(func() { dropAll(ctx, t, pool) })

			if when.Given != "" {
				exec(ctx, t, pool, when.Given)
			}

			testee := schema.New(pool, repository(t, when.Versions))
			if got := try.To(testee.Version(ctx)).OrFatal(t); got != then.VersionBefore {
				t.Errorf("version before upgrade\n- got: %v\n- want: %v", got, then.VersionBefore)
			}

			if err := testee.Upgrade(ctx); err != nil {
				t.Fatalf("failed to upgrade schema: %v", err)
			}

			if got := try.To(testee.Version(ctx)).OrFatal(t); got != then.VersionAfter {
				t.Errorf("version after upgrade\n- got: %v\n- want: %v", got, then.VersionAfter)
			}

			conn := try.To(pool.Acquire(ctx)).OrFatal(t)
			defer conn.Release()

			for _, table := range []struct {
				Name      string
				NotExists bool
				Want      []exampleTable
			}{
				{Name: "foo", NotExists: then.TableFooNotExists, Want: then.TableFoo},
				{Name: "bar", NotExists: then.TableBarNotExists, Want: then.TableBar},
			} {
				got, err := scanner.New[exampleTable]().QueryAll(
					ctx, conn, fmt.Sprintf(`select "id", "name" from "%s" order by "id"`, table.Name),
				)
				if err != nil {
					pgerr := new(pgconn.PgError)
					if !errors.As(err, &pgerr) || !table.NotExists || pgerr.Code != pgerrcode.UndefinedTable {
						t.Fatal(err)
					}
					continue
				}
				if table.NotExists {
					t.Errorf("table %s: should not exist", table.Name)
				}
				if !slices.Equal(got, table.Want) {
					t.Errorf("table %s\n- got: %v\n- want: %v", table.Name, got, table.Want)
				}
			}
		}
	}

	t.Run("build schema from scratch", theory(
		When{Versions: versionsFooBar},
		Then{
			VersionBefore: 0,
			VersionAfter:  2,
			TableFoo:      []exampleTable{{Id: 1, Name: "foo-1"}, {Id: 2, Name: "foo-2"}},
			TableBar:      []exampleTable{{Id: 1, Name: "bar-1"}},
		},
	))

	t.Run("upgrade schema from version 1 to 2", theory(
		When{
			Given: `
				create table "schema_version" ("version" integer not null);
				insert into "schema_version" ("version") values (1);
				create table "foo" ("id" integer primary key, "name" varchar not null);
				insert into "foo" ("id", "name") values (1, 'foo-1');
			`,
			Versions: versionsFooBar,
		},
		Then{
			VersionBefore: 1,
			VersionAfter:  2,
			TableFoo:      []exampleTable{{Id: 1, Name: "foo-1"}, {Id: 2, Name: "foo-2"}},
			TableBar:      []exampleTable{{Id: 1, Name: "bar-1"}},
		},
	))

	t.Run("no upgrade", theory(
		When{
			Given: `
				create table "schema_version" ("version" integer not null);
				insert into "schema_version" ("version") values (2);
			`,
			Versions: versionsFooBar,
		},
		Then{
			VersionBefore:     2,
			VersionAfter:      2,
			TableFooNotExists: true,
			TableBarNotExists: true,
		},
	))
}

func TestPgSchema_ApplyRepository(t *testing.T) {
	ctx := testContext(t)
	repo := try.To(dbtestenv.SchemaRepository()).OrFatal(t)
	pool := dbtestenv.NewPoolBroaker(ctx, t, dbtestenv.WithEmptyDatabase()).GetPool(ctx, t)

	testee := schema.New(pool, repo)
	if err := testee.Upgrade(ctx); err != nil {
		t.Fatal(err)
	}
	want := try.To(testee.Latest()).OrFatal(t)
	if got := try.To(testee.Version(ctx)).OrFatal(t); got != want {
		t.Errorf("version: got %d, want %d", got, want)
	}

	// upgrading twice is harmless.
	if err := testee.Upgrade(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestSchema_Context(t *testing.T) {
	ctx := testContext(t)
	pool := dbtestenv.NewPoolBroaker(ctx, t, dbtestenv.WithEmptyDatabase()).GetPool(ctx, t)

	v1 := repository(t, map[int]map[string]string{1: {}})
	v2 := repository(t, map[int]map[string]string{1: {}, 2: {}})

	// step1. if there are no schema_version table, context should be canceled.
	func() {
		schemaCtx, cancel := schema.New(pool, v1).Context(ctx)
		defer cancel()

		<-schemaCtx.Done()
		if err := context.Cause(schemaCtx); !errors.Is(err, schema.ErrOutdated) {
			t.Errorf("unexpected error: %v", err)
		}
	}()

	exec(
		ctx, t, pool,
		`
		create table "schema_version" ("version" int not null, primary key ("version"));
		insert into "schema_version" ("version") values (1);
		`,
	)

	// step2. if the schema is same version as the requirement, context should not be canceled.
	func() {
		schemaCtx, cancel := schema.New(pool, v1).Context(ctx)
		defer cancel()

		if err := schemaCtx.Err(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}()

	// step3. if the schema is older than the requirement, context should be canceled.
	func() {
		schemaCtx, cancel := schema.New(pool, v2).Context(ctx)
		defer cancel()

		<-schemaCtx.Done()
		if err := context.Cause(schemaCtx); !errors.Is(err, schema.ErrOutdated) {
			t.Errorf("unexpected error: %v", err)
		}
	}()

	// step4. if the requirement is updated and the schema is older than the requirement, context should be canceled.
	func() {
		dir := repository(t, map[int]map[string]string{1: {}})

		schemaCtx, cancel := schema.New(pool, dir).Context(ctx)
		defer cancel()

		if err := schemaCtx.Err(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}

		if err := os.Mkdir(filepath.Join(dir, "2"), 0755); err != nil {
			t.Fatal(err)
		}

		<-schemaCtx.Done()
		if err := context.Cause(schemaCtx); !errors.Is(err, schema.ErrOutdated) {
			t.Errorf("unexpected error: %v", err)
		}
	}()
}

type exampleTable struct {
	Id   int
	Name string
}

func dropAll(ctx context.Context, t *testing.T, pool kpool.Pool) {
	t.Helper()
	exec(ctx, t, pool, `drop table if exists "schema_version", "foo", "bar"`)
}

func exec(ctx context.Context, t *testing.T, pool kpool.Pool, sql string) {
	t.Helper()
	conn := try.To(pool.Acquire(ctx)).OrFatal(t)
	defer conn.Release()
	try.To(conn.Exec(ctx, sql)).OrFatal(t)
}
