package main

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"

	"github.com/opst/fieldarchive/pkg/configs/archiver"
	"github.com/opst/fieldarchive/pkg/db/postgres"
	kio "github.com/opst/fieldarchive/pkg/utils/io"
	"github.com/opst/fieldarchive/pkg/utils/try"
	"github.com/youta-t/flarc"
)

type Flag struct {
	Config string `flag:"config" help:"Config file of the archiver. When given, its database is upgraded and the other database flags are ignored."`

	Host     string `flag:"host" help:"Database host."`
	Port     int    `flag:"port" help:"Database port."`
	User     string `flag:"user" help:"Database user."`
	Password string `flag:"pass" help:"Password of the database user."`
	Database string `flag:"database" help:"Database name."`

	Schema string `flag:"schema" help:"Schema repository directory."`
}

const argCopyTo = "COPY_TO"

// connString returns the database url from the config file if any, or from flags.
func (f Flag) connString() (string, error) {
	if f.Config != "" {
		conf, err := archiver.LoadConfig(f.Config)
		if err != nil {
			return "", err
		}
		return conf.Database(), nil
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", f.Host, f.Port),
		Path:   "/" + f.Database,
	}
	if f.User != "" {
		u.User = url.UserPassword(f.User, f.Password)
	}
	return u.String(), nil
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func upgrade(logger *log.Logger) flarc.Task[Flag] {
	return func(ctx context.Context, cl flarc.Commandline[Flag], _ []any) error {
		flags := cl.Flags()

		if dest := cl.Args()[argCopyTo]; len(dest) != 0 {
			logger.Printf("copying schema repository to %s", dest[0])
			if err := kio.DirCopy(flags.Schema, dest[0]); err != nil {
				return err
			}
		}

		connString, err := flags.connString()
		if err != nil {
			return err
		}
		db, err := postgres.New(ctx, connString, postgres.WithSchemaRepository(flags.Schema))
		if err != nil {
			return err
		}
		defer db.Close()

		schema := db.Schema()
		before, err := schema.Version(ctx)
		if err != nil {
			return err
		}
		if err := schema.Upgrade(ctx); err != nil {
			return err
		}
		after, err := schema.Version(ctx)
		if err != nil {
			return err
		}
		if before == after {
			logger.Printf("schema is up to date: version %d", after)
		} else {
			logger.Printf("schema upgraded: version %d -> %d", before, after)
		}
		return nil
	}
}

func main() {
	logger := log.New(os.Stderr, "[schema_upgrader] ", log.LstdFlags)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer cancel()

	defaults := Flag{
		Config:   os.Getenv("FIELDARCHIVE_CONFIG"),
		Host:     os.Getenv("DB_HOST"),
		Port:     envInt("DB_PORT", 5432),
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		Database: os.Getenv("DB_NAME"),
		Schema:   os.Getenv("FIELDARCHIVE_SCHEMA"),
	}
	cmd := try.To(flarc.NewCommand(
		"upgrade the database schema to the latest version in the schema repository",
		defaults,
		flarc.Args{
			{Name: argCopyTo, Help: "Directory to copy the schema repository into before upgrading."},
		},
		upgrade(logger),
	)).OrFatal(logger)

	os.Exit(flarc.Run(ctx, cmd))
}
