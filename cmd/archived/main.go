package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/opst/fieldarchive/pkg/api/auth"
	"github.com/opst/fieldarchive/pkg/archive"
	"github.com/opst/fieldarchive/pkg/configs/archiver"
	kpg "github.com/opst/fieldarchive/pkg/db/postgres"
	"github.com/opst/fieldarchive/pkg/lifecycle"
	"github.com/opst/fieldarchive/pkg/remote"
	"github.com/opst/fieldarchive/pkg/utils/filewatch"
	"github.com/opst/fieldarchive/pkg/utils/try"
)

func main() {
	pconfig := flag.String(
		"config", os.Getenv("FIELDARCHIVE_CONFIG"), "path to config file",
	)
	schemaRepo := flag.String("schema-repo", os.Getenv("FIELDARCHIVE_SCHEMA"), "schema repository path")
	loglevel := flag.String("loglevel", "warn", "log level. debug|info|warn|error|off")
	issue := flag.String(
		"issue-token", "", "print a bearer token for the operator named by this value, and exit",
	)
	ttl := flag.Duration("token-ttl", 24*time.Hour, "lifetime of the token printed by -issue-token")

	flag.Parse()

	logger := log.Default()

	conf := try.To(archiver.LoadConfig(*pconfig)).OrFatal(logger)
	if conf.Server() == nil {
		logger.Fatal(`"server" section is required in config`)
	}

	if *issue != "" {
		token := try.To(
			auth.Sign(conf.Server().TokenSecret(), *issue, *ttl, time.Now()),
		).OrFatal(logger)
		fmt.Println(token)
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	{
		// restarted by the supervisor with the new config.
		wctx, wcancel, err := filewatch.UntilChanged(ctx, *pconfig)
		if err != nil {
			logger.Fatal(err)
		}
		defer wcancel()
		ctx = wctx
	}

	db := try.To(kpg.New(ctx, conf.Database(), kpg.WithSchemaRepository(*schemaRepo))).OrFatal(logger)
	defer db.Close()
	{
		ctx_, ccan := db.Schema().Context(ctx)
		defer ccan()
		ctx = ctx_
	}

	coordinator := lifecycle.New(
		db,
		archive.New(archive.WithLogger(logger)),
		remote.DefaultDialers(conf.Remote().Naming(), logger),
		lifecycle.ConfigFrom(conf),
		lifecycle.WithLogger(logger),
	)

	server := BuildServer(db, coordinator, conf.Server().TokenSecret(), *loglevel)
	for _, r := range server.Routes() {
		server.Logger.Debugf("- mount handler: %s %s", strings.ToUpper(r.Method), r.Path)
	}

	ch := make(chan error, 1)
	go func() {
		defer close(ch)
		if err := server.Start(fmt.Sprintf(":%d", conf.Server().Port())); err != nil && !errors.Is(err, http.ErrServerClosed) {
			ch <- err
		}
	}()

	exit := 0
	select {
	case <-ctx.Done():
		if err := ctx.Err(); err != nil {
			server.Logger.Infof("context has been done: %s, cause: %s", err, context.Cause(ctx))
			if !errors.Is(context.Cause(ctx), context.Canceled) {
				exit = 1
			}
		}
	case err := <-ch:
		if err != nil {
			server.Logger.Error("server stops with error:", err)
			exit = 1
		}
	}

	server.Logger.Info("shutting down...")
	qctx, qcancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer qcancel()
	if err := server.Shutdown(qctx); err != nil {
		server.Logger.Errorf("shutdown with error. %+v", err)
		exit = 1
	}
	if exit != 0 {
		db.Close()
		os.Exit(exit)
	}
}
