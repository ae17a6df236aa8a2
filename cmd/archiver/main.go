package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opst/fieldarchive/cmd/archiver/recurring"
	"github.com/opst/fieldarchive/pkg/archive"
	"github.com/opst/fieldarchive/pkg/configs/archiver"
	kpg "github.com/opst/fieldarchive/pkg/db/postgres"
	"github.com/opst/fieldarchive/pkg/domain"
	"github.com/opst/fieldarchive/pkg/lifecycle"
	"github.com/opst/fieldarchive/pkg/remote"
	"github.com/opst/fieldarchive/pkg/utils/args"
	"github.com/opst/fieldarchive/pkg/utils/filewatch"
	"github.com/opst/fieldarchive/pkg/utils/try"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	logger := log.New(os.Stderr, "", logFlags)
	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, os.Kill, syscall.SIGTERM,
	)
	defer cancel()

	pconfig := flag.String(
		"config", os.Getenv("FIELDARCHIVE_CONFIG"), "path to config file",
	)
	pSchemaRepo := flag.String(
		"schema-repo", os.Getenv("FIELDARCHIVE_SCHEMA"), "schema repository path",
	)
	loopType := args.Parser(domain.AsLoopType)
	if err := loopType.FromEnv("FIELDARCHIVE_LOOP_TYPE"); err != nil {
		logger.Fatal(err)
	}
	flag.Var(loopType, "type", "one of loop type (packaging|upload|reconcile)")
	policy := args.Parser(recurring.ParsePolicy)
	if err := policy.FromEnv("FIELDARCHIVE_LOOP_POLICY"); err != nil {
		logger.Fatal(err)
	}
	flag.Var(
		policy, "policy",
		`loop policy (syntax: forever[:COOLDOWN]|every:INTERVAL|backlog).`+
			` "forever[:COOLDOWN]" = drain backlog, then wait COOLDOWN (default: 0) before next pass.`+
			` "every:INTERVAL" = one pass per INTERVAL.`+
			` "backlog" = drain backlog and exit.`+
			` Any infrastructure error stops the loop. env: FIELDARCHIVE_LOOP_POLICY`,
	)
	pendpoint := flag.String(
		"endpoint", "", "endpoint name to upload to (upload loop only). default: archive.endpoint in config",
	)
	ptimeout := flag.Duration(
		"timeout", 0, "timeout of each pass. 0 means no timeout.",
	)
	pmetrics := flag.String(
		"metrics", "", "address to serve prometheus metrics (for example, :9090). empty means no metrics.",
	)
	flag.Parse()

	if !loopType.IsSet() {
		logger.Fatal("-type is required")
	}
	if !policy.IsSet() {
		logger.Fatal("-policy is required")
	}

	{
		// the process exits when the config is changed, to be restarted with new one.
		wctx, cancel, err := filewatch.UntilChanged(ctx, *pconfig)
		if err != nil {
			logger.Fatal(err)
		}
		defer cancel()
		ctx = wctx
	}

	conf := try.To(archiver.LoadConfig(*pconfig)).OrFatal(logger)

	db := try.To(kpg.New(
		ctx, conf.Database(), kpg.WithSchemaRepository(*pSchemaRepo),
	)).OrFatal(logger)
	defer db.Close()

	{
		ctx_, ccan := db.Schema().Context(ctx)
		defer ccan()
		ctx = ctx_
	}

	endpoint := *pendpoint
	if endpoint == "" {
		endpoint = conf.Archive().Endpoint()
	}
	if _, ok := conf.Remote().Endpoint(endpoint); !ok {
		logger.Fatalf("unknown endpoint: %s", endpoint)
	}

	coordinator := lifecycle.New(
		db,
		archive.New(archive.WithLogger(logger)),
		remote.DefaultDialers(conf.Remote().Naming(), logger),
		lifecycle.ConfigFrom(conf),
		lifecycle.WithLogger(logger),
	)

	if addr := *pmetrics; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Printf("metrics server: %v", err)
			}
		}()
		defer server.Shutdown(context.Background())
	}

	logger.Printf(
		`start loop "%s" /w policy "%s"`,
		loopType.Value().String(), policy.Value().String(),
	)

	err := StartLoop(
		ctx, logger, coordinator,
		LoopManifest{
			Type:     loopType.Value(),
			Policy:   recurring.UntilError(policy.Value()),
			Endpoint: endpoint,
			Timeout:  *ptimeout,
		},
	)

	if err == nil {
		return
	} else if errors.Is(err, context.Canceled) {
		logger.Fatal(err, "(loop context is cancelled by:", context.Cause(ctx), ")")
	}
	logger.Fatal(err)
}
