package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/opst/fieldarchive/cmd/archiver/recurring"
	"github.com/opst/fieldarchive/cmd/archiver/tasks/packaging"
	"github.com/opst/fieldarchive/cmd/archiver/tasks/reconcile"
	"github.com/opst/fieldarchive/cmd/archiver/tasks/upload"
	"github.com/opst/fieldarchive/pkg/domain"
	"github.com/opst/fieldarchive/pkg/lifecycle"
	"github.com/opst/fieldarchive/pkg/loop"
)

const logFlags = log.LstdFlags | log.Lmicroseconds

// loopLogger derives a logger of the loop from base, writing to the same place.
func loopLogger(base *log.Logger, name string) *log.Logger {
	return log.New(base.Writer(), "["+name+"] ", logFlags)
}

// monitor logs each pass of task, with its sequence number, duration and result.
func monitor[T any](logger *log.Logger, task loop.Task[T]) loop.Task[T] {
	var pass uint64
	return func(ctx context.Context, value T) (T, loop.Next) {
		pass += 1
		started := time.Now()
		logger.Printf("pass #%d started", pass)

		value, next := task(ctx, value)
		logger.Printf(
			"pass #%d finished in %s: %s, value = %+v",
			pass, time.Since(started), next, value,
		)
		return value, next
	}
}

// LoopManifest tells which loop to run and how it recurs.
type LoopManifest struct {
	Type domain.LoopType

	Policy recurring.Policy

	// endpoint name for upload loops.
	Endpoint string

	// timeout of each pass. No timeout if it is not positive.
	Timeout time.Duration
}

func (m LoopManifest) options() []loop.LoopOption {
	if m.Timeout <= 0 {
		return nil
	}
	return []loop.LoopOption{loop.WithTimeout(m.Timeout)}
}

// Coordinator is operations of archive lifecycle used by loops.
//
// *lifecycle.Coordinator implements this.
type Coordinator interface {
	packaging.Packager
	upload.Uploader
	reconcile.Reconciler
}

var _ Coordinator = &lifecycle.Coordinator{}

// StartLoop starts the loop specified by the manifest.
func StartLoop(ctx context.Context, logger *log.Logger, c Coordinator, manifest LoopManifest) error {
	switch manifest.Type {
	case domain.Packaging:
		return StartPackagingLoop(ctx, logger, c, manifest)
	case domain.Upload:
		return StartUploadLoop(ctx, logger, c, manifest)
	case domain.Reconcile:
		return StartReconcileLoop(ctx, logger, c, manifest)
	}
	return fmt.Errorf("%w: %s", domain.ErrUnknownLoopType, manifest.Type)
}

func StartPackagingLoop(
	ctx context.Context,
	logger *log.Logger,
	p packaging.Packager,
	manifest LoopManifest,
) error {
	_, err := loop.Start(
		ctx, packaging.Seed(),
		monitor(
			loopLogger(logger, "packaging loop"),
			packaging.Task(p).Applied(manifest.Policy),
		),
		manifest.options()...,
	)
	return err
}

func StartUploadLoop(
	ctx context.Context,
	logger *log.Logger,
	u upload.Uploader,
	manifest LoopManifest,
) error {
	l := loopLogger(logger, fmt.Sprintf("upload loop (%s)", manifest.Endpoint))
	_, err := loop.Start(
		ctx, upload.Seed(manifest.Endpoint),
		monitor(
			l,
			upload.Task(l, u, manifest.Endpoint).Applied(manifest.Policy),
		),
		manifest.options()...,
	)
	return err
}

func StartReconcileLoop(
	ctx context.Context,
	logger *log.Logger,
	r reconcile.Reconciler,
	manifest LoopManifest,
) error {
	_, err := loop.Start(
		ctx, reconcile.Seed(),
		monitor(
			loopLogger(logger, "reconcile loop"),
			reconcile.Task(r).Applied(manifest.Policy),
		),
		manifest.options()...,
	)
	return err
}
