package filewatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// ErrChanged is the cause of contexts from UntilChanged when a watched file is changed.
var ErrChanged = errors.New("watched file is changed")

// Changed describes which file is changed and how.
type Changed struct {
	Path string
	Op   fsnotify.Op
}

func (c *Changed) Error() string {
	return fmt.Sprintf("%s is changed (%s)", c.Path, c.Op)
}

func (c *Changed) Is(err error) bool {
	return err == ErrChanged
}

// UntilChanged returns a context canceled with *Changed as its cause
// when any of paths is written, created, removed, renamed or chmod-ed.
//
// Watching a directory covers the entries directly in it.
//
// On error, the returned context and cancel func are nil.
func UntilChanged(ctx context.Context, paths ...string) (context.Context, context.CancelFunc, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}
	for _, p := range paths {
		if err := w.Add(p); err != nil {
			w.Close()
			return nil, nil, err
		}
	}

	cctx, cancel := context.WithCancelCause(ctx)
	go func() {
		defer w.Close()
		for {
			select {
			case <-cctx.Done():
				return
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				cancel(fmt.Errorf("watching %v: %w", paths, err))
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				cancel(&Changed{Path: ev.Name, Op: ev.Op})
				return
			}
		}
	}()

	return cctx, func() { cancel(nil) }, nil
}
