package common

import (
	"context"
	"errors"
	"fmt"
	"log"

	krst "github.com/opst/fieldarchive/cmd/archivectl/rest"
	"github.com/youta-t/flarc"
)

// Flags are common to all subcommands.
type Flags struct {
	Api    string `flag:"api" metavar:"URL" help:"Root URL of the archive API, for example https://archive.example.com/api. Default: $FIELDARCHIVE_API"`
	Token  string `flag:"token" help:"Bearer token for the archive API. Default: $FIELDARCHIVE_TOKEN"`
	CACert string `flag:"cacert" metavar:"path/to/ca.pem" help:"CA certificate to trust, beside system ones."`
}

// Task is a subcommand body with an API client built from the common flags.
//
// logger writes to stderr of the commandline.
type Task[T any] func(
	ctx context.Context,
	logger *log.Logger,
	client krst.ArchiveClient,
	cl flarc.Commandline[T],
	params []any,
) error

// ClientFactory builds a client from the common flags.
type ClientFactory func(Flags) (krst.ArchiveClient, error)

// NewTask adapts task into flarc.Task.
func NewTask[T any](task Task[T]) flarc.Task[T] {
	return NewTaskWith(Client, task)
}

// NewTaskWith is NewTask with a custom client factory.
func NewTaskWith[T any](factory ClientFactory, task Task[T]) flarc.Task[T] {
	return func(ctx context.Context, cl flarc.Commandline[T], params []any) error {
		flags, rest, ok := extract(params)
		if !ok {
			return errors.New("programming error: common flags not found")
		}

		client, err := factory(flags)
		if err != nil {
			return err
		}

		logger := log.New(cl.Stderr(), fmt.Sprintf("[%s] ", cl.Fullname()), log.LstdFlags)
		return task(ctx, logger, client, cl, rest)
	}
}

// Client is the default ClientFactory.
func Client(flags Flags) (krst.ArchiveClient, error) {
	options := []krst.Option{}
	if flags.CACert != "" {
		options = append(options, krst.WithCACert(flags.CACert))
	}
	client, err := krst.NewClient(flags.Api, flags.Token, options...)
	if errors.Is(err, krst.ErrClientInvalid) {
		return nil, fmt.Errorf(
			"%w\n\nSet --api and --token (or $FIELDARCHIVE_API and $FIELDARCHIVE_TOKEN). Ask your admin for a token",
			err,
		)
	}
	return client, err
}

// extract picks Flags out of params given by flarc command groups.
func extract(params []any) (Flags, []any, bool) {
	var flags Flags
	found := false
	rest := make([]any, 0, len(params))
	for _, p := range params {
		if f, ok := p.(Flags); ok {
			flags, found = f, true
			continue
		}
		rest = append(rest, p)
	}
	return flags, rest, found
}
