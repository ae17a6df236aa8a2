// Package commandline provides a flarc.Commandline for tests of subcommands.
package commandline

import (
	"io"
	"log"
	"strings"

	"github.com/youta-t/flarc"
)

// Fake is a flarc.Commandline recording outputs.
type Fake[T any] struct {
	Name     string
	Flag     T
	Argument map[string][]string

	In  io.Reader
	Out strings.Builder
	Err strings.Builder
}

var _ flarc.Commandline[struct{}] = &Fake[struct{}]{}

// New returns Fake with flags and args. Stdin is empty.
func New[T any](name string, flags T, args map[string][]string) *Fake[T] {
	if args == nil {
		args = map[string][]string{}
	}
	return &Fake[T]{Name: name, Flag: flags, Argument: args, In: strings.NewReader("")}
}

func (f *Fake[T]) Fullname() string          { return f.Name }
func (f *Fake[T]) Stdin() io.Reader          { return f.In }
func (f *Fake[T]) Stdout() io.Writer         { return &f.Out }
func (f *Fake[T]) Stderr() io.Writer         { return &f.Err }
func (f *Fake[T]) Flags() T                  { return f.Flag }
func (f *Fake[T]) Args() map[string][]string { return f.Argument }

// Logger discards everything.
func Logger() *log.Logger {
	return log.New(io.Discard, "", 0)
}
