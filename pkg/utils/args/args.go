// Package args adapts typed parsers to flag.Value.
package args

import (
	"fmt"
	"os"
)

type Stringer interface{ String() string }

// Adapter is a flag.Value holding a T parsed by its parser.
type Adapter[T Stringer] struct {
	value  T
	parser func(string) (T, error)
	isSet  bool
}

func Parser[T Stringer](parser func(string) (T, error)) *Adapter[T] {
	return &Adapter[T]{parser: parser}
}

// String returns "" until a value is set.
func (a *Adapter[T]) String() string {
	if a == nil || !a.isSet {
		return ""
	}
	return a.value.String()
}

// Set implements flag.Value. On error, the previous value is kept.
func (a *Adapter[T]) Set(s string) error {
	v, err := a.parser(s)
	if err != nil {
		return err
	}
	a.value = v
	a.isSet = true
	return nil
}

// FromEnv sets the value of the environment variable key, if it is not empty.
//
// Call it before flag.Parse so that the flag overrides the environment.
func (a *Adapter[T]) FromEnv(key string) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	if err := a.Set(s); err != nil {
		return fmt.Errorf("$%s: %w", key, err)
	}
	return nil
}

func (a *Adapter[T]) Value() T {
	return a.value
}

func (a *Adapter[T]) IsSet() bool {
	return a.isSet
}
