// Package errors annotates errors with where they are raised.
//
//	return xe.Wrap(err)
//
// gives an error whose message is
//
//	@ <function> "<file>" l<line> <- <message of err>
//
// Chains of Wrap read as a trace: split the message on "<-".
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrWithCaller is an error with the location it is wrapped at.
type ErrWithCaller struct {
	file     string
	line     int
	funcname string
	err      error
}

func (e *ErrWithCaller) File() string {
	return e.file
}

func (e *ErrWithCaller) Line() int {
	return e.line
}

func (e *ErrWithCaller) Func() string {
	return e.funcname
}

func (e *ErrWithCaller) Error() string {
	return fmt.Sprintf(`@ %s "%s" l%d <- %s`, e.funcname, e.file, e.line, e.err)
}

func (e *ErrWithCaller) Unwrap() error {
	return e.err
}

// New is errors.New with the caller's location.
func New(text string) error {
	return at(1, errors.New(text))
}

// Wrap annotates err with the caller's location. Wrap(nil) is nil.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return at(1, err)
}

func at(skip int, err error) error {
	e := &ErrWithCaller{file: "?", line: -1, funcname: "(unknown func)", err: err}

	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return e
	}
	e.file, e.line = file, line
	if fn := runtime.FuncForPC(pc); fn != nil {
		e.funcname = fn.Name()
	}
	return e
}
