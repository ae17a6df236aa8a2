// Package errors is errors shown to operators.
package errors

import (
	"fmt"
	"strings"
)

// Error is an error with a one line summary and optional detail.
//
// Error() renders the summary, the detail and the cause, one per paragraph.
type Error struct {
	Summary string
	Detail  string
	Cause   error
}

type Option func(*Error) *Error

func New(summary string, options ...Option) *Error {
	e := &Error{Summary: summary}
	for _, o := range options {
		e = o(e)
	}
	return e
}

func WithDetail(format string, args ...any) Option {
	return func(e *Error) *Error {
		e.Detail = fmt.Sprintf(format, args...)
		return e
	}
}

func WithCause(err error) Option {
	return func(e *Error) *Error {
		e.Cause = err
		return e
	}
}

func (e *Error) Error() string {
	b := new(strings.Builder)
	b.WriteString(e.Summary)
	if e.Detail != "" {
		b.WriteString("\n" + e.Detail)
	}
	if e.Cause != nil && e.Cause.Error() != e.Detail {
		b.WriteString("\ncaused by: " + e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}
