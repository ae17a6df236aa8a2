package recurring

import (
	"fmt"
	"strings"
	"time"

	"github.com/opst/fieldarchive/pkg/loop"
)

// Policy decides whether a loop goes on after each pass.
//
// updated reports that the pass did something, so more backlog may remain.
type Policy interface {
	Next(updated bool, err error) loop.Next
	String() string
}

// ParsePolicy parses
//
//	forever[:COOLDOWN] | every:INTERVAL | backlog
func ParsePolicy(s string) (Policy, error) {
	name, param, hasParam := strings.Cut(s, ":")

	duration := func() (time.Duration, error) {
		d, err := time.ParseDuration(param)
		if err != nil {
			return 0, fmt.Errorf(`%s: parameter should be a duration: %w`, s, err)
		}
		if d < 0 {
			return 0, fmt.Errorf(`%s: parameter should not be negative`, s)
		}
		return d, nil
	}

	switch name {
	case "forever":
		if !hasParam || param == "" {
			return Forever(0), nil
		}
		d, err := duration()
		if err != nil {
			return nil, err
		}
		return Forever(d), nil
	case "every":
		if !hasParam {
			return nil, fmt.Errorf(`%s: "every" requires an interval (every:INTERVAL)`, s)
		}
		d, err := duration()
		if err != nil {
			return nil, err
		}
		return Every(d), nil
	case "backlog":
		if hasParam {
			return nil, fmt.Errorf("%s: backlog takes no parameters", s)
		}
		return Backlog(), nil
	}
	return nil, fmt.Errorf("unknown policy: %s (one of forever|every|backlog)", name)
}

// Forever drains backlog, then waits cooldown before the next pass.
func Forever(cooldown time.Duration) Policy {
	return schedule{name: "forever", drain: true, wait: cooldown}
}

// Every runs a pass per interval, even if the pass left backlog.
//
// It fits upload loops, whose pass already takes every pending artifact.
func Every(interval time.Duration) Policy {
	return schedule{name: "every", wait: interval}
}

// Backlog drains backlog, then stops.
func Backlog() Policy {
	return schedule{name: "backlog", drain: true, once: true}
}

type schedule struct {
	name string

	// run next pass immediately when a pass has updated something.
	drain bool

	// break when nothing is updated.
	once bool

	wait time.Duration
}

func (s schedule) String() string {
	if s.once {
		return s.name
	}
	return fmt.Sprintf("%s:%s", s.name, s.wait)
}

func (s schedule) Next(updated bool, _ error) loop.Next {
	if updated && s.drain {
		return loop.Continue(0)
	}
	if s.once {
		return loop.Break(nil)
	}
	return loop.Continue(s.wait)
}

// UntilError breaks with the error of a pass. Otherwise it follows p.
func UntilError(p Policy) Policy {
	return untilError{base: p}
}

type untilError struct {
	base Policy
}

func (u untilError) String() string {
	return u.base.String() + " (until error)"
}

func (u untilError) Next(updated bool, err error) loop.Next {
	if err != nil {
		return loop.Break(err)
	}
	return u.base.Next(updated, nil)
}
