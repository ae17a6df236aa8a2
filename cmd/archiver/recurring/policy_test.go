package recurring_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opst/fieldarchive/cmd/archiver/recurring"
	"github.com/opst/fieldarchive/pkg/loop"
)

func TestParsePolicy(t *testing.T) {
	for name, testcase := range map[string]struct {
		when        string
		then        recurring.Policy
		expectError bool
	}{
		"forever means forever": {
			when: "forever",
			then: recurring.Forever(0),
		},
		"forever:3s means forever with cooldown 3 seconds": {
			when: "forever:3s",
			then: recurring.Forever(3 * time.Second),
		},
		"forever:someday can not be parsed (someday is not time.Duration)": {
			when:        "forever:someday",
			expectError: true,
		},
		"every:1h means a pass per hour": {
			when: "every:1h",
			then: recurring.Every(time.Hour),
		},
		"every without interval can not be parsed": {
			when:        "every",
			expectError: true,
		},
		"forever:-1s can not be parsed (negative cooldown)": {
			when:        "forever:-1s",
			expectError: true,
		},
		"backlog means backlog": {
			when: "backlog",
			then: recurring.Backlog(),
		},
		"backlog:param can not be parsed (it should not take any parameters)": {
			when:        "backlog:param",
			expectError: true,
		},
		"empty string can not be parsed": {
			when:        "",
			expectError: true,
		},
		"unknown policy can not be parsed": {
			when:        "???????unknown??????",
			expectError: true,
		},
	} {
		t.Run(name, func(t *testing.T) {
			actual, err := recurring.ParsePolicy(testcase.when)

			if testcase.expectError {
				if err == nil {
					t.Fatal("expected error does not occured")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if actual != testcase.then {
				t.Errorf("unmatch: (actual, expected) = (%v, %v)", actual, testcase.then)
			}
		})
	}
}

func TestPolicy_Next(t *testing.T) {
	expectedErr := errors.New("fake error")

	for name, testcase := range map[string]struct {
		policy  recurring.Policy
		updated bool
		err     error
		then    loop.Next
	}{
		"forever continues immediately when updated": {
			policy: recurring.Forever(time.Minute), updated: true,
			then: loop.Continue(0),
		},
		"forever cools down when nothing is updated": {
			policy: recurring.Forever(time.Minute),
			then:   loop.Continue(time.Minute),
		},
		"backlog continues while updated": {
			policy: recurring.Backlog(), updated: true,
			then: loop.Continue(0),
		},
		"backlog breaks when nothing is updated": {
			policy: recurring.Backlog(),
			then:   loop.Break(nil),
		},
		"every waits the interval even when updated": {
			policy: recurring.Every(time.Hour), updated: true,
			then: loop.Continue(time.Hour),
		},
		"every waits the interval when nothing is updated": {
			policy: recurring.Every(time.Hour),
			then:   loop.Continue(time.Hour),
		},
		"until error breaks with error": {
			policy: recurring.UntilError(recurring.Forever(0)), updated: true, err: expectedErr,
			then: loop.Break(expectedErr),
		},
		"until error follows its base otherwise": {
			policy: recurring.UntilError(recurring.Forever(time.Second)),
			then:   loop.Continue(time.Second),
		},
	} {
		t.Run(name, func(t *testing.T) {
			actual := testcase.policy.Next(testcase.updated, testcase.err)
			if actual.String() != testcase.then.String() {
				t.Errorf("next: %s, want %s", actual, testcase.then)
			}
		})
	}
}

func TestPolicy_String(t *testing.T) {
	for _, testcase := range []struct {
		policy recurring.Policy
		then   string
	}{
		{policy: recurring.Forever(time.Minute), then: "forever:1m0s"},
		{policy: recurring.Every(time.Hour), then: "every:1h0m0s"},
		{policy: recurring.Backlog(), then: "backlog"},
		{policy: recurring.UntilError(recurring.Backlog()), then: "backlog (until error)"},
	} {
		t.Run(testcase.then, func(t *testing.T) {
			if got := testcase.policy.String(); got != testcase.then {
				t.Errorf("got %q", got)
			}
		})
	}
}

func TestTask_Applied(t *testing.T) {
	t.Run("a backlog task runs until nothing is updated", func(t *testing.T) {
		task := recurring.Task[int](func(_ context.Context, n int) (int, bool, error) {
			return n + 1, n+1 < 3, nil
		})

		got, err := loop.Start(context.Background(), 0, task.Applied(recurring.Backlog()))
		if err != nil {
			t.Fatal(err)
		}
		if got != 3 {
			t.Errorf("runs: %d", got)
		}
	})
}
