package try_test

import (
	"errors"
	"testing"

	"github.com/opst/fieldarchive/pkg/utils/try"
)

type recorder struct {
	fatals  []any
	helpers int
}

func (r *recorder) Fatal(args ...any) {
	r.fatals = append(r.fatals, args...)
}

func (r *recorder) Helper() {
	r.helpers += 1
}

// plainFataler has no Helper.
type plainFataler struct {
	fatals int
}

func (p *plainFataler) Fatal(...any) {
	p.fatals += 1
}

func TestResult(t *testing.T) {
	failure := errors.New("config is broken")

	t.Run("with value", func(t *testing.T) {
		testee := try.To("fieldarchive.yaml", nil)

		rec := &recorder{}
		if got := testee.OrFatal(rec); got != "fieldarchive.yaml" {
			t.Errorf("OrFatal: %q", got)
		}
		if len(rec.fatals) != 0 || rec.helpers != 0 {
			t.Errorf("fataler is called: %+v", rec)
		}

		if got := testee.OrDefault("default.yaml"); got != "fieldarchive.yaml" {
			t.Errorf("OrDefault: %q", got)
		}

		v, err := testee.Get()
		if v != "fieldarchive.yaml" || err != nil {
			t.Errorf("Get: (%q, %v)", v, err)
		}
	})

	t.Run("with error", func(t *testing.T) {
		testee := try.To("partial", failure)

		rec := &recorder{}
		if got := testee.OrFatal(rec); got != "" {
			t.Errorf("OrFatal: %q", got)
		}
		if len(rec.fatals) != 1 || rec.fatals[0] != failure {
			t.Errorf("Fatal is called with %v", rec.fatals)
		}
		if rec.helpers != 1 {
			t.Errorf("Helper is called %d times", rec.helpers)
		}

		plain := &plainFataler{}
		testee.OrFatal(plain)
		if plain.fatals != 1 {
			t.Errorf("Fatal is called %d times", plain.fatals)
		}

		if got := testee.OrDefault("default"); got != "default" {
			t.Errorf("OrDefault: %q", got)
		}

		v, err := testee.Get()
		if v != "" || !errors.Is(err, failure) {
			t.Errorf("Get: (%q, %v)", v, err)
		}
	})
}
