package rfctime_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/opst/fieldarchive/pkg/utils/rfctime"
)

func TestRFC3339(t *testing.T) {
	t.Run("it is marshalled with offset, in milli seconds", func(t *testing.T) {
		ts := time.Date(2024, 5, 6, 7, 8, 9, 123456789, time.UTC)
		got, err := json.Marshal(rfctime.RFC3339(ts))
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != `"2024-05-06T07:08:09.123+00:00"` {
			t.Errorf("got %s", got)
		}
	})

	for name, testcase := range map[string]struct {
		when string
		then time.Time
	}{
		"Z":      {when: `"2024-05-06T07:08:09Z"`, then: time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)},
		"offset": {when: `"2024-05-06T16:08:09.5+09:00"`, then: time.Date(2024, 5, 6, 7, 8, 9, 500000000, time.UTC)},
	} {
		t.Run("it is unmarshalled from "+name, func(t *testing.T) {
			got := rfctime.RFC3339{}
			if err := json.Unmarshal([]byte(testcase.when), &got); err != nil {
				t.Fatal(err)
			}
			if !got.Time().Equal(testcase.then) {
				t.Errorf("got %s, want %s", got, testcase.then)
			}
		})
	}

	t.Run("it rejects broken expression", func(t *testing.T) {
		got := rfctime.RFC3339{}
		if err := json.Unmarshal([]byte(`"yesterday"`), &got); err == nil {
			t.Error("no error")
		}
	})
}
