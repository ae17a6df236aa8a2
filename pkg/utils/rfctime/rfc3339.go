// Package rfctime provides a time type for API payloads.
package rfctime

import (
	"bytes"
	"encoding/json"
	"time"
)

const (
	// Layout for output. Offsets are always numeric ("+00:00", not "Z"),
	// and fractions are cut at milliseconds.
	Layout = "2006-01-02T15:04:05.999-07:00"

	// Layout for input. Both "Z" and numeric offsets are accepted.
	LayoutZ = time.RFC3339Nano
)

// RFC3339 is a date-time of RFC 3339, marshalled into JSON with Layout.
type RFC3339 time.Time

func (t RFC3339) Time() time.Time {
	return time.Time(t)
}

func (t RFC3339) String() string {
	return time.Time(t).Format(Layout)
}

func Parse(s string) (RFC3339, error) {
	t, err := time.Parse(LayoutZ, s)
	if err != nil {
		return RFC3339{}, err
	}
	return RFC3339(t), nil
}

func (t RFC3339) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON leaves t as it is for null.
func (t *RFC3339) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
