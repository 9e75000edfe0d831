// Package duration provides a wrapper for time.Duration type,
// to serialize duration as a string, for example "1m30s", instead of int64 nanoseconds.
package duration

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Duration time.Duration

func From(duration time.Duration) Duration {
	return Duration(duration)
}

// FromPtr converts an optional duration, nil is kept.
func FromPtr(duration *time.Duration) *Duration {
	if duration == nil {
		return nil
	}
	v := Duration(*duration)
	return &v
}

func (v Duration) Duration() time.Duration {
	return time.Duration(v)
}

func (v Duration) String() string {
	return v.Duration().String()
}

func (v Duration) MarshalText() (text []byte, err error) {
	return []byte(v.String()), nil
}

func (v *Duration) UnmarshalText(text []byte) error {
	d, err := time.ParseDuration(string(text))
	*v = Duration(d)
	return err
}

func (v *Duration) UnmarshalJSON(b []byte) error {
	if bytes.HasPrefix(b, []byte(`"`)) && bytes.HasSuffix(b, []byte(`"`)) {
		return v.UnmarshalText(bytes.Trim(b, `"`))
	}
	// Plain number is in nanoseconds
	return json.Unmarshal(b, (*time.Duration)(v))
}

func (v *Duration) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode && n.Tag == "!!str" {
		return v.UnmarshalText([]byte(strings.Trim(n.Value, `"`)))
	}
	return n.Decode((*int64)(v))
}
