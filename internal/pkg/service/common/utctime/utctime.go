// Package utctime provides a time type serialized in UTC with millisecond precision.
package utctime

import (
	"strings"
	"time"

	"github.com/santacall/santacall/internal/pkg/utils/errors"
)

const TimeFormat = "2006-01-02T15:04:05.000Z"

type UTCTime time.Time

func From(t time.Time) UTCTime {
	return UTCTime(t)
}

// FromPtr converts an optional time, nil is kept.
func FromPtr(t *time.Time) *UTCTime {
	if t == nil {
		return nil
	}
	v := UTCTime(*t)
	return &v
}

func MustParse(s string) UTCTime {
	t, err := time.Parse(TimeFormat, s)
	if err != nil {
		panic(err)
	}
	return UTCTime(t)
}

func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

func (v UTCTime) Time() time.Time {
	return time.Time(v)
}

func (v UTCTime) IsZero() bool {
	return v.Time().IsZero()
}

func (v UTCTime) String() string {
	return FormatTime(v.Time())
}

func (v UTCTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + v.String() + `"`), nil
}

// UnmarshalJSON accepts any RFC3339 time, the value is converted to UTC.
func (v *UTCTime) UnmarshalJSON(b []byte) error {
	str := strings.Trim(string(b), `"`)
	t, err := time.Parse(time.RFC3339Nano, str)
	if err != nil {
		return errors.Errorf(`time "%s" is not in the RFC3339 format`, str)
	}
	*v = UTCTime(t.UTC())
	return nil
}
