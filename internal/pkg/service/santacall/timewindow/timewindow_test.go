package timewindow_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/santacall/santacall/internal/pkg/service/common/utctime"
	"github.com/santacall/santacall/internal/pkg/service/santacall/timewindow"
)

func TestValidator_Validate(t *testing.T) {
	t.Parallel()

	// 2024-12-02 is Monday
	now := utctime.MustParse("2024-12-02T10:00:00.000Z").Time()
	v := timewindow.NewValidator(timewindow.NewConfig())
	errorNames := map[timewindow.Reason]string{
		timewindow.ReasonOutsideWindow: "slotOutsideWindow",
		timewindow.ReasonTooSoon:       "slotTooSoon",
		timewindow.ReasonTooFar:        "slotTooFar",
	}

	cases := []struct {
		Name   string
		Slot   string
		Offset time.Duration
		Reason timewindow.Reason
		Error  string
	}{
		{Name: "mon 17:00, too soon", Slot: "2024-12-02T17:00:00.000Z", Reason: timewindow.ReasonTooSoon, Error: "the call must be booked at least 24 hours in advance"},
		{Name: "tue 17:00, ok", Slot: "2024-12-03T17:00:00.000Z"},
		{Name: "mon 21:00, outside window", Slot: "2024-12-02T21:00:00.000Z", Reason: timewindow.ReasonOutsideWindow, Error: "the call must start between 16:00 and 20:00 local time, requested 21:00"},
		{Name: "8 days, too far", Slot: "2024-12-10T17:00:00.000Z", Reason: timewindow.ReasonTooFar, Error: "the call can be booked at most 7 days in advance"},
		{Name: "window start inclusive", Slot: "2024-12-03T16:00:00.000Z"},
		{Name: "window end exclusive", Slot: "2024-12-03T20:00:00.000Z", Reason: timewindow.ReasonOutsideWindow},
		{Name: "last minute of window", Slot: "2024-12-03T19:59:00.000Z"},
		{Name: "max advance, outside window", Slot: "2024-12-09T10:00:00.000Z", Reason: timewindow.ReasonOutsideWindow},
		{Name: "local offset moves into window", Slot: "2024-12-03T15:00:00.000Z", Offset: time.Hour},
		{Name: "local offset moves out of window", Slot: "2024-12-03T17:00:00.000Z", Offset: 5 * time.Hour, Reason: timewindow.ReasonOutsideWindow},
		{Name: "negative offset", Slot: "2024-12-04T01:00:00.000Z", Offset: -8 * time.Hour},
		{Name: "window is checked first", Slot: "2024-12-02T11:00:00.000Z", Reason: timewindow.ReasonOutsideWindow},
	}

	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			t.Parallel()
			err := v.Validate(utctime.MustParse(tc.Slot).Time(), now, tc.Offset)
			if tc.Reason == "" {
				assert.NoError(t, err)
				return
			}

			var rejectedErr *timewindow.RejectedError
			require.ErrorAs(t, err, &rejectedErr)
			assert.Equal(t, tc.Reason, rejectedErr.Reason)
			assert.Equal(t, 422, rejectedErr.StatusCode())
			assert.Equal(t, errorNames[tc.Reason], rejectedErr.ErrorName())
			if tc.Error != "" {
				assert.Equal(t, tc.Error, err.Error())
			}
		})
	}
}

func TestValidator_Validate_Boundaries(t *testing.T) {
	t.Parallel()

	now := utctime.MustParse("2024-12-02T15:00:00.000Z").Time()
	cfg := timewindow.NewConfig()
	cfg.MinLeadTime = 2 * time.Hour
	v := timewindow.NewValidator(cfg)

	assert.Error(t, v.Validate(now.Add(2*time.Hour-time.Second), now, 0))
	assert.NoError(t, v.Validate(now.Add(2*time.Hour), now, 0))
	assert.NoError(t, v.Validate(utctime.MustParse("2024-12-02T17:00:00.000Z").Time(), utctime.MustParse("2024-12-02T10:00:00.000Z").Time(), 0))

	maxSlot := utctime.MustParse("2024-12-09T17:00:00.000Z").Time()
	assert.NoError(t, v.Validate(maxSlot, maxSlot.Add(-cfg.MaxAdvance), 0))
	assert.Error(t, v.Validate(maxSlot, maxSlot.Add(-cfg.MaxAdvance-time.Second), 0))
}

// For all slots, the slot is accepted iff all three rules hold.
func TestValidator_Validate_Property(t *testing.T) {
	t.Parallel()

	cfg := timewindow.NewConfig()
	cfg.MinLeadTime = 2 * time.Hour
	v := timewindow.NewValidator(cfg)
	now := utctime.MustParse("2024-12-02T10:00:00.000Z").Time()

	for _, offset := range []time.Duration{-5 * time.Hour, 0, 90 * time.Minute} {
		for slot := now.Add(-time.Hour); slot.Before(now.Add(9 * 24 * time.Hour)); slot = slot.Add(30 * time.Minute) {
			hour := slot.Add(offset).Hour()
			expected := hour >= cfg.CallWindowStartHour && hour < cfg.CallWindowEndHour &&
				!slot.Before(now.Add(cfg.MinLeadTime)) && !slot.After(now.Add(cfg.MaxAdvance))
			err := v.Validate(slot, now, offset)
			assert.Equal(t, expected, err == nil, "slot %s, offset %s", slot, offset)
		}
	}
}

func TestParseOffset(t *testing.T) {
	t.Parallel()

	cases := map[string]time.Duration{
		"":       0,
		"Z":      0,
		"+00:00": 0,
		"+01:00": time.Hour,
		"-05:30": -5*time.Hour - 30*time.Minute,
		"+14:00": 14 * time.Hour,
	}
	for str, expected := range cases {
		offset, err := timewindow.ParseOffset(str)
		require.NoError(t, err, str)
		assert.Equal(t, expected, offset, str)
		if str != "" && str != "Z" {
			assert.Equal(t, str, timewindow.FormatOffset(offset))
		}
	}

	_, err := timewindow.ParseOffset("+15:00")
	if assert.Error(t, err) {
		assert.Equal(t, `invalid UTC offset "+15:00", expected "+HH:MM" format`, err.Error())
	}
	_, err = timewindow.ParseOffset("1:00")
	assert.Error(t, err)
}
