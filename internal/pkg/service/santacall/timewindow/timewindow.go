// Package timewindow validates the requested call slot against the business time rules.
package timewindow

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/santacall/santacall/internal/pkg/utils/errors"
)

type Reason string

const (
	ReasonOutsideWindow Reason = "outsideWindow"
	ReasonTooSoon       Reason = "tooSoon"
	ReasonTooFar        Reason = "tooFar"
)

type Config struct {
	CallWindowStartHour int           `json:"callWindowStartHour" mapstructure:"call-window-start-hour" usage:"First local hour of the call window, inclusive." validate:"min=0,max=23"`
	CallWindowEndHour   int           `json:"callWindowEndHour" mapstructure:"call-window-end-hour" usage:"Last local hour of the call window, exclusive." validate:"min=1,max=24,gtfield=CallWindowStartHour"`
	MinLeadTime         time.Duration `json:"minLeadTime" mapstructure:"min-lead-time" usage:"Minimal time between the booking and the call." validate:"min=0"`
	MaxAdvance          time.Duration `json:"maxAdvance" mapstructure:"max-advance" usage:"Maximal time between the booking and the call." validate:"required,gtfield=MinLeadTime"`
}

func NewConfig() Config {
	return Config{
		CallWindowStartHour: 16,
		CallWindowEndHour:   20,
		MinLeadTime:         24 * time.Hour,
		MaxAdvance:          7 * 24 * time.Hour,
	}
}

// RejectedError is returned if the slot does not satisfy the rules.
type RejectedError struct {
	Reason  Reason
	message string
}

func (e *RejectedError) Error() string {
	return e.message
}

func (e *RejectedError) StatusCode() int {
	return http.StatusUnprocessableEntity
}

func (e *RejectedError) ErrorName() string {
	r := string(e.Reason)
	return "slot" + strings.ToUpper(r[:1]) + r[1:]
}

func (e *RejectedError) ErrorUserMessage() string {
	return e.message
}

type Validator struct {
	config Config
}

func NewValidator(cfg Config) *Validator {
	return &Validator{config: cfg}
}

// Validate returns nil if the slot is accepted, otherwise *RejectedError.
// The rules are checked in the order: call window, lead time, advance limit.
func (v *Validator) Validate(slot, now time.Time, localOffset time.Duration) error {
	cfg := v.config
	slot, now = slot.UTC(), now.UTC()

	if hour := slot.Add(localOffset).Hour(); hour < cfg.CallWindowStartHour || hour >= cfg.CallWindowEndHour {
		return &RejectedError{
			Reason: ReasonOutsideWindow,
			message: fmt.Sprintf(
				"the call must start between %02d:00 and %02d:00 local time, requested %s",
				cfg.CallWindowStartHour, cfg.CallWindowEndHour, slot.Add(localOffset).Format("15:04"),
			),
		}
	}

	if earliest := now.Add(cfg.MinLeadTime); slot.Before(earliest) {
		return &RejectedError{
			Reason:  ReasonTooSoon,
			message: fmt.Sprintf("the call must be booked at least %s in advance", formatDuration(cfg.MinLeadTime)),
		}
	}

	if latest := now.Add(cfg.MaxAdvance); slot.After(latest) {
		return &RejectedError{
			Reason:  ReasonTooFar,
			message: fmt.Sprintf("the call can be booked at most %s in advance", formatDuration(cfg.MaxAdvance)),
		}
	}

	return nil
}

// nolint: gochecknoglobals
var offsetRegexp = regexp.MustCompile(`^([+-])(0\d|1[0-4]):([0-5]\d)$`)

// ParseOffset parses UTC offset in the "+HH:MM" format, "Z" is an alias of "+00:00".
func ParseOffset(str string) (time.Duration, error) {
	if str == "Z" || str == "" {
		return 0, nil
	}

	m := offsetRegexp.FindStringSubmatch(str)
	if m == nil {
		return 0, errors.Errorf(`invalid UTC offset "%s", expected "+HH:MM" format`, str)
	}

	hours, _ := strconv.Atoi(m[2])
	minutes, _ := strconv.Atoi(m[3])
	offset := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
	if m[1] == "-" {
		offset = -offset
	}
	return offset, nil
}

func FormatOffset(offset time.Duration) string {
	sign := "+"
	if offset < 0 {
		sign, offset = "-", -offset
	}
	return fmt.Sprintf("%s%02d:%02d", sign, int(offset.Hours()), int(offset.Minutes())%60)
}

func formatDuration(d time.Duration) string {
	switch {
	case d%(24*time.Hour) == 0:
		return pluralize(int(d/(24*time.Hour)), "day")
	case d%time.Hour == 0:
		return pluralize(int(d/time.Hour), "hour")
	default:
		return d.String()
	}
}

func pluralize(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}
