package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/santacall/santacall/internal/pkg/service/common/cliconfig"
	"github.com/santacall/santacall/internal/pkg/service/common/utctime"
	"github.com/santacall/santacall/internal/pkg/service/santacall/timewindow"
	"github.com/santacall/santacall/internal/pkg/utils/errors"
)

type slotCheckConfig struct {
	TimeWindow timewindow.Config `json:"timeWindow" mapstructure:"time-window"`
}

func slotCommand(root *RootCommand) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slot",
		Short: "Call slot utilities.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(slotCheckCommand(root))
	return cmd
}

func slotCheckCommand(root *RootCommand) *cobra.Command {
	cfg := slotCheckConfig{TimeWindow: timewindow.NewConfig()}
	var slotStr, offsetStr, nowStr string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check whether a call can be booked for the slot.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := root.bind(cmd, &cfg); err != nil {
				return err
			}

			slot, err := parseTime("slot", slotStr)
			if err != nil {
				return err
			}

			now := time.Now()
			if nowStr != "" {
				if now, err = parseTime("now", nowStr); err != nil {
					return err
				}
			}

			offset, err := timewindow.ParseOffset(offsetStr)
			if err != nil {
				return err
			}

			if err := timewindow.NewValidator(cfg.TimeWindow).Validate(slot, now, offset); err != nil {
				return err
			}

			_, err = fmt.Fprintf(root.stdout, "Slot %s %s is bookable.\n", slot.Add(offset).Format("2006-01-02 15:04"), timewindow.FormatOffset(offset))
			return err
		},
	}

	cmd.Flags().StringVar(&slotStr, "slot", "", "Start of the call in the RFC3339 format.")
	cmd.Flags().StringVar(&offsetStr, "local-offset", "Z", "UTC offset of the child, for example \"+01:00\".")
	cmd.Flags().StringVar(&nowStr, "now", "", "Booking time in the RFC3339 format, defaults to the current time.")
	if err := cliconfig.GenerateFlags(cfg, cmd.Flags()); err != nil {
		panic(err)
	}

	return cmd
}

func parseTime(flag, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.Errorf(`flag "--%s" is required`, flag)
	}
	var out utctime.UTCTime
	if err := out.UnmarshalJSON([]byte(value)); err != nil {
		return time.Time{}, errors.PrefixErrorf(err, `invalid flag "--%s"`, flag)
	}
	return out.Time(), nil
}
