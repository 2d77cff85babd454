package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/baiirun/programme/internal/calendar"
	"github.com/baiirun/programme/internal/model"
)

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// parseWeekdays reads names like "mon,tue" or "Monday".
func parseWeekdays(names []string) ([]time.Weekday, error) {
	var days []time.Weekday
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if len(name) > 3 {
			name = name[:3]
		}
		wd, ok := weekdayNames[name]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", raw)
		}
		days = append(days, wd)
	}
	return days, nil
}

func newCalendarCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Show or override the project's working calendar",
	}
	cmd.AddCommand(
		newCalendarShowCmd(a),
		newCalendarSetCmd(a),
		newCalendarResetCmd(a),
		newCalendarAddCmd(a),
	)
	return cmd
}

// calendarView is the JSON shape of "calendar show".
type calendarView struct {
	Calendar       model.WorkingCalendar    `json:"calendar"`
	Override       bool                     `json:"override"`
	NonWorkingDays []calendar.NonWorkingDay `json:"non_working_days,omitempty"`
}

func newCalendarShowCmd(a *app) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective calendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := a.svc.Mode(ctx)
			if err != nil {
				return err
			}
			cal, err := a.svc.Calendars().Get(ctx, m, a.project)
			if err != nil {
				return err
			}
			override, err := a.svc.Calendars().Override(ctx, a.project)
			if err != nil {
				return err
			}
			view := calendarView{Calendar: cal, Override: override != nil}
			if from != "" && to != "" {
				start, err := parseDate("from", from)
				if err != nil {
					return err
				}
				end, err := parseDate("to", to)
				if err != nil {
					return err
				}
				view.NonWorkingDays = calendar.NonWorkingDays(start, end, cal)
			}
			return a.emit(cmd, view, func(w io.Writer) {
				fmt.Fprintf(w, "%s\n", cal.Name)
				fmt.Fprintf(w, "Working days: %s\n", calendar.FormatWeekdays(cal.WorkingDays))
				for _, h := range cal.Holidays {
					fmt.Fprintf(w, "Holiday:      %s (%s)\n", h, h.Weekday())
				}
				if !view.Override {
					fmt.Fprintln(w, "(default calendar)")
				}
				for _, d := range view.NonWorkingDays {
					fmt.Fprintf(w, "  %s %s %s\n", d.Date, d.Date.Weekday().String()[:3], d.Kind)
				}
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "list non-working days from this date")
	cmd.Flags().StringVar(&to, "to", "", "list non-working days up to this date")
	cmd.MarkFlagsRequiredTogether("from", "to")
	return cmd
}

func newCalendarSetCmd(a *app) *cobra.Command {
	var (
		name     string
		days     []string
		holidays []string
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Override the project calendar",
		Example: `  prog calendar set --days mon,tue,wed,thu --holiday 2024-12-25
  prog calendar set --days mon,tue,wed,thu,fri,sat --name "Six-day week"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			wds, err := parseWeekdays(days)
			if err != nil {
				return err
			}
			cal := model.WorkingCalendar{ProjectID: a.project, Name: name, WorkingDays: wds}
			for _, h := range holidays {
				d, err := parseDate("holiday", h)
				if err != nil {
					return err
				}
				cal.Holidays = append(cal.Holidays, d)
			}
			saved, err := a.svc.OverrideCalendar(cmd.Context(), cal)
			if err != nil {
				return err
			}
			return a.emit(cmd, saved, func(w io.Writer) {
				fmt.Fprintf(w, "Calendar %q: %s, %d holidays\n", saved.Name, calendar.FormatWeekdays(saved.WorkingDays), len(saved.Holidays))
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "calendar name")
	cmd.Flags().StringSliceVar(&days, "days", []string{"mon", "tue", "wed", "thu", "fri"}, "working weekdays")
	cmd.Flags().StringSliceVar(&holidays, "holiday", nil, "holiday date (repeatable)")
	return cmd
}

func newCalendarResetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Drop the override and use the default calendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.svc.ResetCalendar(cmd.Context(), a.project); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Calendar reset to default")
			return nil
		},
	}
}

func newCalendarAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add <date> <working-days>",
		Short: "Count working days forward or back from a date",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := parseDate("date", args[0])
			if err != nil {
				return err
			}
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid day count %q", args[1])
			}
			m, err := a.svc.Mode(ctx)
			if err != nil {
				return err
			}
			cal, err := a.svc.Calendars().Get(ctx, m, a.project)
			if err != nil {
				return err
			}
			result, err := calendar.AddWorkingDays(d, n, cal)
			if err != nil {
				return err
			}
			return a.emit(cmd, map[string]any{"date": result}, func(w io.Writer) {
				fmt.Fprintf(w, "%s (%s)\n", result, result.Weekday())
			})
		},
	}
}
