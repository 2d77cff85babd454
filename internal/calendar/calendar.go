// Package calendar implements working-day arithmetic over a
// model.WorkingCalendar and stores per-project calendar overrides.
//
// All functions are pure: dates are values and are never modified.
package calendar

import (
	"slices"
	"strings"
	"time"

	"github.com/baiirun/programme/internal/apperr"
	"github.com/baiirun/programme/internal/mode"
	"github.com/baiirun/programme/internal/model"
)

// MaxSearchDays bounds every day-by-day walk. Ten years without a single
// working day means the calendar is unusable.
const MaxSearchDays = 3660

// ErrNoWorkingDays is returned when a walk cannot find a working day.
var ErrNoWorkingDays = &apperr.Error{Kind: apperr.KindValidation, Op: "calendar", Msg: "calendar has no reachable working day"}

// IsWorkingDay reports whether d's weekday is a working weekday of cal and d
// is not one of cal's holidays.
func IsWorkingDay(d model.Date, cal model.WorkingCalendar) bool {
	return cal.WorksOn(d.Weekday()) && !cal.IsHoliday(d)
}

// NextWorkingDay returns the first working day strictly after d.
func NextWorkingDay(d model.Date, cal model.WorkingCalendar) (model.Date, error) {
	return step(d, 1, cal)
}

// PreviousWorkingDay returns the last working day strictly before d.
func PreviousWorkingDay(d model.Date, cal model.WorkingCalendar) (model.Date, error) {
	return step(d, -1, cal)
}

func step(d model.Date, dir int, cal model.WorkingCalendar) (model.Date, error) {
	if len(cal.WorkingDays) == 0 {
		return model.Date{}, ErrNoWorkingDays
	}
	cur := d
	for i := 0; i < MaxSearchDays; i++ {
		cur = cur.AddDays(dir)
		if IsWorkingDay(cur, cal) {
			return cur, nil
		}
	}
	return model.Date{}, ErrNoWorkingDays
}

// AddWorkingDays advances d by n working days, one at a time. Negative n
// walks backwards; zero returns d unchanged.
func AddWorkingDays(d model.Date, n int, cal model.WorkingCalendar) (model.Date, error) {
	cur := d
	dir := 1
	if n < 0 {
		dir, n = -1, -n
	}
	for i := 0; i < n; i++ {
		next, err := step(cur, dir, cal)
		if err != nil {
			return model.Date{}, err
		}
		cur = next
	}
	return cur, nil
}

// WorkingDaysBetween counts working days in the closed range [start, end].
// It returns 0 when end is before start.
func WorkingDaysBetween(start, end model.Date, cal model.WorkingCalendar) int {
	count := 0
	for d := start; !d.After(end); d = d.AddDays(1) {
		if IsWorkingDay(d, cal) {
			count++
		}
	}
	return count
}

// AdjustToNearestWorkingDay snaps d to the closest working day. Ties go to
// the next working day.
func AdjustToNearestWorkingDay(d model.Date, cal model.WorkingCalendar) (model.Date, error) {
	if IsWorkingDay(d, cal) {
		return d, nil
	}
	next, nextErr := NextWorkingDay(d, cal)
	prev, prevErr := PreviousWorkingDay(d, cal)
	switch {
	case nextErr != nil && prevErr != nil:
		return model.Date{}, nextErr
	case prevErr != nil:
		return next, nil
	case nextErr != nil:
		return prev, nil
	}
	if d.DaysUntil(next) <= prev.DaysUntil(d) {
		return next, nil
	}
	return prev, nil
}

// DayKind explains why a day is not worked.
type DayKind string

const (
	DayHoliday DayKind = "holiday"
	DayWeekend DayKind = "weekend"
)

// NonWorkingDay is one excluded day in a range.
type NonWorkingDay struct {
	Date model.Date `json:"date"`
	Kind DayKind    `json:"kind"`
}

// NonWorkingDays lists holidays and non-working weekdays in [start, end].
// A holiday that also falls on a non-working weekday is reported as a holiday.
func NonWorkingDays(start, end model.Date, cal model.WorkingCalendar) []NonWorkingDay {
	var out []NonWorkingDay
	for d := start; !d.After(end); d = d.AddDays(1) {
		switch {
		case cal.IsHoliday(d):
			out = append(out, NonWorkingDay{Date: d, Kind: DayHoliday})
		case !cal.WorksOn(d.Weekday()):
			out = append(out, NonWorkingDay{Date: d, Kind: DayWeekend})
		}
	}
	return out
}

// Effective returns the calendar as it applies under m. Reduced mode forces
// Mon–Fri and keeps only the first MaxHolidays holidays.
func Effective(cal model.WorkingCalendar, m mode.Mode) model.WorkingCalendar {
	out := cal.Clone()
	if !m.Reduced {
		return out
	}
	out.WorkingDays = slices.Clone(model.Weekdays)
	if limit := m.Limits.MaxHolidays; limit > 0 && len(out.Holidays) > limit {
		out.Holidays = out.Holidays[:limit]
	}
	out.Reduced = true
	return out
}

// Validate checks that working days are a non-empty set of weekdays.
func Validate(cal model.WorkingCalendar) error {
	if len(cal.WorkingDays) == 0 {
		return apperr.Validation("calendar.validate", "working days must not be empty")
	}
	seen := map[time.Weekday]bool{}
	for _, wd := range cal.WorkingDays {
		if wd < time.Sunday || wd > time.Saturday {
			return apperr.Validation("calendar.validate", "invalid weekday %d (want 0-6)", int(wd))
		}
		if seen[wd] {
			return apperr.Validation("calendar.validate", "duplicate weekday %s", wd)
		}
		seen[wd] = true
	}
	return nil
}

// FormatWeekdays renders working days as "Mon Tue ...".
func FormatWeekdays(days []time.Weekday) string {
	sorted := slices.Clone(days)
	slices.Sort(sorted)
	names := make([]string, len(sorted))
	for i, wd := range sorted {
		names[i] = wd.String()[:3]
	}
	return strings.Join(names, " ")
}
