package model

import (
	"fmt"
	"time"
)

// DateLayout is the ISO calendar-date form used for storage and display.
const DateLayout = "2006-01-02"

// Date is a calendar date with no time-of-day or zone. It is a value type:
// every arithmetic method returns a new Date.
type Date struct {
	t time.Time
}

// NewDate returns the date for the given year, month and day.
// Out-of-range values are normalized the same way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// Today returns the current local calendar date.
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses an ISO date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return DateOf(t), nil
}

// MustParseDate is ParseDate for literals known to be valid.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool { return d.t.IsZero() }

// AddDays returns d shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	return Date{t: d.t.AddDate(0, 0, n)}
}

// DaysUntil returns the signed number of calendar days from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other.t.Sub(d.t).Hours() / 24)
}

func (d Date) Before(other Date) bool { return d.t.Before(other.t) }
func (d Date) After(other Date) bool  { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool  { return d.t.Equal(other.t) }

// Compare returns -1, 0 or +1.
func (d Date) Compare(other Date) int { return d.t.Compare(other.t) }

// Weekday returns the day of the week, Sunday = 0.
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }

// Time returns midnight UTC of d.
func (d Date) Time() time.Time { return d.t }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(DateLayout)
}

// MarshalText implements encoding.TextMarshaler; JSON and YAML use it.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty text is the zero Date.
func (d *Date) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MinDate returns the earlier of a and b.
func MinDate(a, b Date) Date {
	if b.Before(a) {
		return b
	}
	return a
}

// MaxDate returns the later of a and b.
func MaxDate(a, b Date) Date {
	if b.After(a) {
		return b
	}
	return a
}

// Span is a closed date range with a fixed duration in calendar days.
type Span struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// Days returns End - Start in calendar days.
func (s Span) Days() int { return s.Start.DaysUntil(s.End) }

// Shift moves the span by n days, keeping its duration.
func (s Span) Shift(n int) Span {
	return Span{Start: s.Start.AddDays(n), End: s.End.AddDays(n)}
}

// StartingAt returns a span of the same duration beginning at start.
func (s Span) StartingAt(start Date) Span {
	return Span{Start: start, End: start.AddDays(s.Days())}
}

// EndingAt returns a span of the same duration finishing at end.
func (s Span) EndingAt(end Date) Span {
	return Span{Start: end.AddDays(-s.Days()), End: end}
}

// Equal reports whether both spans cover the same days.
func (s Span) Equal(other Span) bool {
	return s.Start.Equal(other.Start) && s.End.Equal(other.End)
}

func (s Span) String() string {
	return fmt.Sprintf("%s..%s", s.Start, s.End)
}
