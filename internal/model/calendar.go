package model

import (
	"slices"
	"time"
)

// DefaultCalendarID identifies the built-in Mon–Fri calendar.
const DefaultCalendarID = "cal-default"

// WorkingCalendar decides which days count as working days for a project.
// WorkingDays holds time.Weekday values (Sunday = 0).
type WorkingCalendar struct {
	ID          string         `json:"id"`
	ProjectID   string         `json:"project_id"`
	Name        string         `json:"name"`
	WorkingDays []time.Weekday `json:"working_days"`
	Holidays    []Date         `json:"holidays,omitempty"`
	Reduced     bool           `json:"reduced"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Weekdays is Monday through Friday.
var Weekdays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

// DefaultCalendar returns the calendar used when a project has no override.
func DefaultCalendar(projectID string) WorkingCalendar {
	return WorkingCalendar{
		ID:          DefaultCalendarID,
		ProjectID:   projectID,
		Name:        "Standard (Mon–Fri)",
		WorkingDays: slices.Clone(Weekdays),
	}
}

// Clone returns a deep copy.
func (c WorkingCalendar) Clone() WorkingCalendar {
	c.WorkingDays = slices.Clone(c.WorkingDays)
	c.Holidays = slices.Clone(c.Holidays)
	return c
}

// WorksOn reports whether wd is one of the calendar's working weekdays.
func (c *WorkingCalendar) WorksOn(wd time.Weekday) bool {
	return slices.Contains(c.WorkingDays, wd)
}

// IsHoliday reports whether d is listed as a holiday.
func (c *WorkingCalendar) IsHoliday(d Date) bool {
	for _, h := range c.Holidays {
		if h.Equal(d) {
			return true
		}
	}
	return false
}
