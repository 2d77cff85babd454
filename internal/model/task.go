// Package model defines the records of the programme scheduling core:
// tasks, dependencies, constraints and working calendars.
package model

import (
	"slices"
	"time"
)

type TaskKind string

const (
	TaskKindTask      TaskKind = "task"
	TaskKindMilestone TaskKind = "milestone"
	TaskKindPhase     TaskKind = "phase"
	TaskKindSummary   TaskKind = "summary"
)

// IsValid returns true if the kind is a known value.
func (k TaskKind) IsValid() bool {
	switch k {
	case TaskKindTask, TaskKindMilestone, TaskKindPhase, TaskKindSummary:
		return true
	}
	return false
}

// DefaultStatus is assigned to tasks created without a status.
const DefaultStatus = "not_started"

// Task is a unit of schedulable work. ParentID nil means a root task.
type Task struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Kind        TaskKind  `json:"kind"`
	Status      string    `json:"status"`
	StartDate   Date      `json:"start_date"`
	EndDate     Date      `json:"end_date"`
	Tags        []string  `json:"tags,omitempty"`
	ParentID    *string   `json:"parent_id,omitempty"`
	Collapsed   bool      `json:"collapsed"`
	Color       string    `json:"color,omitempty"`
	Progress    int       `json:"progress"`
	Reduced     bool      `json:"reduced"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Span returns the task's date range.
func (t *Task) Span() Span {
	return Span{Start: t.StartDate, End: t.EndDate}
}

// SetSpan replaces both dates.
func (t *Task) SetSpan(s Span) {
	t.StartDate = s.Start
	t.EndDate = s.End
}

// IsRoot reports whether the task has no parent.
func (t *Task) IsRoot() bool {
	return t.ParentID == nil
}

// Clone returns a deep copy; pointer and slice fields are not shared.
func (t Task) Clone() Task {
	if t.ParentID != nil {
		parent := *t.ParentID
		t.ParentID = &parent
	}
	t.Tags = slices.Clone(t.Tags)
	return t
}

// NormalizeTags sorts tags and drops blanks and duplicates, so the slice
// behaves as a set.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag != "" {
			out = append(out, tag)
		}
	}
	slices.Sort(out)
	out = slices.Compact(out)
	if len(out) == 0 {
		return nil
	}
	return out
}

// ParentIs reports whether the task's parent is id.
func (t *Task) ParentIs(id string) bool {
	return t.ParentID != nil && *t.ParentID == id
}
