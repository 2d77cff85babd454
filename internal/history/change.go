package history

import (
	"encoding/json"
	"fmt"

	"github.com/baiirun/programme/internal/model"
)

// Kind names the user operation an action records.
type Kind string

const (
	KindTaskCreate       Kind = "task.create"
	KindTaskUpdate       Kind = "task.update"
	KindTaskDelete       Kind = "task.delete"
	KindBarMove          Kind = "bar.move"
	KindBarResize        Kind = "bar.resize"
	KindDependencyLink   Kind = "dependency.link"
	KindDependencyUnlink Kind = "dependency.unlink"
	KindConstraintSet    Kind = "constraint.set"
	KindMilestoneCreate  Kind = "milestone.create"
	KindMilestoneEdit    Kind = "milestone.edit"
	KindStructureToggle  Kind = "structure.toggle"
	KindCalendarOverride Kind = "calendar.override"
)

// Change is the before/after payload of an action. Each variant carries
// exactly what replaying it in either direction needs.
type Change interface {
	Kind() Kind
}

// TaskCreated: reverse removes Task, forward puts it back.
type TaskCreated struct {
	Task model.Task `json:"task"`
}

// TaskUpdated holds the whole task on both sides of the edit.
type TaskUpdated struct {
	Before model.Task `json:"before"`
	After  model.Task `json:"after"`
	Fields []string   `json:"fields"`
}

// TaskDeleted also holds the dependencies and constraint removed with the
// task so that undo restores all of them. Position is the task's index in
// the project list.
type TaskDeleted struct {
	Task         model.Task         `json:"task"`
	Position     int                `json:"position"`
	Dependencies []model.Dependency `json:"dependencies,omitempty"`
	Constraint   *model.Constraint  `json:"constraint,omitempty"`
}

type BarMoved struct {
	TaskID string     `json:"task_id"`
	Before model.Span `json:"before"`
	After  model.Span `json:"after"`
}

type BarResized struct {
	TaskID string     `json:"task_id"`
	Before model.Span `json:"before"`
	After  model.Span `json:"after"`
}

// DependencyLinked records the new edge and the successor move it caused.
type DependencyLinked struct {
	Dependency      model.Dependency `json:"dependency"`
	SuccessorBefore model.Span       `json:"successor_before"`
	SuccessorAfter  model.Span       `json:"successor_after"`
}

type DependencyUnlinked struct {
	Dependency model.Dependency `json:"dependency"`
}

// ConstraintSet covers set, replace and remove: a nil Next is a removal
// and a nil Previous means the task had no constraint. Before and After
// are the task's dates around enforcement.
type ConstraintSet struct {
	TaskID   string            `json:"task_id"`
	Previous *model.Constraint `json:"previous,omitempty"`
	Next     *model.Constraint `json:"next,omitempty"`
	Before   model.Span        `json:"before"`
	After    model.Span        `json:"after"`
}

type MilestoneCreated struct {
	Task model.Task `json:"task"`
}

type MilestoneEdited struct {
	Before model.Task `json:"before"`
	After  model.Task `json:"after"`
}

// StructureToggled records a collapse (Collapsed true) or an expand.
type StructureToggled struct {
	TaskID    string `json:"task_id"`
	Collapsed bool   `json:"collapsed"`
}

// CalendarOverridden holds the project's override on both sides; nil is
// the default calendar.
type CalendarOverridden struct {
	ProjectID string                 `json:"project_id"`
	Before    *model.WorkingCalendar `json:"before,omitempty"`
	After     *model.WorkingCalendar `json:"after,omitempty"`
}

func (TaskCreated) Kind() Kind        { return KindTaskCreate }
func (TaskUpdated) Kind() Kind        { return KindTaskUpdate }
func (TaskDeleted) Kind() Kind        { return KindTaskDelete }
func (BarMoved) Kind() Kind           { return KindBarMove }
func (BarResized) Kind() Kind         { return KindBarResize }
func (DependencyLinked) Kind() Kind   { return KindDependencyLink }
func (DependencyUnlinked) Kind() Kind { return KindDependencyUnlink }
func (ConstraintSet) Kind() Kind      { return KindConstraintSet }
func (MilestoneCreated) Kind() Kind   { return KindMilestoneCreate }
func (MilestoneEdited) Kind() Kind    { return KindMilestoneEdit }
func (StructureToggled) Kind() Kind   { return KindStructureToggle }
func (CalendarOverridden) Kind() Kind { return KindCalendarOverride }

type envelope struct {
	Kind Kind            `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// EncodeChange renders c as {"kind": ..., "data": ...}.
func EncodeChange(c Change) ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s change: %w", c.Kind(), err)
	}
	return json.Marshal(envelope{Kind: c.Kind(), Data: data})
}

// DecodeChange parses the output of EncodeChange.
func DecodeChange(raw []byte) (Change, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to decode change: %w", err)
	}
	var (
		c   Change
		err error
	)
	switch env.Kind {
	case KindTaskCreate:
		c = decode[TaskCreated](env.Data, &err)
	case KindTaskUpdate:
		c = decode[TaskUpdated](env.Data, &err)
	case KindTaskDelete:
		c = decode[TaskDeleted](env.Data, &err)
	case KindBarMove:
		c = decode[BarMoved](env.Data, &err)
	case KindBarResize:
		c = decode[BarResized](env.Data, &err)
	case KindDependencyLink:
		c = decode[DependencyLinked](env.Data, &err)
	case KindDependencyUnlink:
		c = decode[DependencyUnlinked](env.Data, &err)
	case KindConstraintSet:
		c = decode[ConstraintSet](env.Data, &err)
	case KindMilestoneCreate:
		c = decode[MilestoneCreated](env.Data, &err)
	case KindMilestoneEdit:
		c = decode[MilestoneEdited](env.Data, &err)
	case KindStructureToggle:
		c = decode[StructureToggled](env.Data, &err)
	case KindCalendarOverride:
		c = decode[CalendarOverridden](env.Data, &err)
	default:
		return nil, fmt.Errorf("unknown change kind: %q", env.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s change: %w", env.Kind, err)
	}
	return c, nil
}

func decode[T Change](data []byte, errp *error) Change {
	var v T
	*errp = json.Unmarshal(data, &v)
	return v
}
