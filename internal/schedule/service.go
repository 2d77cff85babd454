// Package schedule is the entry point shells use. Each operation resolves
// the capability mode once, calls one component and records the change for
// undo/redo. It also replays recorded changes for the history log.
package schedule

import (
	"context"
	"fmt"

	"github.com/baiirun/programme/internal/apperr"
	"github.com/baiirun/programme/internal/calendar"
	"github.com/baiirun/programme/internal/constraints"
	"github.com/baiirun/programme/internal/deps"
	"github.com/baiirun/programme/internal/groups"
	"github.com/baiirun/programme/internal/history"
	"github.com/baiirun/programme/internal/kv"
	"github.com/baiirun/programme/internal/logging"
	"github.com/baiirun/programme/internal/mode"
	"github.com/baiirun/programme/internal/model"
	"github.com/baiirun/programme/internal/tasks"
)

// ActorProvider supplies the acting user for recorded actions.
type ActorProvider interface {
	ActorID(ctx context.Context) (string, error)
}

// StaticActor always returns the same actor id.
type StaticActor string

func (a StaticActor) ActorID(context.Context) (string, error) { return string(a), nil }

// Deps are the collaborators of a Service. Zero limits fall back to
// mode.NormalLimits and mode.ReducedLimits. Stacks is optional; without it
// undo history lasts as long as the Service.
type Deps struct {
	Store   kv.Store
	Audit   history.AuditTrail
	Stacks  history.StackStore
	Mode    mode.Provider
	Actor   ActorProvider
	Normal  mode.Limits
	Reduced mode.Limits
	Logger  *logging.Logger
}

type Service struct {
	tasks       *tasks.Store
	graph       *deps.Engine
	constraints *constraints.Engine
	groups      *groups.Aggregator
	calendars   *calendar.Service
	log         *history.Log

	modes   mode.Provider
	actor   ActorProvider
	normal  mode.Limits
	reduced mode.Limits
	logger  *logging.Logger
}

func New(d Deps) *Service {
	if d.Actor == nil {
		d.Actor = StaticActor("local")
	}
	if d.Normal == (mode.Limits{}) {
		d.Normal = mode.NormalLimits()
	}
	if d.Reduced == (mode.Limits{}) {
		d.Reduced = mode.ReducedLimits()
	}
	ts := tasks.New(d.Store, d.Logger)
	s := &Service{
		tasks:       ts,
		graph:       deps.New(d.Store, ts, d.Logger),
		constraints: constraints.New(d.Store, ts, d.Logger),
		groups:      groups.New(ts, d.Logger),
		calendars:   calendar.NewService(d.Store, d.Logger),
		modes:       d.Mode,
		actor:       d.Actor,
		normal:      d.Normal,
		reduced:     d.Reduced,
		logger:      d.Logger.With("schedule"),
	}
	s.log = history.New(s, d.Audit, d.Logger)
	if d.Stacks != nil {
		s.log.SetStackStore(d.Stacks)
	}
	return s
}

func (s *Service) Tasks() *tasks.Store               { return s.tasks }
func (s *Service) Graph() *deps.Engine               { return s.graph }
func (s *Service) Constraints() *constraints.Engine  { return s.constraints }
func (s *Service) Groups() *groups.Aggregator        { return s.groups }
func (s *Service) Calendars() *calendar.Service      { return s.calendars }
func (s *Service) History() *history.Log             { return s.log }

// Mode resolves the capability mode for one request.
func (s *Service) Mode(ctx context.Context) (mode.Mode, error) {
	m, err := mode.Resolve(ctx, s.modes, s.normal, s.reduced)
	if err != nil {
		return mode.Mode{}, apperr.Persistence("schedule.mode", err)
	}
	return m, nil
}

type request struct {
	project string
	mode    mode.Mode
	actor   string
}

func (s *Service) begin(ctx context.Context, project string) (request, error) {
	if project == "" {
		return request{}, apperr.Validation("schedule", "project is required")
	}
	m, err := s.Mode(ctx)
	if err != nil {
		return request{}, err
	}
	actor, err := s.actor.ActorID(ctx)
	if err != nil {
		return request{}, fmt.Errorf("failed to resolve actor: %w", err)
	}
	r := request{project: project, mode: m, actor: actor}
	if err := s.log.Load(ctx, r.scope()); err != nil {
		return request{}, apperr.Persistence("schedule", err)
	}
	return r, nil
}

func (r request) scope() history.Scope {
	return history.Scope{ProjectID: r.project, ActorID: r.actor}
}

// record adds the change to the history log. The mutation has already
// happened, so an audit failure is logged rather than returned.
func (s *Service) record(ctx context.Context, r request, taskID, description string, c history.Change) {
	_, err := s.log.Record(ctx, r.mode, history.Action{
		ProjectID:   r.project,
		ActorID:     r.actor,
		TaskID:      taskID,
		Change:      c,
		Description: description,
	})
	if err != nil {
		s.logger.Warn("record failed kind=%s project=%s error=%v", c.Kind(), r.project, err)
	}
}

// CreateTask creates a task after the reduced-mode group checks.
func (s *Service) CreateTask(ctx context.Context, in tasks.NewTask) (model.Task, error) {
	r, err := s.begin(ctx, in.ProjectID)
	if err != nil {
		return model.Task{}, err
	}
	if in.ParentID != nil {
		if err := s.groups.ValidateChild(ctx, r.mode, r.project, *in.ParentID); err != nil {
			return model.Task{}, err
		}
	}
	task, err := s.tasks.Create(ctx, r.mode, in)
	if err != nil {
		return model.Task{}, err
	}
	var c history.Change = history.TaskCreated{Task: task}
	desc := fmt.Sprintf("Create task %q", task.Name)
	if task.Kind == model.TaskKindMilestone {
		c = history.MilestoneCreated{Task: task}
		desc = fmt.Sprintf("Create milestone %q", task.Name)
	}
	s.record(ctx, r, task.ID, desc, c)
	return task, nil
}

// CreateMilestone creates a one-day milestone on date.
func (s *Service) CreateMilestone(ctx context.Context, project, name string, date model.Date, parentID *string) (model.Task, error) {
	return s.CreateTask(ctx, tasks.NewTask{
		ProjectID: project,
		Name:      name,
		Kind:      model.TaskKindMilestone,
		StartDate: date,
		EndDate:   date,
		ParentID:  parentID,
	})
}

// UpdateTask applies a patch. Changing dates is checked against the task's
// constraint like a bar move.
func (s *Service) UpdateTask(ctx context.Context, project, id string, p tasks.Patch) (model.Task, []tasks.FieldChange, error) {
	r, err := s.begin(ctx, project)
	if err != nil {
		return model.Task{}, nil, err
	}
	if p.StartDate != nil || p.EndDate != nil {
		current, err := s.tasks.Get(ctx, project, id)
		if err != nil {
			return model.Task{}, nil, err
		}
		span := current.Span()
		if p.StartDate != nil {
			span.Start = *p.StartDate
		}
		if p.EndDate != nil {
			span.End = *p.EndDate
		}
		if _, err := s.checkConstraint(ctx, r, id, span); err != nil {
			return model.Task{}, nil, err
		}
	}
	updated, previous, changes, err := s.tasks.Update(ctx, project, id, p)
	if err != nil {
		return model.Task{}, nil, err
	}
	if len(changes) == 0 {
		return updated, nil, nil
	}
	fields := make([]string, len(changes))
	for i, c := range changes {
		fields[i] = c.Field
	}
	s.record(ctx, r, id, fmt.Sprintf("Update task %q (%d fields)", updated.Name, len(fields)),
		history.TaskUpdated{Before: previous, After: updated, Fields: fields})
	return updated, changes, nil
}

// MilestoneEdit changes a milestone's name and/or date.
type MilestoneEdit struct {
	Name *string
	Date *model.Date
}

// EditMilestone edits a milestone, keeping start and end on the same day.
func (s *Service) EditMilestone(ctx context.Context, project, id string, edit MilestoneEdit) (model.Task, error) {
	r, err := s.begin(ctx, project)
	if err != nil {
		return model.Task{}, err
	}
	current, err := s.tasks.Get(ctx, project, id)
	if err != nil {
		return model.Task{}, err
	}
	if current.Kind != model.TaskKindMilestone {
		return model.Task{}, apperr.Validation("schedule.edit_milestone", "task %s is a %s, not a milestone", id, current.Kind)
	}
	p := tasks.Patch{Name: edit.Name}
	if edit.Date != nil {
		if _, err := s.checkConstraint(ctx, r, id, model.Span{Start: *edit.Date, End: *edit.Date}); err != nil {
			return model.Task{}, err
		}
		p.StartDate, p.EndDate = edit.Date, edit.Date
	}
	updated, previous, changes, err := s.tasks.Update(ctx, project, id, p)
	if err != nil {
		return model.Task{}, err
	}
	if len(changes) > 0 {
		s.record(ctx, r, id, fmt.Sprintf("Edit milestone %q", updated.Name),
			history.MilestoneEdited{Before: previous, After: updated})
	}
	return updated, nil
}

// DeleteTask removes a childless task together with its dependencies and
// constraint.
func (s *Service) DeleteTask(ctx context.Context, project, id string) (model.Task, error) {
	const op = "schedule.delete_task"
	r, err := s.begin(ctx, project)
	if err != nil {
		return model.Task{}, err
	}
	task, err := s.tasks.Get(ctx, project, id)
	if err != nil {
		return model.Task{}, err
	}
	kids, err := s.tasks.Children(ctx, project, id)
	if err != nil {
		return model.Task{}, err
	}
	if len(kids) > 0 {
		return model.Task{}, apperr.Conflict(op, "task %s has %d children; reassign or delete them first", id, len(kids))
	}

	pos, err := s.tasks.Position(ctx, project, id)
	if err != nil {
		return model.Task{}, err
	}
	constraint, err := s.constraints.Get(ctx, project, id)
	if err != nil {
		return model.Task{}, err
	}
	removedDeps, err := s.graph.RemoveForTask(ctx, project, id)
	if err != nil {
		return model.Task{}, err
	}
	if constraint != nil {
		if err := s.constraints.Put(ctx, project, id, nil); err != nil {
			s.restoreLinks(ctx, project, removedDeps, nil, id)
			return model.Task{}, err
		}
	}
	if _, err := s.tasks.Delete(ctx, project, id); err != nil {
		s.restoreLinks(ctx, project, removedDeps, constraint, id)
		return model.Task{}, err
	}

	s.record(ctx, r, id, fmt.Sprintf("Delete task %q", task.Name),
		history.TaskDeleted{Task: task, Position: pos, Dependencies: removedDeps, Constraint: constraint})
	return task, nil
}

func (s *Service) restoreLinks(ctx context.Context, project string, removed []model.Dependency, c *model.Constraint, taskID string) {
	if len(removed) > 0 {
		if err := s.graph.Restore(ctx, project, removed...); err != nil {
			s.logger.Error("failed to restore dependencies task=%s error=%v", taskID, err)
		}
	}
	if c != nil {
		if err := s.constraints.Put(ctx, project, taskID, c); err != nil {
			s.logger.Error("failed to restore constraint task=%s error=%v", taskID, err)
		}
	}
}

// BarResult is a moved or resized task plus any constraint warnings
// (reduced mode only; in normal mode a violation rejects the change).
type BarResult struct {
	Task     model.Task              `json:"task"`
	Warnings []constraints.Violation `json:"warnings,omitempty"`
}

// MoveBar moves the task to start on start, keeping its duration.
func (s *Service) MoveBar(ctx context.Context, project, id string, start model.Date) (BarResult, error) {
	r, err := s.begin(ctx, project)
	if err != nil {
		return BarResult{}, err
	}
	return s.moveBar(ctx, r, id, start)
}

// ShiftBar moves the task by n working days of the project calendar.
func (s *Service) ShiftBar(ctx context.Context, project, id string, n int) (BarResult, error) {
	r, err := s.begin(ctx, project)
	if err != nil {
		return BarResult{}, err
	}
	task, err := s.tasks.Get(ctx, project, id)
	if err != nil {
		return BarResult{}, err
	}
	cal, err := s.calendars.Get(ctx, r.mode, project)
	if err != nil {
		return BarResult{}, err
	}
	start, err := calendar.AddWorkingDays(task.StartDate, n, cal)
	if err != nil {
		return BarResult{}, err
	}
	return s.moveBar(ctx, r, id, start)
}

func (s *Service) moveBar(ctx context.Context, r request, id string, start model.Date) (BarResult, error) {
	task, err := s.tasks.Get(ctx, r.project, id)
	if err != nil {
		return BarResult{}, err
	}
	before := task.Span()
	after := before.StartingAt(start)
	warnings, err := s.checkConstraint(ctx, r, id, after)
	if err != nil {
		return BarResult{}, err
	}
	updated, err := s.tasks.SetSpan(ctx, r.project, id, after)
	if err != nil {
		return BarResult{}, err
	}
	if !before.Start.Equal(after.Start) {
		s.record(ctx, r, id, fmt.Sprintf("Move %q to %s", task.Name, after),
			history.BarMoved{TaskID: id, Before: before, After: after})
	}
	return BarResult{Task: updated, Warnings: warnings}, nil
}

// ResizeBar sets both dates of a task.
func (s *Service) ResizeBar(ctx context.Context, project, id string, span model.Span) (BarResult, error) {
	r, err := s.begin(ctx, project)
	if err != nil {
		return BarResult{}, err
	}
	task, err := s.tasks.Get(ctx, project, id)
	if err != nil {
		return BarResult{}, err
	}
	warnings, err := s.checkConstraint(ctx, r, id, span)
	if err != nil {
		return BarResult{}, err
	}
	updated, err := s.tasks.SetSpan(ctx, project, id, span)
	if err != nil {
		return BarResult{}, err
	}
	if !task.Span().Equal(span) {
		s.record(ctx, r, id, fmt.Sprintf("Resize %q to %s", task.Name, span),
			history.BarResized{TaskID: id, Before: task.Span(), After: span})
	}
	return BarResult{Task: updated, Warnings: warnings}, nil
}

// checkConstraint rejects span in normal mode when it violates the task's
// constraint and returns the violations as warnings in reduced mode.
func (s *Service) checkConstraint(ctx context.Context, r request, id string, span model.Span) ([]constraints.Violation, error) {
	v, err := s.constraints.Validate(ctx, r.mode, r.project, id, span.Start, span.End)
	if err != nil {
		return nil, err
	}
	if !v.IsValid {
		return nil, apperr.Validation("schedule.constraint", "%s violates %s", span, v.Violations[0].Message)
	}
	return v.Violations, nil
}

// Link adds a dependency and records the successor move it caused.
func (s *Service) Link(ctx context.Context, project, predecessorID, successorID string, typ model.DependencyType) (model.Dependency, deps.Propagation, error) {
	r, err := s.begin(ctx, project)
	if err != nil {
		return model.Dependency{}, deps.Propagation{}, err
	}
	dep, prop, err := s.graph.Link(ctx, r.mode, project, predecessorID, successorID, typ)
	if err != nil {
		return model.Dependency{}, deps.Propagation{}, err
	}
	s.record(ctx, r, successorID, fmt.Sprintf("Link %s %s -> %s", typ, predecessorID, successorID),
		history.DependencyLinked{Dependency: dep, SuccessorBefore: prop.Before, SuccessorAfter: prop.After})
	return dep, prop, nil
}

// Unlink removes a dependency.
func (s *Service) Unlink(ctx context.Context, project, dependencyID string) (model.Dependency, error) {
	r, err := s.begin(ctx, project)
	if err != nil {
		return model.Dependency{}, err
	}
	dep, err := s.graph.Unlink(ctx, project, dependencyID)
	if err != nil {
		return model.Dependency{}, err
	}
	s.record(ctx, r, dep.SuccessorID, fmt.Sprintf("Unlink %s %s -> %s", dep.Type, dep.PredecessorID, dep.SuccessorID),
		history.DependencyUnlinked{Dependency: dep})
	return dep, nil
}

// SetConstraint sets, replaces and enforces a task constraint.
func (s *Service) SetConstraint(ctx context.Context, project, taskID string, typ model.ConstraintType, date model.Date) (constraints.SetResult, error) {
	r, err := s.begin(ctx, project)
	if err != nil {
		return constraints.SetResult{}, err
	}
	res, err := s.constraints.Set(ctx, r.mode, project, taskID, typ, date)
	if err != nil {
		return constraints.SetResult{}, err
	}
	next := res.Constraint
	s.record(ctx, r, taskID, fmt.Sprintf("Set %s constraint on %s", typ, taskID), history.ConstraintSet{
		TaskID:   taskID,
		Previous: res.Previous,
		Next:     &next,
		Before:   res.Enforcement.Before,
		After:    res.Enforcement.After,
	})
	return res, nil
}

// RemoveConstraint removes a task's constraint.
func (s *Service) RemoveConstraint(ctx context.Context, project, taskID string) (model.Constraint, error) {
	r, err := s.begin(ctx, project)
	if err != nil {
		return model.Constraint{}, err
	}
	task, err := s.tasks.Get(ctx, project, taskID)
	if err != nil {
		return model.Constraint{}, err
	}
	removed, err := s.constraints.Remove(ctx, project, taskID)
	if err != nil {
		return model.Constraint{}, err
	}
	s.record(ctx, r, taskID, fmt.Sprintf("Remove %s constraint from %s", removed.Type, taskID), history.ConstraintSet{
		TaskID:   taskID,
		Previous: &removed,
		Before:   task.Span(),
		After:    task.Span(),
	})
	return removed, nil
}

// ToggleCollapse collapses or expands a task.
func (s *Service) ToggleCollapse(ctx context.Context, project, id string) (model.Task, error) {
	r, err := s.begin(ctx, project)
	if err != nil {
		return model.Task{}, err
	}
	task, err := s.tasks.ToggleCollapse(ctx, project, id)
	if err != nil {
		return model.Task{}, err
	}
	verb := "Expand"
	if task.Collapsed {
		verb = "Collapse"
	}
	s.record(ctx, r, id, fmt.Sprintf("%s %q", verb, task.Name),
		history.StructureToggled{TaskID: id, Collapsed: task.Collapsed})
	return task, nil
}

// OverrideCalendar replaces the project calendar.
func (s *Service) OverrideCalendar(ctx context.Context, cal model.WorkingCalendar) (model.WorkingCalendar, error) {
	r, err := s.begin(ctx, cal.ProjectID)
	if err != nil {
		return model.WorkingCalendar{}, err
	}
	previous, saved, err := s.calendars.SetOverride(ctx, r.mode, cal)
	if err != nil {
		return model.WorkingCalendar{}, err
	}
	after := saved.Clone()
	s.record(ctx, r, "", fmt.Sprintf("Override calendar (%s)", calendar.FormatWeekdays(saved.WorkingDays)),
		history.CalendarOverridden{ProjectID: r.project, Before: previous, After: &after})
	return saved, nil
}

// ResetCalendar drops the override so the default calendar applies.
func (s *Service) ResetCalendar(ctx context.Context, project string) error {
	r, err := s.begin(ctx, project)
	if err != nil {
		return err
	}
	previous, err := s.calendars.RemoveOverride(ctx, project)
	if err != nil {
		return err
	}
	s.record(ctx, r, "", "Reset calendar to default",
		history.CalendarOverridden{ProjectID: project, Before: previous})
	return nil
}

// Undo reverses the actor's most recent action in project.
func (s *Service) Undo(ctx context.Context, project string) (history.Action, error) {
	r, err := s.begin(ctx, project)
	if err != nil {
		return history.Action{}, err
	}
	return s.log.Undo(ctx, r.mode, r.scope())
}

// Redo re-applies the actor's most recently undone action.
func (s *Service) Redo(ctx context.Context, project string) (history.Action, error) {
	r, err := s.begin(ctx, project)
	if err != nil {
		return history.Action{}, err
	}
	return s.log.Redo(ctx, r.mode, r.scope())
}

// HistoryState summarises what undo and redo can do right now.
type HistoryState struct {
	CanUndo bool           `json:"can_undo"`
	CanRedo bool           `json:"can_redo"`
	Counts  history.Counts `json:"counts"`
	Next    string         `json:"next,omitempty"`
}

func (s *Service) HistoryState(ctx context.Context, project string) (HistoryState, error) {
	r, err := s.begin(ctx, project)
	if err != nil {
		return HistoryState{}, err
	}
	st := HistoryState{
		CanUndo: s.log.CanUndo(r.mode, r.scope()),
		CanRedo: s.log.CanRedo(r.mode, r.scope()),
		Counts:  s.log.Counts(r.scope()),
	}
	if a, ok := s.log.Peek(r.scope()); ok {
		st.Next = a.Description
	}
	return st, nil
}
