// Package tasks owns the task hierarchy of each project: creation and
// validation, field-level update diffs, visibility under collapse and the
// direct-children group span.
package tasks

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/baiirun/programme/internal/apperr"
	"github.com/baiirun/programme/internal/kv"
	"github.com/baiirun/programme/internal/logging"
	"github.com/baiirun/programme/internal/mode"
	"github.com/baiirun/programme/internal/model"
)

// Store keeps each project's tasks as one collection under "tasks/<project>".
type Store struct {
	tasks  *kv.Collection[model.Task]
	logger *logging.Logger
	now    func() time.Time
}

func New(store kv.Store, logger *logging.Logger) *Store {
	return &Store{
		tasks:  kv.NewCollection[model.Task](store, "tasks"),
		logger: logger.With("tasks"),
		now:    time.Now,
	}
}

// NewTask is the input to Create. A zero Kind means a plain task; a
// milestone without EndDate ends on its StartDate.
type NewTask struct {
	ProjectID   string
	Name        string
	Description string
	Kind        model.TaskKind
	Status      string
	StartDate   model.Date
	EndDate     model.Date
	Tags        []string
	ParentID    *string
	Color       string
	Progress    int
}

// Create validates and stores a new task.
func (s *Store) Create(ctx context.Context, m mode.Mode, in NewTask) (model.Task, error) {
	const op = "tasks.create"
	if in.ProjectID == "" {
		return model.Task{}, apperr.Validation(op, "project is required")
	}
	if in.Kind == "" {
		in.Kind = model.TaskKindTask
	}
	if in.Status == "" {
		in.Status = model.DefaultStatus
	}
	if in.Kind == model.TaskKindMilestone && in.EndDate.IsZero() {
		in.EndDate = in.StartDate
	}

	list, err := s.load(ctx, in.ProjectID)
	if err != nil {
		return model.Task{}, err
	}
	if m.Reduced && mode.Exceeded(len(list), m.Limits.MaxTasks) {
		s.logger.Info("task cap reached project=%s limit=%d", in.ProjectID, m.Limits.MaxTasks)
		return model.Task{}, apperr.Capacity(op, "reduced mode allows at most %d tasks per project", m.Limits.MaxTasks)
	}
	if in.ParentID != nil && index(list, *in.ParentID) < 0 {
		return model.Task{}, apperr.NotFound(op, "parent task not found: %s", *in.ParentID)
	}

	now := s.now()
	task := model.Task{
		ID:          model.GenerateID(model.PrefixTask),
		ProjectID:   in.ProjectID,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Kind:        in.Kind,
		Status:      in.Status,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Tags:        model.NormalizeTags(in.Tags),
		Color:       in.Color,
		Progress:    in.Progress,
		Reduced:     m.Reduced,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.ParentID != nil {
		parent := *in.ParentID
		task.ParentID = &parent
	}
	if err := validate(op, task); err != nil {
		return model.Task{}, err
	}

	if err := s.save(ctx, op, in.ProjectID, append(list, task)); err != nil {
		return model.Task{}, err
	}
	s.logger.Debug("created task id=%s project=%s kind=%s span=%s", task.ID, task.ProjectID, task.Kind, task.Span())
	return task.Clone(), nil
}

// Patch lists the fields an Update changes. Nil fields are left alone.
// ClearParent moves the task to the root and wins over ParentID.
type Patch struct {
	Name        *string
	Description *string
	Kind        *model.TaskKind
	Status      *string
	StartDate   *model.Date
	EndDate     *model.Date
	Tags        *[]string
	ParentID    *string
	ClearParent bool
	Collapsed   *bool
	Color       *string
	Progress    *int
}

// FieldChange records one changed tracked field.
type FieldChange struct {
	Field string `json:"field"`
	Old   any    `json:"old"`
	New   any    `json:"new"`
}

// Update merges p into the task, re-validates it and returns the stored
// task, its previous state and the changed fields. An empty diff is not
// persisted.
func (s *Store) Update(ctx context.Context, project, id string, p Patch) (updated, previous model.Task, changes []FieldChange, err error) {
	const op = "tasks.update"
	list, err := s.load(ctx, project)
	if err != nil {
		return model.Task{}, model.Task{}, nil, err
	}
	i := index(list, id)
	if i < 0 {
		return model.Task{}, model.Task{}, nil, apperr.NotFound(op, "task not found: %s", id)
	}
	previous = list[i].Clone()
	next := apply(previous.Clone(), p)

	if p.ParentID != nil && !p.ClearParent {
		if err := checkReparent(op, list, id, *p.ParentID); err != nil {
			return model.Task{}, model.Task{}, nil, err
		}
	}
	if err := validate(op, next); err != nil {
		return model.Task{}, model.Task{}, nil, err
	}

	changes = Diff(previous, next)
	if len(changes) == 0 {
		return previous.Clone(), previous, nil, nil
	}
	next.UpdatedAt = s.now()
	list[i] = next
	if err := s.save(ctx, op, project, list); err != nil {
		return model.Task{}, model.Task{}, nil, err
	}
	s.logger.Debug("updated task id=%s fields=%d", id, len(changes))
	return next.Clone(), previous, changes, nil
}

// SetSpan moves a task to span. Used by propagation and enforcement.
func (s *Store) SetSpan(ctx context.Context, project, id string, span model.Span) (model.Task, error) {
	updated, _, _, err := s.Update(ctx, project, id, Patch{StartDate: &span.Start, EndDate: &span.End})
	return updated, err
}

// Delete removes a task. Tasks that still have children are rejected; the
// caller reassigns or deletes them first.
func (s *Store) Delete(ctx context.Context, project, id string) (model.Task, error) {
	const op = "tasks.delete"
	list, err := s.load(ctx, project)
	if err != nil {
		return model.Task{}, err
	}
	i := index(list, id)
	if i < 0 {
		return model.Task{}, apperr.NotFound(op, "task not found: %s", id)
	}
	for _, t := range list {
		if t.ParentIs(id) {
			s.logger.Info("delete rejected id=%s reason=has-children", id)
			return model.Task{}, apperr.Conflict(op, "task %s has children; reassign or delete them first", id)
		}
	}
	removed := list[i]
	if err := s.save(ctx, op, project, slices.Delete(list, i, i+1)); err != nil {
		return model.Task{}, err
	}
	s.logger.Debug("deleted task id=%s", id)
	return removed, nil
}

// Put stores an exact snapshot, replacing a task with the same id in place
// or appending it. Used by undo/redo.
func (s *Store) Put(ctx context.Context, task model.Task) error {
	list, err := s.load(ctx, task.ProjectID)
	if err != nil {
		return err
	}
	if i := index(list, task.ID); i >= 0 {
		list[i] = task.Clone()
	} else {
		list = append(list, task.Clone())
	}
	return s.save(ctx, "tasks.put", task.ProjectID, list)
}

// PutAt is Put for a task that is not stored yet: it is inserted at pos
// (clamped to the list) so that hierarchy order comes back exactly.
func (s *Store) PutAt(ctx context.Context, task model.Task, pos int) error {
	list, err := s.load(ctx, task.ProjectID)
	if err != nil {
		return err
	}
	if i := index(list, task.ID); i >= 0 {
		list[i] = task.Clone()
	} else {
		pos = max(0, min(pos, len(list)))
		list = slices.Insert(list, pos, task.Clone())
	}
	return s.save(ctx, "tasks.put", task.ProjectID, list)
}

// Position returns the task's index in creation order.
func (s *Store) Position(ctx context.Context, project, id string) (int, error) {
	list, err := s.load(ctx, project)
	if err != nil {
		return 0, err
	}
	i := index(list, id)
	if i < 0 {
		return 0, apperr.NotFound("tasks.position", "task not found: %s", id)
	}
	return i, nil
}

// Remove deletes a task without the children check. Used by undo/redo.
func (s *Store) Remove(ctx context.Context, project, id string) error {
	list, err := s.load(ctx, project)
	if err != nil {
		return err
	}
	i := index(list, id)
	if i < 0 {
		return apperr.NotFound("tasks.remove", "task not found: %s", id)
	}
	return s.save(ctx, "tasks.remove", project, slices.Delete(list, i, i+1))
}

// ToggleCollapse flips the collapsed flag.
func (s *Store) ToggleCollapse(ctx context.Context, project, id string) (model.Task, error) {
	task, err := s.Get(ctx, project, id)
	if err != nil {
		return model.Task{}, err
	}
	return s.SetCollapsed(ctx, project, id, !task.Collapsed)
}

// SetCollapsed sets the collapsed flag to an explicit value.
func (s *Store) SetCollapsed(ctx context.Context, project, id string, collapsed bool) (model.Task, error) {
	updated, _, _, err := s.Update(ctx, project, id, Patch{Collapsed: &collapsed})
	return updated, err
}

func (s *Store) load(ctx context.Context, project string) ([]model.Task, error) {
	list, err := s.tasks.Load(ctx, project)
	if err != nil {
		return nil, apperr.Persistence("tasks.load", err)
	}
	return list, nil
}

func (s *Store) save(ctx context.Context, op, project string, list []model.Task) error {
	if err := s.tasks.Save(ctx, project, list); err != nil {
		s.logger.Warn("save failed project=%s error=%v", project, err)
		return apperr.Persistence(op, err)
	}
	return nil
}

func index(list []model.Task, id string) int {
	return slices.IndexFunc(list, func(t model.Task) bool { return t.ID == id })
}

func apply(t model.Task, p Patch) model.Task {
	if p.Name != nil {
		t.Name = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Kind != nil {
		t.Kind = *p.Kind
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.StartDate != nil {
		t.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		t.EndDate = *p.EndDate
	}
	if p.Tags != nil {
		t.Tags = model.NormalizeTags(*p.Tags)
	}
	switch {
	case p.ClearParent:
		t.ParentID = nil
	case p.ParentID != nil:
		parent := *p.ParentID
		t.ParentID = &parent
	}
	if p.Collapsed != nil {
		t.Collapsed = *p.Collapsed
	}
	if p.Color != nil {
		t.Color = *p.Color
	}
	if p.Progress != nil {
		t.Progress = *p.Progress
	}
	return t
}

func validate(op string, t model.Task) error {
	if t.Name == "" {
		return apperr.Validation(op, "name is required")
	}
	if !t.Kind.IsValid() {
		return apperr.Validation(op, "invalid task kind: %q", t.Kind)
	}
	if t.StartDate.IsZero() || t.EndDate.IsZero() {
		return apperr.Validation(op, "start and end dates are required")
	}
	if t.StartDate.After(t.EndDate) {
		return apperr.Validation(op, "start %s is after end %s", t.StartDate, t.EndDate)
	}
	if t.Kind == model.TaskKindMilestone && !t.StartDate.Equal(t.EndDate) {
		return apperr.Validation(op, "milestone must start and end on the same day")
	}
	if t.Progress < 0 || t.Progress > 100 {
		return apperr.Validation(op, "progress must be between 0 and 100, got %d", t.Progress)
	}
	if t.ParentID != nil && *t.ParentID == t.ID {
		return apperr.Validation(op, "task cannot be its own parent")
	}
	return nil
}

// checkReparent rejects moving id under parentID when parentID is missing or
// is id itself or one of its descendants.
func checkReparent(op string, list []model.Task, id, parentID string) error {
	if parentID == id {
		return apperr.Validation(op, "task cannot be its own parent")
	}
	if index(list, parentID) < 0 {
		return apperr.NotFound(op, "parent task not found: %s", parentID)
	}
	chain, err := ancestors(list, parentID)
	if err != nil {
		return err
	}
	if slices.Contains(chain, id) {
		return apperr.Conflict(op, "moving %s under %s would create a cycle", id, parentID)
	}
	return nil
}

// Diff returns the tracked fields that differ between old and next.
func Diff(old, next model.Task) []FieldChange {
	var changes []FieldChange
	add := func(field string, before, after any) {
		changes = append(changes, FieldChange{Field: field, Old: before, New: after})
	}
	if old.Name != next.Name {
		add("name", old.Name, next.Name)
	}
	if old.Description != next.Description {
		add("description", old.Description, next.Description)
	}
	if old.Kind != next.Kind {
		add("kind", old.Kind, next.Kind)
	}
	if old.Status != next.Status {
		add("status", old.Status, next.Status)
	}
	if !old.StartDate.Equal(next.StartDate) {
		add("start_date", old.StartDate, next.StartDate)
	}
	if !old.EndDate.Equal(next.EndDate) {
		add("end_date", old.EndDate, next.EndDate)
	}
	if !slices.Equal(old.Tags, next.Tags) {
		add("tags", old.Tags, next.Tags)
	}
	if parentOf(old) != parentOf(next) {
		add("parent_id", parentOf(old), parentOf(next))
	}
	if old.Collapsed != next.Collapsed {
		add("collapsed", old.Collapsed, next.Collapsed)
	}
	if old.Color != next.Color {
		add("color", old.Color, next.Color)
	}
	if old.Progress != next.Progress {
		add("progress", old.Progress, next.Progress)
	}
	return changes
}

func parentOf(t model.Task) string {
	if t.ParentID == nil {
		return ""
	}
	return *t.ParentID
}
