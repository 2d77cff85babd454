// Package constraints pins task dates with SNET/FNLT/MSO/MFO/ASAP
// constraints, at most one per task, and enforces them through the task
// store.
package constraints

import (
	"context"
	"slices"
	"time"

	"github.com/baiirun/programme/internal/apperr"
	"github.com/baiirun/programme/internal/kv"
	"github.com/baiirun/programme/internal/logging"
	"github.com/baiirun/programme/internal/mode"
	"github.com/baiirun/programme/internal/model"
	"github.com/baiirun/programme/internal/tasks"
)

// Engine stores each project's constraints under "constraints/<project>".
type Engine struct {
	constraints *kv.Collection[model.Constraint]
	tasks       *tasks.Store
	logger      *logging.Logger
	now         func() time.Time
}

func New(store kv.Store, taskStore *tasks.Store, logger *logging.Logger) *Engine {
	return &Engine{
		constraints: kv.NewCollection[model.Constraint](store, "constraints"),
		tasks:       taskStore,
		logger:      logger.With("constraints"),
		now:         time.Now,
	}
}

// Enforcement describes what enforcing a constraint did to its task.
type Enforcement struct {
	TaskID string     `json:"task_id"`
	Moved  bool       `json:"moved"`
	Before model.Span `json:"before"`
	After  model.Span `json:"after"`
}

// SetResult is returned by Set. Previous is the replaced constraint, if any.
type SetResult struct {
	Previous    *model.Constraint `json:"previous,omitempty"`
	Constraint  model.Constraint  `json:"constraint"`
	Enforcement Enforcement       `json:"enforcement"`
}

// Set replaces the task's constraint with a new one and enforces it.
func (e *Engine) Set(ctx context.Context, m mode.Mode, project, taskID string, typ model.ConstraintType, date model.Date) (SetResult, error) {
	const op = "constraints.set"
	if !typ.IsValid() {
		return SetResult{}, apperr.Validation(op, "invalid constraint type: %q", typ)
	}
	if date.IsZero() && typ != model.ConstraintASAP {
		return SetResult{}, apperr.Validation(op, "%s constraint needs a date", typ)
	}
	if _, err := e.tasks.Get(ctx, project, taskID); err != nil {
		return SetResult{}, err
	}

	list, err := e.load(ctx, project)
	if err != nil {
		return SetResult{}, err
	}
	var previous *model.Constraint
	next := make([]model.Constraint, 0, len(list)+1)
	for _, c := range list {
		if c.TaskID == taskID {
			prev := c
			previous = &prev
			continue
		}
		next = append(next, c)
	}
	if m.Reduced && mode.Exceeded(len(next), m.Limits.MaxConstraints) {
		e.logger.Info("constraint cap reached project=%s limit=%d", project, m.Limits.MaxConstraints)
		return SetResult{}, apperr.Capacity(op, "reduced mode allows at most %d constrained tasks", m.Limits.MaxConstraints)
	}

	c := model.Constraint{
		ID:        model.GenerateID(model.PrefixConstraint),
		TaskID:    taskID,
		ProjectID: project,
		Type:      typ,
		Date:      date,
		Reduced:   m.Reduced,
		CreatedAt: e.now(),
	}
	if err := e.save(ctx, op, project, append(next, c)); err != nil {
		return SetResult{}, err
	}

	enf, err := e.Enforce(ctx, project, c)
	if err != nil {
		if rbErr := e.save(ctx, op, project, list); rbErr != nil {
			e.logger.Error("rollback failed task=%s error=%v", taskID, rbErr)
		}
		return SetResult{}, err
	}
	e.logger.Debug("set constraint task=%s %s %s moved=%v", taskID, typ, date, enf.Moved)
	return SetResult{Previous: previous, Constraint: c, Enforcement: enf}, nil
}

// Remove deletes the task's constraint and returns it.
func (e *Engine) Remove(ctx context.Context, project, taskID string) (model.Constraint, error) {
	const op = "constraints.remove"
	list, err := e.load(ctx, project)
	if err != nil {
		return model.Constraint{}, err
	}
	i := slices.IndexFunc(list, func(c model.Constraint) bool { return c.TaskID == taskID })
	if i < 0 {
		return model.Constraint{}, apperr.NotFound(op, "task %s has no constraint", taskID)
	}
	removed := list[i]
	if err := e.save(ctx, op, project, slices.Delete(list, i, i+1)); err != nil {
		return model.Constraint{}, err
	}
	e.logger.Debug("removed constraint task=%s", taskID)
	return removed, nil
}

// Validate checks start/end against the task's constraint. A task without
// a constraint is always valid.
func (e *Engine) Validate(ctx context.Context, m mode.Mode, project, taskID string, start, end model.Date) (Validation, error) {
	c, err := e.Get(ctx, project, taskID)
	if err != nil {
		return Validation{}, err
	}
	if c == nil {
		return Validation{IsValid: true}, nil
	}
	return Check(*c, model.Span{Start: start, End: end}, m.Reduced), nil
}

// Enforce moves the constrained task when its current dates violate c.
// Enforcing a compliant task changes nothing.
func (e *Engine) Enforce(ctx context.Context, project string, c model.Constraint) (Enforcement, error) {
	task, err := e.tasks.Get(ctx, project, c.TaskID)
	if err != nil {
		return Enforcement{}, err
	}
	enf := Enforcement{TaskID: task.ID, Before: task.Span(), After: task.Span()}
	fixed, moved := Suggest(c, task.Span())
	if !moved {
		return enf, nil
	}
	if _, err := e.tasks.SetSpan(ctx, project, task.ID, fixed); err != nil {
		return Enforcement{}, err
	}
	enf.Moved, enf.After = true, fixed
	return enf, nil
}

// Get returns the task's constraint, or nil.
func (e *Engine) Get(ctx context.Context, project, taskID string) (*model.Constraint, error) {
	list, err := e.load(ctx, project)
	if err != nil {
		return nil, err
	}
	for _, c := range list {
		if c.TaskID == taskID {
			return &c, nil
		}
	}
	return nil, nil
}

// List returns all constraints of a project.
func (e *Engine) List(ctx context.Context, project string) ([]model.Constraint, error) {
	return e.load(ctx, project)
}

// Put sets the task's constraint to an exact snapshot without enforcing it;
// nil removes it. Used by undo/redo and task deletion.
func (e *Engine) Put(ctx context.Context, project, taskID string, c *model.Constraint) error {
	list, err := e.load(ctx, project)
	if err != nil {
		return err
	}
	next := slices.DeleteFunc(list, func(x model.Constraint) bool { return x.TaskID == taskID })
	if c != nil {
		next = append(next, *c)
	}
	return e.save(ctx, "constraints.put", project, next)
}

func (e *Engine) load(ctx context.Context, project string) ([]model.Constraint, error) {
	list, err := e.constraints.Load(ctx, project)
	if err != nil {
		return nil, apperr.Persistence("constraints.load", err)
	}
	return list, nil
}

func (e *Engine) save(ctx context.Context, op, project string, list []model.Constraint) error {
	if err := e.constraints.Save(ctx, project, list); err != nil {
		e.logger.Warn("save failed project=%s error=%v", project, err)
		return apperr.Persistence(op, err)
	}
	return nil
}
