// Package deps manages the typed dependency graph between tasks. Links are
// kept acyclic and a new link moves its successor one hop to satisfy it.
package deps

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

// MaxVisits caps a single cycle search. Graphs larger than this are treated
// as malformed.
const MaxVisits = 100_000

// Engine stores each project's dependencies under "dependencies/<project>"
// and moves successors through the task store.
type Engine struct {
	deps   *kv.Collection[model.Dependency]
	tasks  *tasks.Store
	logger *logging.Logger
	now    func() time.Time
}

func New(store kv.Store, taskStore *tasks.Store, logger *logging.Logger) *Engine {
	return &Engine{
		deps:   kv.NewCollection[model.Dependency](store, "dependencies"),
		tasks:  taskStore,
		logger: logger.With("deps"),
		now:    time.Now,
	}
}

// Propagation describes what linking did to the successor.
type Propagation struct {
	TaskID string     `json:"task_id"`
	Moved  bool       `json:"moved"`
	Before model.Span `json:"before"`
	After  model.Span `json:"after"`
}

// Link adds predecessorID -> successorID and propagates dates onto the
// successor. The dependency is not kept when propagation fails.
func (e *Engine) Link(ctx context.Context, m mode.Mode, project, predecessorID, successorID string, typ model.DependencyType) (model.Dependency, Propagation, error) {
	const op = "deps.link"
	if predecessorID == successorID {
		return model.Dependency{}, Propagation{}, apperr.Validation(op, "a task cannot depend on itself")
	}
	if !typ.IsValid() {
		return model.Dependency{}, Propagation{}, apperr.Validation(op, "invalid dependency type: %q", typ)
	}
	pred, err := e.tasks.Get(ctx, project, predecessorID)
	if err != nil {
		return model.Dependency{}, Propagation{}, err
	}
	succ, err := e.tasks.Get(ctx, project, successorID)
	if err != nil {
		return model.Dependency{}, Propagation{}, err
	}

	list, err := e.load(ctx, project)
	if err != nil {
		return model.Dependency{}, Propagation{}, err
	}
	if m.Reduced {
		if mode.Exceeded(len(list), m.Limits.MaxDependencies) {
			e.logger.Info("dependency cap reached project=%s limit=%d", project, m.Limits.MaxDependencies)
			return model.Dependency{}, Propagation{}, apperr.Capacity(op, "reduced mode allows at most %d dependencies per project", m.Limits.MaxDependencies)
		}
		if typ != model.DependencyFS {
			return model.Dependency{}, Propagation{}, apperr.Validation(op, "reduced mode only supports FS dependencies, got %s", typ)
		}
	}
	if err := checkInsert(op, list, predecessorID, successorID); err != nil {
		e.logger.Info("link rejected pred=%s succ=%s error=%v", predecessorID, successorID, err)
		return model.Dependency{}, Propagation{}, err
	}

	dep := model.Dependency{
		ID:            model.GenerateID(model.PrefixDependency),
		PredecessorID: predecessorID,
		SuccessorID:   successorID,
		Type:          typ,
		ProjectID:     project,
		Reduced:       m.Reduced,
		CreatedAt:     e.now(),
	}
	if err := e.save(ctx, op, project, append(slices.Clone(list), dep)); err != nil {
		return model.Dependency{}, Propagation{}, err
	}

	prop := Propagation{TaskID: succ.ID, Before: succ.Span(), After: succ.Span()}
	if next, moved := Propagate(typ, pred.Span(), succ.Span()); moved {
		if _, err := e.tasks.SetSpan(ctx, project, succ.ID, next); err != nil {
			if rbErr := e.save(ctx, op, project, list); rbErr != nil {
				e.logger.Error("rollback failed dep=%s error=%v", dep.ID, rbErr)
			}
			return model.Dependency{}, Propagation{}, err
		}
		prop.Moved, prop.After = true, next
	}
	e.logger.Debug("linked dep=%s %s %s->%s moved=%v", dep.ID, typ, predecessorID, successorID, prop.Moved)
	return dep, prop, nil
}

// Unlink removes a dependency. Dates are left as they are.
func (e *Engine) Unlink(ctx context.Context, project, dependencyID string) (model.Dependency, error) {
	const op = "deps.unlink"
	list, err := e.load(ctx, project)
	if err != nil {
		return model.Dependency{}, err
	}
	i := slices.IndexFunc(list, func(d model.Dependency) bool { return d.ID == dependencyID })
	if i < 0 {
		return model.Dependency{}, apperr.NotFound(op, "dependency not found: %s", dependencyID)
	}
	removed := list[i]
	if err := e.save(ctx, op, project, slices.Delete(list, i, i+1)); err != nil {
		return model.Dependency{}, err
	}
	e.logger.Debug("unlinked dep=%s", dependencyID)
	return removed, nil
}

// RemoveForTask removes every dependency touching taskID and returns them.
func (e *Engine) RemoveForTask(ctx context.Context, project, taskID string) ([]model.Dependency, error) {
	list, err := e.load(ctx, project)
	if err != nil {
		return nil, err
	}
	var removed, kept []model.Dependency
	for _, d := range list {
		if d.PredecessorID == taskID || d.SuccessorID == taskID {
			removed = append(removed, d)
		} else {
			kept = append(kept, d)
		}
	}
	if len(removed) == 0 {
		return nil, nil
	}
	if err := e.save(ctx, "deps.remove_for_task", project, kept); err != nil {
		return nil, err
	}
	return removed, nil
}

// Restore re-inserts exact dependency snapshots. Caps do not apply, but
// the graph must stay acyclic and free of duplicates.
func (e *Engine) Restore(ctx context.Context, project string, restore ...model.Dependency) error {
	const op = "deps.restore"
	list, err := e.load(ctx, project)
	if err != nil {
		return err
	}
	next := slices.Clone(list)
	for _, d := range restore {
		if slices.ContainsFunc(next, func(x model.Dependency) bool { return x.ID == d.ID }) {
			return apperr.Conflict(op, "dependency already exists: %s", d.ID)
		}
		if err := checkInsert(op, next, d.PredecessorID, d.SuccessorID); err != nil {
			return err
		}
		next = append(next, d)
	}
	return e.save(ctx, op, project, next)
}

// List returns the project's dependencies in creation order.
func (e *Engine) List(ctx context.Context, project string) ([]model.Dependency, error) {
	return e.load(ctx, project)
}

// Get returns one dependency.
func (e *Engine) Get(ctx context.Context, project, dependencyID string) (model.Dependency, error) {
	list, err := e.load(ctx, project)
	if err != nil {
		return model.Dependency{}, err
	}
	for _, d := range list {
		if d.ID == dependencyID {
			return d, nil
		}
	}
	return model.Dependency{}, apperr.NotFound("deps.get", "dependency not found: %s", dependencyID)
}

// Link is a dependency as shown next to one of its tasks.
type Link struct {
	DependencyID    string               `json:"dependency_id"`
	Type            model.DependencyType `json:"type"`
	PredecessorID   string               `json:"predecessor_id"`
	PredecessorName string               `json:"predecessor_name"`
	SuccessorID     string               `json:"successor_id"`
	SuccessorName   string               `json:"successor_name"`
}

// Links groups a task's dependencies by direction.
type Links struct {
	Predecessors []Link `json:"predecessors"`
	Successors   []Link `json:"successors"`
}

// ForTask returns the links in which taskID is the successor
// (Predecessors) or the predecessor (Successors).
func (e *Engine) ForTask(ctx context.Context, project, taskID string) (Links, error) {
	if _, err := e.tasks.Get(ctx, project, taskID); err != nil {
		return Links{}, err
	}
	list, err := e.load(ctx, project)
	if err != nil {
		return Links{}, err
	}
	all, err := e.tasks.List(ctx, project)
	if err != nil {
		return Links{}, err
	}
	names := make(map[string]string, len(all))
	for _, t := range all {
		names[t.ID] = t.Name
	}

	var out Links
	for _, d := range list {
		link := Link{
			DependencyID:    d.ID,
			Type:            d.Type,
			PredecessorID:   d.PredecessorID,
			PredecessorName: names[d.PredecessorID],
			SuccessorID:     d.SuccessorID,
			SuccessorName:   names[d.SuccessorID],
		}
		switch taskID {
		case d.SuccessorID:
			out.Predecessors = append(out.Predecessors, link)
		case d.PredecessorID:
			out.Successors = append(out.Successors, link)
		}
	}
	return out, nil
}

func (e *Engine) load(ctx context.Context, project string) ([]model.Dependency, error) {
	list, err := e.deps.Load(ctx, project)
	if err != nil {
		return nil, apperr.Persistence("deps.load", err)
	}
	return list, nil
}

func (e *Engine) save(ctx context.Context, op, project string, list []model.Dependency) error {
	if err := e.deps.Save(ctx, project, list); err != nil {
		e.logger.Warn("save failed project=%s error=%v", project, err)
		return apperr.Persistence(op, err)
	}
	return nil
}

// checkInsert rejects predecessorID -> successorID when it would close a
// cycle or duplicates an existing edge.
func checkInsert(op string, list []model.Dependency, predecessorID, successorID string) error {
	cyclic, err := WouldCycle(list, predecessorID, successorID)
	if err != nil {
		return err
	}
	if cyclic {
		return apperr.Conflict(op, "linking %s -> %s would create a cycle", predecessorID, successorID)
	}
	for _, d := range list {
		if d.PredecessorID == predecessorID && d.SuccessorID == successorID {
			return apperr.Conflict(op, "dependency %s -> %s already exists (%s)", predecessorID, successorID, d.ID)
		}
	}
	return nil
}
