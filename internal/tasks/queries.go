package tasks

import (
	"context"
	"slices"

	"github.com/baiirun/programme/internal/apperr"
	"github.com/baiirun/programme/internal/model"
)

// Get returns a task by id.
func (s *Store) Get(ctx context.Context, project, id string) (model.Task, error) {
	list, err := s.load(ctx, project)
	if err != nil {
		return model.Task{}, err
	}
	i := index(list, id)
	if i < 0 {
		return model.Task{}, apperr.NotFound("tasks.get", "task not found: %s", id)
	}
	return list[i].Clone(), nil
}

// List returns all tasks of a project in creation order.
func (s *Store) List(ctx context.Context, project string) ([]model.Task, error) {
	list, err := s.load(ctx, project)
	if err != nil {
		return nil, err
	}
	out := make([]model.Task, len(list))
	for i, t := range list {
		out[i] = t.Clone()
	}
	return out, nil
}

// Children returns the direct children of parentID.
func (s *Store) Children(ctx context.Context, project, parentID string) ([]model.Task, error) {
	list, err := s.load(ctx, project)
	if err != nil {
		return nil, err
	}
	return children(list, parentID), nil
}

// Parent returns the task's parent, or nil for a root task.
func (s *Store) Parent(ctx context.Context, project, id string) (*model.Task, error) {
	task, err := s.Get(ctx, project, id)
	if err != nil {
		return nil, err
	}
	if task.ParentID == nil {
		return nil, nil
	}
	parent, err := s.Get(ctx, project, *task.ParentID)
	if err != nil {
		return nil, err
	}
	return &parent, nil
}

// Descendants returns every task below id, depth-first in pre-order.
func (s *Store) Descendants(ctx context.Context, project, id string) ([]model.Task, error) {
	list, err := s.load(ctx, project)
	if err != nil {
		return nil, err
	}
	if index(list, id) < 0 {
		return nil, apperr.NotFound("tasks.descendants", "task not found: %s", id)
	}

	var out []model.Task
	seen := map[string]bool{id: true}
	stack := reversed(children(list, id))
	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		out = append(out, t)
		stack = append(stack, reversed(children(list, t.ID))...)
	}
	return out, nil
}

// Level returns the distance from the task to its root (0 for a root).
func (s *Store) Level(ctx context.Context, project, id string) (int, error) {
	list, err := s.load(ctx, project)
	if err != nil {
		return 0, err
	}
	if index(list, id) < 0 {
		return 0, apperr.NotFound("tasks.level", "task not found: %s", id)
	}
	chain, err := ancestors(list, id)
	if err != nil {
		return 0, err
	}
	return len(chain), nil
}

// IsVisible reports whether no strict ancestor of the task is collapsed.
func (s *Store) IsVisible(ctx context.Context, project, id string) (bool, error) {
	list, err := s.load(ctx, project)
	if err != nil {
		return false, err
	}
	if index(list, id) < 0 {
		return false, apperr.NotFound("tasks.visible", "task not found: %s", id)
	}
	chain, err := ancestors(list, id)
	if err != nil {
		return false, err
	}
	for _, ancestorID := range chain {
		if list[index(list, ancestorID)].Collapsed {
			return false, nil
		}
	}
	return true, nil
}

// Visible returns the project's visible tasks in hierarchy order: each
// parent is immediately followed by its visible descendants.
func (s *Store) Visible(ctx context.Context, project string) ([]model.Task, error) {
	list, err := s.load(ctx, project)
	if err != nil {
		return nil, err
	}
	var out []model.Task
	seen := map[string]bool{}
	stack := reversed(roots(list))
	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		out = append(out, t)
		if !t.Collapsed {
			stack = append(stack, reversed(children(list, t.ID))...)
		}
	}
	return out, nil
}

// Node is one task in a Hierarchy with its children nested below it.
type Node struct {
	Task     model.Task `json:"task"`
	Children []Node     `json:"children,omitempty"`
}

// Hierarchy returns the project's root tasks with their subtrees.
func (s *Store) Hierarchy(ctx context.Context, project string) ([]Node, error) {
	list, err := s.load(ctx, project)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var build func(t model.Task) Node
	build = func(t model.Task) Node {
		seen[t.ID] = true
		node := Node{Task: t}
		for _, c := range children(list, t.ID) {
			if !seen[c.ID] {
				node.Children = append(node.Children, build(c))
			}
		}
		return node
	}
	var out []Node
	for _, r := range roots(list) {
		out = append(out, build(r))
	}
	return out, nil
}

// Duration is the combined span of a task's direct children. MinStart and
// MaxEnd are nil and Days is 0 when there are no children.
type Duration struct {
	MinStart *model.Date `json:"min_start"`
	MaxEnd   *model.Date `json:"max_end"`
	Days     int         `json:"days"`
}

// Span returns the duration as a span. Only valid when MinStart is set.
func (d Duration) Span() model.Span {
	return model.Span{Start: *d.MinStart, End: *d.MaxEnd}
}

// GroupDuration takes min start and max end over the DIRECT children of
// parentID. Grandchildren do not contribute.
func (s *Store) GroupDuration(ctx context.Context, project, parentID string) (Duration, error) {
	kids, err := s.Children(ctx, project, parentID)
	if err != nil {
		return Duration{}, err
	}
	if len(kids) == 0 {
		return Duration{}, nil
	}
	minStart, maxEnd := kids[0].StartDate, kids[0].EndDate
	for _, c := range kids[1:] {
		minStart = model.MinDate(minStart, c.StartDate)
		maxEnd = model.MaxDate(maxEnd, c.EndDate)
	}
	return Duration{MinStart: &minStart, MaxEnd: &maxEnd, Days: minStart.DaysUntil(maxEnd)}, nil
}

func children(list []model.Task, parentID string) []model.Task {
	var out []model.Task
	for _, t := range list {
		if t.ParentIs(parentID) {
			out = append(out, t.Clone())
		}
	}
	return out
}

// roots returns tasks without a parent, plus tasks whose parent is missing
// so that orphans still show up.
func roots(list []model.Task) []model.Task {
	var out []model.Task
	for _, t := range list {
		if t.ParentID == nil || index(list, *t.ParentID) < 0 {
			out = append(out, t.Clone())
		}
	}
	return out
}

func reversed(list []model.Task) []model.Task {
	slices.Reverse(list)
	return list
}

// ancestors walks parent links from id to the root and returns the ids of
// the strict ancestors, nearest first. A loop in the stored parent links is
// reported instead of walked forever.
func ancestors(list []model.Task, id string) ([]string, error) {
	var chain []string
	seen := map[string]bool{id: true}
	cur := id
	for steps := 0; steps <= len(list); steps++ {
		i := index(list, cur)
		if i < 0 || list[i].ParentID == nil {
			return chain, nil
		}
		parent := *list[i].ParentID
		if index(list, parent) < 0 {
			return chain, nil
		}
		if seen[parent] {
			return nil, apperr.Conflict("tasks.ancestors", "parent links of %s form a cycle", id)
		}
		seen[parent] = true
		chain = append(chain, parent)
		cur = parent
	}
	return nil, apperr.Conflict("tasks.ancestors", "parent chain of %s exceeds %d tasks", id, len(list))
}
