// Package groups derives group bars for phase tasks from their direct
// children and enforces the reduced-mode phase limits.
package groups

import (
	"context"
	"fmt"

	"github.com/baiirun/programme/internal/apperr"
	"github.com/baiirun/programme/internal/logging"
	"github.com/baiirun/programme/internal/mode"
	"github.com/baiirun/programme/internal/model"
	"github.com/baiirun/programme/internal/tasks"
)

// ReducedColor is the single neutral colour used for every group bar in
// reduced mode.
const ReducedColor = "#9CA3AF"

var kindColors = map[model.TaskKind]string{
	model.TaskKindTask:      "#3B82F6",
	model.TaskKindMilestone: "#F59E0B",
	model.TaskKindPhase:     "#8B5CF6",
	model.TaskKindSummary:   "#10B981",
}

// Color returns the display colour of a task's bar.
func Color(task model.Task, m mode.Mode) string {
	if m.Reduced {
		return ReducedColor
	}
	if task.Color != "" {
		return task.Color
	}
	if c, ok := kindColors[task.Kind]; ok {
		return c
	}
	return kindColors[model.TaskKindTask]
}

// Summary is the group bar of one phase.
type Summary struct {
	TaskID     string     `json:"task_id"`
	Name       string     `json:"name"`
	ChildCount int        `json:"child_count"`
	Span       model.Span `json:"span"`
	Days       int        `json:"days"`
	Color      string     `json:"color"`
	Tooltip    string     `json:"tooltip"`
	Progress   int        `json:"progress"`
}

// Aggregator reads the task store to build group bars.
type Aggregator struct {
	tasks  *tasks.Store
	logger *logging.Logger
}

func New(taskStore *tasks.Store, logger *logging.Logger) *Aggregator {
	return &Aggregator{tasks: taskStore, logger: logger.With("groups")}
}

// Summary returns the group bar of taskID. ok is false unless the task is a
// phase with at least one direct child.
func (a *Aggregator) Summary(ctx context.Context, m mode.Mode, project, taskID string) (Summary, bool, error) {
	task, err := a.tasks.Get(ctx, project, taskID)
	if err != nil {
		return Summary{}, false, err
	}
	return a.summarize(ctx, m, task)
}

// Summaries returns the group bars of every phase in the project.
func (a *Aggregator) Summaries(ctx context.Context, m mode.Mode, project string) ([]Summary, error) {
	list, err := a.tasks.List(ctx, project)
	if err != nil {
		return nil, err
	}
	var out []Summary
	for _, t := range list {
		s, ok, err := a.summarize(ctx, m, t)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (a *Aggregator) summarize(ctx context.Context, m mode.Mode, task model.Task) (Summary, bool, error) {
	if task.Kind != model.TaskKindPhase {
		return Summary{}, false, nil
	}
	kids, err := a.tasks.Children(ctx, task.ProjectID, task.ID)
	if err != nil {
		return Summary{}, false, err
	}
	if len(kids) == 0 {
		return Summary{}, false, nil
	}
	dur, err := a.tasks.GroupDuration(ctx, task.ProjectID, task.ID)
	if err != nil {
		return Summary{}, false, err
	}
	s := Summary{
		TaskID:     task.ID,
		Name:       task.Name,
		ChildCount: len(kids),
		Span:       dur.Span(),
		Days:       dur.Days,
		Color:      Color(task, m),
		Progress:   average(kids),
	}
	s.Tooltip = Tooltip(s)
	return s, true, nil
}

// Tooltip renders "3 tasks · 2024-01-01 → 2024-01-20 (19 days)".
func Tooltip(s Summary) string {
	noun := "tasks"
	if s.ChildCount == 1 {
		noun = "task"
	}
	return fmt.Sprintf("%d %s · %s → %s (%d days)", s.ChildCount, noun, s.Span.Start, s.Span.End, s.Days)
}

// Progress is the rounded average progress of the task's direct children,
// or 0 without children.
func (a *Aggregator) Progress(ctx context.Context, project, taskID string) (int, error) {
	kids, err := a.tasks.Children(ctx, project, taskID)
	if err != nil {
		return 0, err
	}
	return average(kids), nil
}

func average(kids []model.Task) int {
	if len(kids) == 0 {
		return 0
	}
	sum := 0
	for _, k := range kids {
		sum += k.Progress
	}
	n := len(kids)
	return (sum + n/2) / n
}

// ValidateChild checks that a new task may be created under parentID. It
// only restricts reduced mode: a phase holds at most MaxPhaseChildren
// children and no task may sit deeper than MaxNestingDepth.
func (a *Aggregator) ValidateChild(ctx context.Context, m mode.Mode, project, parentID string) error {
	const op = "groups.validate_child"
	if !m.Reduced || parentID == "" {
		return nil
	}
	parent, err := a.tasks.Get(ctx, project, parentID)
	if err != nil {
		return err
	}
	level, err := a.tasks.Level(ctx, project, parentID)
	if err != nil {
		return err
	}
	if limit := m.Limits.MaxNestingDepth; limit > 0 && level+1 > limit {
		a.logger.Info("nesting cap reached parent=%s level=%d", parentID, level+1)
		return apperr.Capacity(op, "reduced mode allows nesting depth %d, task would be at level %d", limit, level+1)
	}
	if parent.Kind == model.TaskKindPhase {
		kids, err := a.tasks.Children(ctx, project, parentID)
		if err != nil {
			return err
		}
		if mode.Exceeded(len(kids), m.Limits.MaxPhaseChildren) {
			a.logger.Info("phase child cap reached parent=%s", parentID)
			return apperr.Capacity(op, "reduced mode allows at most %d children per phase", m.Limits.MaxPhaseChildren)
		}
	}
	return nil
}

// BarStyle is what a renderer needs to draw a group bar.
type BarStyle struct {
	Color   string  `json:"color"`
	Opacity float64 `json:"opacity"`
	Height  int     `json:"height"`
	Rounded bool    `json:"rounded"`
	Label   string  `json:"label"`
}

// Style returns the bar style for a summary. Reduced mode draws flat bars.
func Style(s Summary, m mode.Mode) BarStyle {
	style := BarStyle{Color: s.Color, Opacity: 0.85, Height: 8, Rounded: true, Label: s.Name}
	if m.Reduced {
		style.Color = ReducedColor
		style.Opacity = 1
		style.Rounded = false
	}
	return style
}
