package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/baiirun/programme/internal/deps"
	"github.com/baiirun/programme/internal/model"
	"github.com/baiirun/programme/internal/schedule"
	"github.com/baiirun/programme/internal/tasks"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the database and project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.db.EnsureProject(cmd.Context(), a.project); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s in %s\n", a.project, a.dbPath)
			return nil
		},
	}
}

func newTaskCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Create, edit and arrange tasks",
	}
	cmd.AddCommand(
		newTaskAddCmd(a),
		newTaskEditCmd(a),
		newTaskShowCmd(a),
		newTaskRmCmd(a),
		newTaskMoveCmd(a),
		newTaskResizeCmd(a),
		newTaskTreeCmd(a),
		newTaskCollapseCmd(a),
	)
	return cmd
}

func newTaskAddCmd(a *app) *cobra.Command {
	var (
		start, end, kind, parent, desc, color, status string
		tags                                          []string
		progress                                      int
	)
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := tasks.NewTask{
				ProjectID:   a.project,
				Name:        strings.Join(args, " "),
				Description: desc,
				Kind:        parseKind(kind),
				Status:      status,
				Tags:        tags,
				Color:       color,
				Progress:    progress,
			}
			var err error
			if in.StartDate, err = parseDate("start", start); err != nil {
				return err
			}
			if end != "" {
				if in.EndDate, err = parseDate("end", end); err != nil {
					return err
				}
			} else {
				in.EndDate = in.StartDate
			}
			if parent != "" {
				in.ParentID = &parent
			}
			task, err := a.svc.CreateTask(cmd.Context(), in)
			if err != nil {
				return err
			}
			return a.emit(cmd, task, func(w io.Writer) {
				fmt.Fprintf(w, "Created %s\n", formatTask(task))
			})
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "end date (YYYY-MM-DD, default start)")
	cmd.Flags().StringVar(&kind, "kind", string(model.TaskKindTask), "task, phase, milestone or summary")
	cmd.Flags().StringVar(&parent, "parent", "", "parent task id")
	cmd.Flags().StringVarP(&desc, "description", "d", "", "description")
	cmd.Flags().StringVar(&status, "status", "", "status label")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag (repeatable)")
	cmd.Flags().StringVar(&color, "color", "", "bar colour (#RRGGBB)")
	cmd.Flags().IntVar(&progress, "progress", 0, "progress percent (0-100)")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func newTaskEditCmd(a *app) *cobra.Command {
	var (
		name, desc, kind, status, start, end, parent, color string
		tags                                                []string
		progress                                            int
		noParent                                            bool
	)
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change task fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			var p tasks.Patch
			if f.Changed("name") {
				p.Name = &name
			}
			if f.Changed("description") {
				p.Description = &desc
			}
			if f.Changed("kind") {
				k := parseKind(kind)
				p.Kind = &k
			}
			if f.Changed("status") {
				p.Status = &status
			}
			if f.Changed("start") {
				d, err := parseDate("start", start)
				if err != nil {
					return err
				}
				p.StartDate = &d
			}
			if f.Changed("end") {
				d, err := parseDate("end", end)
				if err != nil {
					return err
				}
				p.EndDate = &d
			}
			if f.Changed("tag") {
				p.Tags = &tags
			}
			if f.Changed("parent") {
				p.ParentID = &parent
			}
			p.ClearParent = noParent
			if f.Changed("color") {
				p.Color = &color
			}
			if f.Changed("progress") {
				p.Progress = &progress
			}

			task, changes, err := a.svc.UpdateTask(cmd.Context(), a.project, args[0], p)
			if err != nil {
				return err
			}
			return a.emit(cmd, map[string]any{"task": task, "changes": changes}, func(w io.Writer) {
				if len(changes) == 0 {
					fmt.Fprintf(w, "No changes to %s\n", task.ID)
					return
				}
				for _, c := range changes {
					fmt.Fprintf(w, "%s: %v -> %v\n", c.Field, c.Old, c.New)
				}
				fmt.Fprintf(w, "Updated %s\n", formatTask(task))
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "name")
	cmd.Flags().StringVarP(&desc, "description", "d", "", "description")
	cmd.Flags().StringVar(&kind, "kind", "", "task, phase, milestone or summary")
	cmd.Flags().StringVar(&status, "status", "", "status label")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "end date (YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "replace tags (repeatable)")
	cmd.Flags().StringVar(&parent, "parent", "", "new parent task id")
	cmd.Flags().BoolVar(&noParent, "no-parent", false, "move to the top level")
	cmd.Flags().StringVar(&color, "color", "", "bar colour (#RRGGBB)")
	cmd.Flags().IntVar(&progress, "progress", 0, "progress percent (0-100)")
	cmd.MarkFlagsMutuallyExclusive("parent", "no-parent")
	return cmd
}

// taskDetail is the JSON shape of "task show".
type taskDetail struct {
	Task       model.Task        `json:"task"`
	Level      int               `json:"level"`
	Visible    bool              `json:"visible"`
	Links      deps.Links        `json:"links"`
	Constraint *model.Constraint `json:"constraint,omitempty"`
	Children   []model.Task      `json:"children"`
}

func newTaskShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show task details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id := args[0]
			task, err := a.svc.Tasks().Get(ctx, a.project, id)
			if err != nil {
				return err
			}
			detail := taskDetail{Task: task}
			if detail.Level, err = a.svc.Tasks().Level(ctx, a.project, id); err != nil {
				return err
			}
			if detail.Visible, err = a.svc.Tasks().IsVisible(ctx, a.project, id); err != nil {
				return err
			}
			if detail.Links, err = a.svc.Graph().ForTask(ctx, a.project, id); err != nil {
				return err
			}
			if detail.Constraint, err = a.svc.Constraints().Get(ctx, a.project, id); err != nil {
				return err
			}
			if detail.Children, err = a.svc.Tasks().Children(ctx, a.project, id); err != nil {
				return err
			}
			return a.emit(cmd, detail, func(w io.Writer) {
				fmt.Fprintf(w, "%s  %s\n", task.ID, task.Name)
				fmt.Fprintf(w, "Kind:      %s\n", task.Kind)
				fmt.Fprintf(w, "Dates:     %s (%d days)\n", task.Span(), task.Span().Days()+1)
				if task.Status != "" {
					fmt.Fprintf(w, "Status:    %s\n", task.Status)
				}
				fmt.Fprintf(w, "Progress:  %d%%\n", task.Progress)
				if task.ParentID != nil {
					fmt.Fprintf(w, "Parent:    %s\n", *task.ParentID)
				}
				if len(task.Tags) > 0 {
					fmt.Fprintf(w, "Tags:      %s\n", strings.Join(task.Tags, ", "))
				}
				if detail.Constraint != nil {
					fmt.Fprintf(w, "Constraint: %s %s\n", detail.Constraint.Type, detail.Constraint.Date)
				}
				if task.Description != "" {
					fmt.Fprintf(w, "\n%s\n", task.Description)
				}
				for _, l := range detail.Links.Predecessors {
					fmt.Fprintf(w, "After:     %s %s (%s)\n", l.PredecessorID, l.PredecessorName, l.Type)
				}
				for _, l := range detail.Links.Successors {
					fmt.Fprintf(w, "Before:    %s %s (%s)\n", l.SuccessorID, l.SuccessorName, l.Type)
				}
				for _, c := range detail.Children {
					fmt.Fprintf(w, "Child:     %s\n", formatTask(c))
				}
			})
		},
	}
}

func newTaskRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a task with its dependencies and constraint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := a.svc.DeleteTask(cmd.Context(), a.project, args[0])
			if err != nil {
				return err
			}
			return a.emit(cmd, task, func(w io.Writer) {
				fmt.Fprintf(w, "Deleted %s %q\n", task.ID, task.Name)
			})
		},
	}
}

func printBarResult(w io.Writer, verb string, res schedule.BarResult) {
	fmt.Fprintf(w, "%s %s\n", verb, formatTask(res.Task))
	for _, v := range res.Warnings {
		fmt.Fprintf(w, "warning: %s\n", v.Message)
	}
}

func newTaskMoveCmd(a *app) *cobra.Command {
	var (
		to string
		by int
	)
	cmd := &cobra.Command{
		Use:   "move <id>",
		Short: "Move a bar to a new start date or by working days",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				res schedule.BarResult
				err error
			)
			switch {
			case cmd.Flags().Changed("to"):
				var start model.Date
				if start, err = parseDate("to", to); err != nil {
					return err
				}
				res, err = a.svc.MoveBar(cmd.Context(), a.project, args[0], start)
			case cmd.Flags().Changed("by"):
				res, err = a.svc.ShiftBar(cmd.Context(), a.project, args[0], by)
			default:
				return fmt.Errorf("one of --to or --by is required")
			}
			if err != nil {
				return err
			}
			return a.emit(cmd, res, func(w io.Writer) { printBarResult(w, "Moved", res) })
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "new start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&by, "by", 0, "working days to shift (negative moves earlier)")
	cmd.MarkFlagsMutuallyExclusive("to", "by")
	return cmd
}

func newTaskResizeCmd(a *app) *cobra.Command {
	var start, end string
	cmd := &cobra.Command{
		Use:   "resize <id>",
		Short: "Change a bar's start or end date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := a.svc.Tasks().Get(cmd.Context(), a.project, args[0])
			if err != nil {
				return err
			}
			span := task.Span()
			if cmd.Flags().Changed("start") {
				if span.Start, err = parseDate("start", start); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("end") {
				if span.End, err = parseDate("end", end); err != nil {
					return err
				}
			}
			res, err := a.svc.ResizeBar(cmd.Context(), a.project, args[0], span)
			if err != nil {
				return err
			}
			return a.emit(cmd, res, func(w io.Writer) { printBarResult(w, "Resized", res) })
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "new start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "new end date (YYYY-MM-DD)")
	cmd.MarkFlagsOneRequired("start", "end")
	return cmd
}

func newTaskTreeCmd(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Show the task hierarchy",
		RunE: func(cmd *cobra.Command, args []string) error {
			nodes, err := a.svc.Tasks().Hierarchy(cmd.Context(), a.project)
			if err != nil {
				return err
			}
			if nodes == nil {
				nodes = []tasks.Node{}
			}
			return a.emit(cmd, nodes, func(w io.Writer) {
				if len(nodes) == 0 {
					fmt.Fprintln(w, "No tasks")
					return
				}
				printTree(w, nodes, 0, all)
			})
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include children of collapsed tasks")
	return cmd
}

func printTree(w io.Writer, nodes []tasks.Node, depth int, all bool) {
	for _, n := range nodes {
		marker := "  "
		if len(n.Children) > 0 {
			marker = "▾ "
			if n.Task.Collapsed {
				marker = "▸ "
			}
		}
		fmt.Fprintf(w, "%s%s%s\n", strings.Repeat("  ", depth), marker, formatTask(n.Task))
		if all || !n.Task.Collapsed {
			printTree(w, n.Children, depth+1, all)
		}
	}
}

func newTaskCollapseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "collapse <id>",
		Short: "Toggle whether a task's children are shown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := a.svc.ToggleCollapse(cmd.Context(), a.project, args[0])
			if err != nil {
				return err
			}
			return a.emit(cmd, task, func(w io.Writer) {
				state := "Expanded"
				if task.Collapsed {
					state = "Collapsed"
				}
				fmt.Fprintf(w, "%s %s %q\n", state, task.ID, task.Name)
			})
		},
	}
}

func newMilestoneCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "milestone",
		Short: "Create and edit milestones",
	}

	var date, parent string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a milestone",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseDate("date", date)
			if err != nil {
				return err
			}
			var parentID *string
			if parent != "" {
				parentID = &parent
			}
			task, err := a.svc.CreateMilestone(cmd.Context(), a.project, strings.Join(args, " "), d, parentID)
			if err != nil {
				return err
			}
			return a.emit(cmd, task, func(w io.Writer) {
				fmt.Fprintf(w, "Created %s\n", formatTask(task))
			})
		},
	}
	add.Flags().StringVar(&date, "date", "", "milestone date (YYYY-MM-DD)")
	add.Flags().StringVar(&parent, "parent", "", "parent task id")
	_ = add.MarkFlagRequired("date")

	var newName, newDate string
	edit := &cobra.Command{
		Use:   "edit <id>",
		Short: "Rename or move a milestone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var e schedule.MilestoneEdit
			if cmd.Flags().Changed("name") {
				e.Name = &newName
			}
			if cmd.Flags().Changed("date") {
				d, err := parseDate("date", newDate)
				if err != nil {
					return err
				}
				e.Date = &d
			}
			task, err := a.svc.EditMilestone(cmd.Context(), a.project, args[0], e)
			if err != nil {
				return err
			}
			return a.emit(cmd, task, func(w io.Writer) {
				fmt.Fprintf(w, "Updated %s\n", formatTask(task))
			})
		},
	}
	edit.Flags().StringVar(&newName, "name", "", "new name")
	edit.Flags().StringVar(&newDate, "date", "", "new date (YYYY-MM-DD)")
	edit.MarkFlagsOneRequired("name", "date")

	cmd.AddCommand(add, edit)
	return cmd
}
