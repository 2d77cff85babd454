package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/baiirun/programme/internal/constraints"
	"github.com/baiirun/programme/internal/model"
)

func newConstrainCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "constrain",
		Short: "Pin task dates with a constraint",
	}
	cmd.AddCommand(
		newConstrainSetCmd(a),
		newConstrainRmCmd(a),
		newConstrainCheckCmd(a),
		newConstrainTypesCmd(a),
	)
	return cmd
}

func newConstrainSetCmd(a *app) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "set <task-id> <type>",
		Short: "Set a task's constraint and move it into compliance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ := model.ConstraintType(strings.ToUpper(args[1]))
			var d model.Date
			if date != "" {
				var err error
				if d, err = parseDate("date", date); err != nil {
					return err
				}
			}
			res, err := a.svc.SetConstraint(cmd.Context(), a.project, args[0], typ, d)
			if err != nil {
				return err
			}
			return a.emit(cmd, res, func(w io.Writer) {
				c := res.Constraint
				if c.Date.IsZero() {
					fmt.Fprintf(w, "Set %s on %s\n", c.Type, c.TaskID)
				} else {
					fmt.Fprintf(w, "Set %s %s on %s\n", c.Type, c.Date, c.TaskID)
				}
				if res.Previous != nil {
					fmt.Fprintf(w, "Replaced %s\n", res.Previous.Type)
				}
				if res.Enforcement.Moved {
					fmt.Fprintf(w, "Moved %s: %s -> %s\n", res.Enforcement.TaskID, res.Enforcement.Before, res.Enforcement.After)
				}
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "constraint date (YYYY-MM-DD, not used by ASAP)")
	return cmd
}

func newConstrainRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <task-id>",
		Short: "Remove a task's constraint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.svc.RemoveConstraint(cmd.Context(), a.project, args[0])
			if err != nil {
				return err
			}
			return a.emit(cmd, c, func(w io.Writer) {
				fmt.Fprintf(w, "Removed %s from %s\n", c.Type, c.TaskID)
			})
		},
	}
}

func newConstrainCheckCmd(a *app) *cobra.Command {
	var start, end string
	cmd := &cobra.Command{
		Use:   "check <task-id>",
		Short: "Check dates against a task's constraint",
		Long:  "Checks the task's current dates, or the proposed --start/--end, without changing anything.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			task, err := a.svc.Tasks().Get(ctx, a.project, args[0])
			if err != nil {
				return err
			}
			span := task.Span()
			if start != "" {
				if span.Start, err = parseDate("start", start); err != nil {
					return err
				}
			}
			if end != "" {
				if span.End, err = parseDate("end", end); err != nil {
					return err
				}
			}
			m, err := a.svc.Mode(ctx)
			if err != nil {
				return err
			}
			v, err := a.svc.Constraints().Validate(ctx, m, a.project, task.ID, span.Start, span.End)
			if err != nil {
				return err
			}
			return a.emit(cmd, v, func(w io.Writer) {
				if len(v.Violations) == 0 {
					fmt.Fprintf(w, "%s is within its constraint\n", span)
					return
				}
				for _, viol := range v.Violations {
					fmt.Fprintf(w, "%s: %s\n", viol.Severity, viol.Message)
				}
				if v.SuggestedStart != nil {
					fmt.Fprintf(w, "Suggested: %s..%s\n", *v.SuggestedStart, *v.SuggestedEnd)
				}
			})
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "proposed start date")
	cmd.Flags().StringVar(&end, "end", "", "proposed end date")
	return cmd
}

func newConstrainTypesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "types",
		Short:       "List constraint types",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationOffline: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			types := constraints.Types()
			return a.emit(cmd, types, func(w io.Writer) {
				for _, t := range types {
					fmt.Fprintf(w, "%-5s %-22s %s\n", t.Type, t.Name, t.Description)
				}
			})
		},
	}
}
