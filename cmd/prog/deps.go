package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/baiirun/programme/internal/model"
)

func newLinkCmd(a *app) *cobra.Command {
	var typ string
	cmd := &cobra.Command{
		Use:   "link <predecessor> <successor>",
		Short: "Make one task depend on another",
		Long: `Adds a dependency and moves the successor when the new link requires it.

Types: FS (finish-to-start, default), SS, FF, SF.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dep, prop, err := a.svc.Link(cmd.Context(), a.project, args[0], args[1], model.DependencyType(strings.ToUpper(typ)))
			if err != nil {
				return err
			}
			out := map[string]any{"dependency": dep, "propagation": prop}
			return a.emit(cmd, out, func(w io.Writer) {
				fmt.Fprintf(w, "Linked %s -> %s (%s) as %s\n", dep.PredecessorID, dep.SuccessorID, dep.Type, dep.ID)
				if prop.Moved {
					fmt.Fprintf(w, "Moved %s: %s -> %s\n", prop.TaskID, prop.Before, prop.After)
				}
			})
		},
	}
	cmd.Flags().StringVarP(&typ, "type", "t", string(model.DependencyFS), "dependency type (FS, SS, FF, SF)")
	return cmd
}

func newUnlinkCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unlink <dependency-id>",
		Short: "Remove a dependency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dep, err := a.svc.Unlink(cmd.Context(), a.project, args[0])
			if err != nil {
				return err
			}
			return a.emit(cmd, dep, func(w io.Writer) {
				fmt.Fprintf(w, "Unlinked %s -> %s (%s)\n", dep.PredecessorID, dep.SuccessorID, dep.Type)
			})
		},
	}
}

func newDepsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "deps [task-id]",
		Short: "List dependencies of the project or of one task",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(args) == 1 {
				links, err := a.svc.Graph().ForTask(ctx, a.project, args[0])
				if err != nil {
					return err
				}
				return a.emit(cmd, links, func(w io.Writer) {
					if len(links.Predecessors)+len(links.Successors) == 0 {
						fmt.Fprintln(w, "No dependencies")
						return
					}
					for _, l := range links.Predecessors {
						fmt.Fprintf(w, "%s  after  %s %s (%s)\n", l.DependencyID, l.PredecessorID, l.PredecessorName, l.Type)
					}
					for _, l := range links.Successors {
						fmt.Fprintf(w, "%s  before %s %s (%s)\n", l.DependencyID, l.SuccessorID, l.SuccessorName, l.Type)
					}
				})
			}

			list, err := a.svc.Graph().List(ctx, a.project)
			if err != nil {
				return err
			}
			if list == nil {
				list = []model.Dependency{}
			}
			return a.emit(cmd, list, func(w io.Writer) {
				if len(list) == 0 {
					fmt.Fprintln(w, "No dependencies")
					return
				}
				for _, d := range list {
					fmt.Fprintf(w, "%s  %s -> %s (%s)\n", d.ID, d.PredecessorID, d.SuccessorID, d.Type)
				}
			})
		},
	}
}
