package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/baiirun/programme/internal/history"
)

func newUndoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Reverse your most recent change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			act, err := a.svc.Undo(cmd.Context(), a.project)
			if err != nil {
				return err
			}
			return a.emit(cmd, act, func(w io.Writer) {
				fmt.Fprintf(w, "Undid: %s\n", act.Description)
			})
		},
	}
}

func newRedoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "redo",
		Short: "Re-apply the change you last undid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			act, err := a.svc.Redo(cmd.Context(), a.project)
			if err != nil {
				return err
			}
			return a.emit(cmd, act, func(w io.Writer) {
				fmt.Fprintf(w, "Redid: %s\n", act.Description)
			})
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit  int
		taskID string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the audit trail and undo state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var (
				actions []history.Action
				err     error
			)
			if taskID != "" {
				actions, err = a.db.ActionsForTask(ctx, taskID)
			} else {
				actions, err = a.db.ListActions(ctx, a.project, limit)
			}
			if err != nil {
				return err
			}
			if actions == nil {
				actions = []history.Action{}
			}
			state, err := a.svc.HistoryState(ctx, a.project)
			if err != nil {
				return err
			}
			out := map[string]any{"actions": actions, "state": state}
			return a.emit(cmd, out, func(w io.Writer) {
				fmt.Fprintf(w, "undo %d · redo %d", state.Counts.Undo, state.Counts.Redo)
				if state.Next != "" {
					fmt.Fprintf(w, " · next undo: %s", state.Next)
				}
				fmt.Fprintln(w)
				if len(actions) == 0 {
					fmt.Fprintln(w, "No actions recorded")
					return
				}
				for _, act := range actions {
					fmt.Fprintf(w, "%-14s %-8s %-18s %s\n",
						humanize.Time(act.Timestamp), act.ActorID, act.Kind(), act.Description)
				}
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of actions to show (0 for all)")
	cmd.Flags().StringVar(&taskID, "task", "", "only actions on this task, oldest first")
	return cmd
}
