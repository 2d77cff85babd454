package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/baiirun/programme/internal/groups"
	"github.com/baiirun/programme/internal/tui"
)

func newGroupsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "groups",
		Short: "Show phase summary bars",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := a.svc.Mode(ctx)
			if err != nil {
				return err
			}
			summaries, err := a.svc.Groups().Summaries(ctx, m, a.project)
			if err != nil {
				return err
			}
			type groupJSON struct {
				groups.Summary
				Style groups.BarStyle `json:"style"`
			}
			out := make([]groupJSON, 0, len(summaries))
			for _, s := range summaries {
				out = append(out, groupJSON{Summary: s, Style: groups.Style(s, m)})
			}
			return a.emit(cmd, out, func(w io.Writer) {
				if len(out) == 0 {
					fmt.Fprintln(w, "No groups")
					return
				}
				for _, g := range out {
					swatch := lipgloss.NewStyle().Foreground(lipgloss.Color(g.Style.Color)).Render("■")
					fmt.Fprintf(w, "%s %s  %s  %d%%\n", swatch, g.Name, g.Tooltip, g.Progress)
				}
			})
		},
	}
}

func newTimelineCmd(a *app) *cobra.Command {
	var width int
	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Draw the visible tasks as bars",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := a.svc.Mode(ctx)
			if err != nil {
				return err
			}
			visible, err := a.svc.Tasks().Visible(ctx, a.project)
			if err != nil {
				return err
			}
			summaries, err := a.svc.Groups().Summaries(ctx, m, a.project)
			if err != nil {
				return err
			}
			rows := tui.BuildRows(visible, summaries, m)
			return a.emit(cmd, rows, func(w io.Writer) {
				if len(rows) == 0 {
					fmt.Fprintln(w, "No tasks")
					return
				}
				window := tui.Window(rows)
				nameWidth := 0
				for _, r := range rows {
					nameWidth = max(nameWidth, lipgloss.Width(r.Task.Name)+2*r.Level)
				}
				for _, r := range rows {
					name := strings.Repeat("  ", r.Level) + r.Task.Name
					pad := strings.Repeat(" ", nameWidth-lipgloss.Width(name))
					fmt.Fprintf(w, "%s%s │%s\n", name, pad, tui.RenderBar(r, window, width))
				}
				fmt.Fprintf(w, "%s  %s .. %s\n", strings.Repeat(" ", nameWidth), window.Start, window.End)
			})
		},
	}
	cmd.Flags().IntVarP(&width, "width", "w", 60, "bar area width in columns")
	return cmd
}

func newTUICmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "tui",
		Short:       "Open the interactive timeline",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationWatch: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return tui.Run(cmd.Context(), a.svc, a.project)
		},
	}
}
