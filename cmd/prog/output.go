package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/baiirun/programme/internal/model"
)

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// emit prints v as JSON when --json is set, otherwise calls text.
func (a *app) emit(cmd *cobra.Command, v any, text func(w io.Writer)) error {
	if a.opts.json {
		return printJSON(cmd.OutOrStdout(), v)
	}
	text(cmd.OutOrStdout())
	return nil
}

func parseDate(flag, value string) (model.Date, error) {
	d, err := model.ParseDate(value)
	if err != nil {
		return model.Date{}, fmt.Errorf("--%s: %w", flag, err)
	}
	return d, nil
}

func parseKind(value string) model.TaskKind {
	return model.TaskKind(strings.ToLower(value))
}

func formatTask(t model.Task) string {
	return fmt.Sprintf("%s  %-9s %s  %s", t.ID, t.Kind, t.Span(), t.Name)
}
