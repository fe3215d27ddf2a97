/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

package orchestrator

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

// maxCellWidth keeps long descriptions from wrecking the table.
const maxCellWidth = 48

// RenderStatus writes the task ledger as a markdown table followed by
// a one-line summary.
func RenderStatus(w io.Writer, tasks []*Task, stats Stats) error {
	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"ID", "KIND", "REPOSITORY", "DESCRIPTION", "STATUS", "PR"}),
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithRendition(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleMarkdown),
		}),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)

	for _, task := range tasks {
		pr := task.PRURL
		if pr == "" && task.Status == StatusFailed {
			pr = clip(task.Error, maxCellWidth)
		}
		if err := table.Append([]string{
			task.ShortID(),
			string(task.Kind),
			task.Repository,
			clip(task.Description, maxCellWidth),
			string(task.Status),
			pr,
		}); err != nil {
			return fmt.Errorf("appending row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("rendering table: %w", err)
	}

	_, err := fmt.Fprintf(w, "\n%d tasks: %d pending, %d in progress, %d completed, %d failed\n",
		stats.Total, stats.Pending, stats.InProgress, stats.Completed, stats.Failed)
	return err
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
