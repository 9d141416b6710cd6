// Package report - Text rendering of crossing results for the terminal.
package report

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/nvr-ai/finishline/controller"
	"github.com/nvr-ai/finishline/tracking"
)

// Table renders the crossing order of one video.
//
// Arguments:
//   - video: Title shown above the rows.
//   - reports: Crossing reports in order.
//
// Returns:
//   - string: The rendered table; a table with no rows when nothing crossed.
func Table(video string, reports []tracking.CrossingReport) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle(video)
	tw.AppendHeader(table.Row{"#", "Identity", "Frame"})

	for _, r := range reports {
		tw.AppendRow(table.Row{strconv.Itoa(r.Order), r.Identity, strconv.Itoa(r.Frame)})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})

	return tw.Render()
}

// Summary renders one row per video: its run id, the crossing order joined
// with arrows, and the failure if the video did not complete.
func Summary(results []controller.VideoResult) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Video", "Run", "Crossings", "Status"})

	for _, res := range results {
		order := ""
		for i, r := range res.Reports {
			if i > 0 {
				order += " → "
			}
			order += r.Identity
		}

		status := "ok"
		if res.Err != nil {
			status = fmt.Sprintf("failed: %v", res.Err)
		}
		tw.AppendRow(table.Row{res.Video, res.RunID, order, status})
	}

	return tw.Render()
}
