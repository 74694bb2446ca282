package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"upapasta/internal/fileutil"
	"upapasta/internal/pipeline"
	"upapasta/internal/stage"
)

const timeResolution = 10 * time.Millisecond

// renderRunSummary builds the final operator-facing report for one run.
func renderRunSummary(settings runSettings, outcome pipeline.RunOutcome) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run %s: %s\n", outcome.RunID, strings.ToUpper(string(outcome.Status)))
	if outcome.Message != "" {
		fmt.Fprintf(&b, "  %s\n", outcome.Message)
	}
	fmt.Fprintf(&b, "  Source:  %s\n", settings.Source)
	if subject := settings.Subject; subject != "" {
		fmt.Fprintf(&b, "  Subject: %s\n", subject)
	}
	if settings.Group != "" {
		fmt.Fprintf(&b, "  Group:   %s\n", settings.Group)
	}
	if outcome.ManifestPath != "" {
		fmt.Fprintf(&b, "  Manifest: %s\n", outcome.ManifestPath)
	}
	if outcome.DescriptorPath != "" {
		fmt.Fprintf(&b, "  Descriptor: %s\n", outcome.DescriptorPath)
	}

	if len(outcome.StageResults) > 0 {
		b.WriteString(renderStageTable(outcome.StageResults))
		b.WriteByte('\n')
	}

	if len(outcome.RemainingFiles) > 0 {
		var total uint64
		for _, path := range outcome.RemainingFiles {
			total += uint64(fileutil.SizeOf(path))
		}
		fmt.Fprintf(&b, "  Files on disk: %d (%s)\n", len(outcome.RemainingFiles), humanize.IBytes(total))
	}
	fmt.Fprintf(&b, "  Total time: %s", outcome.Duration.Round(timeResolution))

	return b.String()
}

func renderStageTable(results []stage.Result) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Stage", "Status", "Duration", "Outputs", "Size"})

	for _, result := range results {
		status := string(result.Status)
		if result.Simulated {
			status += " (simulated)"
		}
		var size uint64
		for _, path := range result.Outputs {
			size += uint64(fileutil.SizeOf(path))
		}
		sizeCell := ""
		if size > 0 {
			sizeCell = humanize.IBytes(size)
		}
		tw.AppendRow(table.Row{
			result.Stage,
			status,
			result.Duration.Round(timeResolution).String(),
			len(result.Outputs),
			sizeCell,
		})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})
	return tw.Render()
}
