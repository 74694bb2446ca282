package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"upapasta/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				fmt.Fprintln(cmd.OutOrStdout(), "Run journal is disabled in the configuration.")
				return nil
			}

			store, err := history.Open(cfg.Paths.LogDir)
			if err != nil {
				return fmt.Errorf("open run journal: %w", err)
			}
			defer store.Close()

			records, err := store.ListRecent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet.")
				return nil
			}

			tw := table.NewWriter()
			tw.SetStyle(table.StyleRounded)
			tw.AppendHeader(table.Row{"Finished", "Status", "Source", "Manifest", "Duration"})
			for _, rec := range records {
				finished := ""
				if !rec.FinishedAt.IsZero() {
					finished = rec.FinishedAt.Local().Format(time.DateTime)
				}
				tw.AppendRow(table.Row{
					finished,
					rec.Status,
					rec.Source,
					rec.ManifestPath,
					rec.Duration.Round(time.Second).String(),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), tw.Render())
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	return cmd
}
