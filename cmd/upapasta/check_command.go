package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"upapasta/internal/deps"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check that the external tools are installed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			statuses := deps.CheckBinaries(deps.Requirements(cfg))

			tw := table.NewWriter()
			tw.SetStyle(table.StyleRounded)
			tw.AppendHeader(table.Row{"Tool", "Command", "Status", "Purpose"})
			missingRequired := false
			for _, status := range statuses {
				label := "ok"
				if !status.Available {
					if status.Optional {
						label = "missing (optional)"
					} else {
						label = "MISSING"
						missingRequired = true
					}
					if status.Detail != "" {
						label += ": " + status.Detail
					}
				}
				tw.AppendRow(table.Row{status.Name, status.Command, label, status.Description})
			}
			fmt.Fprintln(cmd.OutOrStdout(), tw.Render())

			if missingRequired {
				return &exitError{code: exitFailure, message: "required tools are missing"}
			}
			return nil
		},
	}
}
