package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"upapasta/internal/config"
)

// commandContext lazily loads the configuration shared by all commands.
type commandContext struct {
	configFlag *string
	cfg        *config.Config
	cfgPath    string
	cfgExists  bool
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	path := ""
	if c.configFlag != nil {
		path = *c.configFlag
	}
	cfg, resolvedPath, exists, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg
	c.cfgPath = resolvedPath
	c.cfgExists = exists
	return cfg, nil
}

func newRootCommand() *cobra.Command {
	var configFlag string

	ctx := newCommandContext(&configFlag)
	flags := &runFlags{}

	rootCmd := &cobra.Command{
		Use:           "upapasta [flags] <folder-or-file>",
		Short:         "Upload a folder to Usenet: RAR + PAR2 + NZB",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runPipeline(cmd, ctx, flags, args[0])
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	registerRunFlags(rootCmd, flags)

	rootCmd.AddCommand(newCheckCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}
