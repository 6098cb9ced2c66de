package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/banshee-data/mcuscope/internal/config"
	"github.com/banshee-data/mcuscope/internal/version"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		// Skip config loading.
		PersistentPreRun: func(cmd *cobra.Command, args []string) {},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

func (a *app) configCmd() *cobra.Command {
	var defaults bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if defaults {
				_, err := out.Write(config.DefaultTOML())
				return err
			}
			return a.cfg.Write(out)
		},
	}
	cmd.Flags().BoolVar(&defaults, "defaults", false, "print the built-in default file with comments")
	return cmd
}
