package main

import (
	"github.com/spf13/cobra"

	"github.com/banshee-data/mcuscope/internal/session"
)

func (a *app) consoleCmd() *cobra.Command {
	var logFile bool
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Send typed lines to the MCU and print what it returns",
		Long: "console sends every input line to the MCU followed by the configured " +
			"line ending and prints each payload raw and decoded. Type 'exit' to quit.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			device, err := a.resolveDevice(out)
			if err != nil {
				return err
			}
			a.cfg.Monitor.Log = logFile
			opts, err := a.sessionOptions(device, out)
			if err != nil {
				return err
			}
			opts.PlotFile = ""
			opts.DebugListen = ""
			_, err = session.Console(cmd.Context(), opts)
			return err
		},
	}
	cmd.Flags().BoolVar(&logFile, "log", false, "also write payloads to a log file in monitor.log_dir")
	return cmd
}
