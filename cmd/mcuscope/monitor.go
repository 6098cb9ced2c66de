package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/mcuscope/internal/session"
)

func (a *app) monitorCmd() *cobra.Command {
	var (
		poll        string
		interval    time.Duration
		logDir      string
		noLog       bool
		plotFile    string
		debugListen string
	)
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Poll the MCU on a fixed interval and record its telemetry",
		Long: "monitor sends the poll command every interval, decodes what the MCU " +
			"returns and keeps a log file, an optional PNG plot and optional debug pages " +
			"up to date. Type 'clear' to reset the series and 'exit' to quit.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("poll") {
				a.cfg.Monitor.Poll = poll
			}
			if flags.Changed("interval") {
				a.cfg.Monitor.Interval = interval.String()
			}
			if flags.Changed("log-dir") {
				a.cfg.Monitor.LogDir = logDir
			}
			if noLog {
				a.cfg.Monitor.Log = false
			}
			if flags.Changed("plot") {
				a.cfg.Monitor.PlotFile = plotFile
			}
			if flags.Changed("debug-listen") {
				a.cfg.Monitor.DebugListen = debugListen
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			device, err := a.resolveDevice(out)
			if err != nil {
				return err
			}
			opts, err := a.sessionOptions(device, out)
			if err != nil {
				return err
			}
			_, err = session.Monitor(cmd.Context(), opts)
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&poll, "poll", "", `poll command sent every tick, e.g. "val?" or "hex:24020101"; empty disables polling`)
	f.DurationVar(&interval, "interval", 0, "tick interval (default from config, 100ms)")
	f.StringVar(&logDir, "log-dir", "", "directory for mcu_log_*.txt files")
	f.BoolVar(&noLog, "no-log", false, "do not write a log file")
	f.StringVar(&plotFile, "plot", "", "keep a PNG plot of the series at this path")
	f.StringVar(&debugListen, "debug-listen", "", "serve debug pages on this address, e.g. localhost:6060")
	return cmd
}
