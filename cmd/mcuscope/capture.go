package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/mcuscope/internal/session"
)

func (a *app) captureCmd() *cobra.Command {
	var (
		command string
		window  time.Duration
		logDir  string
	)
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Send one command and record the response window to a log file",
		Long: "capture opens the port, waits for the line to settle, discards buffered " +
			"input, sends the command and logs every response line received within the window.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("command") {
				a.cfg.Capture.Command = command
			}
			if flags.Changed("window") {
				a.cfg.Capture.Window = window.String()
			}
			if flags.Changed("log-dir") {
				a.cfg.Capture.LogDir = logDir
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			c, err := a.cfg.CaptureCommand()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			device, err := a.resolveDevice(out)
			if err != nil {
				return err
			}
			settle := a.cfg.GetSettleDelay()
			if settle == 0 {
				settle = -1
			}
			_, err = session.Capture(cmd.Context(), session.CaptureOptions{
				Device:      device,
				Port:        a.cfg.PortOptions(),
				Command:     c,
				Window:      a.cfg.GetWindow(),
				SettleDelay: settle,
				LogDir:      a.cfg.Capture.LogDir,
				Decoder:     a.cfg.Decoder(),
				Out:         out,
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&command, "command", "", `command to send, e.g. "hex:24020101" or "val?"`)
	f.DurationVar(&window, "window", 0, "how long to collect responses (default from config, 2s)")
	f.StringVar(&logDir, "log-dir", "", "directory for the mcu_log_*.txt file; empty disables it")
	return cmd
}
