package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) portsCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "ports",
		Short: "List serial ports matching serial.port_filter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := a.cfg.Serial.PortFilter
			if all {
				filter = ""
			}
			ports, err := a.listPorts(filter)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(ports) == 0 {
				fmt.Fprintf(out, "No serial ports matching %q found\n", filter)
				return nil
			}
			printPorts(out, ports)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "list every port, ignoring the filter")
	return cmd
}
