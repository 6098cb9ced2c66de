package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/banshee-data/mcuscope/internal/config"
	"github.com/banshee-data/mcuscope/internal/console"
	"github.com/banshee-data/mcuscope/internal/link"
	"github.com/banshee-data/mcuscope/internal/monitoring"
	"github.com/banshee-data/mcuscope/internal/session"
)

// app carries the persistent flags and the loaded configuration.
type app struct {
	configPath string
	verbose    bool
	trace      bool
	device     string
	baud       int

	cfg *config.Config

	// listPorts is replaced in tests.
	listPorts func(filter string) ([]link.PortInfo, error)
	stdin     io.Reader
	isTTY     func() bool
}

func newApp() *app {
	return &app{
		listPorts: link.ListPorts,
		isTTY:     func() bool { return isatty.IsTerminal(os.Stdin.Fd()) },
	}
}

func newRootCmd() *cobra.Command {
	return newApp().rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mcuscope",
		Short: "Exercise a microcontroller over a serial link",
		Long: "mcuscope sends commands to a microcontroller over a serial link, " +
			"streams its telemetry back and logs or plots it without blocking the console.",
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			monitoring.Configure(a.verbose, a.trace)
			return a.loadConfig()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "TOML configuration file layered over the defaults")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "enable diagnostic logging")
	pf.BoolVar(&a.trace, "trace", false, "enable per-read trace logging (implies --verbose)")
	pf.StringVarP(&a.device, "device", "d", "", "serial device, e.g. /dev/ttyUSB0 or COM6 (default: pick from the port list)")
	pf.IntVarP(&a.baud, "baud", "b", 0, "baud rate (default from config, 115200)")

	root.AddCommand(
		a.monitorCmd(),
		a.consoleCmd(),
		a.captureCmd(),
		a.portsCmd(),
		a.configCmd(),
		versionCmd(),
	)
	return root
}

// loadConfig reads --config and applies the persistent flag overrides.
func (a *app) loadConfig() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.device != "" {
		cfg.Serial.Device = a.device
	}
	if a.baud != 0 {
		cfg.Serial.BaudRate = a.baud
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}
	a.cfg = cfg
	monitoring.Diagf("serial %s, reader %s/%s, monitor interval %v",
		cfg.PortOptions(), cfg.Reader.Framing, cfg.Decoder().Unit(), cfg.GetInterval())
	return nil
}

// resolveDevice returns the configured device, or picks one from the
// filtered port list: the only match is used directly, several are offered
// as a numbered choice on a terminal.
func (a *app) resolveDevice(out io.Writer) (string, error) {
	if a.cfg.Serial.Device != "" {
		return a.cfg.Serial.Device, nil
	}
	ports, err := a.listPorts(a.cfg.Serial.PortFilter)
	if err != nil {
		return "", err
	}
	switch {
	case len(ports) == 0:
		return "", fmt.Errorf("%w: no serial port matching %q, use --device", link.ErrLinkUnavailable, a.cfg.Serial.PortFilter)
	case len(ports) == 1:
		fmt.Fprintf(out, "Using %s\n", ports[0])
		return ports[0].Name, nil
	}
	if a.stdin == nil && !a.isTTY() {
		return "", fmt.Errorf("%d ports match %q, use --device", len(ports), a.cfg.Serial.PortFilter)
	}
	return pickPort(a.input(), out, ports)
}

func (a *app) input() io.Reader {
	if a.stdin != nil {
		return a.stdin
	}
	return os.Stdin
}

// pickPort prints a numbered list and reads a choice until it is valid.
// Input after the chosen line is left in in for the console loop.
func pickPort(in io.Reader, out io.Writer, ports []link.PortInfo) (string, error) {
	printPorts(out, ports)
	for {
		fmt.Fprintf(out, "Select a port (1-%d): ", len(ports))
		line, err := readLine(in)
		if errors.Is(err, io.EOF) {
			return "", errors.New("no port selected")
		}
		if err != nil {
			return "", err
		}
		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil || n < 1 || n > len(ports) {
			fmt.Fprintf(out, "Please enter a number between 1 and %d.\n", len(ports))
			continue
		}
		fmt.Fprintf(out, "Selected %s\n", ports[n-1].Name)
		return ports[n-1].Name, nil
	}
}

// readLine reads one byte at a time up to and including '\n' so that nothing
// past the line is consumed. A final line without '\n' is returned as is.
func readLine(in io.Reader) (string, error) {
	var (
		line []byte
		b    [1]byte
	)
	for {
		n, err := in.Read(b[:])
		if n == 1 {
			if b[0] == '\n' {
				return string(line), nil
			}
			line = append(line, b[0])
		}
		if err != nil {
			if errors.Is(err, io.EOF) && len(line) > 0 {
				return string(line), nil
			}
			return "", err
		}
	}
}

func printPorts(out io.Writer, ports []link.PortInfo) {
	for i, p := range ports {
		fmt.Fprintf(out, "%d - %s\n", i+1, p)
	}
}

// sessionOptions maps the configuration onto session.Options.
func (a *app) sessionOptions(device string, out io.Writer) (session.Options, error) {
	rc, err := a.cfg.ReaderConfig()
	if err != nil {
		return session.Options{}, err
	}
	opts := session.Options{
		Device:       device,
		Port:         a.cfg.PortOptions(),
		Reader:       rc,
		Interval:     a.cfg.GetInterval(),
		Poll:         a.cfg.PollCommand(),
		StopTimeout:  a.cfg.GetStopTimeout(),
		LineEnding:   a.cfg.Console.LineEnding,
		PlotFile:     a.cfg.Monitor.PlotFile,
		PlotInterval: a.cfg.GetPlotInterval(),
		DebugListen:  a.cfg.Monitor.DebugListen,
		Unit:         a.cfg.Decoder().Unit(),
		ExitWord:     a.cfg.Console.ExitWord,
		Console:      console.Options{Prompt: a.cfg.Console.Prompt, In: a.stdin},
		Out:          out,
	}
	if a.cfg.Monitor.Log {
		opts.LogDir = a.cfg.Monitor.LogDir
		if opts.LogDir == "" {
			opts.LogDir = "."
		}
	}
	return opts, nil
}
