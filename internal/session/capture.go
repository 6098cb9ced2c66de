package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/banshee-data/mcuscope/internal/acquire"
	"github.com/banshee-data/mcuscope/internal/command"
	"github.com/banshee-data/mcuscope/internal/lifecycle"
	"github.com/banshee-data/mcuscope/internal/link"
	"github.com/banshee-data/mcuscope/internal/monitoring"
	"github.com/banshee-data/mcuscope/internal/scheduler"
	"github.com/banshee-data/mcuscope/internal/sink"
	"github.com/banshee-data/mcuscope/internal/timeutil"
)

// Capture defaults.
const (
	DefaultSettleDelay = 2 * time.Second
	DefaultWindow      = 2 * time.Second
)

// CaptureOptions configures Capture.
type CaptureOptions struct {
	Device string
	Port   link.PortOptions
	Opener link.Opener

	Command command.Command
	// Window is how long responses are collected after the write.
	Window time.Duration
	// SettleDelay is waited after opening, before the input buffer is
	// discarded. Negative disables it.
	SettleDelay time.Duration
	// LogDir enables the log file when non-empty.
	LogDir string
	// Decoder turns response lines into samples for the summary. Lines that
	// fail to decode are logged but not summarised.
	Decoder acquire.Decoder
	Clock   timeutil.Clock
	Out     io.Writer
}

// CaptureResult is what Capture collected.
type CaptureResult struct {
	Lines   []string
	Samples []scheduler.Sample
	Summary sink.Summary
	LogPath string
	Reason  lifecycle.State
}

// Capture opens the link, lets it settle, sends one command and records the
// response lines arriving within the window. A link lost mid-window ends the
// capture early with what was collected and a nil error.
func Capture(ctx context.Context, opts CaptureOptions) (*CaptureResult, error) {
	if opts.Command.IsZero() {
		return nil, errors.New("capture: empty command")
	}
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.SettleDelay == 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	if opts.Decoder == nil {
		opts.Decoder = acquire.DefaultDecoder()
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	ctrl := lifecycle.New(lifecycle.Config{Opener: opts.Opener, Clock: opts.Clock})
	fmt.Fprintf(out, "----- connecting to %s (%s) -----\n", opts.Device, opts.Port)
	ch, err := ctrl.Connect(ctx, opts.Device, opts.Port)
	if err != nil {
		return nil, err
	}

	if opts.SettleDelay > 0 {
		fmt.Fprintf(out, "Connected, waiting %v for the line to settle...\n", opts.SettleDelay)
		select {
		case <-opts.Clock.After(opts.SettleDelay):
		case <-ctx.Done():
			ctrl.Shutdown()
			return nil, ctx.Err()
		}
	}
	if r, ok := ch.(link.InputResetter); ok {
		if err := r.ResetInputBuffer(); err != nil {
			monitoring.Diagf("reset input buffer: %v", err)
		}
	}

	var logFile *sink.LogFile
	if opts.LogDir != "" {
		logFile, err = sink.CreateLog(opts.LogDir, sink.LogHeader{
			Port:     opts.Device,
			BaudRate: opts.Port.BaudRate,
			Started:  opts.Clock.Now(),
		})
		if err != nil {
			ctrl.Shutdown()
			return nil, err
		}
	}

	res := &CaptureResult{}
	fmt.Fprintf(out, "Sending command: %s\n", opts.Command.Hex())
	fmt.Fprintln(out, "Collecting response...")
	_, collectErr := command.SendAndCollect(ctx, ch, opts.Command, opts.Window, func(line string) {
		fmt.Fprintf(out, "[MCU]: %s\n", line)
		res.Lines = append(res.Lines, line)
		if logFile != nil {
			if err := logFile.WriteLine(line); err != nil {
				monitoring.Diagf("log line: %v", err)
			}
		}
		v, err := opts.Decoder.Decode([]byte(line))
		if err != nil {
			monitoring.Diagf("capture: %v", err)
			return
		}
		res.Samples = append(res.Samples, scheduler.Sample{
			Index: len(res.Samples),
			Value: v,
			Raw:   line,
			At:    opts.Clock.Now(),
		})
	})

	var closeErr error
	if errors.Is(collectErr, command.ErrLinkLost) {
		fmt.Fprintf(out, "\n--- link to %s lost ---\n", opts.Device)
		ctrl.LinkLost()
		collectErr = nil
	} else {
		closeErr = ctrl.Shutdown()
	}
	res.Reason = ctrl.Reason()
	res.Summary = sink.Summarise(res.Samples)

	if logFile != nil {
		res.LogPath = logFile.Path()
		if err := logFile.Close(res.Summary); err != nil {
			monitoring.Opsf("closing log: %v", err)
		}
		fmt.Fprintf(out, "\n--- capture finished, log saved to %s ---\n", res.LogPath)
	} else {
		fmt.Fprintln(out, "\n--- capture finished ---")
	}

	if collectErr != nil {
		return res, collectErr
	}
	return res, closeErr
}
