// Package session composes the link, reader, scheduler, sinks, console and
// debug pages into the monitor, console and capture modes.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/c-bata/go-prompt"

	"github.com/banshee-data/mcuscope/internal/acquire"
	"github.com/banshee-data/mcuscope/internal/command"
	"github.com/banshee-data/mcuscope/internal/console"
	"github.com/banshee-data/mcuscope/internal/debugweb"
	"github.com/banshee-data/mcuscope/internal/handoff"
	"github.com/banshee-data/mcuscope/internal/lifecycle"
	"github.com/banshee-data/mcuscope/internal/link"
	"github.com/banshee-data/mcuscope/internal/monitoring"
	"github.com/banshee-data/mcuscope/internal/scheduler"
	"github.com/banshee-data/mcuscope/internal/sink"
	"github.com/banshee-data/mcuscope/internal/timeutil"
)

// DefaultExitWord ends the input loop.
const DefaultExitWord = "exit"

// Options configures Monitor and Console.
type Options struct {
	Device string
	Port   link.PortOptions
	// Opener defaults to link.SerialOpener.
	Opener link.Opener

	Reader      acquire.Config
	Interval    time.Duration
	Poll        command.Command
	StopTimeout time.Duration
	LineEnding  string
	Clock       timeutil.Clock

	// LogDir enables the log file when non-empty.
	LogDir string
	// PlotFile enables the PNG plot when non-empty.
	PlotFile     string
	PlotInterval time.Duration
	// DebugListen enables the debug pages when non-empty, e.g. "localhost:6060".
	DebugListen string

	Title    string
	Unit     string
	ExitWord string

	Console console.Options
	// Out receives operator-facing output. Defaults to os.Stdout.
	Out io.Writer
}

func (o Options) withDefaults() Options {
	if o.Opener == nil {
		o.Opener = link.SerialOpener
	}
	if o.LineEnding == "" {
		o.LineEnding = command.DefaultLineEnding
	}
	if o.Clock == nil {
		o.Clock = timeutil.RealClock{}
	}
	if o.ExitWord == "" {
		o.ExitWord = DefaultExitWord
	}
	if o.Title == "" {
		o.Title = "mcuscope " + o.Device
	}
	if o.Out == nil {
		o.Out = os.Stdout
	}
	return o
}

// Result describes how a session ended.
type Result struct {
	// Reason is lifecycle.Disconnecting after an operator exit and
	// lifecycle.LinkLost when the link dropped.
	Reason    lifecycle.State
	Series    []scheduler.Sample
	Summary   sink.Summary
	LogPath   string
	Scheduler scheduler.Stats
	Reader    acquire.Stats
}

type mode int

const (
	monitorMode mode = iota
	consoleMode
)

// Monitor polls the MCU every tick and records decoded samples until the
// operator exits, ctx is cancelled or the link is lost. Input lines are
// session commands (clear, stats, help, exit); anything else is sent to the
// MCU.
func Monitor(ctx context.Context, opts Options) (*Result, error) {
	return run(ctx, opts, monitorMode)
}

// Console sends every input line to the MCU terminated by the line ending
// and prints what comes back, raw and decoded, until the operator types the
// exit word.
func Console(ctx context.Context, opts Options) (*Result, error) {
	return run(ctx, opts, consoleMode)
}

type session struct {
	opts   Options
	mode   mode
	out    io.Writer
	ctrl   *lifecycle.Controller
	reader *acquire.Reader
	sched  *scheduler.Scheduler
	writer *command.Writer
	view   *sink.View

	exitRequested bool
}

func run(ctx context.Context, opts Options, m mode) (*Result, error) {
	opts = opts.withDefaults()
	s := &session{opts: opts, mode: m, out: opts.Out, view: sink.NewView()}

	q := handoff.NewQueue()
	s.reader = acquire.NewReader(opts.Reader)
	s.ctrl = lifecycle.New(lifecycle.Config{
		Opener:      opts.Opener,
		StopTimeout: opts.StopTimeout,
		Clock:       opts.Clock,
		Start: func(ctx context.Context, ch link.Channel) error {
			return s.reader.Run(ctx, ch, q)
		},
	})

	ch, err := s.ctrl.Connect(ctx, opts.Device, opts.Port)
	if err != nil {
		return nil, err
	}
	s.writer = command.NewWriter(ch)
	fmt.Fprintf(s.out, "--- connected to %s (%s), type '%s' to leave ---\n", opts.Device, opts.Port, opts.ExitWord)

	sinks := sink.Multi{s.view}
	var logFile *sink.LogFile
	if opts.LogDir != "" {
		logFile, err = sink.CreateLog(opts.LogDir, sink.LogHeader{
			Port:     opts.Device,
			BaudRate: opts.Port.BaudRate,
			Started:  opts.Clock.Now(),
		})
		if err != nil {
			s.ctrl.Shutdown()
			return nil, err
		}
		monitoring.Diagf("logging session %s to %s", logFile.Session(), logFile.Path())
		sinks = append(sinks, logFile)
	}
	var plot *sink.PNGPlot
	if opts.PlotFile != "" {
		plot = sink.NewPNGPlot(opts.PlotFile, opts.Title, opts.Unit)
		if opts.PlotInterval > 0 {
			plot.MinInterval = opts.PlotInterval
		}
		sinks = append(sinks, plot)
	}
	if m == consoleMode {
		sinks = append(sinks, sink.NewPrinter(s.out, opts.Unit))
	}

	poll := opts.Poll
	if m == consoleMode {
		poll = command.Command{}
	}
	linkClosed := make(chan struct{})
	s.sched = scheduler.New(scheduler.Config{
		Interval:     opts.Interval,
		Poll:         poll,
		Clock:        opts.Clock,
		OnLinkClosed: func(error) { close(linkClosed) },
	}, q, s.writer, sinks)

	schedCtx, stopSched := context.WithCancel(context.Background())
	defer stopSched()
	go s.sched.Run(schedCtx)

	srv := s.serveDebug()

	inputCtx, cancelInput := context.WithCancel(ctx)
	defer cancelInput()
	go func() {
		select {
		case <-linkClosed:
			s.ctrl.LinkLost()
			fmt.Fprintf(s.out, "\r\n--- link to %s lost ---\r\n", opts.Device)
			cancelInput()
		case <-inputCtx.Done():
		}
	}()

	err = console.MainLoop(inputCtx, s.consoleOptions(), s.handle)
	if err != nil && !errors.Is(err, context.Canceled) {
		monitoring.Diagf("input: %v", err)
	}
	if m == monitorMode && !s.exitRequested {
		// Input ended (stdin closed) but monitoring continues until
		// interrupted or the link drops.
		<-inputCtx.Done()
	}

	stopSched()
	<-s.sched.Stopped()
	closeErr := s.ctrl.Shutdown()
	s.sched.Flush()

	if plot != nil {
		plot.Flush()
	}
	series := s.view.Snapshot()
	res := &Result{
		Reason:    s.ctrl.Reason(),
		Series:    series,
		Summary:   sink.Summarise(series),
		Scheduler: s.sched.Stats(),
		Reader:    s.reader.Stats(),
	}
	if logFile != nil {
		res.LogPath = logFile.Path()
		if err := logFile.Close(res.Summary); err != nil {
			monitoring.Opsf("closing log: %v", err)
		}
	}
	s.view.Close()
	shutdownServer(srv)

	fmt.Fprintf(s.out, "--- session ended (%s): %s ---\n", res.Reason, res.Summary)
	if res.LogPath != "" {
		fmt.Fprintf(s.out, "--- log saved to %s ---\n", res.LogPath)
	}
	return res, closeErr
}

func (s *session) consoleOptions() console.Options {
	o := s.opts.Console
	if o.Title == "" {
		o.Title = s.opts.Title
	}
	if o.Suggestions == nil {
		o.Suggestions = []prompt.Suggest{{Text: s.opts.ExitWord, Description: "close the link and quit"}}
		if s.mode == monitorMode {
			o.Suggestions = append(o.Suggestions,
				prompt.Suggest{Text: "clear", Description: "reset the series"},
				prompt.Suggest{Text: "stats", Description: "show counters and summary"},
				prompt.Suggest{Text: "help", Description: "list session commands"},
			)
		}
	}
	return o
}

// handle processes one input line; it returns false to end the input loop.
func (s *session) handle(line string) bool {
	if strings.EqualFold(line, s.opts.ExitWord) {
		s.exitRequested = true
		return false
	}
	if s.mode == consoleMode {
		s.send(command.Text(line, s.opts.LineEnding))
		return true
	}

	switch strings.ToLower(line) {
	case "":
	case "clear", "reset":
		if err := s.sched.RequestReset(context.Background()); err != nil {
			fmt.Fprintf(s.out, "clear failed: %v\n", err)
		}
	case "stats":
		st := s.sched.Stats()
		rs := s.reader.Stats()
		fmt.Fprintf(s.out, "ticks=%d skipped=%d samples=%d protocol_errors=%d bytes=%d\n",
			st.Ticks, st.SkippedTicks, st.Samples, st.ProtocolErrors, rs.Bytes)
		fmt.Fprintf(s.out, "%s\n", sink.Summarise(s.view.Snapshot()))
	case "help":
		fmt.Fprintf(s.out, "clear | stats | help | %s | <command> | hex:<bytes>\n", s.opts.ExitWord)
	default:
		cmd, err := command.ParseCommand(line, s.opts.LineEnding)
		if err != nil {
			fmt.Fprintf(s.out, "%v\n", err)
			return true
		}
		s.send(cmd)
	}
	return true
}

func (s *session) send(cmd command.Command) {
	if err := s.writer.Send(cmd); err != nil {
		fmt.Fprintf(s.out, "send %s: %v\n", cmd, err)
	}
}

func (s *session) serveDebug() *http.Server {
	if s.opts.DebugListen == "" {
		return nil
	}
	ln, err := net.Listen("tcp", s.opts.DebugListen)
	if err != nil {
		monitoring.Opsf("debug pages disabled: %v", err)
		return nil
	}

	mux := http.NewServeMux()
	(&debugweb.Server{
		Sender:     s.writer,
		Reset:      s.sched.RequestReset,
		View:       s.view,
		Title:      s.opts.Title,
		Unit:       s.opts.Unit,
		LineEnding: s.opts.LineEnding,
	}).Attach(mux)

	srv := &http.Server{Handler: mux}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			monitoring.Opsf("debug server: %v", err)
		}
	}()
	monitoring.Opsf("debug pages on http://%s/debug/", ln.Addr())
	return srv
}

func shutdownServer(srv *http.Server) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		monitoring.Diagf("debug server shutdown: %v", err)
		srv.Close()
	}
}
