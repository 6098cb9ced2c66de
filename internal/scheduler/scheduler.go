// Package scheduler implements the consumer loop: on a fixed interval it
// polls the MCU, drains the handoff queue into the series and refreshes the
// sink once per tick.
package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/banshee-data/mcuscope/internal/command"
	"github.com/banshee-data/mcuscope/internal/handoff"
	"github.com/banshee-data/mcuscope/internal/monitoring"
	"github.com/banshee-data/mcuscope/internal/timeutil"
)

// DefaultInterval is the tick period when Config.Interval is zero.
const DefaultInterval = 100 * time.Millisecond

// ErrStopped is returned by requests made after Run has returned.
var ErrStopped = errors.New("scheduler stopped")

// Config configures a Scheduler.
type Config struct {
	Interval time.Duration
	// Poll is sent at the start of every tick while connected. A zero
	// command disables polling.
	Poll  command.Command
	Clock timeutil.Clock
	// OnLinkClosed is called once, on the loop goroutine, when the reader
	// reports the link closed.
	OnLinkClosed func(cause error)
}

// Stats are the loop's running counters. They may be read from any
// goroutine.
type Stats struct {
	Ticks          int64
	SkippedTicks   int64
	Samples        int64
	ProtocolErrors int64
	Disconnected   bool
}

type request struct {
	fn   func()
	done chan struct{}
}

// Scheduler owns the series. Tick and Reset must only be called from the
// goroutine running Run (or, in tests, from a single goroutine with Run not
// started); other goroutines use RequestReset and Snapshot.
type Scheduler struct {
	cfg    Config
	queue  *handoff.Queue
	sender command.Sender
	sink   Sink

	series []Sample
	next   int
	closed bool

	requests chan request
	stopped  chan struct{}

	ticks          atomic.Int64
	skipped        atomic.Int64
	samples        atomic.Int64
	protocolErrors atomic.Int64
	disconnected   atomic.Bool
}

// New creates a Scheduler draining q. sender may be nil when Poll is zero;
// sink may be nil.
func New(cfg Config, q *handoff.Queue, sender command.Sender, sink Sink) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if sink == nil {
		sink = NopSink{}
	}
	return &Scheduler{
		cfg:      cfg,
		queue:    q,
		sender:   sender,
		sink:     sink,
		requests: make(chan request),
		stopped:  make(chan struct{}),
	}
}

// Tick runs one loop iteration: poll, drain, append, notify.
func (s *Scheduler) Tick() {
	s.ticks.Add(1)
	if s.closed {
		return
	}

	if !s.cfg.Poll.IsZero() && s.sender != nil {
		if err := s.sender.Send(s.cfg.Poll); err != nil {
			monitoring.Diagf("poll %s failed: %v", s.cfg.Poll, err)
		}
	}
	s.drain()
}

// Flush drains the queue without polling. It is used once after Run has
// returned so that samples read before shutdown still reach the sink.
func (s *Scheduler) Flush() {
	if s.closed {
		return
	}
	s.drain()
}

func (s *Scheduler) drain() {
	var (
		appended  int
		undecoded []Undecoded
		linkClose *handoff.Event
	)
	for _, ev := range s.queue.DrainAll() {
		switch ev.Kind {
		case handoff.EventData:
			s.series = append(s.series, Sample{
				Index: s.next,
				Value: ev.Value,
				Raw:   string(ev.Raw),
				At:    s.cfg.Clock.Now(),
			})
			s.next++
			appended++
		case handoff.EventProtocolError:
			s.protocolErrors.Add(1)
			undecoded = append(undecoded, Undecoded{
				Raw: string(ev.Raw),
				Err: ev.Err,
				At:  s.cfg.Clock.Now(),
			})
		case handoff.EventLinkClosed:
			linkClose = &ev
		}
		if linkClose != nil {
			break
		}
	}

	if appended > 0 {
		s.samples.Add(int64(appended))
		s.sink.Update(s.series[:len(s.series):len(s.series)])
		monitoring.Tracef("tick: %d new samples, %d total", appended, len(s.series))
	}
	if len(undecoded) > 0 {
		if us, ok := s.sink.(UndecodedSink); ok {
			us.Undecoded(undecoded)
		}
	}

	if linkClose != nil {
		s.closed = true
		s.disconnected.Store(true)
		monitoring.Opsf("link closed, polling stopped; %d samples kept", len(s.series))
		if s.cfg.OnLinkClosed != nil {
			s.cfg.OnLinkClosed(linkClose.Err)
		}
	}
}

// Reset clears the series, restarts indices at 0, discards the samples and
// protocol errors queued so far and clears the sink. A pending link-closed
// event is kept and handled by the next tick.
func (s *Scheduler) Reset() {
	s.series = nil
	s.next = 0
	gen := s.queue.Reset()
	s.sink.Clear()
	monitoring.Diagf("series reset (queue generation %d)", gen)
}

// Run ticks every Interval until ctx is done. A tick that fires while the
// previous one ran is dropped rather than queued.
func (s *Scheduler) Run(ctx context.Context) error {
	defer close(s.stopped)

	ticker := s.cfg.Clock.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			s.Tick()
			select {
			case <-ticker.C():
				s.skipped.Add(1)
				monitoring.Tracef("tick overran, skipping one")
			default:
			}
		case req := <-s.requests:
			req.fn()
			close(req.done)
		}
	}
}

// do runs fn on the loop goroutine and waits for it.
func (s *Scheduler) do(ctx context.Context, fn func()) error {
	req := request{fn: fn, done: make(chan struct{})}
	select {
	case s.requests <- req:
	case <-s.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RequestReset performs Reset on the loop goroutine and waits for it to
// finish.
func (s *Scheduler) RequestReset(ctx context.Context) error {
	return s.do(ctx, s.Reset)
}

// Snapshot returns a copy of the series taken on the loop goroutine.
func (s *Scheduler) Snapshot(ctx context.Context) ([]Sample, error) {
	var out []Sample
	err := s.do(ctx, func() {
		out = append([]Sample(nil), s.series...)
	})
	return out, err
}

// Stats returns the current counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Ticks:          s.ticks.Load(),
		SkippedTicks:   s.skipped.Load(),
		Samples:        s.samples.Load(),
		ProtocolErrors: s.protocolErrors.Load(),
		Disconnected:   s.disconnected.Load(),
	}
}

// Stopped is closed when Run returns.
func (s *Scheduler) Stopped() <-chan struct{} { return s.stopped }
