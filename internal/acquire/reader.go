// Package acquire runs the background reader that drains the serial link,
// frames and decodes payloads and hands them to the consumer loop.
package acquire

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/banshee-data/mcuscope/internal/handoff"
	"github.com/banshee-data/mcuscope/internal/link"
	"github.com/banshee-data/mcuscope/internal/monitoring"
	"github.com/banshee-data/mcuscope/internal/timeutil"
)

// Defaults for Config fields left at zero.
const (
	DefaultMaxRead      = 256
	DefaultReadTimeout  = 50 * time.Millisecond
	DefaultIdleInterval = 10 * time.Millisecond
)

// Config configures a Reader.
type Config struct {
	MaxRead      int
	ReadTimeout  time.Duration
	IdleInterval time.Duration

	// NewFramer builds the framer for one run. Defaults to line framing.
	NewFramer func() Framer
	// Decoder defaults to DefaultDecoder.
	Decoder Decoder

	Clock timeutil.Clock
}

// Stats are the reader's running counters.
type Stats struct {
	Bytes           uint64
	Payloads        uint64
	DecodeErrors    uint64
	TransportErrors uint64
}

// Reader is the single producer of a link generation. It owns the channel for
// reading but never closes it.
type Reader struct {
	cfg Config

	bytes           atomic.Uint64
	payloads        atomic.Uint64
	decodeErrors    atomic.Uint64
	transportErrors atomic.Uint64
}

// NewReader applies defaults to cfg.
func NewReader(cfg Config) *Reader {
	if cfg.MaxRead <= 0 {
		cfg.MaxRead = DefaultMaxRead
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = DefaultIdleInterval
	}
	if cfg.NewFramer == nil {
		cfg.NewFramer = func() Framer { return &LineFramer{} }
	}
	if cfg.Decoder == nil {
		cfg.Decoder = DefaultDecoder()
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	return &Reader{cfg: cfg}
}

// Stats returns a snapshot of the counters.
func (r *Reader) Stats() Stats {
	return Stats{
		Bytes:           r.bytes.Load(),
		Payloads:        r.payloads.Load(),
		DecodeErrors:    r.decodeErrors.Load(),
		TransportErrors: r.transportErrors.Load(),
	}
}

// Run reads from ch until ctx is cancelled or the channel reports a
// disconnect. On disconnect it pushes a LinkClosed event and returns the
// transport error; cancellation returns nil.
func (r *Reader) Run(ctx context.Context, ch link.Channel, q *handoff.Queue) error {
	framer := r.cfg.NewFramer()
	monitoring.Diagf("reader started (max read %d, timeout %v, idle %v)",
		r.cfg.MaxRead, r.cfg.ReadTimeout, r.cfg.IdleInterval)

	for {
		if ctx.Err() != nil {
			monitoring.Diagf("reader stopped: %v", ctx.Err())
			return nil
		}

		data, err := ch.Read(r.cfg.MaxRead, r.cfg.ReadTimeout)
		if err != nil {
			switch link.KindOf(err) {
			case link.KindTimeout:
				// nothing yet
			case link.KindDisconnected:
				if ctx.Err() != nil {
					// The channel was closed under us during shutdown.
					return nil
				}
				if n := framer.Pending(); n > 0 {
					monitoring.Diagf("reader: dropping %d bytes of partial payload", n)
				}
				q.Push(handoff.LinkClosed(err))
				monitoring.Diagf("reader: link closed: %v", err)
				return err
			default:
				r.transportErrors.Add(1)
				monitoring.Diagf("reader: transport error: %v", err)
			}
			if !r.idle(ctx) {
				monitoring.Diagf("reader stopped: %v", ctx.Err())
				return nil
			}
			continue
		}

		r.bytes.Add(uint64(len(data)))
		monitoring.Tracef("reader: %d bytes %q", len(data), data)
		for _, payload := range framer.Feed(data) {
			r.handle(payload, q)
		}
	}
}

func (r *Reader) handle(payload []byte, q *handoff.Queue) {
	r.payloads.Add(1)
	v, err := r.cfg.Decoder.Decode(payload)
	if err != nil {
		r.decodeErrors.Add(1)
		if !errors.Is(err, ErrDecode) {
			err = errors.Join(ErrDecode, err)
		}
		monitoring.Diagf("reader: %v", err)
		q.Push(handoff.ProtocolError(payload, err))
		return
	}
	q.Push(handoff.Data(payload, v))
}

// idle waits IdleInterval unless ctx is cancelled first.
func (r *Reader) idle(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-r.cfg.Clock.After(r.cfg.IdleInterval):
		return true
	}
}
