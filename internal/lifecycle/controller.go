// Package lifecycle coordinates opening the link, starting and stopping the
// reader and closing the channel exactly once.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/mcuscope/internal/link"
	"github.com/banshee-data/mcuscope/internal/monitoring"
	"github.com/banshee-data/mcuscope/internal/timeutil"
)

// State is a link lifecycle state.
type State int

const (
	Idle State = iota
	Connected
	Disconnecting
	LinkLost
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connected:
		return "connected"
	case Disconnecting:
		return "disconnecting"
	case LinkLost:
		return "link-lost"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// DefaultStopTimeout bounds how long a stop waits for the reader to exit.
const DefaultStopTimeout = time.Second

// ErrNotIdle is returned by Connect once the controller has left Idle.
var ErrNotIdle = errors.New("controller is not idle")

// StartFunc runs the reader on ch until ctx is cancelled or the link drops.
// It is called on its own goroutine.
type StartFunc func(ctx context.Context, ch link.Channel) error

// Config configures a Controller.
type Config struct {
	Opener      link.Opener
	Start       StartFunc
	StopTimeout time.Duration
	// Clock times the stop wait. Defaults to timeutil.RealClock.
	Clock timeutil.Clock
	// Notify is called once per state transition, outside the controller's
	// lock.
	Notify func(from, to State)
}

// Controller drives Idle -> Connected -> (Disconnecting | LinkLost) -> Closed.
// Shutdown and LinkLost may be called any number of times from any goroutine;
// the channel is closed at most once.
type Controller struct {
	cfg Config

	mu         sync.Mutex
	state      State
	reason     State
	ch         link.Channel
	cancel     context.CancelFunc
	readerDone chan struct{}
	readerErr  error
	closed     chan struct{}
}

// New returns an Idle controller.
func New(cfg Config) *Controller {
	if cfg.Opener == nil {
		cfg.Opener = link.SerialOpener
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	return &Controller{cfg: cfg, closed: make(chan struct{})}
}

// Connect opens device and starts the reader. An open failure wraps
// link.ErrLinkUnavailable and leaves the controller Idle.
func (c *Controller) Connect(ctx context.Context, device string, opts link.PortOptions) (link.Channel, error) {
	c.mu.Lock()
	if c.state != Idle {
		st := c.state
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotIdle, st)
	}
	c.mu.Unlock()

	ch, err := c.cfg.Opener.Open(device, opts)
	if err != nil {
		if !errors.Is(err, link.ErrLinkUnavailable) {
			err = fmt.Errorf("%w: %s: %w", link.ErrLinkUnavailable, device, err)
		}
		monitoring.Opsf("cannot open %s: %v", device, err)
		return nil, err
	}

	rctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	c.mu.Lock()
	if c.state != Idle {
		st := c.state
		c.mu.Unlock()
		cancel()
		_ = ch.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotIdle, st)
	}
	c.ch = ch
	c.cancel = cancel
	c.readerDone = done
	c.state = Connected
	c.mu.Unlock()
	c.announce(Idle, Connected, device)

	go func() {
		defer close(done)
		if c.cfg.Start == nil {
			<-rctx.Done()
			return
		}
		err := c.cfg.Start(rctx, ch)
		c.mu.Lock()
		c.readerErr = err
		c.mu.Unlock()
	}()
	return ch, nil
}

// Shutdown handles an explicit user exit.
func (c *Controller) Shutdown() error { return c.stop(Disconnecting) }

// LinkLost handles the reader reporting the link closed. Channel close errors
// are ignored.
func (c *Controller) LinkLost() error { return c.stop(LinkLost) }

func (c *Controller) stop(via State) error {
	c.mu.Lock()
	switch c.state {
	case Connected:
		c.state = via
		c.reason = via
	case Idle:
		c.state = Closed
		c.reason = via
		close(c.closed)
		c.mu.Unlock()
		c.announce(Idle, Closed, "")
		return nil
	default:
		// Another stop is in progress or finished; wait for it.
		closed := c.closed
		c.mu.Unlock()
		<-closed
		return nil
	}
	cancel, done, ch := c.cancel, c.readerDone, c.ch
	c.mu.Unlock()
	c.announce(Connected, via, "")

	cancel()
	select {
	case <-done:
	case <-c.cfg.Clock.After(c.cfg.StopTimeout):
		monitoring.Opsf("reader did not stop within %v, closing anyway", c.cfg.StopTimeout)
	}

	err := ch.Close()
	if err != nil {
		if via == LinkLost {
			monitoring.Diagf("close after link loss: %v", err)
			err = nil
		} else {
			err = fmt.Errorf("close channel: %w", err)
		}
	}

	c.mu.Lock()
	c.state = Closed
	close(c.closed)
	c.mu.Unlock()
	c.announce(via, Closed, "")
	return err
}

func (c *Controller) announce(from, to State, device string) {
	if device != "" {
		monitoring.Opsf("link %s -> %s (%s)", from, to, device)
	} else {
		monitoring.Opsf("link %s -> %s", from, to)
	}
	if c.cfg.Notify != nil {
		c.cfg.Notify(from, to)
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Reason returns the state the controller passed through on its way to
// Closed (Disconnecting or LinkLost), or Idle while still open.
func (c *Controller) Reason() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// ReaderErr returns what the reader returned, once it has exited.
func (c *Controller) ReaderErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readerErr
}

// Channel returns the open channel, or nil before Connect.
func (c *Controller) Channel() link.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ch
}

// Done is closed once the controller reaches Closed.
func (c *Controller) Done() <-chan struct{} { return c.closed }
