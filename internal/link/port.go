package link

import (
	"io"
	"sync"
	"time"
)

// Channel is the byte-stream primitive the pipeline is built on. Read blocks
// for at most timeout and returns an *Error of KindTimeout when nothing
// arrived.
type Channel interface {
	Read(maxBytes int, timeout time.Duration) ([]byte, error)
	Write(p []byte) (int, error)
	Close() error
}

// InputResetter is implemented by channels that can discard bytes already
// buffered by the driver.
type InputResetter interface {
	ResetInputBuffer() error
}

// SerialPorter is the minimal port surface needed to build a Channel. It is
// satisfied by go.bug.st/serial.Port and by test doubles.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
	SetReadTimeout(timeout time.Duration) error
}

type inputResetPorter interface {
	ResetInputBuffer() error
}

// portChannel adapts a SerialPorter to Channel. Reads and writes may run on
// different goroutines; Close is idempotent.
type portChannel struct {
	port SerialPorter
	name string

	readMu  sync.Mutex
	timeout time.Duration
	buf     []byte

	closeMu sync.Mutex
	closed  bool
}

// NewChannel wraps an already opened port.
func NewChannel(name string, port SerialPorter) Channel {
	return &portChannel{port: port, name: name, timeout: -1}
}

func (c *portChannel) isClosed() bool {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	return c.closed
}

func (c *portChannel) Read(maxBytes int, timeout time.Duration) ([]byte, error) {
	if c.isClosed() {
		return nil, &Error{Op: "read", Kind: KindDisconnected, Err: ErrClosed}
	}
	if maxBytes <= 0 {
		maxBytes = 1
	}

	c.readMu.Lock()
	defer c.readMu.Unlock()

	if timeout != c.timeout {
		if err := c.port.SetReadTimeout(timeout); err != nil {
			return nil, wrap("set read timeout", err)
		}
		c.timeout = timeout
	}
	if cap(c.buf) < maxBytes {
		c.buf = make([]byte, maxBytes)
	}
	buf := c.buf[:maxBytes]

	n, err := c.port.Read(buf)
	if err != nil {
		return nil, wrap("read", err)
	}
	if n == 0 {
		// go.bug.st/serial reports an expired read timeout as 0, nil.
		return nil, &Error{Op: "read", Kind: KindTimeout, Err: ErrTimeout}
	}
	out := make([]byte, n)
	copy(out, buf[:n])
	return out, nil
}

func (c *portChannel) Write(p []byte) (int, error) {
	if c.isClosed() {
		return 0, &Error{Op: "write", Kind: KindDisconnected, Err: ErrClosed}
	}
	n, err := c.port.Write(p)
	if err != nil {
		return n, wrap("write", err)
	}
	if n != len(p) {
		return n, &Error{Op: "write", Kind: KindOther, Err: ErrWriteFailed}
	}
	return n, nil
}

func (c *portChannel) ResetInputBuffer() error {
	r, ok := c.port.(inputResetPorter)
	if !ok {
		return nil
	}
	return wrap("reset input", r.ResetInputBuffer())
}

func (c *portChannel) Close() error {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return nil
	}
	c.closed = true
	c.closeMu.Unlock()
	return c.port.Close()
}

func (c *portChannel) String() string { return c.name }
