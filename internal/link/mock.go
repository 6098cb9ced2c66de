package link

import (
	"bytes"
	"sync"
	"time"
)

// ScriptedRead is one inbound event of a TestableChannel: Data becomes
// readable (or Err is returned) once After has elapsed since the channel was
// created.
type ScriptedRead struct {
	After time.Duration
	Data  []byte
	Err   error
}

// TestableChannel implements Channel with configurable behaviour for testing.
// It provides fine-grained control over reads, writes, errors and latency.
type TestableChannel struct {
	mu sync.Mutex

	start   time.Time
	script  []ScriptedRead
	pending bytes.Buffer

	// WriteBuffer captures data written to the channel.
	WriteBuffer bytes.Buffer

	// ReadError is returned by the next Read call if set.
	ReadError error
	// WriteError is returned by the next Write call if set.
	WriteError error
	// CloseError is returned by Close if set.
	CloseError error

	readCalls    int
	writeCalls   int
	closeCalls   int
	disconnected bool
	closed       bool

	wake   chan struct{}
	doneCh chan struct{}
}

// NewTestableChannel creates a channel whose script clock starts now.
func NewTestableChannel(script ...ScriptedRead) *TestableChannel {
	return &TestableChannel{
		start:  time.Now(),
		script: script,
		wake:   make(chan struct{}, 1),
		doneCh: make(chan struct{}),
	}
}

// AddReadData makes data readable immediately.
func (t *TestableChannel) AddReadData(data []byte) {
	t.mu.Lock()
	t.pending.Write(data)
	t.mu.Unlock()
	t.signal()
}

// Script appends a delayed read relative to channel creation.
func (t *TestableChannel) Script(after time.Duration, data []byte) {
	t.mu.Lock()
	t.script = append(t.script, ScriptedRead{After: after, Data: data})
	t.mu.Unlock()
	t.signal()
}

// Disconnect makes every later Read and Write fail as if the device had been
// unplugged. It does not count as a Close.
func (t *TestableChannel) Disconnect() {
	t.mu.Lock()
	t.disconnected = true
	t.mu.Unlock()
	t.signal()
}

func (t *TestableChannel) signal() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// Read returns pending data, the next due scripted event, or a timeout error
// once timeout has elapsed.
func (t *TestableChannel) Read(maxBytes int, timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	t.mu.Lock()
	t.readCalls++
	t.mu.Unlock()

	for {
		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			return nil, &Error{Op: "read", Kind: KindDisconnected, Err: ErrClosed}
		}
		if t.disconnected {
			t.mu.Unlock()
			return nil, &Error{Op: "read", Kind: KindDisconnected, Err: ErrDeviceGone}
		}
		if t.ReadError != nil {
			err := t.ReadError
			t.ReadError = nil
			t.mu.Unlock()
			return nil, wrap("read", err)
		}

		now := time.Now()
		for len(t.script) > 0 && !t.start.Add(t.script[0].After).After(now) {
			next := t.script[0]
			t.script = t.script[1:]
			if next.Err != nil {
				t.mu.Unlock()
				return nil, wrap("read", next.Err)
			}
			t.pending.Write(next.Data)
		}

		if t.pending.Len() > 0 {
			if maxBytes <= 0 {
				maxBytes = 1
			}
			out := make([]byte, min(maxBytes, t.pending.Len()))
			n, _ := t.pending.Read(out)
			t.mu.Unlock()
			return out[:n], nil
		}

		wait := time.Until(deadline)
		if len(t.script) > 0 {
			if due := time.Until(t.start.Add(t.script[0].After)); due < wait {
				wait = due
			}
		}
		t.mu.Unlock()

		if wait <= 0 && !time.Now().Before(deadline) {
			return nil, &Error{Op: "read", Kind: KindTimeout, Err: ErrTimeout}
		}
		timer := time.NewTimer(max(wait, 0))
		select {
		case <-timer.C:
		case <-t.wake:
			timer.Stop()
		case <-t.doneCh:
			timer.Stop()
		}
		if !time.Now().Before(deadline) {
			t.mu.Lock()
			due := len(t.script) > 0 && !t.start.Add(t.script[0].After).After(time.Now())
			empty := t.pending.Len() == 0
			t.mu.Unlock()
			if empty && !due {
				return nil, &Error{Op: "read", Kind: KindTimeout, Err: ErrTimeout}
			}
		}
	}
}

// Write records p, optionally failing once with WriteError.
func (t *TestableChannel) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.writeCalls++
	if t.closed {
		return 0, &Error{Op: "write", Kind: KindDisconnected, Err: ErrClosed}
	}
	if t.disconnected {
		return 0, &Error{Op: "write", Kind: KindDisconnected, Err: ErrDeviceGone}
	}
	if t.WriteError != nil {
		err := t.WriteError
		t.WriteError = nil
		return 0, wrap("write", err)
	}
	return t.WriteBuffer.Write(p)
}

// ResetInputBuffer drops pending, already due bytes.
func (t *TestableChannel) ResetInputBuffer() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending.Reset()
	return nil
}

// Close marks the channel closed and counts every call, including repeats.
func (t *TestableChannel) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closeCalls++
	if !t.closed {
		t.closed = true
		close(t.doneCh)
	}
	return t.CloseError
}

// CloseCalls returns how many times Close was invoked.
func (t *TestableChannel) CloseCalls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeCalls
}

// ReadCalls returns how many times Read was invoked.
func (t *TestableChannel) ReadCalls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.readCalls
}

// WrittenData returns a copy of everything written to the channel.
func (t *TestableChannel) WrittenData() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return bytes.Clone(t.WriteBuffer.Bytes())
}

// MockOpener implements Opener for testing.
type MockOpener struct {
	mu sync.Mutex

	// Channel is returned from Open.
	Channel Channel
	// Error is returned by Open if set.
	Error error

	OpenCalls []MockOpenCall
}

// MockOpenCall records details of an Open call.
type MockOpenCall struct {
	Device string
	Opts   PortOptions
}

// NewMockOpener creates a MockOpener returning ch.
func NewMockOpener(ch Channel) *MockOpener {
	return &MockOpener{Channel: ch}
}

// Open returns the configured channel or error.
func (m *MockOpener) Open(device string, opts PortOptions) (Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.OpenCalls = append(m.OpenCalls, MockOpenCall{Device: device, Opts: opts})
	if m.Error != nil {
		return nil, m.Error
	}
	return m.Channel, nil
}

// Calls returns the number of Open calls.
func (m *MockOpener) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.OpenCalls)
}
