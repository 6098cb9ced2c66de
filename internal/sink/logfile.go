package sink

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/mcuscope/internal/monitoring"
	"github.com/banshee-data/mcuscope/internal/scheduler"
)

const (
	logRule       = "============================="
	logTimeFormat = "2006-01-02 15:04:05.000000"
)

// LogName returns the default log file name for a session started at t,
// e.g. mcu_log_20250101_120000.txt.
func LogName(t time.Time) string {
	return fmt.Sprintf("mcu_log_%s.txt", t.Format("20060102_150405"))
}

// LogHeader is written at the top of every log file.
type LogHeader struct {
	Port     string
	BaudRate int
	Started  time.Time
	// Session defaults to a fresh UUID.
	Session string
}

// LogFile is an append-only text log: a header, one line per payload and a
// footer written by Close.
type LogFile struct {
	mu      sync.Mutex
	path    string
	f       *os.File
	w       *bufio.Writer
	session string
	written int
	err     error
	closed  bool
}

// CreateLog creates dir/LogName(h.Started) and writes the header.
func CreateLog(dir string, h LogHeader) (*LogFile, error) {
	if h.Started.IsZero() {
		h.Started = time.Now()
	}
	if h.Session == "" {
		h.Session = uuid.NewString()
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	path := filepath.Join(dir, LogName(h.Started))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	l := &LogFile{path: path, f: f, w: bufio.NewWriter(f), session: h.Session}
	fmt.Fprintf(l.w, "Test time: %s\n", h.Started.Format(logTimeFormat))
	fmt.Fprintf(l.w, "Port: %s, Baud Rate: %d\n", h.Port, h.BaudRate)
	fmt.Fprintf(l.w, "Session: %s\n", h.Session)
	fmt.Fprintln(l.w, logRule)
	if err := l.w.Flush(); err != nil {
		f.Close()
		return nil, fmt.Errorf("write log header: %w", err)
	}
	return l, nil
}

// Path returns the log file path.
func (l *LogFile) Path() string { return l.path }

// Session returns the session id written in the header.
func (l *LogFile) Session() string { return l.session }

// WriteLine appends one response line.
func (l *LogFile) WriteLine(line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return os.ErrClosed
	}
	if _, err := fmt.Fprintln(l.w, line); err != nil {
		return err
	}
	return l.w.Flush()
}

// Update appends the samples not yet logged, one line per payload.
func (l *LogFile) Update(series []scheduler.Sample) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.written >= len(series) {
		return
	}
	for _, s := range series[l.written:] {
		fmt.Fprintf(l.w, "%d\t%s\t%g\n", s.Index, s.Raw, s.Value)
	}
	l.written = len(series)
	l.record(l.w.Flush())
}

// Undecoded appends payloads that did not decode. They carry no index or
// value, so both columns are "-".
func (l *LogFile) Undecoded(payloads []scheduler.Undecoded) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	for _, u := range payloads {
		fmt.Fprintf(l.w, "-\t%s\t-\n", u.Raw)
	}
	l.record(l.w.Flush())
}

// Clear notes the reset in the log; payload lines restart at index 0.
func (l *LogFile) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.written = 0
	fmt.Fprintf(l.w, "# cleared %s\n", time.Now().Format(logTimeFormat))
	l.record(l.w.Flush())
}

// record keeps the first write error and reports it once.
func (l *LogFile) record(err error) {
	if err != nil && l.err == nil {
		l.err = err
		monitoring.Opsf("log file %s: %v", l.path, err)
	}
}

// Err returns the first write error seen by Update or Clear.
func (l *LogFile) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Close writes the footer with the end time and sum, then closes the file.
// Later calls are no-ops.
func (l *LogFile) Close(sum Summary) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	fmt.Fprintln(l.w, logRule)
	fmt.Fprintf(l.w, "End time: %s\n", time.Now().Format(logTimeFormat))
	fmt.Fprintf(l.w, "Summary: %s\n", sum)
	if err := l.w.Flush(); err != nil {
		l.f.Close()
		return fmt.Errorf("write log footer: %w", err)
	}
	return l.f.Close()
}
