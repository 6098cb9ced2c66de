package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/mcuscope/internal/link"
	"github.com/banshee-data/mcuscope/internal/monitoring"
)

// ErrLinkLost is returned when the link disconnects mid-operation.
var ErrLinkLost = errors.New("link lost")

// Sender is implemented by Writer.
type Sender interface {
	Send(cmd Command) error
}

// Writer serialises command writes onto a channel. The mutex orders writers
// only; reads on the same channel are unaffected.
type Writer struct {
	ch link.Channel
	mu sync.Mutex
}

// NewWriter returns a Writer for ch.
func NewWriter(ch link.Channel) *Writer {
	return &Writer{ch: ch}
}

// Send writes cmd in full.
func (w *Writer) Send(cmd Command) error {
	if cmd.IsZero() {
		return fmt.Errorf("empty command")
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.ch.Write(cmd.Bytes)
	if err != nil {
		if link.IsDisconnected(err) {
			return fmt.Errorf("%w: write %s: %w", ErrLinkLost, cmd, err)
		}
		return fmt.Errorf("write %s: %w", cmd, err)
	}
	if n != len(cmd.Bytes) {
		return link.ErrWriteFailed
	}
	monitoring.Tracef("sent %s", cmd)
	return nil
}

// LineFunc receives each response line as it is collected.
type LineFunc func(line string)

const (
	readChunk    = 256
	errorBackoff = 10 * time.Millisecond
	// maxReadWait bounds a single read so cancellation is noticed promptly.
	maxReadWait = 100 * time.Millisecond
)

// SendAndCollect writes cmd, then collects newline-delimited response lines
// until window has elapsed. Lines are trimmed, empty lines dropped and each
// is appended to the result followed by "\n". A trailing unterminated line is
// kept when the window closes.
//
// It returns early with the lines so far and an error wrapping ErrLinkLost
// when the link disconnects, or ctx.Err() when ctx is cancelled. It must not
// run while a Reader owns ch.
func SendAndCollect(ctx context.Context, ch link.Channel, cmd Command, window time.Duration, onLine LineFunc) (string, error) {
	if err := NewWriter(ch).Send(cmd); err != nil {
		return "", err
	}

	var (
		acc     strings.Builder
		partial []byte
	)
	emit := func(raw []byte) {
		line := strings.TrimSpace(string(raw))
		if line == "" {
			return
		}
		acc.WriteString(line)
		acc.WriteByte('\n')
		if onLine != nil {
			onLine(line)
		}
	}

	deadline := time.Now().Add(window)
	for {
		if err := ctx.Err(); err != nil {
			emit(partial)
			return acc.String(), err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}

		data, err := ch.Read(readChunk, min(remaining, maxReadWait))
		if err != nil {
			switch link.KindOf(err) {
			case link.KindTimeout:
				continue
			case link.KindDisconnected:
				emit(partial)
				return acc.String(), fmt.Errorf("%w: %w", ErrLinkLost, err)
			default:
				monitoring.Diagf("collect: read error: %v", err)
				select {
				case <-ctx.Done():
				case <-time.After(min(errorBackoff, remaining)):
				}
				continue
			}
		}

		partial = append(partial, data...)
		for {
			i := bytes.IndexByte(partial, '\n')
			if i < 0 {
				break
			}
			emit(partial[:i])
			partial = partial[i+1:]
		}
	}

	emit(partial)
	return acc.String(), nil
}
