package acquire

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Framer splits the raw byte stream into payloads. Feed may be called with
// any slicing of the stream; payloads are returned in stream order.
type Framer interface {
	Feed(p []byte) [][]byte
	// Pending returns bytes held back waiting for the rest of a payload.
	Pending() int
}

// maxLine bounds how much an unterminated line may grow before it is handed
// on as a payload of its own.
const maxLine = 4096

// LineFramer emits newline-terminated lines with surrounding whitespace
// (including the "\r" of "\r\n") trimmed. Empty lines are skipped.
type LineFramer struct {
	buf []byte
}

func (f *LineFramer) Feed(p []byte) [][]byte {
	f.buf = append(f.buf, p...)
	var out [][]byte
	for {
		i := bytes.IndexByte(f.buf, '\n')
		if i < 0 {
			break
		}
		if line := bytes.TrimSpace(f.buf[:i]); len(line) > 0 {
			out = append(out, bytes.Clone(line))
		}
		f.buf = f.buf[i+1:]
	}
	if len(f.buf) > maxLine {
		if line := bytes.TrimSpace(f.buf); len(line) > 0 {
			out = append(out, bytes.Clone(line))
		}
		f.buf = nil
	}
	if len(f.buf) == 0 {
		f.buf = nil
	}
	return out
}

func (f *LineFramer) Pending() int { return len(f.buf) }

// ChunkFramer treats each read as one payload, trimmed. This matches MCUs
// that answer a poll with a bare number and no terminator.
type ChunkFramer struct{}

func (ChunkFramer) Feed(p []byte) [][]byte {
	chunk := bytes.TrimSpace(p)
	if len(chunk) == 0 {
		return nil
	}
	return [][]byte{bytes.Clone(chunk)}
}

func (ChunkFramer) Pending() int { return 0 }

// FixedFramer emits payloads of exactly Size bytes.
type FixedFramer struct {
	Size int
	buf  []byte
}

func (f *FixedFramer) Feed(p []byte) [][]byte {
	f.buf = append(f.buf, p...)
	var out [][]byte
	for len(f.buf) >= f.Size {
		out = append(out, bytes.Clone(f.buf[:f.Size]))
		f.buf = f.buf[f.Size:]
	}
	return out
}

func (f *FixedFramer) Pending() int { return len(f.buf) }

// Framing names accepted by NewFramerFunc.
const (
	FramingLine  = "line"
	FramingChunk = "chunk"
	FramingFixed = "fixed"
)

// NewFramerFunc parses a framing name ("line", "chunk" or "fixed:N") into a
// constructor. Each Reader run gets a fresh Framer.
func NewFramerFunc(name string) (func() Framer, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch {
	case name == "" || name == FramingLine:
		return func() Framer { return &LineFramer{} }, nil
	case name == FramingChunk:
		return func() Framer { return ChunkFramer{} }, nil
	case strings.HasPrefix(name, FramingFixed+":"):
		n, err := strconv.Atoi(strings.TrimPrefix(name, FramingFixed+":"))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid fixed framing %q: size must be a positive integer", name)
		}
		return func() Framer { return &FixedFramer{Size: n} }, nil
	default:
		return nil, fmt.Errorf("unknown framing %q: expected line, chunk or fixed:N", name)
	}
}
