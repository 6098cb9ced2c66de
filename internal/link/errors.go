package link

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"go.bug.st/serial"
)

// Kind is the transport category of a link error. Callers decide whether to
// keep reading from the Kind alone.
type Kind int

const (
	// KindOther is any failure that is neither a timeout nor a lost device.
	KindOther Kind = iota
	// KindTimeout means no data arrived within the read timeout.
	KindTimeout
	// KindDisconnected means the device or handle is gone for good.
	KindDisconnected
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindDisconnected:
		return "disconnected"
	default:
		return "other"
	}
}

var (
	// ErrLinkUnavailable is returned when the channel cannot be opened.
	ErrLinkUnavailable = errors.New("serial link unavailable")
	// ErrTimeout is the cause of a benign read timeout.
	ErrTimeout = errors.New("serial read timeout")
	// ErrClosed is returned by operations on a closed channel.
	ErrClosed = errors.New("serial channel closed")
	// ErrWriteFailed is returned when the port accepted fewer bytes than sent.
	ErrWriteFailed = errors.New("failed to write to serial port")
	// ErrDeviceGone is the cause used when the device vanished under an open
	// handle.
	ErrDeviceGone = errors.New("serial device gone")
)

// Error is a transport error tagged with its Kind.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("serial %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("serial %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Timeout reports whether the error is a benign timeout.
func (e *Error) Timeout() bool { return e.Kind == KindTimeout }

// wrap tags err with the Kind derived from KindOf. A nil err stays nil.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var le *Error
	if errors.As(err, &le) {
		return err
	}
	return &Error{Op: op, Kind: KindOf(err), Err: err}
}

// KindOf classifies err using the error types supplied by the transport.
// Messages are never inspected.
func KindOf(err error) Kind {
	if err == nil {
		return KindOther
	}

	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}

	if errors.Is(err, ErrTimeout) || errors.Is(err, os.ErrDeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, ErrClosed) || errors.Is(err, ErrDeviceGone) ||
		errors.Is(err, os.ErrClosed) || errors.Is(err, io.EOF) {
		return KindDisconnected
	}

	if code, ok := portErrorCode(err); ok {
		switch code {
		case serial.PortClosed, serial.PortNotFound, serial.InvalidSerialPort:
			return KindDisconnected
		default:
			return KindOther
		}
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EIO, syscall.ENXIO, syscall.ENODEV, syscall.EBADF, syscall.ENOENT:
			return KindDisconnected
		case syscall.EAGAIN, syscall.EINTR:
			return KindTimeout
		}
	}

	return KindOther
}

// portErrorCode extracts the go.bug.st/serial error code from either the value
// or pointer form of serial.PortError.
func portErrorCode(err error) (serial.PortErrorCode, bool) {
	var pe serial.PortError
	if errors.As(err, &pe) {
		return pe.Code(), true
	}
	var ppe *serial.PortError
	if errors.As(err, &ppe) && ppe != nil {
		return ppe.Code(), true
	}
	return 0, false
}

// IsTimeout reports whether err is a benign read timeout.
func IsTimeout(err error) bool { return err != nil && KindOf(err) == KindTimeout }

// IsDisconnected reports whether err means the link is gone.
func IsDisconnected(err error) bool { return err != nil && KindOf(err) == KindDisconnected }
