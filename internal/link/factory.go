package link

import (
	"fmt"

	"go.bug.st/serial"
)

// Opener opens a Channel for a device. It is the seam the lifecycle
// controller and the capture command use so tests can inject MockOpener.
type Opener interface {
	Open(device string, opts PortOptions) (Channel, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(device string, opts PortOptions) (Channel, error)

func (f OpenerFunc) Open(device string, opts PortOptions) (Channel, error) {
	return f(device, opts)
}

// SerialOpener opens real ports through go.bug.st/serial.
var SerialOpener Opener = OpenerFunc(Open)

// Open opens the serial port at device. Every failure wraps ErrLinkUnavailable
// so callers can surface it without retrying.
func Open(device string, opts PortOptions) (Channel, error) {
	if device == "" {
		return nil, fmt.Errorf("%w: no device given", ErrLinkUnavailable)
	}
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLinkUnavailable, device, err)
	}

	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLinkUnavailable, device, err)
	}

	return NewChannel(device, port), nil
}
