// Package handoff carries decoded link events from the reader goroutine to
// the consumer loop.
package handoff

import (
	"fmt"
	"time"
)

// Kind tags an Event.
type Kind int

const (
	// EventData carries one decoded payload.
	EventData Kind = iota
	// EventProtocolError carries a payload that failed to decode.
	EventProtocolError
	// EventLinkClosed is the terminal event of a link generation.
	EventLinkClosed
)

func (k Kind) String() string {
	switch k {
	case EventData:
		return "data"
	case EventProtocolError:
		return "protocol-error"
	case EventLinkClosed:
		return "link-closed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is one item on the queue. Raw and Value are set for EventData, Raw
// and Err for EventProtocolError; Err is optional for EventLinkClosed.
type Event struct {
	Kind     Kind
	Raw      []byte
	Value    float64
	Err      error
	Received time.Time
}

// Data builds an EventData event.
func Data(raw []byte, value float64) Event {
	return Event{Kind: EventData, Raw: raw, Value: value, Received: time.Now()}
}

// ProtocolError builds an EventProtocolError event.
func ProtocolError(raw []byte, err error) Event {
	return Event{Kind: EventProtocolError, Raw: raw, Err: err, Received: time.Now()}
}

// LinkClosed builds the terminal EventLinkClosed event.
func LinkClosed(cause error) Event {
	return Event{Kind: EventLinkClosed, Err: cause, Received: time.Now()}
}

func (e Event) String() string {
	switch e.Kind {
	case EventData:
		return fmt.Sprintf("data %q = %g", e.Raw, e.Value)
	case EventProtocolError:
		return fmt.Sprintf("protocol error %q: %v", e.Raw, e.Err)
	case EventLinkClosed:
		if e.Err != nil {
			return fmt.Sprintf("link closed: %v", e.Err)
		}
		return "link closed"
	default:
		return e.Kind.String()
	}
}
