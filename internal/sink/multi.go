package sink

import "github.com/banshee-data/mcuscope/internal/scheduler"

// Multi fans every call out to each sink in order. Nil entries are skipped.
type Multi []scheduler.Sink

func (m Multi) Update(series []scheduler.Sample) {
	for _, s := range m {
		if s != nil {
			s.Update(series)
		}
	}
}

func (m Multi) Clear() {
	for _, s := range m {
		if s != nil {
			s.Clear()
		}
	}
}

// Undecoded forwards to the sinks that implement scheduler.UndecodedSink.
func (m Multi) Undecoded(payloads []scheduler.Undecoded) {
	for _, s := range m {
		if us, ok := s.(scheduler.UndecodedSink); ok {
			us.Undecoded(payloads)
		}
	}
}
