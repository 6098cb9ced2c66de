package scheduler

import "time"

// Sink receives the accumulated series. Both methods are only ever called
// from the scheduler loop goroutine. The slice passed to Update is shared
// with the scheduler and must not be modified.
type Sink interface {
	Update(series []Sample)
	Clear()
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) Update([]Sample) {}
func (NopSink) Clear()          {}

// Undecoded is a payload that arrived but did not decode to a value, such as
// a text reply to an interactive command.
type Undecoded struct {
	Raw string
	Err error
	At  time.Time
}

// UndecodedSink is implemented by sinks that also show or record payloads
// which failed to decode. Undecoded is called at most once per tick, on the
// loop goroutine, after Update.
type UndecodedSink interface {
	Undecoded(payloads []Undecoded)
}
