package sink

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/banshee-data/mcuscope/internal/scheduler"
)

// subscriberBuffer is the per-subscriber backlog; slower subscribers miss
// events rather than stall the scheduler.
const subscriberBuffer = 64

// ClearEvent is published to subscribers when the series is cleared.
const ClearEvent = `{"clear":true}`

// View keeps the latest series for readers on other goroutines (debug web)
// and publishes every new sample to subscribers as JSON.
type View struct {
	mu        sync.Mutex
	series    []scheduler.Sample
	published int
	subs      map[string]chan string
}

// NewView returns an empty View.
func NewView() *View {
	return &View{subs: make(map[string]chan string)}
}

func (v *View) Update(series []scheduler.Sample) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.series = series
	if v.published > len(series) {
		v.published = 0
	}
	for _, s := range series[v.published:] {
		b, err := json.Marshal(s)
		if err != nil {
			continue
		}
		v.publish(string(b))
	}
	v.published = len(series)
}

func (v *View) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.series = nil
	v.published = 0
	v.publish(ClearEvent)
}

func (v *View) publish(msg string) {
	for _, ch := range v.subs {
		select {
		case ch <- msg:
		default:
			// subscriber is behind; drop rather than block the scheduler
		}
	}
}

// Snapshot returns the current series. The result must not be modified.
func (v *View) Snapshot() []scheduler.Sample {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.series
}

// Subscribe creates a channel receiving one JSON message per new sample. The
// id is used to Unsubscribe.
func (v *View) Subscribe() (string, <-chan string) {
	id := uuid.NewString()
	ch := make(chan string, subscriberBuffer)
	v.mu.Lock()
	defer v.mu.Unlock()
	v.subs[id] = ch
	return id, ch
}

// Unsubscribe removes and closes a subscriber channel.
func (v *View) Unsubscribe(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if ch, ok := v.subs[id]; ok {
		close(ch)
		delete(v.subs, id)
	}
}

// Close closes every subscriber channel.
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	for id, ch := range v.subs {
		close(ch)
		delete(v.subs, id)
	}
}
