package handoff

import "sync"

// Queue is an unbounded FIFO shared by exactly one producer (the reader) and
// one consumer (the scheduler loop). Push never waits on the consumer: the
// lock is held only for an append or a slice swap.
type Queue struct {
	mu         sync.Mutex
	items      []Event
	generation uint64
}

// NewQueue returns an empty queue at generation 0.
func NewQueue() *Queue {
	return &Queue{}
}

// Push appends ev.
func (q *Queue) Push(ev Event) {
	q.mu.Lock()
	q.items = append(q.items, ev)
	q.mu.Unlock()
}

// DrainAll removes and returns every queued event in push order. An empty
// queue yields a nil slice.
func (q *Queue) DrainAll() []Event {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()
	return items
}

// Reset discards every queued Data and ProtocolError event and starts a new
// generation. Those events are never returned by a later DrainAll. A queued
// EventLinkClosed survives the reset since it is the only report of link
// loss the consumer gets.
func (q *Queue) Reset() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	var kept []Event
	for _, ev := range q.items {
		if ev.Kind == EventLinkClosed {
			kept = append(kept, ev)
			break
		}
	}
	q.items = kept
	q.generation++
	return q.generation
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Generation returns the number of Resets so far.
func (q *Queue) Generation() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.generation
}
