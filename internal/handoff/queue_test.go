package handoff

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func values(evs []Event) []float64 {
	var out []float64
	for _, ev := range evs {
		if ev.Kind == EventData {
			out = append(out, ev.Value)
		}
	}
	return out
}

func TestQueue_DrainAllFIFO(t *testing.T) {
	q := NewQueue()
	q.Push(Data([]byte("1"), 1))
	q.Push(Data([]byte("2"), 2))
	q.Push(Data([]byte("3"), 3))

	got := q.DrainAll()
	if diff := cmp.Diff([]float64{1, 2, 3}, values(got)); diff != "" {
		t.Errorf("DrainAll() mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, q.DrainAll(), "second drain with no pushes must be empty")
	assert.Equal(t, 0, q.Len())
}

func TestQueue_EmptyDrain(t *testing.T) {
	q := NewQueue()
	assert.Empty(t, q.DrainAll())
}

func TestQueue_ResetDiscardsEarlierPushes(t *testing.T) {
	q := NewQueue()
	q.Push(Data([]byte("1"), 1))
	q.Push(ProtocolError([]byte("x"), errors.New("bad")))

	gen := q.Reset()
	assert.Equal(t, uint64(1), gen)
	assert.Equal(t, uint64(1), q.Generation())

	q.Push(Data([]byte("9"), 9))
	got := q.DrainAll()
	if diff := cmp.Diff([]float64{9}, values(got)); diff != "" {
		t.Errorf("DrainAll() after Reset mismatch (-want +got):\n%s", diff)
	}
}

func TestQueue_ResetKeepsLinkClosed(t *testing.T) {
	q := NewQueue()
	q.Push(Data([]byte("1"), 1))
	q.Push(LinkClosed(errors.New("unplugged")))

	q.Reset()
	assert.Equal(t, 1, q.Len())

	got := q.DrainAll()
	if assert.Len(t, got, 1) {
		assert.Equal(t, EventLinkClosed, got[0].Kind)
		assert.EqualError(t, got[0].Err, "unplugged")
	}
}

func TestQueue_ConcurrentPushNoLoss(t *testing.T) {
	q := NewQueue()
	const n = 1000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			q.Push(Data(nil, float64(i)))
		}
	}()

	var got []float64
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		got = append(got, values(q.DrainAll())...)
		select {
		case <-done:
			got = append(got, values(q.DrainAll())...)
			assert.Len(t, got, n)
			for i, v := range got {
				if v != float64(i) {
					t.Fatalf("got[%d] = %v, order not preserved", i, v)
				}
			}
			return
		default:
		}
	}
}

func TestEvent_String(t *testing.T) {
	assert.Equal(t, `data "4.2" = 4.2`, Data([]byte("4.2"), 4.2).String())
	assert.Equal(t, "link closed", LinkClosed(nil).String())
	assert.Contains(t, LinkClosed(errors.New("gone")).String(), "gone")
	assert.Equal(t, "protocol-error", EventProtocolError.String())
}
