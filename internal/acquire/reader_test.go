package acquire

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/mcuscope/internal/handoff"
	"github.com/banshee-data/mcuscope/internal/link"
)

func runReader(t *testing.T, r *Reader, ch link.Channel, q *handoff.Queue) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, ch, q) }()
	t.Cleanup(cancel)
	return cancel, done
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not exit")
		return nil
	}
}

func kinds(evs []handoff.Event) []handoff.Kind {
	var out []handoff.Kind
	for _, ev := range evs {
		out = append(out, ev.Kind)
	}
	return out
}

func TestReader_ScriptedSequence(t *testing.T) {
	ch := link.NewTestableChannel(
		link.ScriptedRead{Data: []byte("1\n2\n")},
		link.ScriptedRead{After: 20 * time.Millisecond, Data: []byte("oops\n3\n")},
	)
	q := handoff.NewQueue()
	r := NewReader(Config{Decoder: ScaleDecoder{}, ReadTimeout: 5 * time.Millisecond, IdleInterval: time.Millisecond})
	_, done := runReader(t, r, ch, q)

	require.Eventually(t, func() bool { return r.Stats().Payloads == 4 }, time.Second, time.Millisecond)
	ch.Disconnect()

	err := waitDone(t, done)
	assert.True(t, link.IsDisconnected(err), "Run() = %v, want disconnect", err)

	evs := q.DrainAll()
	assert.Equal(t, []handoff.Kind{
		handoff.EventData, handoff.EventData, handoff.EventProtocolError, handoff.EventData, handoff.EventLinkClosed,
	}, kinds(evs))
	assert.Equal(t, 1.0, evs[0].Value)
	assert.Equal(t, 3.0, evs[3].Value)
	assert.ErrorIs(t, evs[2].Err, ErrDecode)

	st := r.Stats()
	assert.Equal(t, uint64(1), st.DecodeErrors)
	assert.Equal(t, uint64(len("1\n2\noops\n3\n")), st.Bytes)
	assert.Equal(t, 0, ch.CloseCalls(), "reader must not close the channel")
}

func TestReader_CancelStops(t *testing.T) {
	ch := link.NewTestableChannel()
	q := handoff.NewQueue()
	r := NewReader(Config{ReadTimeout: 5 * time.Millisecond})
	cancel, done := runReader(t, r, ch, q)

	time.Sleep(20 * time.Millisecond)
	cancel()

	assert.NoError(t, waitDone(t, done))
	assert.Zero(t, q.Len(), "cancellation must not push LinkClosed")
	assert.Greater(t, ch.ReadCalls(), 1, "reader should keep polling through timeouts")
}

func TestReader_OtherErrorsAreNotFatal(t *testing.T) {
	ch := link.NewTestableChannel(link.ScriptedRead{After: 10 * time.Millisecond, Data: []byte("5\n")})
	ch.ReadError = errors.New("framing error")
	q := handoff.NewQueue()
	r := NewReader(Config{Decoder: ScaleDecoder{}, ReadTimeout: 5 * time.Millisecond, IdleInterval: time.Millisecond})
	cancel, done := runReader(t, r, ch, q)

	require.Eventually(t, func() bool { return q.Len() == 1 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, waitDone(t, done))

	assert.Equal(t, uint64(1), r.Stats().TransportErrors)
	evs := q.DrainAll()
	require.Len(t, evs, 1)
	assert.Equal(t, 5.0, evs[0].Value)
}

func TestReader_CloseDuringShutdownIsQuiet(t *testing.T) {
	ch := link.NewTestableChannel()
	q := handoff.NewQueue()
	r := NewReader(Config{ReadTimeout: time.Second})
	cancel, done := runReader(t, r, ch, q)

	time.Sleep(10 * time.Millisecond)
	cancel()
	require.NoError(t, ch.Close())

	assert.NoError(t, waitDone(t, done))
	assert.Zero(t, q.Len())
}

func TestNewReader_Defaults(t *testing.T) {
	r := NewReader(Config{})
	assert.Equal(t, DefaultMaxRead, r.cfg.MaxRead)
	assert.Equal(t, DefaultReadTimeout, r.cfg.ReadTimeout)
	assert.Equal(t, DefaultIdleInterval, r.cfg.IdleInterval)
	assert.NotNil(t, r.cfg.Decoder)
	assert.NotNil(t, r.cfg.Clock)
}
