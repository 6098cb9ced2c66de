package link

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"
)

func TestTestableChannel_ImmediateData(t *testing.T) {
	ch := NewTestableChannel()
	ch.AddReadData([]byte("abcdef"))

	data, err := ch.Read(4, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(data))

	data, err = ch.Read(4, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "ef", string(data))
}

func TestTestableChannel_TimeoutWithoutData(t *testing.T) {
	ch := NewTestableChannel()
	start := time.Now()
	_, err := ch.Read(4, 20*time.Millisecond)
	assert.True(t, IsTimeout(err))
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestTestableChannel_ScriptedDelay(t *testing.T) {
	ch := NewTestableChannel(ScriptedRead{After: 50 * time.Millisecond, Data: []byte("42.5\n")})

	_, err := ch.Read(64, 10*time.Millisecond)
	assert.True(t, IsTimeout(err), "data is not due yet")

	data, err := ch.Read(64, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "42.5\n", string(data))
}

func TestTestableChannel_ScriptedError(t *testing.T) {
	ch := NewTestableChannel(ScriptedRead{Err: ErrDeviceGone})
	_, err := ch.Read(8, time.Millisecond)
	assert.ErrorIs(t, err, ErrDeviceGone)
}

func TestTestableChannel_Disconnect(t *testing.T) {
	ch := NewTestableChannel()
	ch.Disconnect()

	_, err := ch.Read(8, time.Millisecond)
	assert.True(t, IsDisconnected(err))
	_, err = ch.Write([]byte("x"))
	assert.True(t, IsDisconnected(err))
	assert.Equal(t, 0, ch.CloseCalls())
}

func TestTestableChannel_CloseWakesReader(t *testing.T) {
	ch := NewTestableChannel()
	done := make(chan error, 1)
	go func() {
		_, err := ch.Read(8, 5*time.Second)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, ch.Close())

	select {
	case err := <-done:
		assert.True(t, IsDisconnected(err))
	case <-time.After(time.Second):
		t.Fatal("Read did not return after Close")
	}
	assert.Equal(t, 1, ch.CloseCalls())
}

func TestTestableChannel_WriteRecordsAndFails(t *testing.T) {
	ch := NewTestableChannel()
	_, err := ch.Write([]byte("val?\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "val?\r\n", string(ch.WrittenData()))

	ch.WriteError = errors.New("boom")
	_, err = ch.Write([]byte("x"))
	assert.Error(t, err)
	_, err = ch.Write([]byte("y"))
	assert.NoError(t, err)
}

func TestMockOpener(t *testing.T) {
	ch := NewTestableChannel()
	op := NewMockOpener(ch)

	got, err := op.Open("/dev/ttyUSB0", PortOptions{BaudRate: 9600})
	require.NoError(t, err)
	assert.Same(t, ch, got)
	assert.Equal(t, 1, op.Calls())
	assert.Equal(t, "/dev/ttyUSB0", op.OpenCalls[0].Device)

	op.Error = ErrLinkUnavailable
	_, err = op.Open("/dev/ttyUSB1", PortOptions{})
	assert.ErrorIs(t, err, ErrLinkUnavailable)
}

func TestListPorts_Filter(t *testing.T) {
	orig := listDetailed
	defer func() { listDetailed = orig }()

	listDetailed = func() ([]*enumerator.PortDetails, error) {
		return []*enumerator.PortDetails{
			{Name: "/dev/ttyUSB1", Product: "CP2102 USB to UART Bridge (CP210x)", IsUSB: true},
			{Name: "/dev/ttyS0"},
			{Name: "/dev/ttyUSB0", Product: "Silicon Labs CP210x", IsUSB: true, VID: "10C4", PID: "EA60"},
			nil,
		}, nil
	}

	ports, err := ListPorts("cp210x")
	require.NoError(t, err)
	require.Len(t, ports, 2)
	assert.Equal(t, "/dev/ttyUSB0", ports[0].Name)
	assert.Equal(t, "10C4", ports[0].VID)
	assert.Equal(t, "[/dev/ttyUSB0] Silicon Labs CP210x", ports[0].String())

	all, err := ListPorts("")
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "/dev/ttyS0", all[0].String())
}

func TestListPorts_Error(t *testing.T) {
	orig := listDetailed
	defer func() { listDetailed = orig }()

	listDetailed = func() ([]*enumerator.PortDetails, error) {
		return nil, errors.New("no permission")
	}
	_, err := ListPorts("")
	assert.Error(t, err)
}
