package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/mcuscope/internal/acquire"
	"github.com/banshee-data/mcuscope/internal/link"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, link.PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: "N"}, cfg.PortOptions())
	assert.Equal(t, "CP210x", cfg.Serial.PortFilter)
	assert.Equal(t, 2*time.Second, cfg.GetSettleDelay())
	assert.Equal(t, 100*time.Millisecond, cfg.GetInterval())
	assert.Equal(t, 10*time.Millisecond, cfg.GetIdleInterval())
	assert.Equal(t, 2*time.Second, cfg.GetWindow())
	assert.Equal(t, "\r\n", cfg.Console.LineEnding)
	assert.Equal(t, "val?\r\n", string(cfg.PollCommand().Bytes))

	capture, err := cfg.CaptureCommand()
	require.NoError(t, err)
	assert.Equal(t, "24 02 01 01", capture.Hex())

	assert.Equal(t, acquire.DefaultDecoder(), cfg.Decoder())
}

func TestLoad_Overlay(t *testing.T) {
	path := writeConfig(t, "mcu.toml", `
[serial]
device = "/dev/ttyUSB1"
baud_rate = 9600

[reader]
framing = "chunk"

[monitor]
poll = ""
interval = "250ms"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB1", cfg.Serial.Device)
	assert.Equal(t, 9600, cfg.Serial.BaudRate)
	assert.Equal(t, 8, cfg.Serial.DataBits, "unset keys keep defaults")
	assert.Equal(t, 250*time.Millisecond, cfg.GetInterval())
	assert.True(t, cfg.PollCommand().IsZero())

	rc, err := cfg.ReaderConfig()
	require.NoError(t, err)
	_, isChunk := rc.NewFramer().(acquire.ChunkFramer)
	assert.True(t, isChunk)
	assert.Equal(t, 50*time.Millisecond, rc.ReadTimeout)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
		want string
	}{
		{"extension", "mcu.json", `{}`, ".toml extension"},
		{"syntax", "bad.toml", `[serial`, "failed to parse"},
		{"unknown key", "typo.toml", "[serial]\nbaud = 9600\n", "unknown config keys"},
		{"baud", "baud.toml", "[serial]\nbaud_rate = 12345\n", "invalid baud rate"},
		{"duration", "dur.toml", "[monitor]\ninterval = \"soon\"\n", "monitor.interval"},
		{"zero interval", "zero.toml", "[monitor]\ninterval = \"0s\"\n", "must be positive"},
		{"framing", "framing.toml", "[reader]\nframing = \"slip\"\n", "unknown framing"},
		{"unit", "unit.toml", "[reader]\ndisplay_unit = \"mV\"\n", "cannot convert"},
		{"capture", "cap.toml", "[capture]\ncommand = \"hex:zz\"\n", "capture.command"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.file, tc.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestLoad_TooLarge(t *testing.T) {
	path := writeConfig(t, "big.toml", "# "+strings.Repeat("x", maxFileSize)+"\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestDefaultTOML(t *testing.T) {
	assert.Contains(t, string(DefaultTOML()), "[serial]")
}

func TestWrite_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Serial.Device = "/dev/ttyUSB3"
	cfg.Monitor.Interval = "250ms"

	var buf strings.Builder
	require.NoError(t, cfg.Write(&buf))
	assert.Contains(t, buf.String(), `device = "/dev/ttyUSB3"`)

	path := writeConfig(t, "written.toml", buf.String())
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}
