package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/mcuscope/internal/link"
	"github.com/banshee-data/mcuscope/internal/version"
)

func testApp(ports []link.PortInfo) *app {
	a := newApp()
	a.listPorts = func(filter string) ([]link.PortInfo, error) {
		if filter == "" {
			return append(append([]link.PortInfo(nil), ports...), link.PortInfo{Name: "/dev/ttyS0"}), nil
		}
		return ports, nil
	}
	a.isTTY = func() bool { return false }
	return a
}

func execute(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	root := a.rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

var cp210x = []link.PortInfo{
	{Name: "/dev/ttyUSB0", Product: "Silicon Labs CP210x"},
	{Name: "/dev/ttyUSB1", Product: "CP2102 USB to UART Bridge (CP210x)"},
}

func TestRootFlags(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"config", "verbose", "trace", "device", "baud"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), "missing --%s", name)
	}
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"monitor", "console", "capture", "ports", "config", "version"})
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, testApp(nil), "version", "--config", "missing.toml")
	require.NoError(t, err, "version must not load the config")
	assert.Equal(t, version.String()+"\n", out)
}

func TestPortsCommand(t *testing.T) {
	out, err := execute(t, testApp(cp210x), "ports")
	require.NoError(t, err)
	assert.Equal(t, "1 - [/dev/ttyUSB0] Silicon Labs CP210x\n2 - [/dev/ttyUSB1] CP2102 USB to UART Bridge (CP210x)\n", out)

	out, err = execute(t, testApp(cp210x), "ports", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "3 - /dev/ttyS0")

	out, err = execute(t, testApp(nil), "ports")
	require.NoError(t, err)
	assert.Contains(t, out, `No serial ports matching "CP210x"`)
}

func TestPortsCommand_ListError(t *testing.T) {
	a := testApp(nil)
	a.listPorts = func(string) ([]link.PortInfo, error) { return nil, errors.New("no permission") }
	_, err := execute(t, a, "ports")
	assert.ErrorContains(t, err, "no permission")
}

func TestConfigCommand_FlagsOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scope.toml")
	require.NoError(t, os.WriteFile(path, []byte("[monitor]\ninterval = \"250ms\"\n"), 0o644))

	out, err := execute(t, testApp(nil), "config", "--config", path, "--device", "COM6", "--baud", "9600")
	require.NoError(t, err)
	assert.Contains(t, out, `device = "COM6"`)
	assert.Contains(t, out, "baud_rate = 9600")
	assert.Contains(t, out, `interval = "250ms"`)

	out, err = execute(t, testApp(nil), "config", "--defaults")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "# mcuscope defaults"))
}

func TestConfig_InvalidBaud(t *testing.T) {
	_, err := execute(t, testApp(nil), "config", "--baud", "12345")
	assert.Error(t, err)
}

func TestConfig_BadFile(t *testing.T) {
	_, err := execute(t, testApp(nil), "ports", "--config", "settings.yaml")
	assert.ErrorContains(t, err, ".toml extension")
}

func TestResolveDevice(t *testing.T) {
	tests := []struct {
		name    string
		device  string
		ports   []link.PortInfo
		stdin   string
		want    string
		wantErr string
	}{
		{name: "flag wins", device: "COM6", ports: cp210x, want: "COM6"},
		{name: "single match", ports: cp210x[:1], want: "/dev/ttyUSB0"},
		{name: "no match", wantErr: "no serial port matching"},
		{name: "several without a terminal", ports: cp210x, wantErr: "use --device"},
		{name: "pick second", ports: cp210x, stdin: "x\n9\n2\n", want: "/dev/ttyUSB1"},
		{name: "no answer", ports: cp210x, stdin: "\n", wantErr: "no port selected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := testApp(tt.ports)
			a.device = tt.device
			if tt.stdin != "" {
				a.stdin = strings.NewReader(tt.stdin)
			}
			require.NoError(t, a.loadConfig())

			var out bytes.Buffer
			got, err := a.resolveDevice(&out)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPickPort_Prompts(t *testing.T) {
	var out bytes.Buffer
	got, err := pickPort(strings.NewReader("0\n1\n"), &out, cp210x)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", got)
	assert.Contains(t, out.String(), "Select a port (1-2): ")
	assert.Contains(t, out.String(), "Please enter a number between 1 and 2.")
}

func TestPickPort_LeavesRemainingInput(t *testing.T) {
	in := strings.NewReader("2\nval?\nexit\n")
	got, err := pickPort(in, &bytes.Buffer{}, cp210x)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB1", got)

	rest, err := io.ReadAll(in)
	require.NoError(t, err)
	assert.Equal(t, "val?\nexit\n", string(rest))
}

func TestReadLine(t *testing.T) {
	in := strings.NewReader("1\r\nlast")
	line, err := readLine(in)
	require.NoError(t, err)
	assert.Equal(t, "1\r", line)

	line, err = readLine(in)
	require.NoError(t, err)
	assert.Equal(t, "last", line)

	_, err = readLine(in)
	assert.ErrorIs(t, err, io.EOF)
}

func TestSessionOptions(t *testing.T) {
	a := testApp(nil)
	require.NoError(t, a.loadConfig())

	opts, err := a.sessionOptions("/dev/ttyUSB0", &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", opts.Device)
	assert.Equal(t, 115200, opts.Port.BaudRate)
	assert.Equal(t, "val?\r\n", string(opts.Poll.Bytes))
	assert.Equal(t, "mA", opts.Unit)
	assert.Equal(t, ".", opts.LogDir)
	assert.Equal(t, "mcu> ", opts.Console.Prompt)

	a.cfg.Monitor.Log = false
	opts, err = a.sessionOptions("/dev/ttyUSB0", &bytes.Buffer{})
	require.NoError(t, err)
	assert.Empty(t, opts.LogDir)
}
