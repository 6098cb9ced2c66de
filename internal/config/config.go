// Package config loads the TOML configuration. An embedded default.toml
// provides every value; a user file only needs the keys it changes.
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/banshee-data/mcuscope/internal/acquire"
	"github.com/banshee-data/mcuscope/internal/command"
	"github.com/banshee-data/mcuscope/internal/link"
)

//go:embed default.toml
var defaultConfigData []byte

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Config is the root of the TOML document.
type Config struct {
	Serial  SerialConfig  `toml:"serial"`
	Reader  ReaderConfig  `toml:"reader"`
	Monitor MonitorConfig `toml:"monitor"`
	Capture CaptureConfig `toml:"capture"`
	Console ConsoleConfig `toml:"console"`
}

// SerialConfig is the [serial] table.
type SerialConfig struct {
	Device      string `toml:"device"`
	PortFilter  string `toml:"port_filter"`
	BaudRate    int    `toml:"baud_rate"`
	DataBits    int    `toml:"data_bits"`
	StopBits    int    `toml:"stop_bits"`
	Parity      string `toml:"parity"`
	ReadTimeout string `toml:"read_timeout"`
	SettleDelay string `toml:"settle_delay"`
}

// ReaderConfig is the [reader] table.
type ReaderConfig struct {
	Framing      string  `toml:"framing"`
	MaxRead      int     `toml:"max_read"`
	IdleInterval string  `toml:"idle_interval"`
	Unit         string  `toml:"unit"`
	DisplayUnit  string  `toml:"display_unit"`
	Absolute     bool    `toml:"absolute"`
	Gain         float64 `toml:"gain"`
}

// MonitorConfig is the [monitor] table.
type MonitorConfig struct {
	Interval     string `toml:"interval"`
	Poll         string `toml:"poll"`
	StopTimeout  string `toml:"stop_timeout"`
	Log          bool   `toml:"log"`
	LogDir       string `toml:"log_dir"`
	PlotFile     string `toml:"plot_file"`
	PlotInterval string `toml:"plot_interval"`
	DebugListen  string `toml:"debug_listen"`
}

// CaptureConfig is the [capture] table.
type CaptureConfig struct {
	Command string `toml:"command"`
	Window  string `toml:"window"`
	LogDir  string `toml:"log_dir"`
}

// ConsoleConfig is the [console] table.
type ConsoleConfig struct {
	LineEnding string `toml:"line_ending"`
	Prompt     string `toml:"prompt"`
	ExitWord   string `toml:"exit_word"`
}

// Default returns the embedded defaults.
func Default() *Config {
	cfg := &Config{}
	if _, err := toml.NewDecoder(bytes.NewReader(defaultConfigData)).Decode(cfg); err != nil {
		panic(fmt.Sprintf("embedded default.toml: %v", err))
	}
	return cfg
}

// DefaultTOML returns the embedded default file, for `config` output.
func DefaultTOML() []byte {
	return bytes.Clone(defaultConfigData)
}

// Load layers the TOML file at path over the defaults. An empty path returns
// the defaults. The file must have a .toml extension, be under 1MB and only
// use known keys.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".toml" {
		return nil, fmt.Errorf("config file must have .toml extension, got %q", ext)
	}
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	md, err := toml.DecodeFile(cleanPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TOML config at %s: %w", cleanPath, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys in %s: %s", cleanPath, strings.Join(keys, ", "))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Write encodes the configuration as TOML.
func (c *Config) Write(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// Validate checks that every value can be turned into its runtime form.
func (c *Config) Validate() error {
	if _, err := c.PortOptions().Normalise(); err != nil {
		return fmt.Errorf("serial: %w", err)
	}
	for name, d := range map[string]string{
		"serial.read_timeout":   c.Serial.ReadTimeout,
		"serial.settle_delay":   c.Serial.SettleDelay,
		"reader.idle_interval":  c.Reader.IdleInterval,
		"monitor.interval":      c.Monitor.Interval,
		"monitor.stop_timeout":  c.Monitor.StopTimeout,
		"monitor.plot_interval": c.Monitor.PlotInterval,
		"capture.window":        c.Capture.Window,
	} {
		if d == "" {
			continue
		}
		v, err := time.ParseDuration(d)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, d, err)
		}
		if v < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", name, d)
		}
	}
	if c.GetInterval() <= 0 {
		return fmt.Errorf("monitor.interval must be positive, got %s", c.Monitor.Interval)
	}
	if c.Reader.MaxRead < 0 {
		return fmt.Errorf("reader.max_read must be non-negative, got %d", c.Reader.MaxRead)
	}
	if _, err := acquire.NewFramerFunc(c.Reader.Framing); err != nil {
		return fmt.Errorf("reader: %w", err)
	}
	if err := c.Decoder().Validate(); err != nil {
		return fmt.Errorf("reader: %w", err)
	}
	if c.Monitor.Poll != "" {
		if _, err := command.ParseCommand(c.Monitor.Poll, c.Console.LineEnding); err != nil {
			return fmt.Errorf("monitor.poll: %w", err)
		}
	}
	if _, err := c.CaptureCommand(); err != nil {
		return fmt.Errorf("capture.command: %w", err)
	}
	return nil
}

func durationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// PortOptions returns the serial line settings.
func (c *Config) PortOptions() link.PortOptions {
	return link.PortOptions{
		BaudRate: c.Serial.BaudRate,
		DataBits: c.Serial.DataBits,
		StopBits: c.Serial.StopBits,
		Parity:   c.Serial.Parity,
	}
}

// GetReadTimeout returns serial.read_timeout or the reader default.
func (c *Config) GetReadTimeout() time.Duration {
	return durationOr(c.Serial.ReadTimeout, acquire.DefaultReadTimeout)
}

// GetSettleDelay returns serial.settle_delay (default 2s).
func (c *Config) GetSettleDelay() time.Duration {
	return durationOr(c.Serial.SettleDelay, 2*time.Second)
}

// GetIdleInterval returns reader.idle_interval or the reader default.
func (c *Config) GetIdleInterval() time.Duration {
	return durationOr(c.Reader.IdleInterval, acquire.DefaultIdleInterval)
}

// GetInterval returns monitor.interval (default 100ms).
func (c *Config) GetInterval() time.Duration {
	return durationOr(c.Monitor.Interval, 100*time.Millisecond)
}

// GetStopTimeout returns monitor.stop_timeout (default 1s).
func (c *Config) GetStopTimeout() time.Duration {
	return durationOr(c.Monitor.StopTimeout, time.Second)
}

// GetPlotInterval returns monitor.plot_interval (default 1s).
func (c *Config) GetPlotInterval() time.Duration {
	return durationOr(c.Monitor.PlotInterval, time.Second)
}

// GetWindow returns capture.window (default 2s).
func (c *Config) GetWindow() time.Duration {
	return durationOr(c.Capture.Window, 2*time.Second)
}

// Decoder returns the payload decoder described by [reader].
func (c *Config) Decoder() acquire.ScaleDecoder {
	return acquire.ScaleDecoder{
		From:     c.Reader.Unit,
		To:       c.Reader.DisplayUnit,
		Absolute: c.Reader.Absolute,
		Gain:     c.Reader.Gain,
	}
}

// ReaderConfig returns the acquire.Config described by [serial] and [reader].
func (c *Config) ReaderConfig() (acquire.Config, error) {
	framer, err := acquire.NewFramerFunc(c.Reader.Framing)
	if err != nil {
		return acquire.Config{}, err
	}
	return acquire.Config{
		MaxRead:      c.Reader.MaxRead,
		ReadTimeout:  c.GetReadTimeout(),
		IdleInterval: c.GetIdleInterval(),
		NewFramer:    framer,
		Decoder:      c.Decoder(),
	}, nil
}

// PollCommand returns the monitor poll command; zero when polling is off.
func (c *Config) PollCommand() command.Command {
	if c.Monitor.Poll == "" {
		return command.Command{}
	}
	cmd, err := command.ParseCommand(c.Monitor.Poll, c.Console.LineEnding)
	if err != nil {
		return command.Command{}
	}
	return cmd
}

// CaptureCommand returns the one-shot capture command.
func (c *Config) CaptureCommand() (command.Command, error) {
	return command.ParseCommand(c.Capture.Command, c.Console.LineEnding)
}
