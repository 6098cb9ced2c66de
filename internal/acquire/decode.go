package acquire

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/banshee-data/mcuscope/internal/units"
)

// ErrDecode is wrapped by every payload decode failure.
var ErrDecode = errors.New("payload decode failed")

// Decoder turns one framed payload into a telemetry value.
type Decoder interface {
	Decode(payload []byte) (float64, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(payload []byte) (float64, error)

func (f DecoderFunc) Decode(payload []byte) (float64, error) { return f(payload) }

// ScaleDecoder parses a numeric payload reported in From units, converts it to
// To units, optionally takes the absolute value and multiplies by Gain. A zero
// Gain means 1.
type ScaleDecoder struct {
	From     string
	To       string
	Absolute bool
	Gain     float64
}

// DefaultDecoder reads amps and reports the magnitude in mA times a x100
// shunt gain.
func DefaultDecoder() ScaleDecoder {
	return ScaleDecoder{From: units.A, To: units.MA, Absolute: true, Gain: 100}
}

// Validate checks the units and gain.
func (d ScaleDecoder) Validate() error {
	if _, err := units.Convert(0, d.from(), d.to()); err != nil {
		return err
	}
	if d.Gain < 0 || math.IsNaN(d.Gain) || math.IsInf(d.Gain, 0) {
		return fmt.Errorf("invalid gain %v", d.Gain)
	}
	return nil
}

func (d ScaleDecoder) from() string {
	if d.From == "" {
		return units.A
	}
	return d.From
}

func (d ScaleDecoder) to() string {
	if d.To == "" {
		return d.from()
	}
	return d.To
}

func (d ScaleDecoder) Decode(payload []byte) (float64, error) {
	text := string(bytes.TrimSpace(payload))
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrDecode, text)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q is not finite", ErrDecode, text)
	}
	v, err = units.Convert(v, d.from(), d.to())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if d.Absolute {
		v = math.Abs(v)
	}
	gain := d.Gain
	if gain == 0 {
		gain = 1
	}
	return v * gain, nil
}

// Unit returns the unit decoded values are reported in.
func (d ScaleDecoder) Unit() string {
	u, _ := units.Canonical(d.to())
	return u
}
