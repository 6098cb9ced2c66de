package acquire

import (
	"errors"
	"math"
	"testing"
)

func TestScaleDecoder_Default(t *testing.T) {
	d := DefaultDecoder()
	tests := []struct {
		in   string
		want float64
	}{
		{"0.0425", 4250},
		{"-0.0425", 4250},
		{" 1e-3\r\n", 100},
		{"0", 0},
	}
	for _, tc := range tests {
		got, err := d.Decode([]byte(tc.in))
		if err != nil {
			t.Fatalf("Decode(%q) error = %v", tc.in, err)
		}
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("Decode(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
	if d.Unit() != "mA" {
		t.Errorf("Unit() = %q, want mA", d.Unit())
	}
}

func TestScaleDecoder_Passthrough(t *testing.T) {
	// Zero value keeps the number as sent.
	var d ScaleDecoder
	got, err := d.Decode([]byte("-42.5"))
	if err != nil || got != -42.5 {
		t.Errorf("Decode() = %v, %v; want -42.5", got, err)
	}
}

func TestScaleDecoder_Errors(t *testing.T) {
	d := DefaultDecoder()
	for _, in := range []string{"abc", "", "NaN", "+Inf", "12.5 mA"} {
		if _, err := d.Decode([]byte(in)); !errors.Is(err, ErrDecode) {
			t.Errorf("Decode(%q) error = %v, want ErrDecode", in, err)
		}
	}
}

func TestScaleDecoder_Validate(t *testing.T) {
	if err := DefaultDecoder().Validate(); err != nil {
		t.Errorf("default decoder invalid: %v", err)
	}
	if err := (ScaleDecoder{From: "A", To: "mV"}).Validate(); err == nil {
		t.Error("expected error for mismatched dimensions")
	}
	if err := (ScaleDecoder{Gain: -1}).Validate(); err == nil {
		t.Error("expected error for negative gain")
	}
}
