package command

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in      string
		want    Command
		wantErr bool
	}{
		{"hex:24020101", Binary(0x24, 0x02, 0x01, 0x01), false},
		{"0x24 02 01 01", Binary(0x24, 0x02, 0x01, 0x01), false},
		{"HEX:0x24,0x02", Binary(0x24, 0x02), false},
		{"val?", Command{Bytes: []byte("val?\r\n")}, false},
		{"  reset  ", Command{Bytes: []byte("reset\r\n")}, false},
		{"", Command{}, true},
		{"hex:", Command{}, true},
		{"hex:2g", Command{}, true},
		{"0x123", Command{}, true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseCommand(tc.in, DefaultLineEnding)
			if tc.wantErr {
				if err == nil {
					t.Errorf("ParseCommand(%q) expected error, got %v", tc.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCommand(%q) error = %v", tc.in, err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("ParseCommand(%q) mismatch (-want +got):\n%s", tc.in, diff)
			}
		})
	}
}

func TestText_KeepsExistingTerminator(t *testing.T) {
	if got := string(Text("val?\r\n", "\r\n").Bytes); got != "val?\r\n" {
		t.Errorf("Text() = %q", got)
	}
	if got := string(Text("val?", "\n").Bytes); got != "val?\n" {
		t.Errorf("Text() = %q", got)
	}
	if got := string(Text("val?", "").Bytes); got != "val?" {
		t.Errorf("Text() = %q", got)
	}
}

func TestCommand_Hex(t *testing.T) {
	if got := Binary(0x24, 0x02, 0x01, 0x01).Hex(); got != "24 02 01 01" {
		t.Errorf("Hex() = %q", got)
	}
	if got := Binary(0x24, 0xab).String(); got != "24 ab" {
		t.Errorf("String() = %q", got)
	}
	if got := Text("val?", "\r\n").String(); got != `"val?\r\n"` {
		t.Errorf("String() = %q", got)
	}
	if !(Command{}).IsZero() {
		t.Error("zero command should report IsZero")
	}
}
