package sink

import (
	"fmt"
	"io"

	"github.com/banshee-data/mcuscope/internal/scheduler"
)

// Printer writes each new sample to w as the raw payload followed by the
// decoded value, e.g.
//
//	0.0425
//	data2 = 4250.000 mA
type Printer struct {
	W     io.Writer
	Label string
	Unit  string
	// Raw controls whether the raw payload line is printed.
	Raw bool

	printed int
}

// NewPrinter returns a Printer with the console defaults.
func NewPrinter(w io.Writer, unit string) *Printer {
	return &Printer{W: w, Label: "data2", Unit: unit, Raw: true}
}

func (p *Printer) Update(series []scheduler.Sample) {
	if p.printed > len(series) {
		p.printed = 0
	}
	for _, s := range series[p.printed:] {
		if p.Raw {
			fmt.Fprintf(p.W, "%s\r\n", s.Raw)
		}
		fmt.Fprintf(p.W, "%s = %.3f %s\r\n", p.Label, s.Value, p.Unit)
	}
	p.printed = len(series)
}

func (p *Printer) Clear() {
	p.printed = 0
	fmt.Fprint(p.W, "-- cleared --\r\n")
}

// Undecoded prints text replies as they arrived.
func (p *Printer) Undecoded(payloads []scheduler.Undecoded) {
	for _, u := range payloads {
		fmt.Fprintf(p.W, "%s\r\n", u.Raw)
	}
}
