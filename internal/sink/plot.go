package sink

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/mcuscope/internal/monitoring"
	"github.com/banshee-data/mcuscope/internal/scheduler"
	"github.com/banshee-data/mcuscope/internal/timeutil"
)

const (
	plotWidth  = 10 * vg.Inch
	plotHeight = 5 * vg.Inch
)

// DefaultPlotInterval limits how often PNGPlot rewrites its file.
const DefaultPlotInterval = time.Second

func newPlot(series []scheduler.Sample, title, unit string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Time (Points)"
	p.Y.Label.Text = "Value"
	if unit != "" {
		p.Y.Label.Text = fmt.Sprintf("Value (%s)", unit)
	}
	p.Add(plotter.NewGrid())

	if len(series) == 0 {
		return p, nil
	}
	pts := make(plotter.XYs, len(series))
	for i, s := range series {
		pts[i] = plotter.XY{X: float64(s.Index), Y: s.Value}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.Width = vg.Points(1)
	p.Add(line)
	return p, nil
}

// RenderPNG writes a line plot of series as PNG to w.
func RenderPNG(w io.Writer, series []scheduler.Sample, title, unit string) error {
	p, err := newPlot(series, title, unit)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(plotWidth, plotHeight, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// PNGPlot keeps a PNG file of the series up to date, rewriting it at most
// once per MinInterval. It is driven from the scheduler goroutine only.
type PNGPlot struct {
	Path        string
	Title       string
	Unit        string
	MinInterval time.Duration
	Clock       timeutil.Clock

	pending []scheduler.Sample
	dirty   bool
	last    time.Time
	renders int
}

// NewPNGPlot returns a PNGPlot with the default interval.
func NewPNGPlot(path, title, unit string) *PNGPlot {
	return &PNGPlot{Path: path, Title: title, Unit: unit, MinInterval: DefaultPlotInterval}
}

func (p *PNGPlot) clock() timeutil.Clock {
	if p.Clock == nil {
		return timeutil.RealClock{}
	}
	return p.Clock
}

func (p *PNGPlot) Update(series []scheduler.Sample) {
	p.pending = series
	p.dirty = true
	if p.renders == 0 || p.clock().Since(p.last) >= p.MinInterval {
		p.render()
	}
}

// Clear renders an empty plot immediately.
func (p *PNGPlot) Clear() {
	p.pending = nil
	p.dirty = true
	p.render()
}

// Flush writes any update held back by the interval.
func (p *PNGPlot) Flush() error {
	if !p.dirty {
		return nil
	}
	return p.render()
}

// Renders returns how many times the file has been written.
func (p *PNGPlot) Renders() int { return p.renders }

func (p *PNGPlot) render() error {
	if err := p.save(); err != nil {
		monitoring.Diagf("plot %s: %v", p.Path, err)
		return err
	}
	p.dirty = false
	p.last = p.clock().Now()
	p.renders++
	return nil
}

// save writes to a temporary file and renames it so viewers never see a
// partial image.
func (p *PNGPlot) save() error {
	dir := filepath.Dir(p.Path)
	tmp, err := os.CreateTemp(dir, ".plot-*.png")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := RenderPNG(tmp, p.pending, p.Title, p.Unit); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p.Path)
}
