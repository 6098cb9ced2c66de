package sink

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/mcuscope/internal/scheduler"
)

// RenderChart writes an interactive HTML line chart of series to w.
func RenderChart(w io.Writer, series []scheduler.Sample, title, unit string) error {
	xs := make([]int, len(series))
	ys := make([]opts.LineData, len(series))
	for i, s := range series {
		xs[i] = s.Index
		ys[i] = opts.LineData{Value: s.Value}
	}

	yName := "Value"
	if unit != "" {
		yName = fmt.Sprintf("Value (%s)", unit)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Theme: "dark", Width: "1000px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: Summarise(series).String()}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time (Points)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: yName, NameLocation: "middle", NameGap: 45}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
	)
	line.SetXAxis(xs).AddSeries("samples", ys, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	return line.Render(w)
}
