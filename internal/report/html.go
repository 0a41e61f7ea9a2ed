package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/ayusman/palmchef/internal/gesture"
)

// RenderHTML writes a standalone echarts page with one confidence line per
// gesture and a marker at every fire.
func RenderHTML(w io.Writer, title string, samples []Sample) error {
	if len(samples) == 0 {
		return ErrNoSamples
	}
	s := split(samples)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "1100px", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("samples=%d fires=%d", len(samples), len(s.fires))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "t (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Min: 0, Max: 1, Name: "confidence"}),
	)

	for _, l := range gesture.Labels {
		pts := s.live[l]
		if len(pts) == 0 {
			continue
		}
		data := make([]opts.LineData, 0, len(pts))
		for _, p := range pts {
			data = append(data, opts.LineData{Value: []interface{}{p[0], p[1]}})
		}
		line.AddSeries(string(l), data, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	}

	if len(s.fires) > 0 {
		data := make([]opts.ScatterData, 0, len(s.fires))
		for i, p := range s.fires {
			data = append(data, opts.ScatterData{Name: s.names[i], Value: []interface{}{p[0], p[1]}})
		}
		fires := charts.NewScatter()
		fires.AddSeries("fired", data,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 14}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: "#d62728"}),
		)
		line.Overlap(fires)
	}

	return line.Render(w)
}
