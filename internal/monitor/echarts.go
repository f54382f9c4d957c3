// Package monitor serves debugging views of a running session: an echarts
// heatmap of both insoles and a PNG trace of intensity against the scale.
package monitor

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/tape/internal/heatmap"
	"github.com/banshee-data/tape/internal/realtime"
	"github.com/banshee-data/tape/internal/session"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// footHeatmap builds one insole chart. Values are expected in [0,1]; the
// visual map saturates above that, as the app's renderer does.
func footHeatmap(title, subtitle string, f *realtime.GridFrame, mirror bool) *charts.HeatMap {
	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "360px", Height: "480px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        1,
			InRange:    &opts.VisualMapInRange{Color: heatmap.Ramp(5)},
		}),
	)

	var rows, cols int
	var data []opts.HeatMapData
	if f != nil {
		rows, cols = f.Rows, f.Cols
		for _, c := range heatmap.Cells(*f, mirror) {
			data = append(data, opts.HeatMapData{Value: [3]interface{}{c.X, c.Y, c.Value}})
		}
	}

	xs := make([]string, cols)
	for i := range xs {
		xs[i] = fmt.Sprintf("c%d", i)
	}
	ys := make([]string, rows)
	for i := range ys {
		ys[i] = fmt.Sprintf("r%d", i)
	}
	hm.SetGlobalOptions(
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: xs}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: ys}),
	)
	hm.SetXAxis(xs).AddSeries(title, data)
	return hm
}

// RenderHeatmap writes an HTML page with the normalized left (mirrored) and
// right frames of snap.
func RenderHeatmap(w io.Writer, snap session.Snapshot) error {
	sub := fmt.Sprintf("scale=%.0f locked=%t elapsed=%s", snap.Scale, snap.Locked, snap.Elapsed)

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)
	page.AddCharts(
		footHeatmap("Left", sub, snap.Left, true),
		footHeatmap("Right", sub, snap.Right, false),
	)
	return page.Render(w)
}
