package monitor

import (
	"fmt"
	"io"
	"math"

	"github.com/banshee-data/echo.report/internal/echo/l6targets"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// maxScatterPoints bounds the scatter payload; larger sets are strided.
const maxScatterPoints = 20000

var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// HistogramChart builds an echarts bar chart of the TS distribution.
func HistogramChart(h Histogram, title, subtitle string) *charts.Bar {
	data := make([]opts.BarData, len(h.Counts))
	for i, c := range h.Counts {
		data[i] = opts.BarData{Value: c}
	}
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "600px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "TS (dB)", NameLocation: "middle", NameGap: 30}),
		charts.WithYAxisOpts(opts.YAxis{Name: "targets"}),
	)
	bar.SetXAxis(h.Labels()).AddSeries("ts", data)
	return bar
}

// TargetsChart builds an echarts scatter of targets, ping against range,
// with a visual map over TS.
func TargetsChart(targets []l6targets.Target, title string) (*charts.Scatter, error) {
	stride := 1
	if len(targets) > maxScatterPoints {
		stride = int(math.Ceil(float64(len(targets)) / maxScatterPoints))
	}
	data := make([]opts.ScatterData, 0, len(targets)/stride+1)
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := 0; i < len(targets); i += stride {
		t := targets[i]
		if math.IsNaN(t.Range) || math.IsNaN(t.TSComp) {
			continue
		}
		lo, hi = math.Min(lo, t.TSComp), math.Max(hi, t.TSComp)
		data = append(data, opts.ScatterData{Value: []interface{}{t.Ping, t.Range, t.TSComp}})
	}
	if len(data) == 0 {
		return nil, ErrNoTargets
	}
	if hi == lo {
		hi = lo + 1
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "700px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("points=%d stride=%d", len(data), stride)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "ping", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "range (m)"}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(lo),
			Max:        float32(hi),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	scatter.AddSeries("targets", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))
	return scatter, nil
}

// RenderPage renders charts onto a single HTML page.
func RenderPage(w io.Writer, cs ...components.Charter) error {
	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)
	page.AddCharts(cs...)
	return page.Render(w)
}
