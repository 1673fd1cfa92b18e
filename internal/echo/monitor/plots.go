package monitor

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"strings"

	"github.com/banshee-data/echo.report/internal/echo/l6targets"
	"github.com/banshee-data/echo.report/internal/security"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

const (
	plotWidth  = 10 * vg.Inch
	plotHeight = 5 * vg.Inch
)

// HistogramPlot builds a TS histogram plot.
func HistogramPlot(targets []l6targets.Target, binWidth float64, title string) (*plot.Plot, error) {
	h, err := TSHistogram(targets, binWidth)
	if err != nil {
		return nil, err
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "TS (dB re 1 m²)"
	p.Y.Label.Text = "targets"
	p.Add(plotter.NewGrid())

	bins := make([]plotter.HistogramBin, len(h.Counts))
	for i, c := range h.Counts {
		bins[i] = plotter.HistogramBin{Min: h.Edges[i], Max: h.Edges[i+1], Weight: c}
	}
	hist := &plotter.Histogram{
		Bins:      bins,
		Width:     h.Edges[1] - h.Edges[0],
		FillColor: color.RGBA{R: 49, G: 104, B: 142, A: 255},
		LineStyle: plotter.DefaultLineStyle,
	}
	p.Add(hist)
	return p, nil
}

// TargetsPlot builds a ping-versus-range scatter of targets coloured by TS,
// with range increasing downwards as on an echogram.
func TargetsPlot(targets []l6targets.Target, title string) (*plot.Plot, error) {
	var xys plotter.XYs
	var ts []float64
	for _, t := range targets {
		r := t.Range
		if math.IsNaN(r) || math.IsNaN(t.TSComp) {
			continue
		}
		xys = append(xys, plotter.XY{X: float64(t.Ping), Y: r})
		ts = append(ts, t.TSComp)
	}
	if len(xys) == 0 {
		return nil, ErrNoTargets
	}

	cmap := moreland.SmoothBlueRed()
	lo, hi := ts[0], ts[0]
	for _, v := range ts {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	if hi == lo {
		hi = lo + 1
	}
	cmap.SetMin(lo)
	cmap.SetMax(hi)

	sc, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, fmt.Errorf("scatter: %w", err)
	}
	sc.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		c, err := cmap.At(ts[i])
		if err != nil {
			c = color.Black
		}
		return draw.GlyphStyle{Color: c, Radius: vg.Points(2), Shape: draw.CircleGlyph{}}
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s (TS %.1f to %.1f dB)", title, lo, hi)
	p.X.Label.Text = "ping"
	p.Y.Label.Text = "range (m)"
	p.Y.Scale = plot.InvertedScale{Normalizer: p.Y.Scale}
	p.Add(plotter.NewGrid(), sc)
	return p, nil
}

// WritePNG renders p as PNG to w.
func WritePNG(w io.Writer, p *plot.Plot) error {
	wt, err := p.WriterTo(plotWidth, plotHeight, "png")
	if err != nil {
		return fmt.Errorf("png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

// SavePlots writes <prefix>_ts_hist.png and <prefix>_targets.png into dir
// and returns the paths written. prefix is sanitized before use as a file
// name.
func SavePlots(dir, prefix string, targets []l6targets.Target) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create plot dir: %w", err)
	}
	title := strings.TrimSpace(prefix)
	hist, err := HistogramPlot(targets, DefaultBinWidth, title+" TS distribution")
	if err != nil {
		return nil, err
	}
	scatter, err := TargetsPlot(targets, title+" targets")
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, out := range []struct {
		name string
		p    *plot.Plot
	}{{"ts_hist", hist}, {"targets", scatter}} {
		path, err := security.JoinWithin(dir, fmt.Sprintf("%s_%s.png", security.SanitizeFilename(prefix), out.name))
		if err != nil {
			return nil, err
		}
		if err := out.p.Save(plotWidth, plotHeight, path); err != nil {
			return nil, fmt.Errorf("save %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
