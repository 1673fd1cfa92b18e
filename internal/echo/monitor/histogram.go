package monitor

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/banshee-data/echo.report/internal/echo/l6targets"
	"gonum.org/v1/gonum/stat"
)

// ErrNoTargets is returned when there is nothing to plot.
var ErrNoTargets = errors.New("no targets with finite TS")

// DefaultBinWidth is the TS histogram bin width in dB.
const DefaultBinWidth = 1.0

// Histogram is a TS distribution over fixed-width bins. Edges has one more
// entry than Counts; bin i covers [Edges[i], Edges[i+1]).
type Histogram struct {
	Edges  []float64
	Counts []float64
}

// Labels returns the lower edge of each bin formatted for an axis.
func (h Histogram) Labels() []string {
	out := make([]string, len(h.Counts))
	for i := range out {
		out[i] = fmt.Sprintf("%.1f", h.Edges[i])
	}
	return out
}

// TSHistogram bins the compensated TS of targets. Edges are aligned to
// multiples of binWidth; non-finite TS values are ignored.
func TSHistogram(targets []l6targets.Target, binWidth float64) (Histogram, error) {
	if binWidth <= 0 || math.IsNaN(binWidth) {
		binWidth = DefaultBinWidth
	}
	ts := finiteTS(targets)
	if len(ts) == 0 {
		return Histogram{}, ErrNoTargets
	}
	slices.Sort(ts)

	lo := math.Floor(ts[0]/binWidth) * binWidth
	hi := (math.Floor(ts[len(ts)-1]/binWidth) + 1) * binWidth
	n := int(math.Round((hi - lo) / binWidth))
	edges := make([]float64, n+1)
	for i := range edges {
		edges[i] = lo + float64(i)*binWidth
	}
	// guard against rounding leaving the maximum on the last edge
	edges[n] = math.Max(edges[n], math.Nextafter(ts[len(ts)-1], math.Inf(1)))

	return Histogram{
		Edges:  edges,
		Counts: stat.Histogram(nil, edges, ts, nil),
	}, nil
}

func finiteTS(targets []l6targets.Target) []float64 {
	out := make([]float64, 0, len(targets))
	for _, t := range targets {
		if !math.IsNaN(t.TSComp) && !math.IsInf(t.TSComp, 0) {
			out = append(out, t.TSComp)
		}
	}
	return out
}
