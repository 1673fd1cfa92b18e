package l5detect

import (
	"math"

	"github.com/banshee-data/echo.report/internal/config"
	"github.com/banshee-data/echo.report/internal/echo/l4compensation"
	"gonum.org/v1/gonum/mat"
)

// Threshold detects peaks of the supplied TS-like signal that exceed the TS
// threshold and whose PLDL envelope spans an acceptable number of samples.
// Only time-varied gain is applied at the peak: TSComp equals TSUncomp, and
// angle and navigation fields are left NaN.
type Threshold struct {
	p config.DetectionParams
}

// Variant implements Strategy.
func (d *Threshold) Variant() config.Variant { return config.VariantThreshold }

// Detect implements Strategy.
func (d *Threshold) Detect(b Block, emit func(Target)) Stats {
	var st Stats
	ts := l4compensation.MaskedSignal(b.View)
	if ts == nil {
		st.Empty = true
		return st
	}
	rows, pings := ts.Dims()
	st.Columns = pings

	np := b.Sampling.Np
	minLen, maxLen := b.Sampling.PulseBounds(d.p.MinNormPL, d.p.MaxNormPL)
	halfPulse := d.p.SoundSpeed * d.p.PulseDuration / 4
	frame := b.View.Frame

	z := make([]float64, rows)
	depth := make([]float64, rows)
	for j := 0; j < pings; j++ {
		if rows < 3 {
			st.SkippedColumns++
			continue
		}
		ping := b.View.Span.Start + j
		mat.Col(z, j, ts)
		for i := range depth {
			depth[i] = frame.Depth.At(i, ping)
		}

		cands := localMaxima(z, 0)
		st.Candidates += len(cands)
		for _, k := range thinBySeparation(cands, np) {
			peak := z[k]
			if peak <= d.p.TSThreshold {
				continue
			}
			left, right := spread(z, k, peak-d.p.PLDL, maxLen)
			plen := 1 + left + right
			if plen < minLen || plen > maxLen {
				continue
			}
			rMin, rMax, ok := finiteExtent(depth, k-left, k+right)
			if !ok {
				continue
			}
			rPeak := depth[k]
			if !finite(rPeak) {
				rPeak = 0.5 * (rMin + rMax)
			}
			rEff := l4compensation.EffectiveRange(rPeak, d.p.SoundSpeed, d.p.PulseDuration)
			if rEff <= 0 {
				continue
			}
			tsu := peak + l4compensation.TVG40(rEff, b.Absorption)
			tsc := tsu
			if tsc <= d.p.TSThreshold {
				continue
			}

			nan := math.NaN()
			st.Accepted++
			emit(Target{
				TSComp:          tsc,
				TSUncomp:        tsu,
				Range:           rPeak,
				RangeDisplay:    rPeak + halfPulse,
				RangeMin:        rMin,
				RangeMax:        rMax,
				Sample:          k,
				Ping:            ping,
				LinearIndex:     ping*b.TotalSamples + k,
				Time:            frame.PingTime(ping),
				EnvBefore:       left,
				EnvAfter:        right,
				PulseLengthNorm: float64(plen) / float64(np),
				PulseLength:     plen,
				AngleStdMinor:   nan,
				AngleStdMajor:   nan,
				AngleMinor:      nan,
				AngleMajor:      nan,
				Heave:           nan,
				Roll:            nan,
				Pitch:           nan,
				Heading:         nan,
				Distance:        nan,
			})
		}
	}
	return st
}
