package l5detect

import (
	"math"

	"github.com/banshee-data/echo.report/internal/config"
	"github.com/banshee-data/echo.report/internal/echo/l4compensation"
	"gonum.org/v1/gonum/mat"
)

// echoWidthDB is the drop below the Plike peak that bounds the echo width.
const echoWidthDB = 6.0

// Energy converts Sv to TS, locates peaks on the Plike surrogate and gates
// them on TS, off-axis compensation, echo width, spacing and depth band.
type Energy struct {
	p config.DetectionParams
}

// Variant implements Strategy.
func (d *Energy) Variant() config.Variant { return config.VariantEnergy }

func (d *Energy) energyParams(alpha float64) l4compensation.EnergyParams {
	return l4compensation.EnergyParams{
		SoundSpeed:     d.p.SoundSpeed,
		PulseDuration:  d.p.PulseDuration,
		Alpha:          alpha,
		TVGStartSample: d.p.TVGStartSample,
		PsiTwoWay:      d.p.PsiTwoWay,
		SaCorrection:   d.p.SaCorrection,
		SaEK80Nominal:  d.p.SaEK80Nominal,
		Beam: l4compensation.BeamGeometry{
			BeamwidthAlong:   d.p.BeamwidthAlongRad,
			BeamwidthAthwart: d.p.BeamwidthAthwartRad,
			SteerAlong:       d.p.SteerAlongRad,
			SteerAthwart:     d.p.SteerAthwartRad,
		},
	}
}

// Detect implements Strategy.
func (d *Energy) Detect(b Block, emit func(Target)) Stats {
	var st Stats
	e := l4compensation.EnergySurrogate(b.View, b.Sampling, d.energyParams(b.Absorption))
	if e == nil {
		st.Empty = true
		return st
	}
	rows, pings := e.Plike.Dims()
	st.Columns = pings

	nech := b.Sampling.NechP
	minEcho, maxEcho := b.Sampling.EchoLengthBounds(d.p.MinEchoLength, d.p.MaxEchoLength)
	minSpace := b.Sampling.MinSpacing(d.p.MinEchoSpace)
	maxComp := 2 * d.p.MaxAngleOneWayCompression
	halfPulse := d.p.SoundSpeed * d.p.PulseDuration / 4
	td := b.TransducerDepth
	frame := b.View.Frame

	zP := make([]float64, rows)
	zTS := make([]float64, rows)
	zTSU := make([]float64, rows)
	rng := make([]float64, rows)
	for j := 0; j < pings; j++ {
		ping := b.View.Span.Start + j
		mat.Col(zP, j, e.Plike)
		if !anyFinite(zP) {
			st.SkippedColumns++
			continue
		}
		mat.Col(zTS, j, e.TS)
		mat.Col(zTSU, j, e.TSu)
		nav := b.Nav.At(ping)
		for i := range rng {
			// range from the transducer face; NaN depth stays NaN
			rng[i] = math.Max(0, frame.Depth.At(i, ping)-(td+nav.Heave))
		}

		cands := localMaxima(zP, d.p.GuardSamples)
		st.Candidates += len(cands)
		var kept []int
		for _, k := range cands {
			if !finite(zTS[k]) || zTS[k] <= d.p.TSThreshold {
				continue
			}
			if zTS[k]-zTSU[k] > maxComp {
				continue
			}
			left, right := spread(zP, k, zP[k]-echoWidthDB, -1)
			plen := 1 + left + right
			if plen < minEcho || plen > maxEcho {
				continue
			}
			if nearAny(k, kept, minSpace) {
				continue
			}
			if depth := rng[k] + td + nav.Heave; !(depth >= d.p.MinEchoDepthM && depth <= d.p.MaxEchoDepthM) {
				continue
			}
			rMin, rMax, ok := finiteExtent(rng, k-left, k+right)
			if !ok {
				continue
			}
			kept = append(kept, k)

			nan := math.NaN()
			st.Accepted++
			emit(Target{
				TSComp:          zTS[k],
				TSUncomp:        zTSU[k],
				Range:           rng[k],
				RangeDisplay:    rng[k] + halfPulse,
				RangeMin:        rMin,
				RangeMax:        rMax,
				Sample:          k,
				Ping:            ping,
				LinearIndex:     ping*b.TotalSamples + k,
				Time:            frame.PingTime(ping),
				EnvBefore:       left,
				EnvAfter:        right,
				PulseLengthNorm: float64(plen) / float64(nech),
				PulseLength:     plen,
				AngleStdMinor:   nan,
				AngleStdMajor:   nan,
				AngleMinor:      nan,
				AngleMajor:      nan,
				Heave:           nav.Heave,
				Roll:            nav.Roll,
				Pitch:           nav.Pitch,
				Heading:         nav.Heading,
				Distance:        nav.Distance,
			})
		}
	}
	return st
}

func anyFinite(v []float64) bool {
	for _, x := range v {
		if finite(x) {
			return true
		}
	}
	return false
}
