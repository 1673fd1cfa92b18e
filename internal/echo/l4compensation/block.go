package l4compensation

import (
	"math"

	"github.com/banshee-data/echo.report/internal/echo/l1frames"
	"github.com/banshee-data/echo.report/internal/echo/l2blocks"
	"github.com/banshee-data/echo.report/internal/echo/l3mask"
	"gonum.org/v1/gonum/mat"
)

// View is one block of a frame: pings Span, leading Rows samples, and the
// block's exclusion mask. Matrices derived from a View are indexed
// [sample, ping-within-block].
type View struct {
	Frame *l1frames.Frame
	Span  l2blocks.Block
	Rows  int
	Mask  *l3mask.Mask
}

func (v View) masked(i, j int) bool {
	return v.Mask != nil && v.Mask.At(i, j)
}

// MaskedSignal copies the block's signal with excluded cells set to -Inf and
// crops trailing rows that hold no value above -Inf in any ping. It returns
// nil when nothing in the block is searchable.
func MaskedSignal(v View) *mat.Dense {
	pings := v.Span.Len()
	if v.Rows < 1 || pings < 1 {
		return nil
	}
	vals := make([]float64, v.Rows*pings)
	last := -1
	for i := 0; i < v.Rows; i++ {
		for j := 0; j < pings; j++ {
			z := v.Frame.Signal.At(i, v.Span.Start+j)
			if v.masked(i, j) {
				z = math.Inf(-1)
			}
			vals[i*pings+j] = z
			if z > math.Inf(-1) {
				last = i
			}
		}
	}
	if last < 0 {
		return nil
	}
	return mat.NewDense(last+1, pings, vals[:(last+1)*pings])
}

// EnergyParams are the calibration inputs of the energy-surrogate transform.
type EnergyParams struct {
	SoundSpeed     float64
	PulseDuration  float64
	Alpha          float64 // dB/m
	TVGStartSample int
	PsiTwoWay      float64
	SaCorrection   float64
	SaEK80Nominal  float64
	Beam           BeamGeometry
}

// Energy holds a block converted for the energy-surrogate detector. Masked
// cells are NaN in all three matrices.
type Energy struct {
	TS    *mat.Dense // beam-compensated TS
	TSu   *mat.Dense // uncompensated TS
	Plike *mat.Dense // energy surrogate, used only to locate peaks
	Range []float64  // TVG range per row
}

// EnergySurrogate converts the block's Sv into TS, TSu and Plike. Beam
// compensation is applied only when the frame carries both angle matrices.
// It returns nil for an empty block.
func EnergySurrogate(v View, s Sampling, p EnergyParams) *Energy {
	pings := v.Span.Len()
	if v.Rows < 1 || pings < 1 {
		return nil
	}
	rng := RangeVector(v.Rows, p.TVGStartSample, s.DepthStep)
	sv2ts := SvToTS(p.SoundSpeed, p.PulseDuration, p.PsiTwoWay, p.SaCorrection, p.SaEK80Nominal)
	angles := v.Frame.HasAngles()

	ts := mat.NewDense(v.Rows, pings, nil)
	tsu := mat.NewDense(v.Rows, pings, nil)
	plike := mat.NewDense(v.Rows, pings, nil)
	nan := math.NaN()
	for i := 0; i < v.Rows; i++ {
		r := rng[i]
		logR := math.Log10(math.Max(r, minLogRange))
		for j := 0; j < pings; j++ {
			if v.masked(i, j) {
				ts.Set(i, j, nan)
				tsu.Set(i, j, nan)
				plike.Set(i, j, nan)
				continue
			}
			ping := v.Span.Start + j
			u := v.Frame.Signal.At(i, ping) + 20*logR + sv2ts
			comp := 0.0
			if angles {
				comp = p.Beam.Compensation(v.Frame.Along.At(i, ping), v.Frame.Athwart.At(i, ping))
			}
			tsu.Set(i, j, u)
			ts.Set(i, j, u+comp)
			plike.Set(i, j, u-40*logR-2*p.Alpha*r)
		}
	}
	return &Energy{TS: ts, TSu: tsu, Plike: plike, Range: rng}
}
