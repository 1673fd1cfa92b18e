package l4compensation

import "math"

const (
	// minLogRange floors ranges inside logarithms.
	minLogRange = 1e-6
	// beamCompDB is 20 log10(2): the compensation on a beam axis edge (x = 1).
	beamCompDB = 6.0206
)

// EffectiveRange is the range to the centre of the pulse: depth - c*T/4.
func EffectiveRange(depth, c, pulseDuration float64) float64 {
	return depth - c*pulseDuration/4
}

// TVG40 is the point-target time-varied gain 40 log10(r) + 2 alpha r.
// r must be positive.
func TVG40(r, alpha float64) float64 {
	return 40*math.Log10(r) + 2*alpha*r
}

// SvToTS is the constant added to Sv + 20 log10(r) to obtain uncompensated
// TS: 10 log10(c*T/2) + psi + 2*Sa_correction + 2*Sa_EK80_nominal.
func SvToTS(c, pulseDuration, psiTwoWay, saCorrection, saEK80Nominal float64) float64 {
	return 10*math.Log10(c*pulseDuration/2) + psiTwoWay + 2*saCorrection + 2*saEK80Nominal
}

// RangeVector returns the TVG range of each of n samples:
// max(step, (i - start) * step).
func RangeVector(n, start int, step float64) []float64 {
	r := make([]float64, n)
	for i := range r {
		r[i] = math.Max(step, float64(i-start)*step)
	}
	return r
}

// BeamGeometry describes the split-beam transducer's 3 dB beamwidths and
// steering offsets, in radians.
type BeamGeometry struct {
	BeamwidthAlong   float64
	BeamwidthAthwart float64
	SteerAlong       float64
	SteerAthwart     float64
}

// Compensation returns the one-way beam-pattern loss in dB for a target at
// the given alongship and athwartship angles.
func (g BeamGeometry) Compensation(along, athwart float64) float64 {
	x := 2 * (along - g.SteerAlong) / g.BeamwidthAlong
	y := 2 * (athwart - g.SteerAthwart) / g.BeamwidthAthwart
	x2, y2 := x*x, y*y
	return beamCompDB * (x2 + y2 - 0.18*x2*y2)
}
