package l4compensation

import "math"

const (
	// fallbackSampleInterval is used when the depth grid gives no usable step.
	fallbackSampleInterval = 1e-4
	minSampleInterval      = 1e-6
	minPulseSamples        = 3
)

// Sampling relates the transmit pulse to the range-sample grid.
type Sampling struct {
	// DepthStep is the median depth spacing in metres. When the grid has no
	// usable step it is back-filled from the fallback sample interval.
	DepthStep float64
	// SampleInterval is the two-way travel time per sample, in seconds.
	SampleInterval float64
	// NechP is the pulse length in samples derived from the grid.
	NechP int
	// Np is NechP unless an explicit pulse length (> 2) overrides it.
	Np int
}

// NewSampling derives the pulse sampling from the median depth step, sound
// speed c (m/s) and pulse duration T (s). explicitNp values above 2 replace
// the derived Np; NechP always comes from the grid.
func NewSampling(depthStep, c, pulseDuration float64, explicitNp int) Sampling {
	dt := fallbackSampleInterval
	if depthStep > 0 && !math.IsInf(depthStep, 1) {
		dt = 2 * depthStep / c
	} else {
		depthStep = c * dt / 2
	}
	nech := max(minPulseSamples, int(math.Round(pulseDuration/math.Max(dt, minSampleInterval))))
	s := Sampling{DepthStep: depthStep, SampleInterval: dt, NechP: nech, Np: nech}
	if explicitNp > 2 {
		s.Np = explicitNp
	}
	return s
}

// PulseBounds returns the accepted envelope length range in samples for the
// threshold detector: round(Np*minNorm) and ceil(Np*maxNorm), both at least 1.
func (s Sampling) PulseBounds(minNorm, maxNorm float64) (minLen, maxLen int) {
	minLen = max(1, int(math.Round(float64(s.Np)*minNorm)))
	maxLen = max(1, int(math.Ceil(float64(s.Np)*maxNorm)))
	return minLen, maxLen
}

// EchoLengthBounds returns the accepted 6 dB echo width range in samples for
// the energy detector.
func (s Sampling) EchoLengthBounds(minEcho, maxEcho float64) (lo, hi int) {
	n := float64(s.NechP)
	return int(math.Round(n * minEcho)), int(math.Round(n * maxEcho))
}

// MinSpacing returns the minimum distance in samples between two accepted
// energy-detector echoes in one ping.
func (s Sampling) MinSpacing(minEchoSpace float64) int {
	return int(math.Round(minEchoSpace * float64(s.NechP)))
}
