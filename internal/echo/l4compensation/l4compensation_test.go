package l4compensation

import (
	"math"
	"testing"

	"github.com/banshee-data/echo.report/internal/echo/l1frames"
	"github.com/banshee-data/echo.report/internal/echo/l2blocks"
	"github.com/banshee-data/echo.report/internal/echo/l3mask"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestNewSampling(t *testing.T) {
	// 0.1875 m step at 1500 m/s is 250 us per sample; 1 ms pulse is 4 samples.
	s := NewSampling(0.1875, 1500, 1e-3, 0)
	assert.InDelta(t, 2.5e-4, s.SampleInterval, 1e-12)
	assert.Equal(t, 4, s.NechP)
	assert.Equal(t, 4, s.Np)

	s = NewSampling(0.1875, 1500, 1e-3, 7)
	assert.Equal(t, 7, s.Np)
	assert.Equal(t, 4, s.NechP, "explicit Np does not change NechP")

	s = NewSampling(0.1875, 1500, 1e-3, 2)
	assert.Equal(t, 4, s.Np, "Np <= 2 is ignored")

	s = NewSampling(1, 1500, 1e-4, 0)
	assert.Equal(t, 3, s.Np, "floored at 3 samples")
}

func TestNewSampling_UnusableStep(t *testing.T) {
	for _, step := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		s := NewSampling(step, 1500, 1e-3, 0)
		assert.Equal(t, fallbackSampleInterval, s.SampleInterval)
		assert.InDelta(t, 0.075, s.DepthStep, 1e-12)
		assert.Equal(t, 10, s.NechP)
	}
}

func TestSampling_Bounds(t *testing.T) {
	s := Sampling{Np: 5, NechP: 5}
	lo, hi := s.PulseBounds(0.7, 1.5)
	assert.Equal(t, 4, lo)
	assert.Equal(t, 8, hi)

	lo, hi = s.PulseBounds(0, 0)
	assert.Equal(t, 1, lo)
	assert.Equal(t, 1, hi)

	lo, hi = s.EchoLengthBounds(0.8, 1.8)
	assert.Equal(t, 4, lo)
	assert.Equal(t, 9, hi)
	assert.Equal(t, 5, s.MinSpacing(1))
}

func TestTVGAndConstants(t *testing.T) {
	assert.InDelta(t, 40.0, TVG40(10, 0), 1e-12)
	assert.InDelta(t, 40.2, TVG40(10, 0.01), 1e-12)
	assert.InDelta(t, 9.625, EffectiveRange(10, 1500, 1e-3), 1e-12)
	assert.InDelta(t, 10*math.Log10(0.75)+1+4+6, SvToTS(1500, 1e-3, 1, 2, 3), 1e-12)
	assert.Equal(t, []float64{0.5, 0.5, 0.5, 0.5, 0.5, 1, 1.5}, RangeVector(7, 3, 0.5))
}

func TestBeamCompensation(t *testing.T) {
	g := BeamGeometry{BeamwidthAlong: 0.2, BeamwidthAthwart: 0.1, SteerAlong: 0.05}
	assert.InDelta(t, 0, g.Compensation(0.05, 0), 1e-12, "on axis")
	assert.InDelta(t, beamCompDB, g.Compensation(0.15, 0), 1e-12)
	assert.InDelta(t, beamCompDB*(1+1-0.18), g.Compensation(0.15, 0.05), 1e-12)
}

func testFrame(signal [][]float64) *l1frames.Frame {
	rows, cols := len(signal), len(signal[0])
	sig := mat.NewDense(rows, cols, nil)
	dep := mat.NewDense(rows, cols, nil)
	for i := range signal {
		for j, v := range signal[i] {
			sig.Set(i, j, v)
			dep.Set(i, j, float64(i+1))
		}
	}
	return &l1frames.Frame{Channel: "ch", Signal: sig, Depth: dep}
}

func TestMaskedSignal(t *testing.T) {
	f := testFrame([][]float64{
		{-70, -60},
		{-50, -40},
		{-80, math.NaN()},
		{-90, -90},
	})
	bottom := l1frames.BottomLine{3, 2}
	span := l2blocks.Block{Start: 0, Stop: 2}
	rows := l3mask.ActiveRows(f, bottom, span.Start, span.Stop)
	require.Equal(t, 3, rows)
	m := l3mask.Build(f, bottom, nil, span, rows)

	got := MaskedSignal(View{Frame: f, Span: span, Rows: rows, Mask: m})
	require.NotNil(t, got)
	r, c := got.Dims()
	assert.Equal(t, 2, r, "row 2 is masked or NaN everywhere")
	assert.Equal(t, 2, c)
	assert.Equal(t, -70.0, got.At(0, 0))
	assert.Equal(t, -50.0, got.At(1, 0))
	assert.True(t, math.IsInf(got.At(1, 1), -1))

	// Source frame is untouched.
	assert.Equal(t, -40.0, f.Signal.At(1, 1))
}

func TestMaskedSignal_AllMasked(t *testing.T) {
	f := testFrame([][]float64{{-70}, {-60}})
	span := l2blocks.Block{Start: 0, Stop: 1}
	m := l3mask.Build(f, l1frames.BottomLine{0}, nil, span, 2)
	assert.Nil(t, MaskedSignal(View{Frame: f, Span: span, Rows: 2, Mask: m}))
	assert.Nil(t, MaskedSignal(View{Frame: f, Span: span, Rows: 0}))
}

func TestEnergySurrogate(t *testing.T) {
	f := testFrame([][]float64{
		{-60, -60},
		{-60, -60},
		{-60, -60},
	})
	span := l2blocks.Block{Start: 1, Stop: 2}
	s := Sampling{DepthStep: 1, NechP: 3, Np: 3}
	p := EnergyParams{SoundSpeed: 1500, PulseDuration: 1e-3, Alpha: 0.01, TVGStartSample: 0}

	e := EnergySurrogate(View{Frame: f, Span: span, Rows: 3}, s, p)
	require.NotNil(t, e)
	sv2ts := SvToTS(1500, 1e-3, 0, 0, 0)
	for i := 0; i < 3; i++ {
		r := math.Max(1, float64(i))
		wantU := -60 + 20*math.Log10(r) + sv2ts
		assert.InDelta(t, wantU, e.TSu.At(i, 0), 1e-9)
		assert.InDelta(t, wantU, e.TS.At(i, 0), 1e-9, "no angles, no compensation")
		assert.InDelta(t, wantU-40*math.Log10(r)-2*0.01*r, e.Plike.At(i, 0), 1e-9)
	}

	f.Along = mat.NewDense(3, 2, []float64{0, 0, 0, 0, 0, 0.06})
	f.Athwart = mat.NewDense(3, 2, nil)
	p.Beam = BeamGeometry{BeamwidthAlong: 0.12, BeamwidthAthwart: 0.12}
	m := l3mask.Build(f, l1frames.BottomLine{0, 2}, nil, span, 3)
	e = EnergySurrogate(View{Frame: f, Span: span, Rows: 3, Mask: m}, s, p)
	assert.True(t, math.IsNaN(e.TS.At(1, 0)))
	assert.True(t, math.IsNaN(e.TSu.At(2, 0)))
	assert.True(t, math.IsNaN(e.Plike.At(2, 0)))
	assert.InDelta(t, e.TSu.At(0, 0), e.TS.At(0, 0), 1e-12)
}
