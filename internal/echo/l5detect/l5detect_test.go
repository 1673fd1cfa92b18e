package l5detect

import (
	"math"
	"testing"

	"github.com/banshee-data/echo.report/internal/config"
	"github.com/banshee-data/echo.report/internal/echo/l1frames"
	"github.com/banshee-data/echo.report/internal/echo/l2blocks"
	"github.com/banshee-data/echo.report/internal/echo/l3mask"
	"github.com/banshee-data/echo.report/internal/echo/l4compensation"
	"github.com/banshee-data/echo.report/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultParams(t *testing.T, variant config.Variant) config.DetectionParams {
	t.Helper()
	p, err := config.DefaultTuningConfig().Params("ch")
	require.NoError(t, err)
	p.Variant = variant
	return p
}

func wholeFrame(f *l1frames.Frame, bottom l1frames.BottomLine, nav *l1frames.Navigation, p config.DetectionParams) Block {
	samples, pings := f.Dims()
	span := l2blocks.Block{Start: 0, Stop: pings}
	rows := l3mask.ActiveRows(f, bottom, span.Start, span.Stop)
	if nav == nil {
		nav = l1frames.ZeroNavigation(pings)
	}
	return Block{
		View: l4compensation.View{
			Frame: f,
			Span:  span,
			Rows:  rows,
			Mask:  l3mask.Build(f, bottom, nil, span, rows),
		},
		Sampling:     l4compensation.NewSampling(f.DepthStep(), p.SoundSpeed, p.PulseDuration, p.Np),
		TotalSamples: samples,
		Nav:          nav,
	}
}

func collect(s Strategy, b Block) ([]Target, Stats) {
	var got []Target
	st := s.Detect(b, func(tg Target) { got = append(got, tg) })
	return got, st
}

func mustStrategy(t *testing.T, p config.DetectionParams) Strategy {
	t.Helper()
	s, err := New(p)
	require.NoError(t, err)
	require.Equal(t, p.Variant, s.Variant())
	return s
}

// singlePeak is the 50-sample, one-ping echogram with one -30 dB echo at
// sample 25 that falls to -60 dB by samples 19 and 31.
func singlePeak() *testutil.Echogram {
	return testutil.NewEchogram(50, 1, 0.1, -100).
		Echo(0, 25, -30, -32, -35, -45, -50, -55, -60)
}

func TestNew_UnknownVariant(t *testing.T) {
	_, err := New(config.DetectionParams{Variant: "fm"})
	assert.Error(t, err)

	s, err := New(config.DetectionParams{})
	require.NoError(t, err)
	assert.Equal(t, config.VariantThreshold, s.Variant())
}

func TestThreshold_SinglePeak(t *testing.T) {
	p := defaultParams(t, config.VariantThreshold)
	p.TSThreshold = -50
	p.PLDL = 6
	p.Np = 5
	f := singlePeak().Frame("ch")
	b := wholeFrame(f, nil, nil, p)

	got, st := collect(mustStrategy(t, p), b)
	require.Len(t, got, 1)
	assert.Equal(t, 1, st.Accepted)

	tg := got[0]
	minLen, maxLen := b.Sampling.PulseBounds(p.MinNormPL, p.MaxNormPL)
	assert.Equal(t, 4, minLen)
	assert.Equal(t, 8, maxLen)

	assert.Equal(t, 25, tg.Sample)
	assert.Equal(t, 0, tg.Ping)
	assert.Equal(t, 25, tg.LinearIndex)
	assert.Equal(t, 2, tg.EnvBefore)
	assert.Equal(t, 2, tg.EnvAfter)
	assert.Equal(t, 5, tg.PulseLength)
	assert.InDelta(t, 1.0, tg.PulseLengthNorm, 1e-12)
	assert.GreaterOrEqual(t, tg.PulseLength, minLen)
	assert.LessOrEqual(t, tg.PulseLength, maxLen)

	rEff := 2.6 - 1500*1e-3/4
	assert.InDelta(t, 2.6, tg.Range, 1e-9)
	assert.InDelta(t, 2.975, tg.RangeDisplay, 1e-9)
	assert.InDelta(t, 2.4, tg.RangeMin, 1e-9)
	assert.InDelta(t, 2.8, tg.RangeMax, 1e-9)
	assert.InDelta(t, -30+40*math.Log10(rEff), tg.TSUncomp, 1e-9)
	assert.Equal(t, tg.TSUncomp, tg.TSComp)
	assert.Greater(t, tg.TSComp, p.TSThreshold)
	assert.True(t, tg.Time.Equal(testutil.Epoch))

	for _, v := range []float64{tg.AngleMinor, tg.AngleMajor, tg.AngleStdMinor, tg.Heave, tg.Distance} {
		assert.True(t, math.IsNaN(v))
	}
}

func TestThreshold_Rejections(t *testing.T) {
	p := defaultParams(t, config.VariantThreshold)
	p.Np = 5
	s := mustStrategy(t, p)

	tests := []struct {
		name string
		echo *testutil.Echogram
	}{
		{"peak below threshold", testutil.NewEchogram(50, 1, 0.1, -100).Echo(0, 25, -55, -56, -57, -70)},
		{"envelope too short", testutil.NewEchogram(50, 1, 0.1, -100).Echo(0, 25, -30, -40, -50)},
		{"envelope too long", testutil.NewEchogram(50, 1, 0.1, -100).Echo(0, 25, -30, -30, -30, -30, -30, -30, -30)},
		{"range inside near field", testutil.NewEchogram(50, 1, 0.01, -100).Echo(0, 25, -30, -32, -35, -45)},
		{"flat column", testutil.NewEchogram(50, 1, 0.1, -40)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := tc.echo.Frame("ch")
			got, _ := collect(s, wholeFrame(f, nil, nil, p))
			assert.Empty(t, got)
		})
	}
}

func TestThreshold_BottomExcludesSamples(t *testing.T) {
	p := defaultParams(t, config.VariantThreshold)
	p.Np = 5
	e := testutil.NewEchogram(50, 2, 1, -100).
		Echo(0, 5, -30, -32, -35, -45).
		Echo(0, 25, -30, -32, -35, -45).
		Echo(1, 25, -30, -32, -35, -45)
	// Bottom at the depth of sample 10 in ping 0; none in ping 1.
	bottom := l1frames.BottomLine{e.Depth(10), math.NaN()}

	got, _ := collect(mustStrategy(t, p), wholeFrame(e.Frame("ch"), bottom, nil, p))
	require.Len(t, got, 2)
	assert.Equal(t, [2]int{0, 5}, [2]int{got[0].Ping, got[0].Sample})
	assert.Equal(t, [2]int{1, 25}, [2]int{got[1].Ping, got[1].Sample})
	assert.Equal(t, 50+25, got[1].LinearIndex)
	for _, tg := range got {
		if tg.Ping == 0 {
			assert.Less(t, tg.Sample, 10)
		}
	}
}

func TestThreshold_SeparationAndOrder(t *testing.T) {
	p := defaultParams(t, config.VariantThreshold)
	p.Np = 5
	e := testutil.NewEchogram(80, 1, 1, -100).
		Echo(0, 20, -30, -32, -35, -45).
		Echo(0, 40, -28, -30, -33, -45).
		Echo(0, 60, -35, -37, -40, -50)

	got, _ := collect(mustStrategy(t, p), wholeFrame(e.Frame("ch"), nil, nil, p))
	require.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i].Sample-got[i-1].Sample, 5)
	}
	assert.Equal(t, []int{20, 40, 60}, []int{got[0].Sample, got[1].Sample, got[2].Sample})
}

func TestThreshold_AllMasked(t *testing.T) {
	p := defaultParams(t, config.VariantThreshold)
	f := testutil.NewEchogram(20, 2, 1, -40).Frame("ch")
	bottom := l1frames.BottomLine{0, 0}

	got, st := collect(mustStrategy(t, p), wholeFrame(f, bottom, nil, p))
	assert.Empty(t, got)
	assert.True(t, st.Empty)
}

func TestThreshold_ShortColumn(t *testing.T) {
	p := defaultParams(t, config.VariantThreshold)
	f := testutil.NewEchogram(2, 3, 1, -40).Frame("ch")
	got, st := collect(mustStrategy(t, p), wholeFrame(f, nil, nil, p))
	assert.Empty(t, got)
	assert.Equal(t, 3, st.SkippedColumns)
}

// energyEchogram is 60 samples at 0.2 m, giving NechP = 4 at the default
// 1 ms pulse, with one Sv echo centred on sample 30 (6.2 m).
func energyEchogram(pings int) *testutil.Echogram {
	e := testutil.NewEchogram(60, pings, 0.2, -90)
	for j := 0; j < pings; j++ {
		e.Echo(j, 30, -40, -42, -45, -55)
	}
	return e
}

func TestEnergy_SingleEcho(t *testing.T) {
	p := defaultParams(t, config.VariantEnergy)
	e := energyEchogram(2)
	nav := l1frames.ZeroNavigation(2)
	nav.Heave[1] = 2
	nav.Heading[1] = 90
	nav.Distance[1] = 12.5
	b := wholeFrame(e.Frame("ch"), nil, nav, p)
	require.Equal(t, 4, b.Sampling.NechP)

	got, st := collect(mustStrategy(t, p), b)
	require.Len(t, got, 2)
	assert.Equal(t, 2, st.Accepted)

	tg := got[0]
	assert.Equal(t, 30, tg.Sample)
	assert.Equal(t, 2, tg.EnvBefore)
	assert.Equal(t, 2, tg.EnvAfter)
	assert.Equal(t, 5, tg.PulseLength)
	assert.InDelta(t, 1.25, tg.PulseLengthNorm, 1e-12)

	r := (30 - 3) * 0.2
	wantU := -40 + 20*math.Log10(r) + l4compensation.SvToTS(1500, 1e-3, 0, 0, 0)
	assert.InDelta(t, wantU, tg.TSUncomp, 1e-9)
	assert.InDelta(t, wantU, tg.TSComp, 1e-9)
	assert.InDelta(t, 6.2, tg.Range, 1e-9)
	assert.InDelta(t, 6.575, tg.RangeDisplay, 1e-9)
	assert.InDelta(t, 5.8, tg.RangeMin, 1e-9)
	assert.InDelta(t, 6.6, tg.RangeMax, 1e-9)
	assert.Equal(t, 0.0, tg.Heave)
	assert.True(t, math.IsNaN(tg.AngleStdMajor))

	// Heave shifts the reported range but not the surface-referenced band.
	tg = got[1]
	assert.Equal(t, 1, tg.Ping)
	assert.Equal(t, 60+30, tg.LinearIndex)
	assert.InDelta(t, 4.2, tg.Range, 1e-9)
	assert.Equal(t, 2.0, tg.Heave)
	assert.Equal(t, 90.0, tg.Heading)
	assert.Equal(t, 12.5, tg.Distance)
}

func TestEnergy_BeamCompensationGate(t *testing.T) {
	p := defaultParams(t, config.VariantEnergy)
	p.BeamwidthAlongRad = 0.12
	p.BeamwidthAthwartRad = 0.12

	e := energyEchogram(2).
		Angles(30, 0, 0.03, 0). // x = 0.5, comp ~1.5 dB
		Angles(30, 1, 0.12, 0)  // x = 2, comp ~24 dB > 2*MaxAngleOneWayCompression
	got, _ := collect(mustStrategy(t, p), wholeFrame(e.Frame("ch"), nil, nil, p))
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].Ping)
	assert.InDelta(t, 6.0206*0.25, got[0].TSComp-got[0].TSUncomp, 1e-9)
}

func TestEnergy_Gates(t *testing.T) {
	tests := []struct {
		name   string
		tweak  func(*config.DetectionParams)
		echo   func() *testutil.Echogram
		wantN  int
		expect string
	}{
		{
			name:  "accepts reference echo",
			tweak: func(*config.DetectionParams) {},
			echo:  func() *testutil.Echogram { return energyEchogram(1) },
			wantN: 1,
		},
		{
			name:  "TS at threshold",
			tweak: func(p *config.DetectionParams) { p.TSThreshold = -20 },
			echo:  func() *testutil.Echogram { return energyEchogram(1) },
		},
		{
			name:  "below depth band",
			tweak: func(p *config.DetectionParams) { p.MinEchoDepthM = 7 },
			echo:  func() *testutil.Echogram { return energyEchogram(1) },
		},
		{
			name:  "above depth band",
			tweak: func(p *config.DetectionParams) { p.MaxEchoDepthM = 6 },
			echo:  func() *testutil.Echogram { return energyEchogram(1) },
		},
		{
			name:  "echo too wide",
			tweak: func(*config.DetectionParams) {},
			echo: func() *testutil.Echogram {
				return testutil.NewEchogram(60, 1, 0.2, -90).Echo(0, 30, -40, -40, -40, -40, -40, -40)
			},
		},
		{
			name:  "echo too narrow",
			tweak: func(*config.DetectionParams) {},
			echo: func() *testutil.Echogram {
				return testutil.NewEchogram(60, 1, 0.2, -90).Echo(0, 30, -40, -60)
			},
		},
		{
			name:  "close pair keeps the first",
			tweak: func(p *config.DetectionParams) { p.MinEchoSpace = 2 },
			echo: func() *testutil.Echogram {
				return energyEchogram(1).Echo(0, 36, -41, -43, -46, -55)
			},
			wantN: 1,
		},
		{
			name:  "pair outside spacing",
			tweak: func(*config.DetectionParams) {},
			echo: func() *testutil.Echogram {
				return energyEchogram(1).Echo(0, 36, -41, -43, -46, -55)
			},
			wantN: 2,
		},
		{
			name:  "all masked",
			tweak: func(*config.DetectionParams) {},
			echo: func() *testutil.Echogram {
				return testutil.NewEchogram(60, 1, 0.2, math.NaN())
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := defaultParams(t, config.VariantEnergy)
			tc.tweak(&p)
			got, _ := collect(mustStrategy(t, p), wholeFrame(tc.echo().Frame("ch"), nil, nil, p))
			require.Len(t, got, tc.wantN)
			for _, tg := range got {
				assert.Greater(t, tg.TSComp, p.TSThreshold)
				assert.GreaterOrEqual(t, tg.PulseLength, 3)
				assert.LessOrEqual(t, tg.PulseLength, 7)
			}
		})
	}
}

func TestEnergy_GuardSamples(t *testing.T) {
	p := defaultParams(t, config.VariantEnergy)
	p.MinEchoDepthM = 0
	// 30 samples deep enough that the guard, not the depth band, decides.
	e := testutil.NewEchogram(60, 1, 0.2, -90).Echo(0, 30, -40, -42, -45, -55)

	p.GuardSamples = 31
	got, _ := collect(mustStrategy(t, p), wholeFrame(e.Frame("ch"), nil, nil, p))
	assert.Empty(t, got)

	p.GuardSamples = 30
	got, _ = collect(mustStrategy(t, p), wholeFrame(e.Frame("ch"), nil, nil, p))
	assert.Len(t, got, 1)
}

func TestEnergy_BottomMask(t *testing.T) {
	p := defaultParams(t, config.VariantEnergy)
	e := energyEchogram(1)
	got, st := collect(mustStrategy(t, p), wholeFrame(e.Frame("ch"), l1frames.BottomLine{e.Depth(20)}, nil, p))
	assert.Empty(t, got)
	assert.Zero(t, st.Candidates)
}
