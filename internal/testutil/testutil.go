// Package testutil provides synthetic echograms and small assertion helpers
// shared by the detection, storage and monitor tests.
package testutil

import (
	"testing"
	"time"

	"github.com/banshee-data/echo.report/internal/echo/l1frames"
	"gonum.org/v1/gonum/mat"
)

// Epoch is the timestamp of ping 0 in every synthetic echogram.
var Epoch = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

// Echogram is a mutable builder for a synthetic single-channel frame.
// Depth of sample i is Step*(i+1) in every ping; ping j is recorded at
// Epoch + j*PingInterval.
type Echogram struct {
	Samples      int
	Pings        int
	Step         float64
	PingInterval time.Duration

	signal []float64
	along  []float64
	athw   []float64
}

// NewEchogram returns a samples x pings echogram filled with background.
func NewEchogram(samples, pings int, step, background float64) *Echogram {
	e := &Echogram{
		Samples:      samples,
		Pings:        pings,
		Step:         step,
		PingInterval: time.Second,
		signal:       make([]float64, samples*pings),
	}
	for i := range e.signal {
		e.signal[i] = background
	}
	return e
}

// Set writes v at (sample, ping).
func (e *Echogram) Set(sample, ping int, v float64) *Echogram {
	e.signal[sample*e.Pings+ping] = v
	return e
}

// Fill writes v over every sample of ping.
func (e *Echogram) Fill(ping int, v float64) *Echogram {
	for i := 0; i < e.Samples; i++ {
		e.Set(i, ping, v)
	}
	return e
}

// Echo writes a symmetric echo centred on sample: profile[0] at the centre,
// profile[d] at centre +/- d. Samples outside the frame are skipped.
func (e *Echogram) Echo(ping, sample int, profile ...float64) *Echogram {
	for d, v := range profile {
		for _, i := range []int{sample - d, sample + d} {
			if i >= 0 && i < e.Samples {
				e.Set(i, ping, v)
			}
		}
	}
	return e
}

// Angles sets split-beam angles (radians) on a cell, allocating both angle
// matrices on first use.
func (e *Echogram) Angles(sample, ping int, along, athwart float64) *Echogram {
	if e.along == nil {
		e.along = make([]float64, e.Samples*e.Pings)
		e.athw = make([]float64, e.Samples*e.Pings)
	}
	e.along[sample*e.Pings+ping] = along
	e.athw[sample*e.Pings+ping] = athwart
	return e
}

// Depth returns the depth of sample i.
func (e *Echogram) Depth(i int) float64 {
	return e.Step * float64(i+1)
}

// Frame materialises the echogram. The frame owns copies of the data.
func (e *Echogram) Frame(channel string) *l1frames.Frame {
	dep := mat.NewDense(e.Samples, e.Pings, nil)
	for i := 0; i < e.Samples; i++ {
		for j := 0; j < e.Pings; j++ {
			dep.Set(i, j, e.Depth(i))
		}
	}
	times := make([]time.Time, e.Pings)
	for j := range times {
		times[j] = Epoch.Add(time.Duration(j) * e.PingInterval)
	}
	f := &l1frames.Frame{
		Channel:   channel,
		Signal:    mat.NewDense(e.Samples, e.Pings, append([]float64(nil), e.signal...)),
		Depth:     dep,
		PingTimes: times,
	}
	if e.along != nil {
		f.Along = mat.NewDense(e.Samples, e.Pings, append([]float64(nil), e.along...))
		f.Athwart = mat.NewDense(e.Samples, e.Pings, append([]float64(nil), e.athw...))
	}
	return f
}

// Dataset wraps the echogram's frame in a single-channel dataset.
func (e *Echogram) Dataset(t testing.TB, channel string, bottom l1frames.BottomLine) *l1frames.Dataset {
	t.Helper()
	ds := l1frames.NewDataset()
	if err := ds.AddChannel(&l1frames.ChannelData{Frame: e.Frame(channel), Bottom: bottom}); err != nil {
		t.Fatalf("add channel: %v", err)
	}
	return ds
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}
