package l1frames

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrShapeMismatch is returned when paired matrices or per-ping series
	// do not share the frame's [sample, ping] shape.
	ErrShapeMismatch = errors.New("frame shape mismatch")
	// ErrNonMonotonicDepth is returned when depth does not strictly increase
	// with sample index within a ping.
	ErrNonMonotonicDepth = errors.New("depth not strictly increasing with sample index")
	// ErrUnknownChannel is returned by sources asked for a channel they do not hold.
	ErrUnknownChannel = errors.New("unknown channel")
)

// Frame is one channel's backscatter data. All matrices are indexed
// [sample, ping]: rows are range samples, columns are pings.
// Along and Athwart are optional split-beam angles in radians.
type Frame struct {
	Channel   string
	Signal    *mat.Dense
	Depth     *mat.Dense
	Along     *mat.Dense
	Athwart   *mat.Dense
	PingTimes []time.Time
}

// Dims returns the number of samples per ping and the number of pings.
func (f *Frame) Dims() (samples, pings int) {
	if f == nil || f.Signal == nil {
		return 0, 0
	}
	return f.Signal.Dims()
}

// HasAngles reports whether both split-beam angle matrices are present.
func (f *Frame) HasAngles() bool {
	return f.Along != nil && f.Athwart != nil
}

// PingTime returns the timestamp of ping j, or the zero time if the frame
// carries no timeline.
func (f *Frame) PingTime(j int) time.Time {
	if j < 0 || j >= len(f.PingTimes) {
		return time.Time{}
	}
	return f.PingTimes[j]
}

// Validate checks that all matrices share the signal's shape, that the ping
// timeline (if any) matches the ping axis, and that depth strictly
// increases along every ping's finite samples.
func (f *Frame) Validate() error {
	if f.Signal == nil {
		if f.Depth != nil {
			return fmt.Errorf("%w: depth without signal", ErrShapeMismatch)
		}
		return nil
	}
	r, c := f.Signal.Dims()
	if f.Depth == nil {
		return fmt.Errorf("%w: missing depth matrix", ErrShapeMismatch)
	}
	check := func(name string, m *mat.Dense) error {
		if m == nil {
			return nil
		}
		if mr, mc := m.Dims(); mr != r || mc != c {
			return fmt.Errorf("%w: %s is %dx%d, signal is %dx%d", ErrShapeMismatch, name, mr, mc, r, c)
		}
		return nil
	}
	for _, m := range []struct {
		name string
		m    *mat.Dense
	}{{"depth", f.Depth}, {"alongship angle", f.Along}, {"athwartship angle", f.Athwart}} {
		if err := check(m.name, m.m); err != nil {
			return err
		}
	}
	if len(f.PingTimes) != 0 && len(f.PingTimes) != c {
		return fmt.Errorf("%w: %d ping times for %d pings", ErrShapeMismatch, len(f.PingTimes), c)
	}

	for j := 0; j < c; j++ {
		prev := math.NaN()
		for i := 0; i < r; i++ {
			d := f.Depth.At(i, j)
			if math.IsNaN(d) || math.IsInf(d, 0) {
				continue
			}
			if !math.IsNaN(prev) && d <= prev {
				return fmt.Errorf("%w: ping %d sample %d (%g after %g)", ErrNonMonotonicDepth, j, i, d, prev)
			}
			prev = d
		}
	}
	return nil
}

// DepthStep returns the median spacing between consecutive finite depth
// samples over all pings, or NaN if there is none.
func (f *Frame) DepthStep() float64 {
	r, c := f.Dims()
	if r < 2 || c == 0 {
		return math.NaN()
	}
	diffs := make([]float64, 0, (r-1)*c)
	for j := 0; j < c; j++ {
		for i := 1; i < r; i++ {
			d := f.Depth.At(i, j) - f.Depth.At(i-1, j)
			if !math.IsNaN(d) && !math.IsInf(d, 0) {
				diffs = append(diffs, d)
			}
		}
	}
	return median(diffs)
}

// median mirrors the usual definition: the mean of the two middle values
// for even-length input.
func median(v []float64) float64 {
	n := len(v)
	if n == 0 {
		return math.NaN()
	}
	sort.Float64s(v)
	if n%2 == 1 {
		return v[n/2]
	}
	return 0.5 * (v[n/2-1] + v[n/2])
}

// BottomLine is the per-ping seafloor boundary depth, aligned 1:1 with a
// frame's ping axis. NaN entries mean "no bottom for this ping".
type BottomLine []float64

// At returns the bottom depth of ping j, or NaN if the line is absent.
func (b BottomLine) At(j int) float64 {
	if b == nil || j < 0 || j >= len(b) {
		return math.NaN()
	}
	return b[j]
}
