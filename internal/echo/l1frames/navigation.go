package l1frames

import (
	"math"
	"sort"
	"time"
)

// NavField names a per-ping platform series.
type NavField string

const (
	NavHeading  NavField = "heading"
	NavPitch    NavField = "pitch"
	NavRoll     NavField = "roll"
	NavHeave    NavField = "heave"
	NavDistance NavField = "distance"
)

// NavFields lists every field Navigation carries, in a stable order.
var NavFields = []NavField{NavHeading, NavPitch, NavRoll, NavHeave, NavDistance}

// Navigation holds per-ping platform scalars aligned to a frame's pings.
// Fields are zero for pings the source could not resolve.
type Navigation struct {
	Heading  []float64
	Pitch    []float64
	Roll     []float64
	Heave    []float64
	Distance []float64
}

// Sample is the navigation state of one ping.
type Sample struct {
	Heading, Pitch, Roll, Heave, Distance float64
}

// At returns the navigation state of ping j. Missing series read as zero.
func (n *Navigation) At(j int) Sample {
	if n == nil {
		return Sample{}
	}
	get := func(v []float64) float64 {
		if j < 0 || j >= len(v) {
			return 0
		}
		return v[j]
	}
	return Sample{
		Heading:  get(n.Heading),
		Pitch:    get(n.Pitch),
		Roll:     get(n.Roll),
		Heave:    get(n.Heave),
		Distance: get(n.Distance),
	}
}

// ZeroNavigation returns navigation of all zeros for n pings.
func ZeroNavigation(n int) *Navigation {
	return &Navigation{
		Heading:  make([]float64, n),
		Pitch:    make([]float64, n),
		Roll:     make([]float64, n),
		Heave:    make([]float64, n),
		Distance: make([]float64, n),
	}
}

// LoadNavigation pulls every NavField from src aligned to pingTimes. Fields
// the source does not have, and pings it cannot resolve, are zero.
// A nil src yields all-zero navigation.
func LoadNavigation(src NavigationSource, pingTimes []time.Time, tolerance time.Duration) *Navigation {
	nav := ZeroNavigation(len(pingTimes))
	if src == nil {
		return nav
	}
	for _, field := range NavFields {
		vals, ok := src.Navigation(field, pingTimes, tolerance)
		if !ok || len(vals) != len(pingTimes) {
			continue
		}
		dst := nav.field(field)
		for i, v := range vals {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			dst[i] = v
		}
	}
	return nav
}

func (n *Navigation) field(f NavField) []float64 {
	switch f {
	case NavHeading:
		return n.Heading
	case NavPitch:
		return n.Pitch
	case NavRoll:
		return n.Roll
	case NavHeave:
		return n.Heave
	case NavDistance:
		return n.Distance
	}
	return nil
}

// AlignNearest resamples values recorded at times onto targets, picking the
// nearest recorded time within tolerance. Equidistant neighbours resolve to
// the later one. Unresolved targets are NaN. times must be sorted ascending
// and the same length as values.
func AlignNearest(times []time.Time, values []float64, targets []time.Time, tolerance time.Duration) []float64 {
	out := make([]float64, len(targets))
	for i := range out {
		out[i] = math.NaN()
	}
	if len(times) == 0 || len(times) != len(values) {
		return out
	}
	for i, t := range targets {
		k := sort.Search(len(times), func(k int) bool { return !times[k].Before(t) })
		best := -1
		var bestDist time.Duration
		if k < len(times) {
			best, bestDist = k, times[k].Sub(t)
		}
		if k > 0 {
			if d := t.Sub(times[k-1]); best < 0 || d < bestDist {
				best, bestDist = k-1, d
			}
		}
		if best >= 0 && bestDist <= tolerance {
			out[i] = values[best]
		}
	}
	return out
}
