package l6targets

import (
	"errors"
	"math"
	"slices"

	"github.com/banshee-data/echo.report/internal/echo/l5detect"
	"gonum.org/v1/gonum/stat"
)

// Target is the canonical detection record from l5detect.
type Target = l5detect.Target

// ErrFinalized is returned when a finalized Set is modified.
var ErrFinalized = errors.New("detection set is finalized")

// Set is an ordered, append-only sequence of accepted targets. Appends must
// arrive in (block, ping, sample) order; Finalize freezes the set and
// records the count. A Set is not safe for concurrent use.
type Set struct {
	targets   []Target
	finalized bool
	count     int
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{}
}

// Append adds t to the end of the set.
func (s *Set) Append(t Target) error {
	if s.finalized {
		return ErrFinalized
	}
	s.targets = append(s.targets, t)
	return nil
}

// Merge appends every target of other, which must cover later pings than
// anything already in s.
func (s *Set) Merge(other *Set) error {
	if s.finalized {
		return ErrFinalized
	}
	if other != nil {
		s.targets = append(s.targets, other.targets...)
	}
	return nil
}

// Finalize freezes the set. Calling it twice is harmless.
func (s *Set) Finalize() {
	if s.finalized {
		return
	}
	s.finalized = true
	s.count = len(s.targets)
}

// Finalized reports whether Finalize has been called.
func (s *Set) Finalized() bool { return s.finalized }

// NbValidTargets is the count recorded at Finalize, or the current length
// before that.
func (s *Set) NbValidTargets() int {
	if s.finalized {
		return s.count
	}
	return len(s.targets)
}

// Len returns the number of targets.
func (s *Set) Len() int { return len(s.targets) }

// At returns target i.
func (s *Set) At(i int) Target { return s.targets[i] }

// Targets returns a copy of the targets in order.
func (s *Set) Targets() []Target {
	return slices.Clone(s.targets)
}

// Ordered reports whether targets are sorted by (ping, sample).
func (s *Set) Ordered() bool {
	return slices.IsSortedFunc(s.targets, compareTargets)
}

func compareTargets(a, b Target) int {
	if a.Ping != b.Ping {
		return a.Ping - b.Ping
	}
	return a.Sample - b.Sample
}

// SortTargets orders ts by (ping, sample), the order a sequential run emits.
func SortTargets(ts []Target) {
	slices.SortStableFunc(ts, compareTargets)
}

// Summary describes the TS distribution of a set.
type Summary struct {
	Count     int     `json:"count"`
	Pings     int     `json:"pings"` // distinct pings with a target
	TSMin     float64 `json:"ts_min"`
	TSMax     float64 `json:"ts_max"`
	TSMean    float64 `json:"ts_mean"`
	TSStdDev  float64 `json:"ts_std_dev"`
	TSMedian  float64 `json:"ts_median"`
	RangeMean float64 `json:"range_mean"`
}

// Summarize computes the Summary of s. TS statistics are NaN for an empty
// set; the standard deviation is NaN with fewer than two targets.
func (s *Set) Summarize() Summary {
	nan := math.NaN()
	sum := Summary{Count: len(s.targets), TSMin: nan, TSMax: nan, TSMean: nan, TSStdDev: nan, TSMedian: nan, RangeMean: nan}
	if len(s.targets) == 0 {
		return sum
	}
	ts := make([]float64, len(s.targets))
	rng := make([]float64, len(s.targets))
	pings := make(map[int]struct{})
	for i, t := range s.targets {
		ts[i] = t.TSComp
		rng[i] = t.Range
		pings[t.Ping] = struct{}{}
	}
	sum.Pings = len(pings)
	sum.TSMin = slices.Min(ts)
	sum.TSMax = slices.Max(ts)
	sum.TSMean, sum.TSStdDev = stat.MeanStdDev(ts, nil)
	if len(ts) < 2 {
		sum.TSStdDev = nan
	}
	sum.RangeMean = stat.Mean(rng, nil)

	sorted := slices.Clone(ts)
	slices.Sort(sorted)
	sum.TSMedian = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	return sum
}
