package l5detect

import "math"

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// localMaxima returns indices k >= from (and >= 1) with a finite z[k] that
// rises from the left and does not fall to the right:
// z[k] > z[k-1] && z[k] >= z[k+1]. The first and last samples never qualify.
func localMaxima(z []float64, from int) []int {
	var out []int
	for k := max(1, from); k < len(z)-1; k++ {
		if finite(z[k]) && z[k] > z[k-1] && z[k] >= z[k+1] {
			out = append(out, k)
		}
	}
	return out
}

// thinBySeparation keeps candidates at least minSep samples past the last
// kept one, scanning left to right.
func thinBySeparation(cands []int, minSep int) []int {
	keep := cands[:0:0]
	last := math.MinInt / 2
	for _, k := range cands {
		if k-last >= minSep {
			keep = append(keep, k)
			last = k
		}
	}
	return keep
}

// spread counts finite samples on each side of k that stay at or above
// floor, stopping after limit samples per side (limit < 0 means no cap).
func spread(z []float64, k int, floor float64, limit int) (left, right int) {
	for i := k - 1; i >= 0 && (limit < 0 || left < limit) && finite(z[i]) && z[i] >= floor; i-- {
		left++
	}
	for i := k + 1; i < len(z) && (limit < 0 || right < limit) && finite(z[i]) && z[i] >= floor; i++ {
		right++
	}
	return left, right
}

// finiteExtent returns the min and max finite value of v[i0..i1].
func finiteExtent(v []float64, i0, i1 int) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for i := i0; i <= i1; i++ {
		if !finite(v[i]) {
			continue
		}
		lo = math.Min(lo, v[i])
		hi = math.Max(hi, v[i])
		ok = true
	}
	return lo, hi, ok
}

// nearAny reports whether k is closer than minSep to any of kept.
func nearAny(k int, kept []int, minSep int) bool {
	for _, kk := range kept {
		d := k - kk
		if d < 0 {
			d = -d
		}
		if d < minSep {
			return true
		}
	}
	return false
}
