package l5detect

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocalMaxima(t *testing.T) {
	inf := math.Inf(-1)
	nan := math.NaN()
	tests := []struct {
		name string
		z    []float64
		from int
		want []int
	}{
		{"single", []float64{1, 3, 2}, 0, []int{1}},
		{"edges never count", []float64{5, 1, 5}, 0, nil},
		{"plateau keeps left edge", []float64{0, 2, 2, 2, 0}, 0, []int{1}},
		{"masked neighbours", []float64{inf, -40, inf}, 0, []int{1}},
		{"masked cell", []float64{-50, inf, -60}, 0, nil},
		{"nan neighbour", []float64{nan, 1, 0}, 0, nil},
		{"guard", []float64{0, 3, 0, 2, 0}, 2, []int{3}},
		{"too short", []float64{1, 2}, 0, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, localMaxima(tc.z, tc.from))
		})
	}
}

func TestThinBySeparation(t *testing.T) {
	assert.Equal(t, []int{2, 7, 12}, thinBySeparation([]int{2, 4, 7, 9, 12}, 5))
	assert.Equal(t, []int{3}, thinBySeparation([]int{3}, 100))
	assert.Empty(t, thinBySeparation(nil, 3))
}

func TestSpread(t *testing.T) {
	z := []float64{-50, -36, -33, -30, -34, -36, -37}
	l, r := spread(z, 3, -36, -1)
	assert.Equal(t, 2, l)
	assert.Equal(t, 2, r)

	l, r = spread(z, 3, -36, 1)
	assert.Equal(t, 1, l)
	assert.Equal(t, 1, r)

	z[1] = math.NaN()
	l, _ = spread(z, 3, -40, -1)
	assert.Equal(t, 1, l, "stops at non-finite")
}

func TestFiniteExtent(t *testing.T) {
	lo, hi, ok := finiteExtent([]float64{math.NaN(), 2, 1, 3, math.NaN()}, 0, 4)
	assert.True(t, ok)
	assert.Equal(t, 1.0, lo)
	assert.Equal(t, 3.0, hi)

	_, _, ok = finiteExtent([]float64{math.NaN(), math.Inf(1)}, 0, 1)
	assert.False(t, ok)
}

func TestNearAny(t *testing.T) {
	kept := []int{10, 40}
	assert.True(t, nearAny(43, kept, 4))
	assert.False(t, nearAny(44, kept, 4))
	assert.True(t, nearAny(12, kept, 4), "checks every kept peak, not only the last")
	assert.False(t, nearAny(5, nil, 4))
}
