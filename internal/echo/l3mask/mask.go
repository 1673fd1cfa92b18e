package l3mask

import (
	"github.com/banshee-data/echo.report/internal/echo/l1frames"
	"github.com/banshee-data/echo.report/internal/echo/l2blocks"
	"gonum.org/v1/gonum/mat"
)

// RegionMask marks cells excluded by user-drawn regions. Coordinates are
// global sample and ping indices.
type RegionMask interface {
	Excluded(sample, ping int) bool
}

// NoRegions is the RegionMask that excludes nothing.
type NoRegions struct{}

// Excluded implements RegionMask.
func (NoRegions) Excluded(int, int) bool { return false }

// BottomIndex returns the first sample of ping whose finite depth is at or
// below bottom. When no sample crosses (or bottom is NaN) it returns the
// last sample index, meaning nothing is excluded.
func BottomIndex(depth *mat.Dense, ping int, bottom float64) int {
	rows, _ := depth.Dims()
	for i := 0; i < rows; i++ {
		// NaN depth or bottom compare false
		if depth.At(i, ping) >= bottom {
			return i
		}
	}
	return rows - 1
}

// ActiveRows returns how many leading sample rows pings [start, stop) need:
// one past the deepest per-ping bottom index. Without a bottom line every
// row is active.
func ActiveRows(f *l1frames.Frame, bottom l1frames.BottomLine, start, stop int) int {
	rows, _ := f.Dims()
	if bottom == nil || stop <= start {
		return rows
	}
	maxIdx := 0
	for j := start; j < stop; j++ {
		if idx := BottomIndex(f.Depth, j, bottom.At(j)); idx > maxIdx {
			maxIdx = idx
		}
	}
	return maxIdx + 1
}

// Mask is the per-block exclusion mask, Rows x Pings, indexed [sample, ping]
// relative to the block.
type Mask struct {
	Rows  int
	Pings int
	cells []bool
}

// At reports whether cell (i, j) is excluded from detection.
func (m *Mask) At(i, j int) bool {
	return m.cells[i*m.Pings+j]
}

// Count returns how many cells are excluded.
func (m *Mask) Count() int {
	n := 0
	for _, c := range m.cells {
		if c {
			n++
		}
	}
	return n
}

// Build computes the mask for block b restricted to its first rows samples:
// a cell is excluded when its depth is at or below the ping's bottom, or
// when regions excludes it. regions may be nil.
func Build(f *l1frames.Frame, bottom l1frames.BottomLine, regions RegionMask, b l2blocks.Block, rows int) *Mask {
	if regions == nil {
		regions = NoRegions{}
	}
	m := &Mask{Rows: rows, Pings: b.Len(), cells: make([]bool, rows*b.Len())}
	for j := 0; j < b.Len(); j++ {
		ping := b.Start + j
		bot := bottom.At(ping)
		for i := 0; i < rows; i++ {
			if f.Depth.At(i, ping) >= bot || regions.Excluded(i, ping) {
				m.cells[i*m.Pings+j] = true
			}
		}
	}
	return m
}
