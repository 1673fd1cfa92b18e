package l5detect

import (
	"fmt"

	"github.com/banshee-data/echo.report/internal/config"
	"github.com/banshee-data/echo.report/internal/echo/l1frames"
	"github.com/banshee-data/echo.report/internal/echo/l4compensation"
)

// Block is everything a strategy sees of one ping block.
type Block struct {
	View            l4compensation.View
	Sampling        l4compensation.Sampling
	TotalSamples    int     // samples per ping in the full frame
	Absorption      float64 // dB/m
	TransducerDepth float64 // m
	Nav             *l1frames.Navigation
}

// Stats counts what a strategy did with one block.
type Stats struct {
	Columns        int
	SkippedColumns int
	Candidates     int
	Accepted       int
	Empty          bool // nothing searchable in the block
}

// Strategy detects single targets in one block. Detect calls emit for each
// accepted target in (ping, sample) order and never retains b.
type Strategy interface {
	Variant() config.Variant
	Detect(b Block, emit func(Target)) Stats
}

// New returns the strategy selected by p.Variant.
func New(p config.DetectionParams) (Strategy, error) {
	switch p.Variant {
	case config.VariantThreshold, "":
		return &Threshold{p: p}, nil
	case config.VariantEnergy:
		return &Energy{p: p}, nil
	}
	return nil, fmt.Errorf("unknown detection variant %q", p.Variant)
}
