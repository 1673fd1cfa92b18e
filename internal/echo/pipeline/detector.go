package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/echo.report/internal/config"
	"github.com/banshee-data/echo.report/internal/echo/l1frames"
	"github.com/banshee-data/echo.report/internal/echo/l2blocks"
	"github.com/banshee-data/echo.report/internal/echo/l3mask"
	"github.com/banshee-data/echo.report/internal/echo/l4compensation"
	"github.com/banshee-data/echo.report/internal/echo/l5detect"
	"github.com/banshee-data/echo.report/internal/echo/l6targets"
	"golang.org/x/sync/errgroup"
)

// Detector runs one detection strategy over a channel of a Source. A
// Detector is immutable after construction and may be reused.
type Detector struct {
	params   config.DetectionParams
	strategy l5detect.Strategy
	regions  l3mask.RegionMask
	workers  int
}

// Option customises a Detector.
type Option func(*Detector)

// WithWorkers processes up to n blocks concurrently. n <= 1 is sequential.
func WithWorkers(n int) Option {
	return func(d *Detector) { d.workers = n }
}

// WithRegions excludes the cells r marks in addition to under-bottom cells.
func WithRegions(r l3mask.RegionMask) Option {
	return func(d *Detector) { d.regions = r }
}

// WithStrategy overrides the strategy selected from params.Variant.
func WithStrategy(s l5detect.Strategy) Option {
	return func(d *Detector) { d.strategy = s }
}

// NewDetector builds a Detector for validated params.
func NewDetector(params config.DetectionParams, opts ...Option) (*Detector, error) {
	if params.Channel == "" {
		return nil, &config.MissingParameterError{Name: config.KeyChannel}
	}
	d := &Detector{params: params, regions: l3mask.NoRegions{}, workers: 1}
	for _, o := range opts {
		o(d)
	}
	if d.strategy == nil {
		s, err := l5detect.New(params)
		if err != nil {
			return nil, err
		}
		d.strategy = s
	}
	return d, nil
}

// Params returns the detector's configuration.
func (d *Detector) Params() config.DetectionParams { return d.params }

// Result is the outcome of one run.
type Result struct {
	Targets   *l6targets.Set // finalized
	Sampling  l4compensation.Sampling
	Partition l2blocks.Partition
	Stats     RunStats
}

// RunStats aggregates per-block strategy statistics.
type RunStats struct {
	Blocks         int
	EmptyBlocks    int
	Columns        int
	SkippedColumns int
	Candidates     int
	Duration       time.Duration
}

func (r *RunStats) add(s l5detect.Stats) {
	r.Blocks++
	if s.Empty {
		r.EmptyBlocks++
	}
	r.Columns += s.Columns
	r.SkippedColumns += s.SkippedColumns
	r.Candidates += s.Candidates
}

// run is the read-only state shared by every block of one Run.
type run struct {
	frame   *l1frames.Frame
	bottom  l1frames.BottomLine
	nav     *l1frames.Navigation
	block   l5detect.Block
	samples int
}

// Run detects single targets in the configured channel of src. Context
// cancellation is checked between blocks. Configuration and frame shape
// problems fail before any block is processed.
func (d *Detector) Run(ctx context.Context, src l1frames.Source) (*Result, error) {
	start := time.Now()
	r, err := d.prepare(src)
	if err != nil {
		return nil, err
	}
	_, pings := r.frame.Dims()

	globalRows := l3mask.ActiveRows(r.frame, r.bottom, 0, pings)
	part := l2blocks.NewPartition(pings, globalRows, d.params.BlockLen)
	diagf("channel=%s variant=%s pings=%d samples=%d rows=%d blocks=%d block_size=%d np=%d nechp=%d",
		d.params.Channel, d.strategy.Variant(), pings, r.samples, globalRows,
		part.NumBlocks, part.BlockSize, r.block.Sampling.Np, r.block.Sampling.NechP)

	res := &Result{Sampling: r.block.Sampling, Partition: part}
	if d.workers > 1 && part.NumBlocks > 1 {
		res.Targets, res.Stats, err = d.runParallel(ctx, r, part)
	} else {
		res.Targets, res.Stats, err = d.runSequential(ctx, r, part)
	}
	if err != nil {
		return nil, err
	}
	res.Targets.Finalize()
	res.Stats.Duration = time.Since(start)
	diagf("channel=%s targets=%d candidates=%d empty_blocks=%d in %v",
		d.params.Channel, res.Targets.NbValidTargets(), res.Stats.Candidates, res.Stats.EmptyBlocks, res.Stats.Duration)
	return res, nil
}

func (d *Detector) prepare(src l1frames.Source) (*run, error) {
	ch := d.params.Channel
	frame, err := src.Frame(ch)
	if err != nil {
		return nil, fmt.Errorf("load frame: %w", err)
	}
	if err := frame.Validate(); err != nil {
		return nil, fmt.Errorf("channel %q: %w", ch, err)
	}
	samples, pings := frame.Dims()

	bottom, ok, err := src.Bottom(ch, frame.PingTimes)
	if err != nil {
		return nil, fmt.Errorf("load bottom line: %w", err)
	}
	if !ok {
		bottom = nil
	} else if len(bottom) != pings {
		return nil, fmt.Errorf("channel %q: %w: %d bottom values for %d pings", ch, l1frames.ErrShapeMismatch, len(bottom), pings)
	}

	nav := l1frames.ZeroNavigation(pings)
	if len(frame.PingTimes) == pings {
		nav = l1frames.LoadNavigation(src, frame.PingTimes, d.params.NavTolerance)
	}

	r := &run{frame: frame, bottom: bottom, nav: nav, samples: samples}
	r.block = l5detect.Block{
		Sampling:        l4compensation.NewSampling(frame.DepthStep(), d.params.SoundSpeed, d.params.PulseDuration, d.params.Np),
		TotalSamples:    samples,
		Absorption:      src.Absorption(ch),
		TransducerDepth: src.TransducerDepth(ch),
		Nav:             nav,
	}
	return r, nil
}

// detectBlock masks and searches one block, emitting into out.
func (d *Detector) detectBlock(r *run, b l2blocks.Block, out *l6targets.Set) l5detect.Stats {
	rows := l3mask.ActiveRows(r.frame, r.bottom, b.Start, b.Stop)
	blk := r.block
	blk.View = l4compensation.View{
		Frame: r.frame,
		Span:  b,
		Rows:  rows,
		Mask:  l3mask.Build(r.frame, r.bottom, d.regions, b, rows),
	}
	st := d.strategy.Detect(blk, func(t l5detect.Target) {
		if err := out.Append(t); err != nil {
			opsf("block %d: dropped target at ping %d sample %d: %v", b.Index, t.Ping, t.Sample, err)
		}
	})
	if st.Empty {
		opsf("block %d pings [%d,%d): nothing searchable, skipped", b.Index, b.Start, b.Stop)
	}
	tracef("block %d pings [%d,%d) rows=%d candidates=%d accepted=%d skipped_columns=%d",
		b.Index, b.Start, b.Stop, rows, st.Candidates, st.Accepted, st.SkippedColumns)
	return st
}

func (d *Detector) runSequential(ctx context.Context, r *run, part l2blocks.Partition) (*l6targets.Set, RunStats, error) {
	var stats RunStats
	set := l6targets.NewSet()
	for b := range part.Blocks() {
		if err := ctx.Err(); err != nil {
			return nil, stats, fmt.Errorf("detection cancelled before block %d: %w", b.Index, err)
		}
		stats.add(d.detectBlock(r, b, set))
	}
	return set, stats, nil
}

func (d *Detector) runParallel(ctx context.Context, r *run, part l2blocks.Partition) (*l6targets.Set, RunStats, error) {
	sets := make([]*l6targets.Set, part.NumBlocks)
	var (
		mu    sync.Mutex
		stats RunStats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for b := range part.Blocks() {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return fmt.Errorf("detection cancelled before block %d: %w", b.Index, err)
			}
			local := l6targets.NewSet()
			st := d.detectBlock(r, b, local)
			sets[b.Index] = local
			mu.Lock()
			stats.add(st)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stats, err
	}
	if err := ctx.Err(); err != nil {
		return nil, stats, fmt.Errorf("detection cancelled: %w", err)
	}

	// Blocks cover increasing ping ranges, so block order is (ping, sample) order.
	set := l6targets.NewSet()
	for _, s := range sets {
		if err := set.Merge(s); err != nil {
			return nil, stats, err
		}
	}
	return set, stats, nil
}
