package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/banshee-data/echo.report/internal/config"
	"github.com/banshee-data/echo.report/internal/db"
	"github.com/banshee-data/echo.report/internal/echo/dataset"
	"github.com/banshee-data/echo.report/internal/echo/l1frames"
	"github.com/banshee-data/echo.report/internal/echo/l6targets"
	"github.com/banshee-data/echo.report/internal/echo/monitor"
	"github.com/banshee-data/echo.report/internal/echo/pipeline"
	sqlite "github.com/banshee-data/echo.report/internal/echo/storage/sqlite"
	"github.com/banshee-data/echo.report/internal/monitoring"
)

// options are the resolved command-line settings for one detection run.
type options struct {
	ConfigPath  string
	DatasetPath string
	Channel     string
	Variant     string
	DBPath      string
	PlotDir     string
	Workers     int
}

// outcome is what a detection run produced.
type outcome struct {
	RunID   string // empty when storage is disabled
	Params  config.DetectionParams
	Result  *pipeline.Result
	Summary l6targets.Summary
	Plots   []string
}

func openDB(path string) (*db.DB, error) {
	if path == "" {
		return nil, nil
	}
	return db.NewDB(path)
}

// resolveParams merges the CLI overrides over the tuning file, or the
// built-in defaults when no file is given.
func resolveParams(o options, ds *l1frames.Dataset) (config.DetectionParams, error) {
	var base *config.TuningConfig
	if o.ConfigPath != "" {
		cfg, err := config.LoadTuningConfig(o.ConfigPath)
		if err != nil {
			return config.DetectionParams{}, err
		}
		base = cfg
	}

	ch := o.Channel
	if ch == "" {
		names := ds.ChannelNames()
		if len(names) != 1 {
			return config.DetectionParams{}, fmt.Errorf("dataset has %d channels %v: choose one with -channel", len(names), names)
		}
		ch = names[0]
	}

	raw := map[string]interface{}{config.KeyChannel: ch}
	if o.Variant != "" {
		raw["Variant"] = o.Variant
	}
	return config.ParseParams(base, raw)
}

// failRun marks runID failed with cause. When targets is non-nil the
// run's stored targets are removed first, so a failed run never keeps
// detections. Storage errors here are logged, since cause is what the
// caller returns.
func failRun(runs *sqlite.RunStore, targets *sqlite.TargetStore, runID string, cause error, logf func(string, ...interface{})) {
	if targets != nil {
		if _, err := targets.DeleteByRun(runID); err != nil {
			logf("failed to remove targets of failed run: %v", err)
		}
	}
	if err := runs.Fail(runID, cause); err != nil {
		logf("failed to mark run failed: %v", err)
	}
}

// detect runs the pipeline over the dataset and, when database is non-nil,
// records the run and its targets. A failed run is recorded as failed and
// no targets are stored for it.
func detect(ctx context.Context, o options, database *db.DB) (*outcome, error) {
	ds, err := dataset.Load(o.DatasetPath)
	if err != nil {
		return nil, err
	}
	params, err := resolveParams(o, ds)
	if err != nil {
		return nil, err
	}
	detector, err := pipeline.NewDetector(params, pipeline.WithWorkers(o.Workers))
	if err != nil {
		return nil, err
	}

	out := &outcome{Params: params}
	logf := monitoring.Logf

	var runs *sqlite.RunStore
	if database != nil {
		runs = sqlite.NewRunStore(database.DB, nil)
		paramsJSON, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encode params: %w", err)
		}
		run := &sqlite.Run{
			Channel:    params.Channel,
			Variant:    string(params.Variant),
			Source:     o.DatasetPath,
			ParamsJSON: paramsJSON,
		}
		if err := runs.Create(run); err != nil {
			return nil, fmt.Errorf("create run: %w", err)
		}
		out.RunID = run.RunID
		logf = monitoring.RunLogf(run.RunID)
	}

	res, err := detector.Run(ctx, ds)
	if err != nil {
		if runs != nil {
			failRun(runs, nil, out.RunID, err, logf)
		}
		return nil, err
	}
	out.Result = res
	out.Summary = res.Targets.Summarize()
	logf("channel %s: %d targets in %v", params.Channel, res.Targets.NbValidTargets(), res.Stats.Duration)

	if runs != nil {
		targets := sqlite.NewTargetStore(database.DB, nil)
		if err := targets.InsertSet(out.RunID, res.Targets); err != nil {
			failRun(runs, nil, out.RunID, err, logf)
			return nil, fmt.Errorf("store targets: %w", err)
		}
		frame, _ := ds.Frame(params.Channel)
		samples, pings := frame.Dims()
		if err := runs.Complete(out.RunID, sqlite.RunCounts{
			Pings:       pings,
			Samples:     samples,
			Blocks:      res.Partition.NumBlocks,
			TargetCount: res.Targets.NbValidTargets(),
			Duration:    res.Stats.Duration,
		}); err != nil {
			failRun(runs, targets, out.RunID, err, logf)
			return nil, fmt.Errorf("complete run: %w", err)
		}
	}

	if o.PlotDir != "" {
		paths, err := monitor.SavePlots(o.PlotDir, params.Channel, res.Targets.Targets())
		switch {
		case errors.Is(err, monitor.ErrNoTargets):
			logf("no targets to plot")
		case err != nil:
			return nil, err
		default:
			out.Plots = paths
		}
	}
	return out, nil
}

func printReport(w io.Writer, out *outcome) {
	s := out.Summary
	if out.RunID != "" {
		fmt.Fprintf(w, "run:        %s\n", out.RunID)
	}
	fmt.Fprintf(w, "channel:    %s (%s)\n", out.Params.Channel, out.Params.Variant)
	fmt.Fprintf(w, "blocks:     %d (%d empty)\n", out.Result.Stats.Blocks, out.Result.Stats.EmptyBlocks)
	fmt.Fprintf(w, "targets:    %d on %d pings\n", s.Count, s.Pings)
	if s.Count > 0 {
		fmt.Fprintf(w, "TS (dB):    min %.2f  median %.2f  max %.2f  mean %.2f\n", s.TSMin, s.TSMedian, s.TSMax, s.TSMean)
	}
	for _, p := range out.Plots {
		fmt.Fprintf(w, "plot:       %s\n", p)
	}
}
