package monitor

import (
	"errors"
	"fmt"
	"html"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/banshee-data/echo.report/internal/echo/l6targets"
	sqlite "github.com/banshee-data/echo.report/internal/echo/storage/sqlite"
	"github.com/banshee-data/echo.report/internal/httputil"
)

// RunSource reads stored runs.
type RunSource interface {
	Get(runID string) (*sqlite.Run, error)
	List(channel string, limit int) ([]*sqlite.Run, error)
}

// TargetSource reads the targets of a stored run.
type TargetSource interface {
	ListByRun(runID string) ([]l6targets.Target, error)
}

// Server serves debug views over stored detection runs. Every chart
// endpoint takes an optional run_id and defaults to the newest run.
type Server struct {
	runs    RunSource
	targets TargetSource
}

// NewServer returns a Server over the given stores.
func NewServer(runs RunSource, targets TargetSource) *Server {
	return &Server{runs: runs, targets: targets}
}

// Attach registers the debug routes on mux.
func (s *Server) Attach(mux *http.ServeMux) {
	mux.HandleFunc("/debug/echo/", s.handleDashboard)
	mux.HandleFunc("/debug/echo/runs", s.handleRuns)
	mux.HandleFunc("/debug/echo/summary", s.handleSummary)
	mux.HandleFunc("/debug/echo/ts-histogram", s.handleHistogramChart)
	mux.HandleFunc("/debug/echo/ts-histogram.png", s.handleHistogramPNG)
	mux.HandleFunc("/debug/echo/targets", s.handleTargetsChart)
	mux.HandleFunc("/debug/echo/targets.png", s.handleTargetsPNG)
}

// resolveRun picks the run named by run_id, or the newest run. It writes
// the error response itself and returns nil on failure.
func (s *Server) resolveRun(w http.ResponseWriter, r *http.Request) *sqlite.Run {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return nil
	}
	if id := r.URL.Query().Get("run_id"); id != "" {
		run, err := s.runs.Get(id)
		if err != nil {
			httputil.NotFound(w, err.Error())
			return nil
		}
		return run
	}
	runs, err := s.runs.List("", 1)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return nil
	}
	if len(runs) == 0 {
		httputil.NotFound(w, "no detection runs stored")
		return nil
	}
	return runs[0]
}

func (s *Server) loadTargets(w http.ResponseWriter, r *http.Request) (*sqlite.Run, []l6targets.Target, bool) {
	run := s.resolveRun(w, r)
	if run == nil {
		return nil, nil, false
	}
	targets, err := s.targets.ListByRun(run.RunID)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return nil, nil, false
	}
	if len(targets) == 0 {
		httputil.NotFound(w, fmt.Sprintf("run %s has no targets", run.RunID))
		return nil, nil, false
	}
	return run, targets, true
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			httputil.BadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := s.runs.List(r.URL.Query().Get("channel"), limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if runs == nil {
		runs = []*sqlite.Run{}
	}
	httputil.WriteJSONOK(w, runs)
}

// summaryResponse mirrors l6targets.Summary with NaN statistics as null.
type summaryResponse struct {
	RunID     string   `json:"run_id"`
	Channel   string   `json:"channel"`
	Variant   string   `json:"variant"`
	Count     int      `json:"count"`
	Pings     int      `json:"pings"`
	TSMin     *float64 `json:"ts_min"`
	TSMax     *float64 `json:"ts_max"`
	TSMean    *float64 `json:"ts_mean"`
	TSStdDev  *float64 `json:"ts_std_dev"`
	TSMedian  *float64 `json:"ts_median"`
	RangeMean *float64 `json:"range_mean"`
}

func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	run := s.resolveRun(w, r)
	if run == nil {
		return
	}
	targets, err := s.targets.ListByRun(run.RunID)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	set := l6targets.NewSet()
	for _, t := range targets {
		_ = set.Append(t)
	}
	set.Finalize()
	sum := set.Summarize()
	httputil.WriteJSONOK(w, summaryResponse{
		RunID:     run.RunID,
		Channel:   run.Channel,
		Variant:   run.Variant,
		Count:     sum.Count,
		Pings:     sum.Pings,
		TSMin:     finiteOrNil(sum.TSMin),
		TSMax:     finiteOrNil(sum.TSMax),
		TSMean:    finiteOrNil(sum.TSMean),
		TSStdDev:  finiteOrNil(sum.TSStdDev),
		TSMedian:  finiteOrNil(sum.TSMedian),
		RangeMean: finiteOrNil(sum.RangeMean),
	})
}

func binWidth(r *http.Request) (float64, error) {
	v := r.URL.Query().Get("bin_width")
	if v == "" {
		return DefaultBinWidth, nil
	}
	bw, err := strconv.ParseFloat(v, 64)
	if err != nil || !(bw > 0) || math.IsInf(bw, 0) {
		return 0, errors.New("bin_width must be a positive number")
	}
	return bw, nil
}

func runTitle(run *sqlite.Run) string {
	return fmt.Sprintf("%s %s", run.Channel, run.Variant)
}

func (s *Server) handleHistogramChart(w http.ResponseWriter, r *http.Request) {
	bw, err := binWidth(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	run, targets, ok := s.loadTargets(w, r)
	if !ok {
		return
	}
	h, err := TSHistogram(targets, bw)
	if err != nil {
		httputil.NotFound(w, err.Error())
		return
	}
	bar := HistogramChart(h, runTitle(run)+" TS distribution",
		fmt.Sprintf("run=%s targets=%d bin=%.2f dB", run.RunID, len(targets), bw))
	httputil.WriteRendered(w, "text/html; charset=utf-8", func(out io.Writer) error {
		return RenderPage(out, bar)
	})
}

func (s *Server) handleHistogramPNG(w http.ResponseWriter, r *http.Request) {
	bw, err := binWidth(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	run, targets, ok := s.loadTargets(w, r)
	if !ok {
		return
	}
	p, err := HistogramPlot(targets, bw, runTitle(run)+" TS distribution")
	if err != nil {
		httputil.NotFound(w, err.Error())
		return
	}
	httputil.WriteRendered(w, "image/png", func(out io.Writer) error {
		return WritePNG(out, p)
	})
}

func (s *Server) handleTargetsChart(w http.ResponseWriter, r *http.Request) {
	run, targets, ok := s.loadTargets(w, r)
	if !ok {
		return
	}
	scatter, err := TargetsChart(targets, runTitle(run)+" targets")
	if err != nil {
		httputil.NotFound(w, err.Error())
		return
	}
	httputil.WriteRendered(w, "text/html; charset=utf-8", func(out io.Writer) error {
		return scatter.Render(out)
	})
}

func (s *Server) handleTargetsPNG(w http.ResponseWriter, r *http.Request) {
	run, targets, ok := s.loadTargets(w, r)
	if !ok {
		return
	}
	p, err := TargetsPlot(targets, runTitle(run)+" targets")
	if err != nil {
		httputil.NotFound(w, err.Error())
		return
	}
	httputil.WriteRendered(w, "image/png", func(out io.Writer) error {
		return WritePNG(out, p)
	})
}

const dashboardHTML = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Echo detections</title></head>
<body style="font-family: sans-serif">
<h1>Echo detections</h1>
<table border="1" cellpadding="4">
<tr><th>run</th><th>channel</th><th>variant</th><th>status</th><th>targets</th><th>views</th></tr>
%s</table>
</body></html>
`

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/debug/echo/" {
		httputil.NotFound(w, "not found")
		return
	}
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	runs, err := s.runs.List("", 50)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	var rows string
	for _, run := range runs {
		qs := html.EscapeString("?run_id=" + url.QueryEscape(run.RunID))
		rows += fmt.Sprintf(
			`<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%d</td>`+
				`<td><a href="ts-histogram%s">histogram</a> <a href="targets%s">targets</a> <a href="summary%s">summary</a></td></tr>`+"\n",
			html.EscapeString(run.RunID), html.EscapeString(run.Channel), html.EscapeString(run.Variant),
			html.EscapeString(run.Status), run.TargetCount, qs, qs, qs)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprintf(w, dashboardHTML, rows)
}
