package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/echo.report/internal/db"
	"github.com/banshee-data/echo.report/internal/echo/dataset"
	"github.com/banshee-data/echo.report/internal/echo/l1frames"
	sqlite "github.com/banshee-data/echo.report/internal/echo/storage/sqlite"
	"github.com/banshee-data/echo.report/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestFlagDefaults(t *testing.T) {
	assert.Equal(t, "echo_detections.db", *dbPath)
	assert.Equal(t, 1, *workers)
	assert.Empty(t, *variant)
	assert.Empty(t, *listen)
	assert.False(t, *showVersion)
}

// writeDataset stores ds as gzip JSON and returns its path.
func writeDataset(t *testing.T, ds *l1frames.Dataset) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "survey.json.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, dataset.FromDataset(ds).Encode(f, true))
	require.NoError(t, f.Close())
	return path
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// twoEchoes has echoes at samples 5 and 40 on each of three pings.
func twoEchoes(t *testing.T) *l1frames.Dataset {
	e := testutil.NewEchogram(60, 3, 1, -100)
	for j := 0; j < 3; j++ {
		e.Echo(j, 5, -30, -32, -35, -45).Echo(j, 40, -30, -32, -35, -45)
	}
	return e.Dataset(t, "38kHz", nil)
}

func openTestDB(t *testing.T) *db.DB {
	t.Helper()
	d, err := openDB(filepath.Join(t.TempDir(), "echo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestDetect_StoresRunAndTargets(t *testing.T) {
	database := openTestDB(t)
	plots := filepath.Join(t.TempDir(), "plots")
	o := options{
		ConfigPath:  writeConfig(t, `{"Np": 5}`),
		DatasetPath: writeDataset(t, twoEchoes(t)),
		PlotDir:     plots,
		Workers:     2,
	}

	out, err := detect(context.Background(), o, database)
	require.NoError(t, err)
	require.NotEmpty(t, out.RunID)
	assert.Equal(t, "38kHz", out.Params.Channel, "single channel is picked automatically")
	assert.Equal(t, 6, out.Summary.Count)
	assert.Equal(t, 3, out.Summary.Pings)
	assert.Len(t, out.Plots, 2)

	run, err := sqlite.NewRunStore(database.DB, nil).Get(out.RunID)
	require.NoError(t, err)
	assert.Equal(t, sqlite.RunStatusCompleted, run.Status)
	assert.Equal(t, 6, run.TargetCount)
	assert.Equal(t, 3, run.Pings)
	assert.Equal(t, 60, run.Samples)
	assert.Equal(t, "threshold", run.Variant)
	assert.Contains(t, string(run.ParamsJSON), `"Np":5`)

	stored, err := sqlite.NewTargetStore(database.DB, nil).ListByRun(out.RunID)
	require.NoError(t, err)
	require.Len(t, stored, 6)
	for i, tg := range stored {
		assert.Equal(t, i/2, tg.Ping)
		assert.Equal(t, []int{5, 40}[i%2], tg.Sample)
	}

	var buf bytes.Buffer
	printReport(&buf, out)
	assert.Contains(t, buf.String(), "targets:    6 on 3 pings")
	assert.Contains(t, buf.String(), out.RunID)
}

func TestDetect_WithoutDatabase(t *testing.T) {
	o := options{
		ConfigPath:  writeConfig(t, `{"Np": 5}`),
		DatasetPath: writeDataset(t, twoEchoes(t)),
		Variant:     "energy",
	}
	out, err := detect(context.Background(), o, nil)
	require.NoError(t, err)
	assert.Empty(t, out.RunID)
	assert.Equal(t, "energy", string(out.Params.Variant))
	assert.Nil(t, out.Plots)
}

func TestDetect_CancelledRunIsRecordedAsFailed(t *testing.T) {
	database := openTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := detect(ctx, options{DatasetPath: writeDataset(t, twoEchoes(t))}, database)
	require.ErrorIs(t, err, context.Canceled)

	runs, err := sqlite.NewRunStore(database.DB, nil).List("", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, sqlite.RunStatusFailed, runs[0].Status)
	n, err := sqlite.NewTargetStore(database.DB, nil).CountByRun(runs[0].RunID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDetect_Errors(t *testing.T) {
	two := twoEchoes(t)
	other := testutil.NewEchogram(10, 1, 1, -90).Frame("120kHz")
	require.NoError(t, two.AddChannel(&l1frames.ChannelData{Frame: other}))
	multi := writeDataset(t, two)

	tests := []struct {
		name string
		o    options
		want string
	}{
		{"missing dataset", options{DatasetPath: filepath.Join(t.TempDir(), "none.json")}, "open dataset"},
		{"ambiguous channel", options{DatasetPath: multi}, "choose one with -channel"},
		{"unknown channel", options{DatasetPath: multi, Channel: "200kHz"}, "unknown channel"},
		{"bad variant", options{DatasetPath: multi, Channel: "38kHz", Variant: "sonar"}, "Variant"},
		{"bad config", options{DatasetPath: multi, Channel: "38kHz", ConfigPath: writeConfig(t, `{"Nope": 1}`)}, "Nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := detect(context.Background(), tt.o, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewMux_ServesChartsAndAdmin(t *testing.T) {
	database := openTestDB(t)
	_, err := detect(context.Background(), options{
		ConfigPath:  writeConfig(t, `{"Np": 5}`),
		DatasetPath: writeDataset(t, twoEchoes(t)),
	}, database)
	require.NoError(t, err)

	mux, err := newMux(database)
	require.NoError(t, err)

	for _, path := range []string{"/debug/echo/runs", "/debug/echo/summary", "/debug/echo/ts-histogram.png"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	}

	req := httptest.NewRequest(http.MethodGet, "/debug/tailsql/", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.NotEqual(t, http.StatusNotFound, rec.Code)
}

func TestHealthServer(t *testing.T) {
	gs, hs := newHealthServer()
	defer gs.Stop()

	resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{Service: healthService})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	hs.Shutdown()
	resp, err = hs.Check(context.Background(), &healthpb.HealthCheckRequest{Service: healthService})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)
}

func TestServe_StopsOnCancel(t *testing.T) {
	database := openTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, database, "127.0.0.1:0", "127.0.0.1:0") }()
	cancel()
	err := <-done
	if err != nil && !strings.Contains(err.Error(), "address") {
		t.Fatalf("serve returned %v", err)
	}
}

func TestDetect_StorageFailureLeavesNoTargets(t *testing.T) {
	tests := []struct {
		name    string
		trigger string
		wantErr string
	}{
		{
			name: "completion rejected",
			trigger: `CREATE TRIGGER block_complete BEFORE UPDATE OF status ON echo_runs
				WHEN NEW.status = 'completed' BEGIN SELECT RAISE(ABORT, 'completion blocked'); END`,
			wantErr: "complete run",
		},
		{
			name: "target insert rejected",
			trigger: `CREATE TRIGGER block_targets BEFORE INSERT ON echo_targets
				BEGIN SELECT RAISE(ABORT, 'targets blocked'); END`,
			wantErr: "store targets",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			database := openTestDB(t)
			_, err := database.Exec(tt.trigger)
			require.NoError(t, err)

			o := options{ConfigPath: writeConfig(t, `{"Np": 5}`), DatasetPath: writeDataset(t, twoEchoes(t))}
			_, err = detect(context.Background(), o, database)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			runs, err := sqlite.NewRunStore(database.DB, nil).List("", 0)
			require.NoError(t, err)
			require.Len(t, runs, 1)
			assert.Equal(t, sqlite.RunStatusFailed, runs[0].Status)
			assert.NotEmpty(t, runs[0].ErrorMessage)
			n, err := sqlite.NewTargetStore(database.DB, nil).CountByRun(runs[0].RunID)
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestFailRun_LogsStorageErrors(t *testing.T) {
	database := openTestDB(t)
	var logged []string
	logf := func(format string, v ...interface{}) {
		logged = append(logged, fmt.Sprintf(format, v...))
	}

	failRun(sqlite.NewRunStore(database.DB, nil), nil, "no-such-run", errors.New("boom"), logf)
	require.Len(t, logged, 1)
	assert.Contains(t, logged[0], "failed to mark run failed")
	assert.Contains(t, logged[0], "no-such-run not found")
}
