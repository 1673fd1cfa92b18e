// Command echo-detect runs single-target detection over one channel of an
// echosounder dataset, stores the targets in SQLite and optionally serves
// debug charts over the stored runs.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/echo.report/internal/echo/pipeline"
	"github.com/banshee-data/echo.report/internal/version"
)

var (
	configPath  = flag.String("config", "", "Tuning config JSON (default: built-in defaults)")
	datasetPath = flag.String("dataset", "", "Dataset file (.json or .json.gz)")
	channel     = flag.String("channel", "", "Channel to process (default: the only channel in the dataset)")
	variant     = flag.String("variant", "", "Override the detection variant: threshold or energy")
	dbPath      = flag.String("db", "echo_detections.db", "SQLite database for runs and targets (empty to skip storage)")
	plotDir     = flag.String("plots", "", "Directory for PNG plots of the detected targets (empty to skip)")
	workers     = flag.Int("workers", 1, "Blocks processed concurrently")
	listen      = flag.String("listen", "", "Serve debug charts and the tailsql console on this address after the run")
	grpcListen  = flag.String("grpc-listen", "", "Serve the gRPC health service on this address (with -listen)")
	verbose     = flag.Bool("v", false, "Log per-run and per-block progress")
	trace       = flag.Bool("trace", false, "Log per-block candidate counts")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

const program = "echo-detect"

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String(program))
		return
	}
	if *datasetPath == "" && *listen == "" {
		log.Fatal("-dataset or -listen is required")
	}

	pipeline.SetLogWriters(os.Stderr, writerIf(*verbose), writerIf(*trace))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := options{
		ConfigPath:  *configPath,
		DatasetPath: *datasetPath,
		Channel:     *channel,
		Variant:     *variant,
		DBPath:      *dbPath,
		PlotDir:     *plotDir,
		Workers:     *workers,
	}

	database, err := openDB(opts.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	if database != nil {
		defer database.Close()
	}

	if opts.DatasetPath != "" {
		out, err := detect(ctx, opts, database)
		if err != nil {
			log.Fatalf("detection failed: %v", err)
		}
		printReport(os.Stdout, out)
	}

	if *listen != "" {
		if database == nil {
			log.Fatal("-listen needs a database (-db)")
		}
		if err := serve(ctx, database, *listen, *grpcListen); err != nil {
			log.Fatalf("serve: %v", err)
		}
	}
}

func writerIf(on bool) io.Writer {
	if on {
		return os.Stderr
	}
	return nil
}
