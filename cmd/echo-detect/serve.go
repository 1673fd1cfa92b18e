package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/banshee-data/echo.report/internal/db"
	"github.com/banshee-data/echo.report/internal/echo/monitor"
	sqlite "github.com/banshee-data/echo.report/internal/echo/storage/sqlite"
	"github.com/banshee-data/echo.report/internal/monitoring"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// healthService is the service name reported by the gRPC health server.
const healthService = "echo.report.Detections"

// newMux mounts the admin routes (tsweb debug index, tailsql, backup) and
// the detection charts on one mux.
func newMux(database *db.DB) (*http.ServeMux, error) {
	mux := http.NewServeMux()
	if err := database.AttachAdminRoutes(mux); err != nil {
		return nil, err
	}
	monitor.NewServer(
		sqlite.NewRunStore(database.DB, nil),
		sqlite.NewTargetStore(database.DB, nil),
	).Attach(mux)
	return mux, nil
}

func newHealthServer() (*grpc.Server, *health.Server) {
	hs := health.NewServer()
	hs.SetServingStatus(healthService, healthpb.HealthCheckResponse_SERVING)
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	return gs, hs
}

// serve runs the debug HTTP server, and the gRPC health server when
// grpcAddr is set, until ctx is cancelled.
func serve(ctx context.Context, database *db.DB, httpAddr, grpcAddr string) error {
	mux, err := newMux(database)
	if err != nil {
		return err
	}
	server := &http.Server{Addr: httpAddr, Handler: mux}

	var wg sync.WaitGroup
	errc := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		monitoring.Logf("debug server listening on %s", httpAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http server: %w", err)
		}
	}()

	var gs *grpc.Server
	var hs *health.Server
	if grpcAddr != "" {
		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			server.Close()
			wg.Wait()
			return fmt.Errorf("failed to listen: %w", err)
		}
		gs, hs = newHealthServer()
		wg.Add(1)
		go func() {
			defer wg.Done()
			monitoring.Logf("gRPC health listening on %s", grpcAddr)
			if err := gs.Serve(lis); err != nil {
				errc <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err = <-errc:
	}
	monitoring.Logf("shutting down servers...")

	if hs != nil {
		hs.Shutdown()
		gs.GracefulStop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := server.Shutdown(shutdownCtx); serr != nil {
		monitoring.Logf("HTTP server shutdown error: %v", serr)
	}
	wg.Wait()
	return err
}
