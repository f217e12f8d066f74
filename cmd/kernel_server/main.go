// Command kernel_server runs the transaction kernel as a daemon. It exposes
// gRPC health checking, Prometheus metrics and a small HTTP admin API for
// listing and terminating transactions.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/yan96in/neo4j/internal/database"
	"github.com/yan96in/neo4j/pkg/clock"
	"github.com/yan96in/neo4j/pkg/config"
	"github.com/yan96in/neo4j/pkg/logger"
	"github.com/yan96in/neo4j/pkg/telemetry"
)

const (
	serviceName     = "neo4j.kernel"
	shutdownTimeout = 30 * time.Second
)

var configPath = flag.String("config", "kernel.yaml", "Path to the YAML configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("CRITICAL: failed to load configuration: %v", err)
	}

	zlogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("CRITICAL: can't initialize zap logger: %v", err)
	}
	defer func() { _ = zlogger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *cfg, zlogger); err != nil {
		zlogger.Error("kernel server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	zlogger.Info("kernel server shut down gracefully")
}

// run serves until ctx is cancelled and then shuts everything down in reverse
// order of startup.
func run(ctx context.Context, cfg config.Config, zlogger *zap.Logger) error {
	tel, shutdownTelemetry, err := telemetry.New(cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			zlogger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	db, err := database.Open(ctx, cfg, database.Options{
		Logger: zlogger,
		Meter:  tel.Meter,
		Tracer: tel.Tracer,
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	grpcLis, err := net.Listen("tcp", cfg.Admin.GRPCAddr)
	if err != nil {
		_ = db.Close(context.Background())
		return fmt.Errorf("listen for gRPC on %s: %w", cfg.Admin.GRPCAddr, err)
	}
	httpLis, err := net.Listen("tcp", cfg.Admin.HTTPAddr)
	if err != nil {
		_ = grpcLis.Close()
		_ = db.Close(context.Background())
		return fmt.Errorf("listen for HTTP on %s: %w", cfg.Admin.HTTPAddr, err)
	}

	healthServer := health.NewServer()
	healthServer.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	httpServer := &http.Server{
		Handler:           newAdminMux(db, tel.Handler, clock.System(), zlogger.Named("admin")),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 2)
	go func() {
		zlogger.Info("gRPC server starting", zap.String("address", grpcLis.Addr().String()))
		if err := grpcServer.Serve(grpcLis); err != nil {
			serveErr <- fmt.Errorf("gRPC server: %w", err)
		}
	}()
	go func() {
		zlogger.Info("HTTP admin server starting", zap.String("address", httpLis.Addr().String()))
		if err := httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		zlogger.Info("shutdown signal received")
	case runErr = <-serveErr:
		zlogger.Error("server failed, shutting down", zap.Error(runErr))
	}

	healthServer.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zlogger.Warn("HTTP server shutdown failed", zap.Error(err))
	}
	grpcServer.GracefulStop()

	if err := db.Close(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("close database: %w", err))
	}
	return runErr
}
