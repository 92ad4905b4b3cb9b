package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/invoice-extractor/internal/app"
	"github.com/joseph-ayodele/invoice-extractor/internal/async"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/ingest"
	"github.com/joseph-ayodele/invoice-extractor/internal/repository"
	"github.com/joseph-ayodele/invoice-extractor/internal/server"
)

func main() {
	cfg := common.LoadConfig()

	fs := ff.NewFlagSet("extractd")
	var (
		grpcAddr  = fs.StringLong("grpc-addr", cfg.Server.GRPCAddr, "gRPC listen address")
		httpAddr  = fs.StringLong("http-addr", cfg.Server.HTTPAddr, "HTTP listen address")
		watch     = fs.StringLong("watch", "", "comma-separated directories to watch for new documents")
		scan      = fs.BoolLong("initial-scan", "ingest existing files under --watch on startup")
		logLevel  = fs.StringLong("log-level", "info", "debug, info, warn or error")
		logFormat = fs.StringLong("log-format", "json", "json or text")
	)
	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("INVOICE")); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	logger := app.NewLogger(*logLevel, *logFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := repository.HealthCheck(ctx, a.Records, cfg.Store.DialTimeout, logger); err != nil {
		logger.Error("store health failed", "error", err)
		os.Exit(1)
	}

	queue := async.NewWorkerQueue(async.ConfigFrom(cfg.Queue), func(ctx context.Context, job async.Job) error {
		_, err := a.Processor.ProcessFile(ctx, job.Path, job.Force)
		return err
	}, logger, async.WithMetrics(a.Metrics))
	ingestor := ingest.NewFSIngestor(a.Records, queue, logger)

	svc := server.NewService(server.Deps{
		Processor:      a.Processor,
		Records:        a.Records,
		Ingestor:       ingestor,
		Metrics:        a.Metrics,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Logger:         logger,
	})

	// gRPC server
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(server.LoggingInterceptor(logger)))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)
	server.RegisterExtractionServer(grpcServer, server.NewGRPCService(svc, logger))

	lis, err := net.Listen("tcp", *grpcAddr)
	if err != nil {
		logger.Error("listen", "addr", *grpcAddr, "error", err)
		os.Exit(1)
	}
	go func() {
		logger.Info("grpc.serving", "addr", *grpcAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("grpc serve", "error", err)
			stop()
		}
	}()

	// HTTP server
	httpServer := &http.Server{
		Addr:              *httpAddr,
		Handler:           server.NewRouter(svc),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("http.serving", "addr", *httpAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", "error", err)
			stop()
		}
	}()

	if roots := splitList(*watch); len(roots) > 0 {
		paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:       roots,
			InitialScan: *scan,
			SkipHidden:  true,
			Debounce:    500 * time.Millisecond,
			Logger:      logger,
		})
		if err != nil {
			logger.Error("watcher", "error", err)
			os.Exit(1)
		}
		go feed(ctx, ingestor, paths, errs, logger)
	}

	<-ctx.Done()
	logger.Info("shutting down...")
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	grpcServer.GracefulStop()
	queue.Shutdown(shutdownCtx)
	logger.Info("stopped")
}

// feed hands watcher events to the ingestor until both channels close.
func feed(ctx context.Context, ingestor ingest.Ingestor, paths <-chan string, errs <-chan error, logger *slog.Logger) {
	for paths != nil || errs != nil {
		select {
		case p, ok := <-paths:
			if !ok {
				paths = nil
				continue
			}
			res, err := ingestor.IngestPath(ctx, p, false)
			if err != nil {
				logger.Warn("watch.ingest_failed", "path", p, "error", err)
				continue
			}
			logger.Info("watch.ingested", "path", p, "queued", res.Queued, "deduplicated", res.Deduplicated)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("watch.error", "error", err)
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
