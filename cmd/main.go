package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcapi "eeg-action-service/internal/api/grpc"
	"eeg-action-service/internal/app"
	"eeg-action-service/internal/config"
	httpapi "eeg-action-service/internal/http"
	"eeg-action-service/internal/observability"
	"eeg-action-service/internal/observability/metrics"
	"eeg-action-service/internal/service/calibration"
	"eeg-action-service/internal/service/conditioner"
	"eeg-action-service/internal/service/cue"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	application := app.New(cfg)
	logger := application.Logger

	// Kafka publisher for session, prediction and action events
	publisher := app.NewPublisher(cfg.Kafka)
	defer publisher.Close()

	src, err := app.NewSource(cfg.Signal)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open signal source")
	}
	defer src.Close()

	clf, err := app.NewClassifier(cfg.Model)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create classifier")
	}

	sinks, closers, err := app.NewSinks(cfg, publisher)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create action sinks")
	}
	defer closeAll(closers)

	st, err := app.OpenStore(cfg.Store)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}

	deps := calibration.Dependencies{
		Source:      src,
		Conditioner: conditioner.New(cfg.Conditioner.Threshold),
		Classifier:  clf,
		Sink:        sinks,
		Cues:        cue.NewLibrary(cfg.Assets.CueDir),
		Clock:       app.NewClock(cfg.Clock),
	}
	var (
		accounts grpcapi.Accounts
		history  httpapi.SessionHistory
	)
	if st != nil {
		defer st.Close()
		deps.Store = st
		accounts = st
		history = st
	}

	orchestrator := calibration.New(deps, calibration.Timings{
		PrepareDelay: cfg.Calibration.PrepareDelay,
		ActionWindow: cfg.Calibration.ActionWindow,
		ReadTimeout:  cfg.Calibration.ReadTimeout,
		SinkTimeout:  cfg.Calibration.SinkTimeout,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := httpapi.NewHub()
	go hub.Run(ctx)
	orchestrator.Subscribe(hub)
	orchestrator.Subscribe(publisher)

	// gRPC control service
	lis, err := net.Listen("tcp", ":"+cfg.Service.GRPCPort)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to listen")
	}

	server := grpc.NewServer(
		grpc.UnaryInterceptor(observability.UnaryServerInterceptor(metrics.DefaultMetrics)),
		grpc.StreamInterceptor(observability.StreamServerInterceptor(metrics.DefaultMetrics)),
	)

	// Register gRPC health check service
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(grpcapi.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	grpcapi.Register(server, orchestrator, accounts)

	// Enable gRPC reflection for debugging tools like grpcurl
	reflection.Register(server)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Service.HTTPPort,
		Handler:           httpapi.NewRouter(application, orchestrator, history, hub),
		ReadHeaderTimeout: 5 * time.Second,
	}
	obsServer := observability.NewServer(":"+cfg.Observability.MetricsPort, application.Ready)

	if err := application.Start(); err != nil {
		logger.Fatal().Err(err).Msg("application start failed")
	}

	go func() {
		logger.Info().Str("port", cfg.Service.GRPCPort).Msg("EEG action gRPC service started")
		if err := server.Serve(lis); err != nil {
			logger.Fatal().Err(err).Msg("grpc serve failed")
		}
	}()
	go func() {
		logger.Info().Str("port", cfg.Service.HTTPPort).Msg("EEG action HTTP API started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http serve failed")
		}
	}()
	obsServer.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info().Msg("shutting down")
	application.Shutdown()
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := orchestrator.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("calibration shutdown incomplete")
	}
	server.GracefulStop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown incomplete")
	}
	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("observability shutdown incomplete")
	}
	cancel()
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("close failed")
		}
	}
}
