// Calibration Viewer - live operator display
// Tails the calibration Kafka topics and pushes events to browsers over WebSocket
package main

import (
	"context"
	"embed"
	"errors"
	"flag"
	"io/fs"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"eeg-action-service/internal/config"
	"eeg-action-service/internal/events"
	httpapi "eeg-action-service/internal/http"
	"eeg-action-service/internal/observability/logging"
)

//go:embed static/*
var staticFiles embed.FS

func main() {
	port := flag.String("port", "8082", "HTTP server port")
	lookback := flag.Duration("lookback", time.Hour, "Replay events newer than this on startup")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init(logging.Config{
		Level:      cfg.Observability.LogLevel,
		Format:     "console",
		TimeFormat: time.RFC3339,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	hub := httpapi.NewHub()
	go hub.Run(ctx)

	topics := []string{cfg.Kafka.TopicSession, cfg.Kafka.TopicPrediction, cfg.Kafka.TopicAction}
	for _, topic := range topics {
		c := events.NewConsumer(ctx, cfg.Kafka.Brokers, topic, *lookback)
		go func() {
			_ = c.Run(ctx, func(_ string, payload []byte) {
				hub.Broadcast(payload)
			})
		}()
	}

	staticFS, _ := fs.Sub(staticFiles, "static")
	r := chi.NewRouter()
	r.Get("/ws", hub.ServeWS)
	r.Handle("/*", http.FileServer(http.FS(staticFS)))

	srv := &http.Server{
		Addr:              ":" + *port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info().
		Str("url", "http://localhost:"+*port).
		Strs("brokers", cfg.Kafka.Brokers).
		Strs("topics", topics).
		Msg("Calibration viewer starting")

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server error")
	}
}
