package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	grpcapi "eeg-action-service/internal/api/grpc"
)

const rpcTimeout = 5 * time.Second

func main() {
	serverAddr := flag.String("server", "localhost:50051", "gRPC server address")
	username := flag.String("username", "", "Operator to authenticate before starting (optional)")
	password := flag.String("password", "", "Operator password")
	pollInterval := flag.Duration("poll", 500*time.Millisecond, "Status poll interval")
	maxWait := flag.Duration("timeout", 2*time.Minute, "Give up and cancel the session after this long")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	conn, err := grpc.NewClient(*serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect")
	}
	defer conn.Close()

	client := grpcapi.NewClient(conn)
	log.Info().Str("server", *serverAddr).Msg("Connected")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *username != "" {
		rctx, rcancel := context.WithTimeout(ctx, rpcTimeout)
		user, err := client.Authenticate(rctx, *username, *password)
		rcancel()
		if err != nil {
			log.Fatal().Err(err).Msg("Authentication failed")
		}
		log.Info().Str("username", str(user, "username")).Msg("Authenticated")
	}

	rctx, rcancel := context.WithTimeout(ctx, rpcTimeout)
	sessionId, err := client.Start(rctx)
	rcancel()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start session")
	}
	log.Info().Str("sessionId", sessionId).Msg("Calibration started")

	deadline := time.After(*maxWait)
	ticker := time.NewTicker(*pollInterval)
	defer ticker.Stop()

	lastStep, lastState := -1, ""
	for {
		select {
		case <-ctx.Done():
			cancelSession(client)
			return
		case <-deadline:
			log.Warn().Dur("timeout", *maxWait).Msg("Session did not finish in time")
			cancelSession(client)
			os.Exit(1)
		case <-ticker.C:
		}

		rctx, rcancel := context.WithTimeout(ctx, rpcTimeout)
		st, err := client.Status(rctx)
		rcancel()
		if err != nil {
			log.Error().Err(err).Msg("Status failed")
			continue
		}

		state := str(st, "state")
		step := int(num(st, "step"))
		if state != lastState || step != lastStep {
			log.Info().
				Str("state", state).
				Int("step", step).
				Str("action", str(st, "action")).
				Str("instruction", str(st, "instruction")).
				Msg("Progress")
			lastState, lastStep = state, step
		}

		if str(st, "sessionId") != sessionId {
			continue
		}
		switch state {
		case "COMPLETE":
			log.Info().
				Float64("accuracy", num(st, "accuracy")).
				Float64("exactAccuracy", num(st, "exactAccuracy")).
				Int("records", len(st.GetFields()["records"].GetListValue().GetValues())).
				Msg("Calibration complete")
			return
		case "IDLE":
			log.Error().Str("lastError", str(st, "lastError")).Msg("Calibration ended early")
			os.Exit(1)
		}
	}
}

func cancelSession(client *grpcapi.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()
	if err := client.Cancel(ctx); err != nil {
		log.Warn().Err(err).Msg("Cancel failed")
		return
	}
	log.Info().Msg("Session cancelled")
}

func str(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

func num(s *structpb.Struct, key string) float64 {
	return s.GetFields()[key].GetNumberValue()
}
