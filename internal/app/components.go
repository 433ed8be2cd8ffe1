package app

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"eeg-action-service/internal/clock"
	"eeg-action-service/internal/config"
	"eeg-action-service/internal/events"
	"eeg-action-service/internal/service/classifier"
	"eeg-action-service/internal/service/classifier/artifact"
	"eeg-action-service/internal/service/classifier/mock"
	"eeg-action-service/internal/service/sink"
	kafkasink "eeg-action-service/internal/service/sink/kafka"
	"eeg-action-service/internal/service/sink/mqtt"
	"eeg-action-service/internal/service/source"
	"eeg-action-service/internal/service/source/serial"
	"eeg-action-service/internal/service/source/simulated"
	"eeg-action-service/internal/store"
)

// ErrUnknownProvider is returned for an unsupported source or model setting.
var ErrUnknownProvider = errors.New("unknown provider")

// NewSource opens the configured electrode source.
func NewSource(cfg config.SignalConfig) (source.Source, error) {
	switch cfg.Source {
	case "simulated", "":
		sc := simulated.DefaultConfig()
		sc.Latency = cfg.Latency
		if cfg.Seed != 0 {
			sc.Seed = cfg.Seed
		}
		return simulated.New(sc), nil
	case "serial":
		return serial.Open(serial.Config{PortName: cfg.SerialPort, BaudRate: cfg.BaudRate})
	default:
		return nil, fmt.Errorf("%w: signal source %q", ErrUnknownProvider, cfg.Source)
	}
}

// NewClassifier returns the configured classifier. The artifact is loaded
// lazily on first prediction.
func NewClassifier(cfg config.ModelConfig) (classifier.Classifier, error) {
	switch cfg.Provider {
	case "mock", "":
		return mock.New(), nil
	case "artifact":
		return artifact.New(cfg.ArtifactPath), nil
	default:
		return nil, fmt.Errorf("%w: model provider %q", ErrUnknownProvider, cfg.Provider)
	}
}

// NewClock returns an NTP-corrected clock when a server is configured. A
// failed initial sync falls back to local time.
func NewClock(cfg config.ClockConfig) clock.Clock {
	if cfg.NTPServer == "" {
		return clock.Local{}
	}
	c := clock.NewNTP(cfg.NTPServer, cfg.Timeout)
	if err := c.Sync(); err != nil {
		log.Warn().Str("server", cfg.NTPServer).Msg("Clock falls back to local time until NTP sync succeeds")
	}
	return c
}

// NewSinks builds the action fan-out. The log sink is always present. The
// returned closers release broker connections.
func NewSinks(cfg *config.Configuration, publisher *events.Publisher) (*sink.Multi, []io.Closer, error) {
	sinks := []sink.Sink{sink.NewLog()}
	var closers []io.Closer

	if cfg.Kafka.ActionSink && publisher.Enabled() {
		sinks = append(sinks, kafkasink.New(publisher))
	}

	if cfg.MQTT.Enabled {
		m, err := mqtt.Connect(mqtt.Config{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
			QoS:      byte(cfg.MQTT.QoS),
			Timeout:  cfg.MQTT.Timeout,
		})
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, m)
		closers = append(closers, m)
	}

	return sink.NewMulti(sinks...), closers, nil
}

// OpenStore opens the account and session store, or returns nil when the
// store is disabled.
func OpenStore(cfg config.StoreConfig) (*store.Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	return store.Open(cfg.Driver, cfg.DSN)
}

// NewPublisher creates the Kafka event publisher.
func NewPublisher(cfg config.KafkaConfig) *events.Publisher {
	return events.New(&events.Config{
		Enabled:         cfg.Enabled,
		Brokers:         cfg.Brokers,
		TopicSession:    cfg.TopicSession,
		TopicPrediction: cfg.TopicPrediction,
		TopicAction:     cfg.TopicAction,
		Principal:       cfg.Principal,
	})
}
