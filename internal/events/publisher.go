// Package events provides event publishing functionality.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"eeg-action-service/internal/models"
	"eeg-action-service/internal/observability/metrics"
	"eeg-action-service/internal/schema"
)

// notifyTimeout bounds a background publish started by Notify.
const notifyTimeout = 10 * time.Second

// Publisher publishes calibration events to separate Kafka topics.
type Publisher struct {
	writerSession    *kafka.Writer
	writerPrediction *kafka.Writer
	writerAction     *kafka.Writer
	principal        string
	topicSession     string
	topicPrediction  string
	topicAction      string
	enabled          bool
	validator        *schema.Validator
	metrics          *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers         []string
	TopicSession    string
	TopicPrediction string
	TopicAction     string
	Principal       string
	Enabled         bool
}

// New creates a new Kafka event publisher with one topic per event family.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics
	v := schema.New()

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			enabled:   false,
			validator: v,
			metrics:   m,
		}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:       cfg.Principal,
			topicSession:    cfg.TopicSession,
			topicPrediction: cfg.TopicPrediction,
			topicAction:     cfg.TopicAction,
			enabled:         false,
			validator:       v,
			metrics:         m,
		}
	}

	// Longer dial timeout for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
			Transport:    transport,
		}
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicSession", cfg.TopicSession).
		Str("topicPrediction", cfg.TopicPrediction).
		Str("topicAction", cfg.TopicAction).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerSession:    newWriter(cfg.TopicSession),
		writerPrediction: newWriter(cfg.TopicPrediction),
		writerAction:     newWriter(cfg.TopicAction),
		principal:        cfg.Principal,
		topicSession:     cfg.TopicSession,
		topicPrediction:  cfg.TopicPrediction,
		topicAction:      cfg.TopicAction,
		enabled:          true,
		validator:        v,
		metrics:          m,
	}
}

// Enabled reports whether events reach Kafka.
func (p *Publisher) Enabled() bool {
	return p.enabled
}

// Publish validates event and writes it to the topic for its family.
func (p *Publisher) Publish(ctx context.Context, event models.Event) error {
	if err := p.validator.Validate(event); err != nil {
		log.Error().Err(err).Str("eventType", event.Type()).Msg("Event failed validation")
		return err
	}

	writer, topic := p.route(event)
	return p.publish(ctx, writer, topic, event.Type(), event.Key(), event)
}

// Notify publishes event in the background. Failures are logged and counted.
func (p *Publisher) Notify(event models.Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		_ = p.Publish(ctx, event)
	}()
}

func (p *Publisher) route(event models.Event) (*kafka.Writer, string) {
	switch event.(type) {
	case models.PredictionEvent:
		return p.writerPrediction, p.topicPrediction
	case models.ActionEvent:
		return p.writerAction, p.topicAction
	default:
		return p.writerSession, p.topicSession
	}
}

// publish is the internal method that writes to a specific Kafka writer.
func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	// If Kafka is disabled, just log
	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes all Kafka writers.
func (p *Publisher) Close() error {
	var err error
	for name, w := range map[string]*kafka.Writer{
		"session":    p.writerSession,
		"prediction": p.writerPrediction,
		"action":     p.writerAction,
	} {
		if w == nil {
			continue
		}
		if e := w.Close(); e != nil {
			log.Error().Err(e).Str("writer", name).Msg("Error closing Kafka writer")
			err = e
		}
	}
	return err
}
