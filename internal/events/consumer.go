package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"eeg-action-service/internal/observability/logging"
)

// Reader is the subset of kafka.Reader used by Consumer.
type Reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Handler receives the raw JSON payload of every well-formed event.
type Handler func(topic string, payload []byte)

// Consumer tails one calibration topic.
type Consumer struct {
	reader  Reader
	topic   string
	backoff time.Duration
	logger  zerolog.Logger
}

// NewConsumer creates a partition reader without a consumer group, starting
// lookback before now.
func NewConsumer(ctx context.Context, brokers []string, topic string, lookback time.Duration) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	logger := logging.WithComponent("consumer").With().Str("topic", topic).Logger()
	if err := r.SetOffsetAt(ctx, time.Now().Add(-lookback)); err != nil {
		logger.Warn().Err(err).Msg("Failed to rewind reader, starting at latest")
	}
	return NewConsumerFromReader(r, topic)
}

// NewConsumerFromReader wraps an existing reader.
func NewConsumerFromReader(r Reader, topic string) *Consumer {
	return &Consumer{
		reader:  r,
		topic:   topic,
		backoff: time.Second,
		logger:  logging.WithComponent("consumer").With().Str("topic", topic).Logger(),
	}
}

// Run reads until ctx is done, passing each event to handle. Payloads that
// are not JSON objects carrying an eventType are skipped.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	defer c.reader.Close()
	c.logger.Info().Msg("Consuming events")

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn().Err(err).Msg("Kafka read failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.backoff):
			}
			continue
		}

		var envelope struct {
			EventType string `json:"eventType"`
			SessionID string `json:"sessionId"`
		}
		if err := json.Unmarshal(msg.Value, &envelope); err != nil || envelope.EventType == "" {
			c.logger.Warn().Int64("offset", msg.Offset).Msg("Skipping malformed event")
			continue
		}

		c.logger.Debug().
			Str("eventType", envelope.EventType).
			Str("sessionId", envelope.SessionID).
			Msg("Event received")
		handle(c.topic, msg.Value)
	}
}
