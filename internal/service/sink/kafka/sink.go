// Package kafka delivers actions as events on a Kafka topic.
package kafka

import (
	"context"
	"time"

	"github.com/google/uuid"

	"eeg-action-service/internal/eeg"
	"eeg-action-service/internal/models"
)

// Publisher is the subset of events.Publisher the sink needs.
type Publisher interface {
	Publish(ctx context.Context, event models.Event) error
}

// Sink publishes each action as an ActionEvent.
type Sink struct {
	publisher Publisher
	now       func() time.Time
}

// New creates a Kafka action sink.
func New(p Publisher) *Sink {
	return &Sink{publisher: p, now: time.Now}
}

// Dispatch publishes the action.
func (s *Sink) Dispatch(ctx context.Context, a eeg.Action) error {
	return s.publisher.Publish(ctx, models.ActionEvent{
		EventType: models.EventActionDispatched,
		EventID:   uuid.NewString(),
		Timestamp: s.now().UnixMilli(),
		Action:    a.Symbol(),
		Class:     int(a),
	})
}

func (s *Sink) Name() string { return "kafka" }
