// Package sink delivers predicted actions to whatever performs them.
package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"eeg-action-service/internal/eeg"
	"eeg-action-service/internal/observability/logging"
	"eeg-action-service/internal/observability/metrics"
)

// Sink performs or forwards one action. Delivery is fire-and-forget from the
// caller's point of view: errors are reported but never retried.
type Sink interface {
	Dispatch(ctx context.Context, a eeg.Action) error
	Name() string
}

// Log writes each action to the service log.
type Log struct {
	logger zerolog.Logger
}

// NewLog creates a logging sink.
func NewLog() *Log {
	return &Log{logger: logging.WithComponent("sink")}
}

// Dispatch logs the action.
func (l *Log) Dispatch(ctx context.Context, a eeg.Action) error {
	if !a.Valid() {
		return fmt.Errorf("unknown action %d", int(a))
	}
	l.logger.Info().Str("action", a.Symbol()).Int("class", int(a)).Msg("Action dispatched")
	return nil
}

func (l *Log) Name() string { return "log" }

// Multi fans an action out to every sink in order. A failing sink does not
// stop delivery to the rest.
type Multi struct {
	sinks   []Sink
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewMulti creates a fan-out sink.
func NewMulti(sinks ...Sink) *Multi {
	return &Multi{
		sinks:   sinks,
		logger:  logging.WithComponent("sink"),
		metrics: metrics.DefaultMetrics,
	}
}

// Dispatch delivers a to every sink and joins their errors.
func (m *Multi) Dispatch(ctx context.Context, a eeg.Action) error {
	var errs []error
	for _, s := range m.sinks {
		err := s.Dispatch(ctx, a)
		m.metrics.RecordActionDispatch(s.Name(), a.Symbol(), err)
		if err != nil {
			m.logger.Warn().Err(err).Str("sink", s.Name()).Str("action", a.Symbol()).Msg("Action delivery failed")
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) Name() string { return "multi" }

// Len returns the number of sinks.
func (m *Multi) Len() int { return len(m.sinks) }
