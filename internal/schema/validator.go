// Package schema checks events against their published contract before they
// leave the service.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"eeg-action-service/internal/models"
)

// ErrInvalidEvent is wrapped by every validation failure.
var ErrInvalidEvent = errors.New("invalid event")

type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// Validate reports the first contract violation in event.
func (v *Validator) Validate(event models.Event) error {
	var problems []string
	require := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	require(event.Type() != "", "eventType is required")

	switch e := event.(type) {
	case models.SessionEvent:
		require(strings.HasPrefix(e.EventType, "calibration.session."), "unexpected session event type "+e.EventType)
		require(e.SessionID != "", "sessionId is required")
		require(e.Timestamp > 0, "timestamp is required")
		require(e.Accuracy >= 0 && e.Accuracy <= 1, "accuracy must be in [0, 1]")
	case models.PredictionEvent:
		require(e.EventType == models.EventPrediction, "unexpected prediction event type "+e.EventType)
		require(e.SessionID != "", "sessionId is required")
		require(e.CaptureID != "", "captureId is required")
		require(e.Timestamp > 0, "timestamp is required")
		require(e.Expected != "" && e.Predicted != "", "expected and predicted are required")
		require(e.Confidence >= 0 && e.Confidence <= 1, "confidence must be in [0, 1]")
	case models.ActionEvent:
		require(e.EventType == models.EventActionDispatched, "unexpected action event type "+e.EventType)
		require(e.EventID != "", "eventId is required")
		require(e.Class >= 1 && e.Class <= 4, "class must be 1-4")
	default:
		problems = append(problems, fmt.Sprintf("unknown event %T", event))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidEvent, strings.Join(problems, "; "))
	}
	return nil
}
