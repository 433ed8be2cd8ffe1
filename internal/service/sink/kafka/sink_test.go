package kafka

import (
	"context"
	"testing"

	"eeg-action-service/internal/eeg"
	"eeg-action-service/internal/events"
	"eeg-action-service/internal/models"
)

type testPublisher struct {
	events []models.Event
}

func (p *testPublisher) Publish(ctx context.Context, event models.Event) error {
	p.events = append(p.events, event)
	return nil
}

func TestSink_Dispatch(t *testing.T) {
	p := &testPublisher{}
	s := New(p)

	if err := s.Dispatch(context.Background(), eeg.ScrollDown); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(p.events))
	}

	ev, ok := p.events[0].(models.ActionEvent)
	if !ok {
		t.Fatalf("expected ActionEvent, got %T", p.events[0])
	}
	if ev.Action != "scroll_down" || ev.Class != 4 {
		t.Errorf("unexpected event payload: %+v", ev)
	}
	if ev.EventID == "" || ev.Timestamp == 0 {
		t.Error("expected event id and timestamp")
	}
	if ev.Key() != "scroll_down" {
		t.Errorf("expected key scroll_down, got %s", ev.Key())
	}
}

func TestSink_ValidatesThroughPublisher(t *testing.T) {
	s := New(events.New(&events.Config{Enabled: false, TopicAction: "eeg.action.dispatched"}))
	if err := s.Dispatch(context.Background(), eeg.LeftClick); err != nil {
		t.Errorf("expected valid action event, got %v", err)
	}
}
