package app

import (
	"errors"
	"testing"
	"time"

	"eeg-action-service/internal/clock"
	"eeg-action-service/internal/config"
	"eeg-action-service/internal/events"
	"eeg-action-service/internal/service/classifier/artifact"
	"eeg-action-service/internal/service/classifier/mock"
)

func TestNewSource(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		want    string
		wantErr error
	}{
		{"default", "", "simulated", nil},
		{"simulated", "simulated", "simulated", nil},
		{"unknown", "bluetooth", "", ErrUnknownProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := NewSource(config.SignalConfig{Source: tt.source, Seed: 7})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer src.Close()
			if src.Name() != tt.want {
				t.Errorf("expected source %s, got %s", tt.want, src.Name())
			}
		})
	}
}

func TestNewClassifier(t *testing.T) {
	tests := []struct {
		provider string
		want     string
		wantErr  bool
	}{
		{"", "mock", false},
		{"mock", "mock", false},
		{"artifact", "missing.json", false},
		{"tensorflow", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			c, err := NewClassifier(config.ModelConfig{Provider: tt.provider, ArtifactPath: "missing.json"})
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownProvider) {
					t.Errorf("expected ErrUnknownProvider, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c.Name() != tt.want {
				t.Errorf("expected classifier %s, got %s", tt.want, c.Name())
			}
			switch c.(type) {
			case *artifact.Classifier:
				if tt.provider != "artifact" {
					t.Errorf("provider %q built an artifact classifier", tt.provider)
				}
			case *mock.Classifier:
				if tt.provider == "artifact" {
					t.Error("artifact provider built the mock classifier")
				}
			default:
				t.Errorf("unexpected classifier type %T", c)
			}
		})
	}
}

func TestNewClock_Local(t *testing.T) {
	if _, ok := NewClock(config.ClockConfig{}).(clock.Local); !ok {
		t.Error("expected local clock without an NTP server")
	}
}

func TestNewClock_UnreachableServerFallsBack(t *testing.T) {
	c, ok := NewClock(config.ClockConfig{NTPServer: "127.0.0.1:1", Timeout: 100 * time.Millisecond}).(*clock.NTP)
	if !ok {
		t.Fatal("expected NTP clock when a server is configured")
	}
	if c.Synced() {
		t.Error("expected no offset from an unreachable server")
	}
	if c.Now().IsZero() {
		t.Error("expected local time before the first sync")
	}
}

func TestNewSinks_Defaults(t *testing.T) {
	cfg := config.Defaults()
	publisher := events.New(&events.Config{Enabled: false})

	multi, closers, err := NewSinks(cfg, publisher)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if multi.Len() != 1 {
		t.Errorf("expected only the log sink, got %d sinks", multi.Len())
	}
	if len(closers) != 0 {
		t.Errorf("expected no closers, got %d", len(closers))
	}
}

func TestNewSinks_KafkaRequiresEnabledPublisher(t *testing.T) {
	cfg := config.Defaults()
	cfg.Kafka.ActionSink = true

	multi, _, err := NewSinks(cfg, events.New(&events.Config{Enabled: false}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if multi.Len() != 1 {
		t.Errorf("expected kafka sink skipped while Kafka is disabled, got %d sinks", multi.Len())
	}
}

func TestOpenStore_Disabled(t *testing.T) {
	s, err := OpenStore(config.StoreConfig{Enabled: false})
	if err != nil || s != nil {
		t.Errorf("expected nil store, got %v, %v", s, err)
	}
}

func TestApplication_Lifecycle(t *testing.T) {
	a := New(config.Defaults())
	if a.Ready() {
		t.Error("expected not ready before Start")
	}
	if err := a.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !a.Ready() {
		t.Error("expected ready after Start")
	}
	a.Shutdown()
	if a.Ready() {
		t.Error("expected not ready after Shutdown")
	}
}
