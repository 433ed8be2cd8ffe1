// Package simulated provides a synthetic electrode source for running without
// hardware. Each channel carries a 10 Hz sine over one second with Gaussian
// noise, shifted and scaled so readings stay above the dropout threshold.
package simulated

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"eeg-action-service/internal/eeg"
)

var errClosed = errors.New("source closed")

// Config tunes the generated signal.
type Config struct {
	FrequencyHz float64       // sine frequency over the one-second window
	Noise       float64       // standard deviation of the additive noise, in sine units
	Amplitude   float64       // scale applied to sine plus noise
	Offset      float64       // constant added to every reading
	Latency     time.Duration // simulated acquisition time per block
	Seed        uint64
}

// DefaultConfig returns a signal in roughly the 30-70 range with a 10 Hz carrier.
func DefaultConfig() Config {
	return Config{
		FrequencyHz: 10,
		Noise:       0.1,
		Amplitude:   20,
		Offset:      50,
		Seed:        uint64(time.Now().UnixNano()),
	}
}

// Source implements source.Source with generated data.
type Source struct {
	cfg Config

	mu     sync.Mutex
	rng    *rand.Rand
	reads  int
	closed bool
}

// New creates a simulated source.
func New(cfg Config) *Source {
	return &Source{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}
}

// Read generates one block after the configured latency.
func (s *Source) Read(ctx context.Context) (eeg.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return eeg.Block{}, &eeg.DeviceReadError{Source: s.Name(), Err: errClosed}
	}

	if s.cfg.Latency > 0 {
		timer := time.NewTimer(s.cfg.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return eeg.Block{}, &eeg.DeviceReadError{Source: s.Name(), Err: ctx.Err()}
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return eeg.Block{}, &eeg.DeviceReadError{Source: s.Name(), Err: err}
	}

	var b eeg.Block
	for c := range b {
		for i := range b[c] {
			t := float64(i) / float64(eeg.WindowLength-1)
			v := math.Sin(2*math.Pi*s.cfg.FrequencyHz*t) + s.rng.NormFloat64()*s.cfg.Noise
			b[c][i] = s.cfg.Offset + s.cfg.Amplitude*v
		}
	}
	s.reads++
	return b, nil
}

// Reads returns how many blocks were generated.
func (s *Source) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// Electrodes reports every electrode as active.
func (s *Source) Electrodes() [eeg.Channels]bool {
	return [eeg.Channels]bool{true, true, true, true, true, true}
}

// Name identifies the source.
func (s *Source) Name() string {
	return "simulated"
}

// Close stops the source. Later reads fail.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
