// Package artifact serves predictions from a trained model artifact on disk.
//
// The artifact is a JSON linear-softmax model exported by the training
// pipeline:
//
//	{
//	  "name": "eeg-linear-v3",
//	  "classes": ["Left Click", "Right Click", "Scroll Up", "Scroll Down"],
//	  "features": "channel_mean",
//	  "weights": [[...6 values...], ...4 rows...],
//	  "bias": [0.1, 0.0, -0.2, 0.1]
//	}
//
// "flat" features use all 600 readings of the window in timestep-major order.
// "channel_mean" features use the six per-channel means.
//
// The file is read on the first Predict and cached for the life of the
// process. A failed load is cached too: every later Predict returns the
// same ModelUnavailableError.
package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"eeg-action-service/internal/eeg"
	"eeg-action-service/internal/observability/logging"
	"eeg-action-service/internal/observability/metrics"
	"eeg-action-service/internal/service/classifier"
)

// Feature layouts understood by the loader.
const (
	FeaturesFlat        = "flat"
	FeaturesChannelMean = "channel_mean"
)

// Model is the decoded artifact.
type Model struct {
	Name     string      `json:"name"`
	Classes  []string    `json:"classes"`
	Features string      `json:"features"`
	Weights  [][]float64 `json:"weights"`
	Bias     []float64   `json:"bias"`
}

// Dim returns the feature vector length for the model's layout, or 0 for an
// unknown layout.
func (m *Model) Dim() int {
	switch m.Features {
	case FeaturesFlat:
		return eeg.WindowLength * eeg.Channels
	case FeaturesChannelMean:
		return eeg.Channels
	default:
		return 0
	}
}

// Validate checks the artifact against the fixed output contract.
func (m *Model) Validate() error {
	if len(m.Classes) != eeg.NumClasses {
		return fmt.Errorf("expected %d classes, got %d", eeg.NumClasses, len(m.Classes))
	}
	for i, a := range eeg.Actions {
		if m.Classes[i] != a.String() {
			return fmt.Errorf("class %d is %q, expected %q", i, m.Classes[i], a.String())
		}
	}

	dim := m.Dim()
	if dim == 0 {
		return fmt.Errorf("unknown feature layout %q", m.Features)
	}
	if len(m.Weights) != eeg.NumClasses {
		return fmt.Errorf("expected %d weight rows, got %d", eeg.NumClasses, len(m.Weights))
	}
	for i, row := range m.Weights {
		if len(row) != dim {
			return fmt.Errorf("weight row %d has %d values, expected %d", i, len(row), dim)
		}
	}
	if len(m.Bias) != eeg.NumClasses {
		return fmt.Errorf("expected %d bias values, got %d", eeg.NumClasses, len(m.Bias))
	}
	return nil
}

func (m *Model) features(w *eeg.Matrix) []float64 {
	if m.Features == FeaturesChannelMean {
		x := make([]float64, eeg.Channels)
		col := make([]float64, eeg.WindowLength)
		for c := 0; c < eeg.Channels; c++ {
			for t := range w {
				col[t] = w[t][c]
			}
			x[c] = stat.Mean(col, nil)
		}
		return x
	}

	x := make([]float64, 0, eeg.WindowLength*eeg.Channels)
	for t := range w {
		x = append(x, w[t][:]...)
	}
	return x
}

// Predict computes class probabilities for one window.
func (m *Model) Predict(w *eeg.Matrix) eeg.Probabilities {
	x := m.features(w)
	var logits [eeg.NumClasses]float64
	for i := range logits {
		logits[i] = floats.Dot(m.Weights[i], x) + m.Bias[i]
	}
	return classifier.Softmax(logits)
}

// Load reads and validates a model artifact.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid artifact: %w", err)
	}
	return &m, nil
}

// Classifier implements classifier.Classifier over a lazily loaded artifact.
type Classifier struct {
	path   string
	logger zerolog.Logger

	once  sync.Once
	model atomic.Pointer[Model]
	err   error
	loads int
}

// New creates a Classifier for the artifact at path. Nothing is read until
// the first Predict.
func New(path string) *Classifier {
	return &Classifier{
		path:   path,
		logger: logging.WithComponent("classifier"),
	}
}

func (c *Classifier) load() {
	c.loads++
	start := time.Now()

	m, err := Load(c.path)
	metrics.DefaultMetrics.RecordModelLoad(err)
	if err != nil {
		c.err = &eeg.ModelUnavailableError{Path: c.path, Err: err}
		c.logger.Error().Err(err).Str("path", c.path).Msg("Model artifact unavailable")
		return
	}

	c.model.Store(m)
	c.logger.Info().
		Str("path", c.path).
		Str("model", m.Name).
		Str("features", m.Features).
		Dur("loadTime", time.Since(start)).
		Msg("Model artifact loaded")
}

// Predict classifies a (1, 100, 6) tensor.
func (c *Classifier) Predict(ctx context.Context, t eeg.Tensor) (eeg.Probabilities, error) {
	if err := classifier.CheckShape(t); err != nil {
		return eeg.Probabilities{}, err
	}
	if err := classifier.CheckFinite(t); err != nil {
		return eeg.Probabilities{}, err
	}
	if err := ctx.Err(); err != nil {
		return eeg.Probabilities{}, err
	}

	c.once.Do(c.load)
	if c.err != nil {
		return eeg.Probabilities{}, c.err
	}
	return c.model.Load().Predict(&t.Windows[0]), nil
}

// Name returns the artifact's model name, or its path before the first load.
func (c *Classifier) Name() string {
	if m := c.model.Load(); m != nil {
		return m.Name
	}
	return c.path
}

// Path returns the artifact location.
func (c *Classifier) Path() string {
	return c.path
}
