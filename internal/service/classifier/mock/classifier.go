// Package mock provides a canned classifier for running without a trained
// model artifact. It cycles through a fixed list of probability vectors,
// one per Predict call.
package mock

import (
	"context"
	"sync"

	"eeg-action-service/internal/eeg"
	"eeg-action-service/internal/service/classifier"
)

// DefaultOutputs favor each action in calibration order with varying
// confidence.
var DefaultOutputs = []eeg.Probabilities{
	{0.90, 0.05, 0.03, 0.02},
	{0.30, 0.40, 0.20, 0.10},
	{0.10, 0.10, 0.70, 0.10},
	{0.05, 0.05, 0.30, 0.60},
}

// Classifier implements classifier.Classifier with canned responses.
type Classifier struct {
	mu      sync.Mutex
	outputs []eeg.Probabilities
	next    int
	calls   int
}

// New creates a mock classifier. With no outputs it uses DefaultOutputs.
func New(outputs ...eeg.Probabilities) *Classifier {
	if len(outputs) == 0 {
		outputs = DefaultOutputs
	}
	normalized := make([]eeg.Probabilities, len(outputs))
	for i, p := range outputs {
		normalized[i] = classifier.Normalize(p)
	}
	return &Classifier{outputs: normalized}
}

// Predict returns the next canned vector.
func (c *Classifier) Predict(ctx context.Context, t eeg.Tensor) (eeg.Probabilities, error) {
	if err := classifier.CheckShape(t); err != nil {
		return eeg.Probabilities{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.outputs[c.next]
	c.next = (c.next + 1) % len(c.outputs)
	c.calls++
	return p, nil
}

// Name identifies the mock.
func (c *Classifier) Name() string {
	return "mock"
}

// Calls returns how many predictions were served.
func (c *Classifier) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
