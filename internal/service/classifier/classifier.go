// Package classifier defines the interface for action classifiers.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"eeg-action-service/internal/eeg"
)

// ErrShape is returned when the input tensor is not (1, 100, 6).
var ErrShape = errors.New("input tensor must have shape (1, 100, 6)")

// Classifier maps one conditioned window to a probability vector over the
// four actions, indexed in eeg.Actions order.
type Classifier interface {
	// Predict classifies a single-window tensor.
	Predict(ctx context.Context, t eeg.Tensor) (eeg.Probabilities, error)

	// Name identifies the model for logs and status reports.
	Name() string
}

// CheckShape validates that t holds exactly one window.
func CheckShape(t eeg.Tensor) error {
	if len(t.Windows) != 1 {
		return fmt.Errorf("%w: got (%d, %d, %d)", ErrShape, len(t.Windows), eeg.WindowLength, eeg.Channels)
	}
	return nil
}

// ErrNonFinite is returned when the input tensor holds NaN or infinite values.
var ErrNonFinite = errors.New("input tensor holds non-finite values")

// CheckFinite validates that every value in t is finite. Conditioned windows
// always are; raw readings may not be.
func CheckFinite(t eeg.Tensor) error {
	for w := range t.Windows {
		for ts, s := range t.Windows[w] {
			for c, v := range s {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return fmt.Errorf("%w: window %d timestep %d channel %d is %v", ErrNonFinite, w, ts, c, v)
				}
			}
		}
	}
	return nil
}

// Softmax converts raw class scores into a probability vector.
func Softmax(logits [eeg.NumClasses]float64) eeg.Probabilities {
	lse := floats.LogSumExp(logits[:])
	var p eeg.Probabilities
	for i, z := range logits {
		p[i] = math.Exp(z - lse)
	}
	return p
}

// Normalize rescales a non-negative vector so it sums to one. A zero vector
// becomes uniform.
func Normalize(v eeg.Probabilities) eeg.Probabilities {
	sum := floats.Sum(v[:])
	if sum <= 0 {
		for i := range v {
			v[i] = 1.0 / eeg.NumClasses
		}
		return v
	}
	floats.Scale(1/sum, v[:])
	return v
}
