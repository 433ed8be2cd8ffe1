package mock

import (
	"context"
	"errors"
	"testing"

	"eeg-action-service/internal/eeg"
	"eeg-action-service/internal/service/classifier"
)

func single() eeg.Tensor {
	return eeg.Tensor{Windows: make([]eeg.Matrix, 1)}
}

func TestClassifier_Cycles(t *testing.T) {
	c := New()
	ctx := context.Background()

	for round := 0; round < 2; round++ {
		for i, want := range eeg.Actions {
			p, err := c.Predict(ctx, single())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Argmax() != want {
				t.Errorf("round %d call %d: expected %v, got %v", round, i, want, p.Argmax())
			}
		}
	}

	if c.Calls() != 8 {
		t.Errorf("expected 8 calls, got %d", c.Calls())
	}
}

func TestClassifier_NormalizesOutputs(t *testing.T) {
	c := New(eeg.Probabilities{1, 1, 2, 0})

	p, err := c.Predict(context.Background(), single())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != (eeg.Probabilities{0.25, 0.25, 0.5, 0}) {
		t.Errorf("expected normalized vector, got %v", p)
	}
}

func TestClassifier_RejectsShape(t *testing.T) {
	c := New()
	_, err := c.Predict(context.Background(), eeg.Tensor{Windows: make([]eeg.Matrix, 2)})
	if !errors.Is(err, classifier.ErrShape) {
		t.Errorf("expected ErrShape, got %v", err)
	}
	if c.Calls() != 0 {
		t.Error("rejected calls should not advance the cycle")
	}
}
