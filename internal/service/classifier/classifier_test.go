package classifier

import (
	"errors"
	"math"
	"testing"

	"eeg-action-service/internal/eeg"
)

func TestCheckShape(t *testing.T) {
	tests := []struct {
		name    string
		windows int
		wantErr bool
	}{
		{"single window", 1, false},
		{"empty", 0, true},
		{"batch", 3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckShape(eeg.Tensor{Windows: make([]eeg.Matrix, tt.windows)})
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckShape() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrShape) {
				t.Errorf("expected ErrShape, got %v", err)
			}
		})
	}
}

func TestCheckFinite(t *testing.T) {
	tests := []struct {
		name    string
		value   float64
		wantErr bool
	}{
		{"finite", 0.25, false},
		{"nan", math.NaN(), true},
		{"positive infinity", math.Inf(1), true},
		{"negative infinity", math.Inf(-1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m eeg.Matrix
			m[99][5] = tt.value
			err := CheckFinite(eeg.Tensor{Windows: []eeg.Matrix{m}})
			if tt.wantErr != errors.Is(err, ErrNonFinite) {
				t.Errorf("wantErr=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSoftmax(t *testing.T) {
	p := Softmax([eeg.NumClasses]float64{1, 2, 3, 4})

	sum := 0.0
	for i, v := range p {
		if v <= 0 || v >= 1 {
			t.Errorf("p[%d] = %v, expected (0, 1)", i, v)
		}
		sum += v
	}
	if math.Abs(sum-1) > 1e-12 {
		t.Errorf("expected probabilities to sum to 1, got %v", sum)
	}
	if p.Argmax() != eeg.ScrollDown {
		t.Errorf("expected Scroll Down, got %v", p.Argmax())
	}
}

func TestSoftmax_LargeLogits(t *testing.T) {
	p := Softmax([eeg.NumClasses]float64{1000, 999, 0, 0})
	for i, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("p[%d] overflowed: %v", i, v)
		}
	}
	if p.Argmax() != eeg.LeftClick {
		t.Errorf("expected Left Click, got %v", p.Argmax())
	}
}

func TestNormalize(t *testing.T) {
	p := Normalize(eeg.Probabilities{2, 2, 4, 0})
	want := eeg.Probabilities{0.25, 0.25, 0.5, 0}
	if p != want {
		t.Errorf("expected %v, got %v", want, p)
	}

	uniform := Normalize(eeg.Probabilities{})
	for i, v := range uniform {
		if v != 0.25 {
			t.Errorf("uniform[%d] = %v, expected 0.25", i, v)
		}
	}
}
