package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"eeg-action-service/internal/eeg"
	"eeg-action-service/internal/service/classifier"
	"eeg-action-service/internal/service/conditioner"
)

var classNames = []string{"Left Click", "Right Click", "Scroll Up", "Scroll Down"}

// channelModel scores class i by the mean of channel i.
func channelModel() *Model {
	w := make([][]float64, eeg.NumClasses)
	for i := range w {
		w[i] = make([]float64, eeg.Channels)
		w[i][i] = 10
	}
	return &Model{
		Name:     "test-channel-mean",
		Classes:  classNames,
		Features: FeaturesChannelMean,
		Weights:  w,
		Bias:     make([]float64, eeg.NumClasses),
	}
}

func writeModel(t *testing.T, m *Model) string {
	t.Helper()
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal model: %v", err)
	}
	path := filepath.Join(t.TempDir(), "model.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	return path
}

func windowWithHotChannel(ch int) eeg.Tensor {
	var m eeg.Matrix
	for t := range m {
		m[t][ch] = 1
	}
	return eeg.Tensor{Windows: []eeg.Matrix{m}}
}

func TestClassifier_Predict(t *testing.T) {
	c := New(writeModel(t, channelModel()))

	for i, want := range eeg.Actions {
		p, err := c.Predict(context.Background(), windowWithHotChannel(i))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		sum := 0.0
		for _, v := range p {
			if v < 0 || v > 1 {
				t.Fatalf("probability out of range: %v", p)
			}
			sum += v
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("expected probabilities to sum to 1, got %v", sum)
		}
		if p.Argmax() != want {
			t.Errorf("hot channel %d: expected %v, got %v", i, want, p.Argmax())
		}
	}

	if c.Name() != "test-channel-mean" {
		t.Errorf("expected model name after load, got %q", c.Name())
	}
}

func TestClassifier_RejectsNonFinite(t *testing.T) {
	c := New(writeModel(t, channelModel()))

	in := windowWithHotChannel(0)
	in.Windows[0][40][3] = math.Inf(1)
	if _, err := c.Predict(context.Background(), in); !errors.Is(err, classifier.ErrNonFinite) {
		t.Errorf("expected ErrNonFinite, got %v", err)
	}
}

func TestClassifier_ConditionedInfinityYieldsDistribution(t *testing.T) {
	var raw eeg.Matrix
	for ts := range raw {
		for ch := range raw[ts] {
			raw[ts][ch] = 20 + float64(ts+ch)
		}
	}
	raw[10][2] = math.Inf(1)

	tensor, err := conditioner.New(conditioner.DefaultThreshold).Window(raw)
	if err != nil {
		t.Fatalf("condition: %v", err)
	}
	p, err := New(writeModel(t, channelModel())).Predict(context.Background(), tensor)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}

	sum := 0.0
	for _, v := range p {
		if math.IsNaN(v) || v < 0 {
			t.Fatalf("invalid probabilities: %v", p)
		}
		sum += v
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("expected probabilities to sum to 1, got %v", sum)
	}
}

func TestClassifier_FlatFeatures(t *testing.T) {
	m := channelModel()
	m.Features = FeaturesFlat
	for i := range m.Weights {
		m.Weights[i] = make([]float64, eeg.WindowLength*eeg.Channels)
	}
	// Only the last timestep of channel 5 votes, for Scroll Up.
	m.Weights[2][eeg.WindowLength*eeg.Channels-1] = 50

	c := New(writeModel(t, m))
	p, err := c.Predict(context.Background(), windowWithHotChannel(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Argmax() != eeg.ScrollUp {
		t.Errorf("expected Scroll Up, got %v", p.Argmax())
	}
}

func TestClassifier_LoadsOnce(t *testing.T) {
	c := New(writeModel(t, channelModel()))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Predict(context.Background(), windowWithHotChannel(0)); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if c.loads != 1 {
		t.Errorf("expected exactly one load, got %d", c.loads)
	}
}

func TestClassifier_LazyLoad(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "missing.json"))
	if c.loads != 0 {
		t.Fatal("New should not read the artifact")
	}

	_, err := c.Predict(context.Background(), eeg.Tensor{})
	if !errors.Is(err, classifier.ErrShape) {
		t.Fatalf("expected ErrShape, got %v", err)
	}
	if c.loads != 0 {
		t.Error("a rejected tensor should not trigger a load")
	}
}

func TestClassifier_MissingArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")
	c := New(path)

	_, err := c.Predict(context.Background(), windowWithHotChannel(0))
	var mu *eeg.ModelUnavailableError
	if !errors.As(err, &mu) {
		t.Fatalf("expected ModelUnavailableError, got %v", err)
	}
	if mu.Path != path {
		t.Errorf("expected path %q, got %q", path, mu.Path)
	}

	// Writing the file afterwards does not help: the failure is cached.
	data, _ := json.Marshal(channelModel())
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	_, err2 := c.Predict(context.Background(), windowWithHotChannel(0))
	if err2 != err {
		t.Errorf("expected the cached error, got %v", err2)
	}
	if c.loads != 1 {
		t.Errorf("expected one load attempt, got %d", c.loads)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m *Model)
	}{
		{"wrong class count", func(m *Model) { m.Classes = m.Classes[:3] }},
		{"wrong class order", func(m *Model) { m.Classes = []string{"Right Click", "Left Click", "Scroll Up", "Scroll Down"} }},
		{"unknown features", func(m *Model) { m.Features = "fft" }},
		{"short weight row", func(m *Model) { m.Weights[1] = m.Weights[1][:5] }},
		{"missing bias", func(m *Model) { m.Bias = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := channelModel()
			tt.mutate(m)
			if _, err := Load(writeModel(t, m)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoad_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := New(path).Predict(context.Background(), windowWithHotChannel(0))
	if !errors.Is(err, eeg.ErrModelUnavailable) {
		t.Errorf("expected ErrModelUnavailable, got %v", err)
	}
}
