// Package conditioner cleans raw electrode readings and reshapes them into
// the tensor layout the classifier expects.
//
// Every batch goes through the same stages:
//
//  1. artifact suppression: readings with |x| < threshold and non-finite
//     readings become NaN
//  2. imputation: NaN becomes the channel mean over the batch
//  3. min-max scaling of each channel to [0, 1] over the batch
//  4. reshape to (windows, 100, 6)
//
// Scaling statistics are fitted per batch and never persisted. A training
// dataset and a single inference window are therefore scaled against
// different minima and maxima.
package conditioner

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"eeg-action-service/internal/eeg"
	"eeg-action-service/internal/observability/metrics"
)

// DefaultThreshold is the magnitude below which a reading counts as a dropout.
const DefaultThreshold = 10.0

// ErrEmptyBatch is returned when there is nothing to condition.
var ErrEmptyBatch = errors.New("empty batch")

// Conditioner applies the conditioning stages. It holds no per-batch state
// and is safe for concurrent use.
type Conditioner struct {
	threshold float64
}

// New creates a Conditioner. A non-positive threshold selects DefaultThreshold.
func New(threshold float64) *Conditioner {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Conditioner{threshold: threshold}
}

// Threshold returns the dropout threshold.
func (c *Conditioner) Threshold() float64 {
	return c.threshold
}

// Condition runs suppression, imputation and scaling over one batch of rows.
// The input is not modified.
func (c *Conditioner) Condition(rows []eeg.Sample) ([]eeg.Sample, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyBatch
	}
	out := make([]eeg.Sample, len(rows))
	copy(out, rows)

	c.suppress(out)
	if err := impute(out); err != nil {
		metrics.DefaultMetrics.RecordConditioningFailure()
		return nil, err
	}
	scale(out)
	return out, nil
}

// Normalize runs imputation and scaling only. It is a fixed point on
// batches that are already imputed and span [0, 1] on every channel.
func (c *Conditioner) Normalize(rows []eeg.Sample) ([]eeg.Sample, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyBatch
	}
	out := make([]eeg.Sample, len(rows))
	copy(out, rows)

	if err := impute(out); err != nil {
		return nil, err
	}
	scale(out)
	return out, nil
}

// Window conditions a single window as its own batch and returns a
// (1, 100, 6) tensor.
func (c *Conditioner) Window(m eeg.Matrix) (eeg.Tensor, error) {
	rows, err := c.Condition(m[:])
	if err != nil {
		return eeg.Tensor{}, err
	}
	var out eeg.Matrix
	copy(out[:], rows)
	return eeg.Tensor{Windows: []eeg.Matrix{out}}, nil
}

// Block conditions a channel-major device capture.
func (c *Conditioner) Block(b eeg.Block) (eeg.Tensor, error) {
	return c.Window(b.Matrix())
}

// Dataset conditions all windows of ds as one batch, then regroups the rows
// into WindowLength-timestep intervals. Each interval's label is the mean of
// its per-timestep labels.
func (c *Conditioner) Dataset(ds eeg.Dataset) (eeg.Tensor, error) {
	n := ds.Len()
	if n == 0 {
		return eeg.Tensor{}, ErrEmptyBatch
	}

	rows := make([]eeg.Sample, 0, n*eeg.WindowLength)
	labels := make([]float64, 0, n*eeg.WindowLength)
	for _, w := range ds.Windows {
		rows = append(rows, w.Samples[:]...)
		for range w.Samples {
			labels = append(labels, float64(w.Class))
		}
	}

	conditioned, err := c.Condition(rows)
	if err != nil {
		return eeg.Tensor{}, err
	}

	t := eeg.Tensor{
		Windows: make([]eeg.Matrix, n),
		Labels:  make([]float64, n),
	}
	for i := 0; i < n; i++ {
		lo, hi := i*eeg.WindowLength, (i+1)*eeg.WindowLength
		copy(t.Windows[i][:], conditioned[lo:hi])
		t.Labels[i] = stat.Mean(labels[lo:hi], nil)
	}
	return t, nil
}

func (c *Conditioner) suppress(rows []eeg.Sample) {
	for i := range rows {
		for ch := 0; ch < eeg.Channels; ch++ {
			if v := rows[i][ch]; !finite(v) || math.Abs(v) < c.threshold {
				rows[i][ch] = math.NaN()
			}
		}
	}
}

func impute(rows []eeg.Sample) error {
	col := make([]float64, 0, len(rows))
	for ch := 0; ch < eeg.Channels; ch++ {
		col = col[:0]
		for i := range rows {
			if finite(rows[i][ch]) {
				col = append(col, rows[i][ch])
			}
		}
		if len(col) == 0 {
			return &eeg.ConditioningError{Channel: ch, Reason: "every reading in the batch is a dropout"}
		}
		if len(col) == len(rows) {
			continue
		}

		mean := stat.Mean(col, nil)
		for i := range rows {
			if !finite(rows[i][ch]) {
				rows[i][ch] = mean
			}
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// scale maps each channel onto [0, 1]. A constant channel maps to 0.
func scale(rows []eeg.Sample) {
	col := make([]float64, len(rows))
	for ch := 0; ch < eeg.Channels; ch++ {
		for i := range rows {
			col[i] = rows[i][ch]
		}
		lo, hi := floats.Min(col), floats.Max(col)
		span := hi - lo
		for i := range rows {
			if span == 0 {
				rows[i][ch] = 0
				continue
			}
			rows[i][ch] = (rows[i][ch] - lo) / span
		}
	}
}
