// Package eeg defines the shared data model for electrode samples, labeled
// windows and classifier outputs.
package eeg

import (
	"fmt"
	"time"
)

const (
	// Channels is the number of electrode channels sampled in parallel.
	Channels = 6
	// WindowLength is the number of timesteps in one labeled window.
	WindowLength = 100
	// NumClasses is the number of discrete actions the classifier predicts.
	NumClasses = 4
)

// Action is one of the four discrete actions. Its integer value is the class
// label written to datasets (1-4).
type Action int

const (
	LeftClick  Action = 1
	RightClick Action = 2
	ScrollUp   Action = 3
	ScrollDown Action = 4
)

// Actions is the fixed calibration order.
var Actions = []Action{LeftClick, RightClick, ScrollUp, ScrollDown}

var markerNames = map[Action]string{
	LeftClick:  "Left Click",
	RightClick: "Right Click",
	ScrollUp:   "Scroll Up",
	ScrollDown: "Scroll Down",
}

var sinkNames = map[Action]string{
	LeftClick:  "left_click",
	RightClick: "right_click",
	ScrollUp:   "scroll_up",
	ScrollDown: "scroll_down",
}

// String returns the marker name used in raw streams, e.g. "Left Click".
func (a Action) String() string {
	if n, ok := markerNames[a]; ok {
		return n
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// Symbol returns the symbolic name delivered to action sinks, e.g. "left_click".
func (a Action) Symbol() string {
	if n, ok := sinkNames[a]; ok {
		return n
	}
	return "unknown"
}

// Valid reports whether a is one of the four known actions.
func (a Action) Valid() bool {
	_, ok := markerNames[a]
	return ok
}

// Index returns the zero-based class index used by probability vectors.
func (a Action) Index() int {
	return int(a) - 1
}

// ActionFromIndex maps a zero-based class index back to its Action.
func ActionFromIndex(i int) (Action, bool) {
	a := Action(i + 1)
	return a, a.Valid()
}

// ParseMarker returns the action named by an exact marker string.
func ParseMarker(s string) (Action, bool) {
	for a, n := range markerNames {
		if n == s {
			return a, true
		}
	}
	return 0, false
}

// ParseSymbol returns the action for a sink symbol such as "scroll_up".
func ParseSymbol(s string) (Action, bool) {
	for a, n := range sinkNames {
		if n == s {
			return a, true
		}
	}
	return 0, false
}

// Sample is one timestep: one reading per channel.
type Sample [Channels]float64

// Matrix is the body of a window: WindowLength timesteps of Channels readings.
type Matrix [WindowLength]Sample

// Block is a raw device capture in channel-major layout (6 x 100).
type Block [Channels][WindowLength]float64

// Matrix transposes the block into timestep-major layout (100 x 6).
func (b *Block) Matrix() Matrix {
	var m Matrix
	for c := 0; c < Channels; c++ {
		for t := 0; t < WindowLength; t++ {
			m[t][c] = b[c][t]
		}
	}
	return m
}

// Block transposes the matrix back into channel-major layout.
func (m *Matrix) Block() Block {
	var b Block
	for t := 0; t < WindowLength; t++ {
		for c := 0; c < Channels; c++ {
			b[c][t] = m[t][c]
		}
	}
	return b
}

// Window is a labeled unit of signal: exactly WindowLength timesteps and one class.
type Window struct {
	Samples Matrix
	Class   Action
	// Source and Offset locate the originating marker row for diagnostics.
	Source string
	Offset int
}

// Probabilities is a softmax vector indexed by Action.Index().
type Probabilities [NumClasses]float64

// Argmax returns the most probable action. Ties resolve to the lower index.
func (p Probabilities) Argmax() Action {
	best := 0
	for i := 1; i < NumClasses; i++ {
		if p[i] > p[best] {
			best = i
		}
	}
	return Action(best + 1)
}

// Of returns the probability assigned to a.
func (p Probabilities) Of(a Action) float64 {
	if !a.Valid() {
		return 0
	}
	return p[a.Index()]
}

// PredictionRecord captures one calibration step's outcome.
type PredictionRecord struct {
	CaptureID  string    `json:"captureId"`
	Expected   Action    `json:"expected"`
	Predicted  Action    `json:"predicted"`
	Confidence float64   `json:"confidence"`
	CapturedAt time.Time `json:"capturedAt"`
}

// Correct reports whether the prediction matched the ground truth.
func (r PredictionRecord) Correct() bool {
	return r.Expected == r.Predicted
}

// Tensor is a batch of conditioned windows in (windows, WindowLength, Channels)
// layout. Labels, when present, holds one label per window.
type Tensor struct {
	Windows []Matrix
	Labels  []float64
}

// Shape returns the tensor dimensions.
func (t Tensor) Shape() [3]int {
	return [3]int{len(t.Windows), WindowLength, Channels}
}
