// Package models defines the data structures for calibration events.
package models

// Event types.
const (
	EventSessionStarted   = "calibration.session.started"
	EventSessionStep      = "calibration.session.step"
	EventSessionCompleted = "calibration.session.completed"
	EventSessionAborted   = "calibration.session.aborted"
	EventSessionCancelled = "calibration.session.cancelled"
	EventPrediction       = "calibration.prediction"
	EventActionDispatched = "action.dispatched"
)

// Event is implemented by every published event.
type Event interface {
	// Type returns the event type constant.
	Type() string
	// Key returns the partitioning key.
	Key() string
}

// SessionEvent reports a calibration session state change.
type SessionEvent struct {
	EventType     string  `json:"eventType"`
	SessionID     string  `json:"sessionId"`
	Timestamp     int64   `json:"timestamp"`
	State         string  `json:"state"`
	Step          int     `json:"step"`
	Action        string  `json:"action,omitempty"`
	Accuracy      float64 `json:"accuracy,omitempty"`
	ExactAccuracy float64 `json:"exactAccuracy,omitempty"`
	Error         string  `json:"error,omitempty"`
}

func (e SessionEvent) Type() string { return e.EventType }
func (e SessionEvent) Key() string  { return e.SessionID }

// PredictionEvent reports the classifier's verdict for one capture.
type PredictionEvent struct {
	EventType     string     `json:"eventType"`
	SessionID     string     `json:"sessionId"`
	CaptureID     string     `json:"captureId"`
	Timestamp     int64      `json:"timestamp"`
	Expected      string     `json:"expected"`
	Predicted     string     `json:"predicted"`
	Confidence    float64    `json:"confidence"`
	Probabilities [4]float64 `json:"probabilities"`
}

func (e PredictionEvent) Type() string { return e.EventType }
func (e PredictionEvent) Key() string  { return e.SessionID }

// ActionEvent is delivered to downstream consumers that perform the action.
type ActionEvent struct {
	EventType string `json:"eventType"`
	EventID   string `json:"eventId"`
	Timestamp int64  `json:"timestamp"`
	Action    string `json:"action"`
	Class     int    `json:"class"`
}

func (e ActionEvent) Type() string { return e.EventType }
func (e ActionEvent) Key() string  { return e.Action }
