package session

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"eeg-action-service/internal/eeg"
)

// Outcome is how a session ended.
type Outcome string

const (
	OutcomeRunning   Outcome = "running"
	OutcomeCompleted Outcome = "completed"
	OutcomeAborted   Outcome = "aborted"
	OutcomeCancelled Outcome = "cancelled"
)

// Session accumulates the records and captured windows of one calibration
// run. It is not safe for concurrent use; the orchestrator serializes access.
type Session struct {
	ID        string
	StartedAt time.Time
	EndedAt   time.Time
	Outcome   Outcome
	Error     string

	Records []eeg.PredictionRecord
	windows []eeg.Window
}

// New creates a running session.
func New(id string, startedAt time.Time) *Session {
	return &Session{ID: id, StartedAt: startedAt, Outcome: OutcomeRunning}
}

// Record stores the outcome of one step together with the window that
// produced it, labeled with the expected action.
func (s *Session) Record(rec eeg.PredictionRecord, window eeg.Matrix) {
	s.Records = append(s.Records, rec)
	s.windows = append(s.windows, eeg.Window{
		Samples: window,
		Class:   rec.Expected,
		Source:  rec.CaptureID,
		Offset:  len(s.windows),
	})
}

// Finish marks the session ended.
func (s *Session) Finish(outcome Outcome, at time.Time, err error) {
	s.Outcome = outcome
	s.EndedAt = at
	if err != nil {
		s.Error = err.Error()
	}
}

// Accuracy is the mean of the recorded confidences, i.e. the mean
// probability the classifier assigned to the expected action. Zero when
// nothing was recorded.
func (s *Session) Accuracy() float64 {
	if len(s.Records) == 0 {
		return 0
	}
	conf := make([]float64, len(s.Records))
	for i, r := range s.Records {
		conf[i] = r.Confidence
	}
	return stat.Mean(conf, nil)
}

// ExactAccuracy is the fraction of steps whose predicted action matched the
// expected one. Informational only.
func (s *Session) ExactAccuracy() float64 {
	if len(s.Records) == 0 {
		return 0
	}
	correct := 0
	for _, r := range s.Records {
		if r.Correct() {
			correct++
		}
	}
	return float64(correct) / float64(len(s.Records))
}

// Windows returns the captured windows grouped by action, in capture order.
func (s *Session) Windows() map[eeg.Action][]eeg.Matrix {
	out := make(map[eeg.Action][]eeg.Matrix)
	for _, w := range s.windows {
		out[w.Class] = append(out[w.Class], w.Samples)
	}
	return out
}

// Dataset returns the captured windows in capture order.
func (s *Session) Dataset() eeg.Dataset {
	ds := eeg.Dataset{Windows: make([]eeg.Window, len(s.windows))}
	copy(ds.Windows, s.windows)
	return ds
}

// Duration is the time between start and end, or zero while running.
func (s *Session) Duration() time.Duration {
	if s.EndedAt.IsZero() {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// Clone returns a copy that shares no slices with s.
func (s *Session) Clone() *Session {
	c := *s
	c.Records = append([]eeg.PredictionRecord(nil), s.Records...)
	c.windows = append([]eeg.Window(nil), s.windows...)
	return &c
}
