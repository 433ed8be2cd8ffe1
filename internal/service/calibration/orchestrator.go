// Package calibration runs the capture, classify and act cycle that
// calibrates the classifier against an operator.
//
// A session walks the actions in calibration order. For each action the
// orchestrator shows a cue, waits the preparation delay, captures one window
// from the signal source, classifies it, records how much probability the
// classifier gave the expected action, dispatches the predicted action to
// the sink and then waits out the action window before moving on:
//
//	Idle → AwaitingAction(i) → Capturing(i) → Evaluating(i) → AwaitingAction(i+1) | Complete
//
// Capturing(i) lasts from the capture until the action window ends;
// Evaluating(i) scores the step and advances at once. All transitions are
// driven by scheduled callbacks. A failure while capturing aborts the
// session back to Idle; nothing is retried.
package calibration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"eeg-action-service/internal/clock"
	"eeg-action-service/internal/eeg"
	"eeg-action-service/internal/models"
	"eeg-action-service/internal/observability/logging"
	"eeg-action-service/internal/observability/metrics"
	"eeg-action-service/internal/service/classifier"
	"eeg-action-service/internal/service/conditioner"
	"eeg-action-service/internal/service/cue"
	"eeg-action-service/internal/service/labeler"
	"eeg-action-service/internal/service/session"
	"eeg-action-service/internal/service/sink"
	"eeg-action-service/internal/service/source"
)

// Timings defines the pacing of a calibration step.
type Timings struct {
	PrepareDelay time.Duration // cue shown before the capture
	ActionWindow time.Duration // time allowed to perform the action after the capture
	ReadTimeout  time.Duration // max time for one device read
	SinkTimeout  time.Duration // max time for one action delivery
}

// DefaultTimings returns the standard calibration pacing.
func DefaultTimings() Timings {
	return Timings{
		PrepareDelay: 3 * time.Second,
		ActionWindow: 5 * time.Second,
		ReadTimeout:  2 * time.Second,
		SinkTimeout:  2 * time.Second,
	}
}

func (t Timings) withDefaults() Timings {
	d := DefaultTimings()
	if t.PrepareDelay <= 0 {
		t.PrepareDelay = d.PrepareDelay
	}
	if t.ActionWindow <= 0 {
		t.ActionWindow = d.ActionWindow
	}
	if t.ReadTimeout <= 0 {
		t.ReadTimeout = d.ReadTimeout
	}
	if t.SinkTimeout <= 0 {
		t.SinkTimeout = d.SinkTimeout
	}
	return t
}

// CueLoader supplies the instruction for a step.
type CueLoader interface {
	Load(a eeg.Action) (cue.Cue, error)
}

// Notifier receives session events. Notify must not block.
type Notifier interface {
	Notify(event models.Event)
}

// SessionStore persists finished sessions.
type SessionStore interface {
	SaveSession(ctx context.Context, s *session.Session) error
}

// Dependencies are the collaborators of an Orchestrator. Source,
// Conditioner, Classifier and Sink are required.
type Dependencies struct {
	Source      source.Source
	Conditioner *conditioner.Conditioner
	Classifier  classifier.Classifier
	Sink        sink.Sink
	Cues        CueLoader
	Store       SessionStore
	Clock       clock.Clock
	Scheduler   Scheduler
}

// Status is a point-in-time view of the orchestrator.
type Status struct {
	SessionID     string                 `json:"sessionId,omitempty"`
	State         string                 `json:"state"`
	Step          int                    `json:"step"`
	Steps         int                    `json:"steps"`
	Action        string                 `json:"action,omitempty"`
	Instruction   string                 `json:"instruction,omitempty"`
	Records       []eeg.PredictionRecord `json:"records"`
	Accuracy      float64                `json:"accuracy"`
	ExactAccuracy float64                `json:"exactAccuracy"`
	LastError     string                 `json:"lastError,omitempty"`
	Classifier    string                 `json:"classifier"`
	Source        string                 `json:"source"`
}

// ErrNoSession is returned by Export when no session has run.
var ErrNoSession = errors.New("no calibration session to export")

// Orchestrator owns the single calibration session of the process.
type Orchestrator struct {
	source      source.Source
	conditioner *conditioner.Conditioner
	classifier  classifier.Classifier
	sink        sink.Sink
	cues        CueLoader
	store       SessionStore
	clock       clock.Clock
	scheduler   Scheduler
	captureIDs  *session.Generator
	timings     Timings
	actions     []eeg.Action
	metrics     *metrics.Metrics
	logger      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup // in-flight dispatches and saves

	// Session state, guarded by mu
	mu              sync.Mutex
	lifecycle       *session.Lifecycle
	current         *session.Session
	last            *session.Session
	lastErr         error
	instruction     string
	generation      uint64
	timer           Timer
	reading         bool // a device read is in flight
	cancelRequested bool
	notifiers       []Notifier
}

// New creates an orchestrator in Idle state.
func New(deps Dependencies, timings Timings) *Orchestrator {
	if deps.Clock == nil {
		deps.Clock = clock.Local{}
	}
	if deps.Scheduler == nil {
		deps.Scheduler = RealScheduler{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		source:      deps.Source,
		conditioner: deps.Conditioner,
		classifier:  deps.Classifier,
		sink:        deps.Sink,
		cues:        deps.Cues,
		store:       deps.Store,
		clock:       deps.Clock,
		scheduler:   deps.Scheduler,
		captureIDs:  session.NewGenerator(),
		timings:     timings.withDefaults(),
		actions:     eeg.Actions,
		metrics:     metrics.DefaultMetrics,
		logger:      logging.WithComponent("calibration"),
		ctx:         ctx,
		cancel:      cancel,
		lifecycle:   session.NewLifecycle(len(eeg.Actions)),
	}
}

// Subscribe registers n for session events.
func (o *Orchestrator) Subscribe(n Notifier) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.notifiers = append(o.notifiers, n)
}

// Timings returns the pacing in use.
func (o *Orchestrator) Timings() Timings {
	return o.timings
}

// Start begins a new session. It fails with *eeg.SessionConflictError while
// another session is active; the active session is left untouched.
func (o *Orchestrator) Start(ctx context.Context) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := uuid.NewString()
	if err := o.lifecycle.Begin(id); err != nil {
		o.logger.Warn().Err(err).Str("activeSession", o.lifecycle.SessionId()).Msg("Start rejected")
		return "", err
	}

	o.generation++
	o.cancelRequested = false
	o.lastErr = nil
	o.current = session.New(id, o.clock.Now())
	o.metrics.RecordSessionStart()

	logger := logging.WithSession(id)
	logger.Info().
		Int("steps", len(o.actions)).
		Dur("prepareDelay", o.timings.PrepareDelay).
		Dur("actionWindow", o.timings.ActionWindow).
		Msg("Calibration session started")
	o.notifySession(models.EventSessionStarted, "")

	o.enterAwaiting(o.generation)
	return id, nil
}

// Cancel drops the active session and returns to Idle. A capture whose
// device read is in flight completes first: it is recorded and its action
// dispatched, then the session drops; if that capture fails the session
// aborts instead. Otherwise the pending timer is stopped and the session
// drops at once.
func (o *Orchestrator) Cancel() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	state := o.lifecycle.State()
	if !state.IsActive() {
		return session.ErrNoActiveSession
	}

	if state == session.StateCapturing && o.reading {
		o.cancelRequested = true
		o.logger.Info().Str("sessionId", o.current.ID).Msg("Cancel requested during capture")
		return nil
	}

	o.finishCancelled()
	return nil
}

// Status returns the current state. Outside a session it describes the last
// finished session.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := Status{
		State:      o.lifecycle.State().String(),
		Steps:      len(o.actions),
		Classifier: o.classifier.Name(),
		Source:     o.source.Name(),
	}
	if o.lastErr != nil {
		st.LastError = o.lastErr.Error()
	}

	s := o.current
	if s == nil {
		s = o.last
	}
	if s == nil {
		st.Records = []eeg.PredictionRecord{}
		return st
	}

	st.SessionID = s.ID
	st.Records = append([]eeg.PredictionRecord{}, s.Records...)
	st.Accuracy = s.Accuracy()
	st.ExactAccuracy = s.ExactAccuracy()
	if o.current != nil {
		step := o.lifecycle.Step()
		st.Step = step
		st.Action = o.actions[step].String()
		st.Instruction = o.instruction
	} else {
		st.Step = len(s.Records)
	}
	return st
}

// LastSession returns a copy of the last finished session, or nil.
func (o *Orchestrator) LastSession() *session.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.last == nil {
		return nil
	}
	return o.last.Clone()
}

// Export writes the captured windows of the active session, or of the last
// finished one, in raw stream format.
func (o *Orchestrator) Export(w io.Writer) error {
	o.mu.Lock()
	s := o.current
	if s == nil {
		s = o.last
	}
	if s != nil {
		s = s.Clone()
	}
	o.mu.Unlock()

	if s == nil {
		return ErrNoSession
	}
	return labeler.WriteStream(w, s.Dataset().Windows)
}

// Electrodes reports electrode contact from the signal source.
func (o *Orchestrator) Electrodes() [eeg.Channels]bool {
	return source.Electrodes(o.source)
}

// Shutdown stops scheduled work, aborts an active session and waits for
// in-flight dispatches and saves.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	if o.lifecycle.State().IsActive() {
		o.abort(errors.New("service shutting down"), "shutdown")
	}
	o.stopTimer()
	o.generation++
	o.mu.Unlock()

	o.cancel()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until in-flight dispatches and saves finish.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// --- state transitions; callers hold mu ---

func (o *Orchestrator) enterAwaiting(gen uint64) {
	step := o.lifecycle.Step()
	action := o.actions[step]
	logger := logging.WithStep(o.current.ID, step, action.String())

	c := cue.Instructions(action)
	if o.cues != nil {
		if loaded, err := o.cues.Load(action); err != nil {
			logger.Warn().Err(err).Msg("Cue image unavailable, continuing with text only")
		} else {
			c = loaded
		}
	}
	o.instruction = c.Prepare

	logger.Info().Str("instruction", c.Prepare).Msg("Awaiting action")
	o.notifySession(models.EventSessionStep, action.String())

	o.timer = o.scheduler.AfterFunc(o.timings.PrepareDelay, func() { o.capture(gen, c) })
}

func (o *Orchestrator) capture(gen uint64, c cue.Cue) {
	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		return
	}
	if err := o.lifecycle.Capture(); err != nil {
		o.logger.Error().Err(err).Msg("Capture fired in unexpected state")
		o.mu.Unlock()
		return
	}
	step := o.lifecycle.Step()
	expected := o.actions[step]
	sessionId := o.current.ID
	captureId := o.captureIDs.Next(sessionId)
	o.instruction = c.Perform
	o.reading = true
	o.mu.Unlock()

	logger := logging.WithStep(sessionId, step, expected.String())
	logger.Info().Str("captureId", captureId).Msg("Capturing")

	// The device read and inference run without the lock so status stays
	// readable; the generation check below discards stale results.
	window, probs, latency, err := o.classify(captureId)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.reading = false

	if gen != o.generation {
		return
	}
	if err != nil {
		logger.Error().Err(err).Str("captureId", captureId).Msg("Capture failed, aborting session")
		o.abort(err, abortReason(err))
		return
	}

	predicted := probs.Argmax()
	rec := eeg.PredictionRecord{
		CaptureID:  captureId,
		Expected:   expected,
		Predicted:  predicted,
		Confidence: probs.Of(expected),
		CapturedAt: o.clock.Now(),
	}
	o.current.Record(rec, window)
	o.metrics.RecordPrediction(expected.String(), predicted.String(), rec.Confidence, latency.Seconds())

	logger.Info().
		Str("captureId", captureId).
		Str("predicted", predicted.String()).
		Float64("confidence", rec.Confidence).
		Msg("Capture classified")
	o.notify(models.PredictionEvent{
		EventType:     models.EventPrediction,
		SessionID:     sessionId,
		CaptureID:     captureId,
		Timestamp:     rec.CapturedAt.UnixMilli(),
		Expected:      expected.String(),
		Predicted:     predicted.String(),
		Confidence:    rec.Confidence,
		Probabilities: probs,
	})

	o.dispatch(predicted)

	if o.cancelRequested {
		o.finishCancelled()
		return
	}
	o.timer = o.scheduler.AfterFunc(o.timings.ActionWindow, func() { o.evaluate(gen) })
}

// classify reads one block from the source and runs it through the
// conditioner and classifier. The returned window is the raw capture.
func (o *Orchestrator) classify(captureId string) (eeg.Matrix, eeg.Probabilities, time.Duration, error) {
	readCtx, cancel := context.WithTimeout(o.ctx, o.timings.ReadTimeout)
	defer cancel()

	start := time.Now()
	block, err := o.source.Read(readCtx)
	o.metrics.RecordCapture(o.source.Name(), err, time.Since(start).Seconds())
	if err != nil {
		var dre *eeg.DeviceReadError
		if !errors.As(err, &dre) {
			err = &eeg.DeviceReadError{Source: o.source.Name(), Err: err}
		}
		return eeg.Matrix{}, eeg.Probabilities{}, 0, err
	}
	window := block.Matrix()

	tensor, err := o.conditioner.Window(window)
	if err != nil {
		o.metrics.RecordConditioningFailure()
		return eeg.Matrix{}, eeg.Probabilities{}, 0, fmt.Errorf("condition capture %s: %w", captureId, err)
	}

	start = time.Now()
	probs, err := o.classifier.Predict(o.ctx, tensor)
	if err != nil {
		return eeg.Matrix{}, eeg.Probabilities{}, 0, fmt.Errorf("classify capture %s: %w", captureId, err)
	}
	return window, probs, time.Since(start), nil
}

func (o *Orchestrator) evaluate(gen uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if gen != o.generation {
		return
	}
	o.timer = nil

	if err := o.lifecycle.Evaluate(); err != nil {
		o.logger.Error().Err(err).Msg("Evaluate in unexpected state")
		return
	}
	done, err := o.lifecycle.Advance()
	if err != nil {
		o.logger.Error().Err(err).Msg("Advance in unexpected state")
		return
	}
	if done {
		o.complete()
		return
	}
	o.enterAwaiting(gen)
}

func (o *Orchestrator) complete() {
	s := o.current
	s.Finish(session.OutcomeCompleted, o.clock.Now(), nil)
	o.metrics.RecordSessionComplete(s.Accuracy(), s.Duration().Seconds())

	logger := logging.WithSession(s.ID)
	logger.Info().
		Float64("accuracy", s.Accuracy()).
		Float64("exactAccuracy", s.ExactAccuracy()).
		Dur("duration", s.Duration()).
		Msg("Calibration complete")
	o.notify(models.SessionEvent{
		EventType:     models.EventSessionCompleted,
		SessionID:     s.ID,
		Timestamp:     o.clock.Now().UnixMilli(),
		State:         session.StateComplete.String(),
		Step:          len(s.Records),
		Accuracy:      s.Accuracy(),
		ExactAccuracy: s.ExactAccuracy(),
	})

	o.last = s
	o.current = nil
	o.instruction = ""
	o.timer = nil
	o.save(s.Clone())
}

func (o *Orchestrator) abort(err error, reason string) {
	s := o.current
	o.lifecycle.Abort()
	s.Finish(session.OutcomeAborted, o.clock.Now(), err)
	o.metrics.RecordSessionAborted(reason)

	o.notify(models.SessionEvent{
		EventType: models.EventSessionAborted,
		SessionID: s.ID,
		Timestamp: o.clock.Now().UnixMilli(),
		State:     session.StateIdle.String(),
		Step:      len(s.Records),
		Accuracy:  s.Accuracy(),
		Error:     err.Error(),
	})

	o.lastErr = err
	o.last = s
	o.current = nil
	o.instruction = ""
	o.cancelRequested = false
	o.stopTimer()
	o.generation++
}

func (o *Orchestrator) finishCancelled() {
	s := o.current
	o.stopTimer()
	o.lifecycle.Abort()
	s.Finish(session.OutcomeCancelled, o.clock.Now(), nil)
	o.metrics.RecordSessionCancelled()

	logger := logging.WithSession(s.ID)
	logger.Info().Int("recorded", len(s.Records)).Msg("Calibration cancelled")
	o.notify(models.SessionEvent{
		EventType: models.EventSessionCancelled,
		SessionID: s.ID,
		Timestamp: o.clock.Now().UnixMilli(),
		State:     session.StateIdle.String(),
		Step:      len(s.Records),
	})

	o.last = s
	o.current = nil
	o.instruction = ""
	o.cancelRequested = false
	o.generation++
}

func (o *Orchestrator) stopTimer() {
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
}

// dispatch delivers the predicted action without waiting for it.
func (o *Orchestrator) dispatch(a eeg.Action) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx, cancel := context.WithTimeout(o.ctx, o.timings.SinkTimeout)
		defer cancel()
		if err := o.sink.Dispatch(ctx, a); err != nil {
			o.logger.Warn().Err(err).Str("action", a.Symbol()).Msg("Action dispatch failed")
		}
	}()
}

func (o *Orchestrator) save(s *session.Session) {
	if o.store == nil {
		return
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := o.store.SaveSession(o.ctx, s); err != nil {
			logger := logging.WithSession(s.ID)
			logger.Error().Err(err).Msg("Failed to persist session")
		}
	}()
}

func (o *Orchestrator) notifySession(eventType, action string) {
	o.notify(models.SessionEvent{
		EventType: eventType,
		SessionID: o.current.ID,
		Timestamp: o.clock.Now().UnixMilli(),
		State:     o.lifecycle.State().String(),
		Step:      o.lifecycle.Step(),
		Action:    action,
	})
}

func (o *Orchestrator) notify(e models.Event) {
	for _, n := range o.notifiers {
		n.Notify(e)
	}
}

func abortReason(err error) string {
	switch {
	case errors.Is(err, eeg.ErrDeviceRead):
		return "device"
	case errors.Is(err, eeg.ErrConditioning):
		return "conditioning"
	case errors.Is(err, eeg.ErrModelUnavailable):
		return "model"
	default:
		return "other"
	}
}
