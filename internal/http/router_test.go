package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"eeg-action-service/internal/app"
	"eeg-action-service/internal/config"
	"eeg-action-service/internal/eeg"
	"eeg-action-service/internal/models"
	"eeg-action-service/internal/service/calibration"
	"eeg-action-service/internal/service/session"
	"eeg-action-service/internal/store"
)

type testOrchestrator struct {
	startErr  error
	cancelErr error
	exportErr error
	st        calibration.Status
}

func (o *testOrchestrator) Start(ctx context.Context) (string, error) {
	if o.startErr != nil {
		return "", o.startErr
	}
	return "sess-1", nil
}

func (o *testOrchestrator) Cancel() error { return o.cancelErr }

func (o *testOrchestrator) Status() calibration.Status { return o.st }

func (o *testOrchestrator) Export(w io.Writer) error {
	if o.exportErr != nil {
		return o.exportErr
	}
	_, err := io.WriteString(w, "Left Click\n[1, 2, 3, 4, 5, 6]\n")
	return err
}

func (o *testOrchestrator) Electrodes() [eeg.Channels]bool {
	return [eeg.Channels]bool{true, true, false, true, true, true}
}

type testHistory struct {
	limit int
}

func (h *testHistory) RecentSessions(ctx context.Context, limit int) ([]store.SessionSummary, error) {
	h.limit = limit
	return []store.SessionSummary{{ID: "sess-0", Outcome: "completed", Accuracy: 0.7}}, nil
}

func newTestRouter(t *testing.T, o Orchestrator, history SessionHistory) (http.Handler, *Hub) {
	t.Helper()
	a := app.New(config.Defaults())
	a.Start()
	hub := NewHub()
	return NewRouter(a, o, history, hub), hub
}

func do(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestRouter_Health(t *testing.T) {
	r, _ := newTestRouter(t, &testOrchestrator{}, nil)

	if rec := do(r, http.MethodGet, "/v1/liveness"); rec.Code != http.StatusOK {
		t.Errorf("liveness: expected 200, got %d", rec.Code)
	}
	if rec := do(r, http.MethodGet, "/v1/readiness"); rec.Code != http.StatusOK {
		t.Errorf("readiness: expected 200, got %d", rec.Code)
	}
}

func TestRouter_Start(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"accepted", nil, http.StatusAccepted},
		{"conflict", &eeg.SessionConflictError{State: "CAPTURING"}, http.StatusConflict},
		{"model unavailable", &eeg.ModelUnavailableError{Path: "m.json", Err: errors.New("missing")}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRouter(t, &testOrchestrator{startErr: tt.err}, nil)
			rec := do(r, http.MethodPost, "/v1/session/start")
			if rec.Code != tt.code {
				t.Errorf("expected %d, got %d: %s", tt.code, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRouter_Cancel(t *testing.T) {
	r, _ := newTestRouter(t, &testOrchestrator{}, nil)
	if rec := do(r, http.MethodPost, "/v1/session/cancel"); rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}

	r, _ = newTestRouter(t, &testOrchestrator{cancelErr: session.ErrNoActiveSession}, nil)
	if rec := do(r, http.MethodPost, "/v1/session/cancel"); rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
}

func TestRouter_Status(t *testing.T) {
	o := &testOrchestrator{st: calibration.Status{SessionID: "sess-1", State: "AWAITING_ACTION", Steps: 4, Records: []eeg.PredictionRecord{}}}
	r, _ := newTestRouter(t, o, nil)

	rec := do(r, http.MethodGet, "/v1/session")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var st calibration.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if st.SessionID != "sess-1" || st.State != "AWAITING_ACTION" {
		t.Errorf("unexpected status: %+v", st)
	}
}

func TestRouter_Export(t *testing.T) {
	r, _ := newTestRouter(t, &testOrchestrator{}, nil)
	rec := do(r, http.MethodGet, "/v1/session/export")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("expected text/csv, got %s", ct)
	}
	if !strings.HasPrefix(rec.Body.String(), "Left Click") {
		t.Errorf("unexpected body: %q", rec.Body.String())
	}

	r, _ = newTestRouter(t, &testOrchestrator{exportErr: calibration.ErrNoSession}, nil)
	if rec := do(r, http.MethodGet, "/v1/session/export"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestRouter_Sessions(t *testing.T) {
	r, _ := newTestRouter(t, &testOrchestrator{}, nil)
	if rec := do(r, http.MethodGet, "/v1/sessions"); rec.Code != http.StatusNotImplemented {
		t.Errorf("expected 501 without store, got %d", rec.Code)
	}

	history := &testHistory{}
	r, _ = newTestRouter(t, &testOrchestrator{}, history)

	rec := do(r, http.MethodGet, "/v1/sessions?limit=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if history.limit != 5 {
		t.Errorf("expected limit 5, got %d", history.limit)
	}

	if rec := do(r, http.MethodGet, "/v1/sessions?limit=-1"); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", rec.Code)
	}
}

func TestRouter_Electrodes(t *testing.T) {
	r, _ := newTestRouter(t, &testOrchestrator{}, nil)
	rec := do(r, http.MethodGet, "/v1/electrodes")

	var body struct {
		Electrodes []bool `json:"electrodes"`
		Active     int    `json:"active"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if len(body.Electrodes) != eeg.Channels || body.Active != 5 {
		t.Errorf("unexpected electrodes: %+v", body)
	}
}

func TestHub_BroadcastsEvents(t *testing.T) {
	r, hub := newTestRouter(t, &testOrchestrator{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.Clients() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", hub.Clients())
	}

	hub.Notify(models.SessionEvent{
		EventType: models.EventSessionStarted,
		SessionID: "sess-1",
		Timestamp: 1700000000000,
		State:     "AWAITING_ACTION",
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got models.SessionEvent
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.EventType != models.EventSessionStarted || got.SessionID != "sess-1" {
		t.Errorf("unexpected event: %+v", got)
	}
}

func TestHub_NotifyNeverBlocks(t *testing.T) {
	hub := NewHub()
	// Nobody runs the hub; the queue fills and further events are dropped
	for i := 0; i < 200; i++ {
		hub.Notify(models.SessionEvent{EventType: models.EventSessionStep, SessionID: "s"})
	}
}
