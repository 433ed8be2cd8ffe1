package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"eeg-action-service/internal/app"
	"eeg-action-service/internal/eeg"
	"eeg-action-service/internal/observability/logging"
	"eeg-action-service/internal/service/calibration"
	"eeg-action-service/internal/service/session"
	"eeg-action-service/internal/store"
)

// Orchestrator is the calibration surface exposed over HTTP.
type Orchestrator interface {
	Start(ctx context.Context) (string, error)
	Cancel() error
	Status() calibration.Status
	Export(w io.Writer) error
	Electrodes() [eeg.Channels]bool
}

// SessionHistory lists persisted sessions.
type SessionHistory interface {
	RecentSessions(ctx context.Context, limit int) ([]store.SessionSummary, error)
}

type handlers struct {
	orchestrator Orchestrator
	history      SessionHistory
	logger       zerolog.Logger
}

// NewRouter constructs the HTTP router for the service. history may be nil
// when the store is disabled.
func NewRouter(application *app.Application, orchestrator Orchestrator, history SessionHistory, hub *Hub) http.Handler {
	h := &handlers{
		orchestrator: orchestrator,
		history:      history,
		logger:       logging.WithComponent("http"),
	}

	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if !application.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Get("/session", h.status)
		r.Post("/session/start", h.start)
		r.Post("/session/cancel", h.cancel)
		r.Get("/session/export", h.export)
		r.Get("/sessions", h.sessions)
		r.Get("/electrodes", h.electrodes)
		r.Get("/ws", hub.ServeWS)
	})

	return r
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.orchestrator.Status())
}

func (h *handlers) start(w http.ResponseWriter, r *http.Request) {
	id, err := h.orchestrator.Start(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"sessionId": id})
}

func (h *handlers) cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.orchestrator.Cancel(); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) export(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="calibration.csv"`)
	if err := h.orchestrator.Export(w); err != nil {
		w.Header().Del("Content-Disposition")
		h.writeError(w, err)
	}
}

func (h *handlers) sessions(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "session store disabled"})
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	sums, err := h.history.RecentSessions(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if sums == nil {
		sums = []store.SessionSummary{}
	}
	writeJSON(w, http.StatusOK, sums)
}

func (h *handlers) electrodes(w http.ResponseWriter, r *http.Request) {
	e := h.orchestrator.Electrodes()
	active := 0
	for _, ok := range e {
		if ok {
			active++
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"electrodes": e,
		"active":     active,
	})
}

// writeError maps domain errors to HTTP status codes.
func (h *handlers) writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, eeg.ErrSessionConflict), errors.Is(err, session.ErrNoActiveSession):
		code = http.StatusConflict
	case errors.Is(err, calibration.ErrNoSession):
		code = http.StatusNotFound
	case errors.Is(err, eeg.ErrModelUnavailable), errors.Is(err, eeg.ErrDeviceRead):
		code = http.StatusServiceUnavailable
	}
	if code == http.StatusInternalServerError {
		h.logger.Error().Err(err).Msg("Request failed")
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func (h *handlers) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		h.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Str("requestId", middleware.GetReqID(r.Context())).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
