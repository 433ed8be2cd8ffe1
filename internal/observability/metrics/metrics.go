// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "eeg_action"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionsStarted   prometheus.Counter
	SessionsCompleted prometheus.Counter
	SessionsAborted   *prometheus.CounterVec
	SessionsCancelled prometheus.Counter
	SessionAccuracy   prometheus.Gauge
	SessionDuration   prometheus.Histogram

	// Capture metrics
	CapturesTotal     prometheus.Counter
	DeviceReadLatency prometheus.Histogram
	DeviceReadErrors  *prometheus.CounterVec
	MalformedLines    *prometheus.CounterVec

	// Classifier metrics
	Predictions          *prometheus.CounterVec
	PredictionConfidence prometheus.Histogram
	InferenceLatency     prometheus.Histogram
	ModelLoads           *prometheus.CounterVec

	// Data preparation metrics
	WindowsLabeled      *prometheus.CounterVec
	ConditioningFailure prometheus.Counter

	// Action dispatch metrics
	ActionsDispatched *prometheus.CounterVec
	ActionErrors      *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// RPC metrics
	RPCTotal    *prometheus.CounterVec
	RPCActive   prometheus.Gauge
	RPCDuration *prometheus.HistogramVec

	// Event stream metrics
	SubscribersActive prometheus.Gauge
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)

// NewMetrics creates all Prometheus metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		// Session metrics
		SessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of calibration sessions started",
		}),
		SessionsCompleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_completed_total",
			Help:      "Total number of calibration sessions that ran every step",
		}),
		SessionsAborted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_aborted_total",
			Help:      "Total number of calibration sessions aborted by a failure",
		}, []string{"reason"}),
		SessionsCancelled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_cancelled_total",
			Help:      "Total number of calibration sessions cancelled by the operator",
		}),
		SessionAccuracy: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_accuracy",
			Help:      "Accuracy (mean confidence) of the last completed session",
		}),
		SessionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of completed calibration sessions in seconds",
			Buckets:   []float64{5, 10, 20, 30, 45, 60, 120},
		}),

		// Capture metrics
		CapturesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captures_total",
			Help:      "Total number of signal windows captured from the device",
		}),
		DeviceReadLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "device_read_latency_seconds",
			Help:      "Time to read one window from the signal source",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		}),
		DeviceReadErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_read_errors_total",
			Help:      "Total number of failed signal source reads",
		}, []string{"source"}),
		MalformedLines: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_malformed_lines_total",
			Help:      "Total number of device lines skipped because they were not sample lists",
		}, []string{"source"}),

		// Classifier metrics
		Predictions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Total number of predictions by expected and predicted action",
		}, []string{"expected", "predicted"}),
		PredictionConfidence: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_confidence",
			Help:      "Probability assigned to the expected action",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		InferenceLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_latency_seconds",
			Help:      "Time spent in the classifier per window",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
		ModelLoads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_loads_total",
			Help:      "Total number of model artifact load attempts",
		}, []string{"result"}),

		// Data preparation metrics
		WindowsLabeled: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "windows_labeled_total",
			Help:      "Total number of windows labeled from raw streams",
		}, []string{"class"}),
		ConditioningFailure: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conditioning_failures_total",
			Help:      "Total number of batches rejected by the conditioner",
		}),

		// Action dispatch metrics
		ActionsDispatched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_dispatched_total",
			Help:      "Total number of actions delivered to sinks",
		}, []string{"sink", "action"}),
		ActionErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_errors_total",
			Help:      "Total number of failed action deliveries",
		}, []string{"sink"}),

		// Kafka publish metrics
		KafkaPublishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		// RPC metrics
		RPCTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_total",
			Help:      "Total number of gRPC calls handled",
		}, []string{"method", "code"}),
		RPCActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rpc_active",
			Help:      "Number of gRPC calls in flight",
		}),
		RPCDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_duration_seconds",
			Help:      "Duration of gRPC calls in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"method"}),

		SubscribersActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "event_subscribers_active",
			Help:      "Number of connected session event subscribers",
		}),
	}
}

// RecordSessionStart records a new calibration session.
func (m *Metrics) RecordSessionStart() {
	m.SessionsStarted.Inc()
}

// RecordSessionComplete records a session that ran every step.
func (m *Metrics) RecordSessionComplete(accuracy, durationSeconds float64) {
	m.SessionsCompleted.Inc()
	m.SessionAccuracy.Set(accuracy)
	m.SessionDuration.Observe(durationSeconds)
}

// RecordSessionAborted records a session ended by a failure.
func (m *Metrics) RecordSessionAborted(reason string) {
	m.SessionsAborted.WithLabelValues(reason).Inc()
}

// RecordSessionCancelled records a session ended by the operator.
func (m *Metrics) RecordSessionCancelled() {
	m.SessionsCancelled.Inc()
}

// RecordCapture records a device read attempt.
func (m *Metrics) RecordCapture(source string, err error, latencySeconds float64) {
	m.DeviceReadLatency.Observe(latencySeconds)
	if err != nil {
		m.DeviceReadErrors.WithLabelValues(source).Inc()
		return
	}
	m.CapturesTotal.Inc()
}

// RecordMalformedLine records a device line that could not be parsed.
func (m *Metrics) RecordMalformedLine(source string) {
	m.MalformedLines.WithLabelValues(source).Inc()
}

// RecordPrediction records one classified capture.
func (m *Metrics) RecordPrediction(expected, predicted string, confidence, latencySeconds float64) {
	m.Predictions.WithLabelValues(expected, predicted).Inc()
	m.PredictionConfidence.Observe(confidence)
	m.InferenceLatency.Observe(latencySeconds)
}

// RecordModelLoad records a model artifact load attempt.
func (m *Metrics) RecordModelLoad(err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.ModelLoads.WithLabelValues(result).Inc()
}

// RecordWindowLabeled records a window cut from a raw stream.
func (m *Metrics) RecordWindowLabeled(class string) {
	m.WindowsLabeled.WithLabelValues(class).Inc()
}

// RecordConditioningFailure records a batch the conditioner rejected.
func (m *Metrics) RecordConditioningFailure() {
	m.ConditioningFailure.Inc()
}

// RecordActionDispatch records delivery of an action to a sink.
func (m *Metrics) RecordActionDispatch(sink, action string, err error) {
	if err != nil {
		m.ActionErrors.WithLabelValues(sink).Inc()
		return
	}
	m.ActionsDispatched.WithLabelValues(sink, action).Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordRPCStart records a gRPC call starting.
func (m *Metrics) RecordRPCStart() {
	m.RPCActive.Inc()
}

// RecordRPCEnd records a gRPC call finishing with the given status code.
func (m *Metrics) RecordRPCEnd(method, code string, durationSeconds float64) {
	m.RPCActive.Dec()
	m.RPCTotal.WithLabelValues(method, code).Inc()
	m.RPCDuration.WithLabelValues(method).Observe(durationSeconds)
}

// RecordSubscriber adjusts the connected subscriber gauge by delta.
func (m *Metrics) RecordSubscriber(delta int) {
	m.SubscribersActive.Add(float64(delta))
}
