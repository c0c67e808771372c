package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the meeting assistant service
type Metrics struct {
	// WebSocket connection metrics
	ConnectionsActive prometheus.Gauge
	ConnectionsTotal  prometheus.Counter
	MessagesReceived  prometheus.Counter
	ParseErrors       prometheus.Counter

	// Session metrics
	ActiveSessions   prometheus.Gauge
	SessionsCreated  prometheus.Counter
	SessionsArchived prometheus.Counter
	SessionDuration  prometheus.Histogram

	// Audio ingestion metrics
	FragmentsReceived prometheus.Counter
	FragmentsDropped  prometheus.Counter
	WindowsFlushed    prometheus.Counter
	WindowsDropped    prometheus.Counter
	WindowDuration    prometheus.Histogram
	WindowSize        prometheus.Histogram

	// Transcription metrics
	TranscriptionRequests  prometheus.Counter
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  prometheus.Counter
	TranscriptionDuration  prometheus.Histogram

	// Summarization metrics
	SummaryRequests  prometheus.Counter
	SummarySuccesses prometheus.Counter
	SummaryFailures  prometheus.Counter
	SummaryDuration  prometheus.Histogram

	// Fanout metrics
	EventsSent   prometheus.Counter
	SendFailures prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// WebSocket connection metrics
		ConnectionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "meeting_connections_active",
			Help: "Current number of open client connections",
		}),
		ConnectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "meeting_connections_total",
			Help: "Total number of client connections accepted",
		}),
		MessagesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "meeting_messages_received_total",
			Help: "Total number of client messages received",
		}),
		ParseErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "meeting_parse_errors_total",
			Help: "Total number of malformed client messages",
		}),

		// Session metrics
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "meeting_active_sessions",
			Help: "Current number of active meeting sessions",
		}),
		SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "meeting_sessions_created_total",
			Help: "Total number of sessions created",
		}),
		SessionsArchived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "meeting_sessions_archived_total",
			Help: "Total number of sessions archived",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "meeting_session_duration_seconds",
			Help:    "Duration of meeting sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(60, 2, 8), // 1 minute to ~2 hours
		}),

		// Audio ingestion metrics
		FragmentsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "meeting_audio_fragments_received_total",
			Help: "Total number of audio fragments received",
		}),
		FragmentsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "meeting_audio_fragments_dropped_total",
			Help: "Total number of audio fragments dropped by the pending cap",
		}),
		WindowsFlushed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "meeting_audio_windows_flushed_total",
			Help: "Total number of audio windows flushed for transcription",
		}),
		WindowsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "meeting_audio_windows_dropped_total",
			Help: "Total number of audio windows dropped due to a full queue",
		}),
		WindowDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "meeting_window_duration_seconds",
			Help:    "Duration of flushed audio windows",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8), // 1s to ~2 minutes
		}),
		WindowSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "meeting_window_size_bytes",
			Help:    "Size of flushed audio windows in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 12), // 1KB to ~4MB
		}),

		// Transcription metrics
		TranscriptionRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "meeting_transcription_requests_total",
			Help: "Total number of transcription requests sent",
		}),
		TranscriptionSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "meeting_transcription_successes_total",
			Help: "Total number of successful transcription requests",
		}),
		TranscriptionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "meeting_transcription_failures_total",
			Help: "Total number of failed transcription requests",
		}),
		TranscriptionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "meeting_transcription_duration_seconds",
			Help:    "Duration of transcription requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),

		// Summarization metrics
		SummaryRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "meeting_summary_requests_total",
			Help: "Total number of summarization requests sent",
		}),
		SummarySuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "meeting_summary_successes_total",
			Help: "Total number of successful summarization requests",
		}),
		SummaryFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "meeting_summary_failures_total",
			Help: "Total number of failed summarization requests",
		}),
		SummaryDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "meeting_summary_duration_seconds",
			Help:    "Duration of summarization requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),

		// Fanout metrics
		EventsSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "meeting_events_sent_total",
			Help: "Total number of events delivered to clients",
		}),
		SendFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "meeting_event_send_failures_total",
			Help: "Total number of failed event deliveries",
		}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "meeting_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "meeting_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "meeting_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordConnectionOpened increments connection counters
func (m *Metrics) RecordConnectionOpened() {
	m.ConnectionsTotal.Inc()
	m.ConnectionsActive.Inc()
}

// RecordConnectionClosed decrements the active connection gauge
func (m *Metrics) RecordConnectionClosed() {
	m.ConnectionsActive.Dec()
}

// RecordMessageReceived increments the messages received counter
func (m *Metrics) RecordMessageReceived() {
	m.MessagesReceived.Inc()
}

// RecordParseError increments the parse errors counter
func (m *Metrics) RecordParseError() {
	m.ParseErrors.Inc()
}

// SetActiveSessions sets the current number of active sessions
func (m *Metrics) SetActiveSessions(count int) {
	m.ActiveSessions.Set(float64(count))
}

// RecordSessionCreated increments the sessions created counter
func (m *Metrics) RecordSessionCreated() {
	m.SessionsCreated.Inc()
}

// RecordSessionArchived increments the archive counter and records duration
func (m *Metrics) RecordSessionArchived(durationSeconds float64) {
	m.SessionsArchived.Inc()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordFragmentReceived increments the fragments received counter
func (m *Metrics) RecordFragmentReceived() {
	m.FragmentsReceived.Inc()
}

// RecordFragmentsDropped adds fragments evicted by the pending-audio cap
func (m *Metrics) RecordFragmentsDropped(count int) {
	m.FragmentsDropped.Add(float64(count))
}

// RecordWindowFlushed records a flushed audio window
func (m *Metrics) RecordWindowFlushed(durationSeconds float64, sizeBytes int) {
	m.WindowsFlushed.Inc()
	m.WindowDuration.Observe(durationSeconds)
	m.WindowSize.Observe(float64(sizeBytes))
}

// RecordWindowDropped increments the dropped windows counter
func (m *Metrics) RecordWindowDropped() {
	m.WindowsDropped.Inc()
}

// RecordTranscription records one transcription attempt and its outcome
func (m *Metrics) RecordTranscription(success bool, durationSeconds float64) {
	m.TranscriptionRequests.Inc()
	if success {
		m.TranscriptionSuccesses.Inc()
	} else {
		m.TranscriptionFailures.Inc()
	}
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordSummary records one summarization attempt and its outcome
func (m *Metrics) RecordSummary(success bool, durationSeconds float64) {
	m.SummaryRequests.Inc()
	if success {
		m.SummarySuccesses.Inc()
	} else {
		m.SummaryFailures.Inc()
	}
	m.SummaryDuration.Observe(durationSeconds)
}

// RecordEventSent increments the delivered events counter
func (m *Metrics) RecordEventSent() {
	m.EventsSent.Inc()
}

// RecordSendFailure increments the failed deliveries counter
func (m *Metrics) RecordSendFailure() {
	m.SendFailures.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
