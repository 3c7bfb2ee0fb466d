package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics. Mode is "batched" or "streaming".
	activeSessions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "speech_bridge_active_sessions",
		Help: "Number of active synthesis sessions",
	}, []string{"mode"})

	sessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_bridge_sessions_total",
		Help: "Total number of synthesis sessions processed",
	}, []string{"mode", "status"})

	sessionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "speech_bridge_session_duration_seconds",
		Help:    "Duration of synthesis sessions in seconds",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"mode"})

	// Time from session start to the first audio byte reaching the sink
	firstAudioLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "speech_bridge_first_audio_seconds",
		Help:    "Latency from session start to first audio byte in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	}, []string{"mode"})

	audioBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_bridge_audio_bytes_total",
		Help: "Total audio bytes delivered to sinks",
	}, []string{"mode"})

	textFragmentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "speech_bridge_text_fragments_total",
		Help: "Total text fragments sent on live synthesis streams",
	})

	// Sessions that reached "started": first non-empty flush accepted
	streamingStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "speech_bridge_streaming_started_total",
		Help: "Live sessions that sent at least one text flush to the backend",
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_bridge_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "speech_bridge_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_bridge_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})
)

// SessionMetrics tracks metrics for a single synthesis session
type SessionMetrics struct {
	sessionID string
	mode      string
	startTime time.Time

	mu         sync.Mutex
	firstAudio bool
}

// NewSessionMetrics creates a metrics tracker for one synthesis session
func NewSessionMetrics(sessionID, mode string) *SessionMetrics {
	return &SessionMetrics{
		sessionID: sessionID,
		mode:      mode,
		startTime: time.Now(),
	}
}

// RecordSessionStart records the start of a session
func (m *SessionMetrics) RecordSessionStart() {
	activeSessions.WithLabelValues(m.mode).Inc()
}

// RecordSessionEnd records the end of a session with its outcome
func (m *SessionMetrics) RecordSessionEnd(success bool) {
	activeSessions.WithLabelValues(m.mode).Dec()
	sessionDuration.WithLabelValues(m.mode).Observe(time.Since(m.startTime).Seconds())

	status := "success"
	if !success {
		status = "error"
	}
	sessionsTotal.WithLabelValues(m.mode, status).Inc()
}

// RecordAudioChunk records one audio chunk delivered to the sink.
// The first chunk of a session also observes first-audio latency.
func (m *SessionMetrics) RecordAudioChunk(bytes int) {
	m.mu.Lock()
	if !m.firstAudio {
		m.firstAudio = true
		firstAudioLatency.WithLabelValues(m.mode).Observe(time.Since(m.startTime).Seconds())
	}
	m.mu.Unlock()

	audioBytesTotal.WithLabelValues(m.mode).Add(float64(bytes))
}

// RecordTextFragment records one text fragment sent on a live stream
func (m *SessionMetrics) RecordTextFragment() {
	textFragmentsTotal.Inc()
}

// RecordError records an error
func (m *SessionMetrics) RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// MetricsObserver records synthesis session milestones. It satisfies the
// synthesis client's observer contract.
type MetricsObserver struct{}

// NewMetricsObserver creates an observer publishing milestones to Prometheus.
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

// SessionStarted fires once per live session, on the first accepted flush.
func (o *MetricsObserver) SessionStarted(sessionID string) {
	streamingStartedTotal.Inc()
	logger := WithSessionID(sessionID)
	logger.Debug().Msg("Synthesis session started")
}

// SessionFinished fires when an engine operation completes.
func (o *MetricsObserver) SessionFinished(sessionID string, err error) {
	logger := WithSessionID(sessionID)
	evt := logger.Debug()
	if err != nil {
		evt = evt.Err(err)
	}
	evt.Msg("Synthesis session finished")
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
