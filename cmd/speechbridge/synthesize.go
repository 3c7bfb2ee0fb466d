package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/murmurlabs/speech-bridge/internal/audio"
	"github.com/murmurlabs/speech-bridge/internal/fishaudio"
	"github.com/murmurlabs/speech-bridge/internal/observability"
	"github.com/murmurlabs/speech-bridge/internal/resilience"
)

// synthesizeRequest is the POST /synthesize body.
type synthesizeRequest struct {
	Text string `json:"text"`
}

// errorResponse is the JSON body returned on handler failures.
type errorResponse struct {
	Error string `json:"error"`
}

// handleSynthesize runs a batched synthesis per request: the full text goes
// upstream, all audio is captured in memory, and the complete result is
// returned as one audio/wav body. Attempts are retried under the circuit
// breaker; every attempt uses a fresh capture sink so a retry never replays
// audio from a failed run.
func handleSynthesize(client *fishaudio.Client, breaker *resilience.CircuitBreaker, retryConfig *resilience.RetryConfig) http.HandlerFunc {
	isRetryable := func(err error) bool {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return false
		}
		var connErr *fishaudio.ConnectionError
		return errors.As(err, &connErr)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		correlationID := observability.NewCorrelationID()
		logger := observability.WithCorrelationID(correlationID)

		var req synthesizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		// Reject empty text before it can count against the breaker
		if strings.TrimSpace(req.Text) == "" {
			writeJSONError(w, http.StatusBadRequest, fishaudio.ErrEmptyText.Error())
			return
		}

		metrics := observability.NewSessionMetrics(correlationID, "batched")
		metrics.RecordSessionStart()

		logger.Info().Int("text_length", len(req.Text)).Msg("Batched synthesis requested")

		var capture *audio.CaptureSink
		attempt := func() error {
			capture = audio.NewCaptureSink()
			return client.Synthesize(r.Context(), req.Text, observability.InstrumentSink(metrics, capture))
		}

		err := resilience.Retry(r.Context(), func() error {
			err := breaker.Call(attempt)
			observability.UpdateCircuitBreakerState(breaker.Name(), int(breaker.GetState()))
			if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
				observability.IncrementCircuitBreakerFailures(breaker.Name())
			}
			return err
		}, retryConfig, isRetryable)

		if err != nil {
			metrics.RecordSessionEnd(false)
			status, errType := mapSynthesisError(err)
			metrics.RecordError(errType, "synthesize")
			logger.Error().Err(err).Int("status", status).Msg("Batched synthesis failed")
			writeJSONError(w, status, err.Error())
			return
		}

		metrics.RecordSessionEnd(true)
		body := capture.Bytes()
		logger.Info().Int("audio_bytes", len(body)).Msg("Batched synthesis completed")

		w.Header().Set("Content-Type", fishaudio.MimeType)
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.Header().Set("X-Correlation-ID", correlationID)
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	}
}

// mapSynthesisError translates a synthesis failure into an HTTP status and
// an error-metric label.
func mapSynthesisError(err error) (int, string) {
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		return http.StatusServiceUnavailable, "circuit_open"
	case errors.Is(err, fishaudio.ErrEmptyText):
		return http.StatusBadRequest, "empty_text"
	case errors.Is(err, http.ErrHandlerTimeout):
		return http.StatusGatewayTimeout, "timeout"
	default:
		var connErr *fishaudio.ConnectionError
		if errors.As(err, &connErr) {
			return http.StatusBadGateway, "connection"
		}
		return http.StatusInternalServerError, "internal"
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: message})
}
