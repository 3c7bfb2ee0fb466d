package main

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/murmurlabs/speech-bridge/internal/audio"
	"github.com/murmurlabs/speech-bridge/internal/fishaudio"
	"github.com/murmurlabs/speech-bridge/internal/observability"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// In production, validate origin against known callers
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// controlEvent is the JSON protocol on the /streams/speak socket. Inbound:
// text, flush, stop. Outbound: finish (audio returns as binary frames).
type controlEvent struct {
	Event   string `json:"event"`
	Text    string `json:"text,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

// handleSpeakWS bridges a caller's WebSocket into a live synthesis session.
// Control events feed the engine's input channel; synthesized audio chunks
// come back as binary frames in order; a final finish event reports the
// outcome before the socket closes.
func handleSpeakWS(client *fishaudio.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger := observability.GetLogger()
			logger.Error().Err(err).Msg("Failed to upgrade connection to WebSocket")
			return
		}
		defer conn.Close()

		correlationID := observability.NewCorrelationID()
		logger := observability.WithCorrelationID(correlationID)
		metrics := observability.NewSessionMetrics(correlationID, "streaming")
		metrics.RecordSessionStart()

		logger.Info().Msg("Speak stream connected")

		input := make(chan fishaudio.TextInput, 16)
		done := make(chan struct{})
		go readControlEvents(conn, input, done, metrics, logger)

		// Every pushed chunk becomes exactly one binary frame, in order.
		sink := observability.InstrumentSink(metrics, audio.NewWriterSink(&wsWriter{conn: conn}))
		err = client.Stream(r.Context(), input, sink)
		close(done)

		metrics.RecordSessionEnd(err == nil)

		finish := controlEvent{Event: "finish", Reason: "stop"}
		if err != nil {
			finish.Reason = "error"
			finish.Message = err.Error()
			metrics.RecordError("stream", "speak")
			logger.Error().Err(err).Msg("Speak stream failed")
		} else {
			logger.Info().Msg("Speak stream completed")
		}

		// The socket may already be gone on error paths
		if data, merr := json.Marshal(finish); merr == nil {
			_ = conn.WriteMessage(websocket.TextMessage, data)
		}
	}
}

// readControlEvents parses inbound control events into engine input. It
// closes input when the caller sends stop, closes the socket, or fails,
// which the engine treats as end of input.
func readControlEvents(conn *websocket.Conn, input chan<- fishaudio.TextInput, done <-chan struct{}, metrics *observability.SessionMetrics, logger zerolog.Logger) {
	defer close(input)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		var ev controlEvent
		if err := json.Unmarshal(message, &ev); err != nil {
			logger.Error().Err(err).Msg("Failed to parse control event")
			continue
		}

		var item fishaudio.TextInput
		switch ev.Event {
		case "text":
			item = fishaudio.TextInput{Text: ev.Text}
			metrics.RecordTextFragment()
		case "flush":
			item = fishaudio.TextInput{Flush: true}
		case "stop":
			logger.Debug().Msg("Caller ended input")
			return
		default:
			logger.Debug().Str("event", ev.Event).Msg("Skipping unknown control event")
			continue
		}

		select {
		case input <- item:
		case <-done:
			// Session already over; stop forwarding
			return
		}
	}
}

// wsWriter adapts a WebSocket connection to io.Writer, one binary frame per
// Write call.
type wsWriter struct {
	conn *websocket.Conn
}

func (w *wsWriter) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}
