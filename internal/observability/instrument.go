package observability

import (
	"github.com/murmurlabs/speech-bridge/internal/audio"
)

// instrumentedSink decorates a sink with per-chunk metrics recording.
type instrumentedSink struct {
	audio.Sink
	metrics *SessionMetrics
}

// InstrumentSink wraps a sink so every pushed chunk is counted and the first
// chunk observes first-audio latency. All other sink calls pass through.
func InstrumentSink(m *SessionMetrics, sink audio.Sink) audio.Sink {
	return &instrumentedSink{Sink: sink, metrics: m}
}

func (s *instrumentedSink) Push(chunk []byte) error {
	if len(chunk) > 0 {
		s.metrics.RecordAudioChunk(len(chunk))
	}
	return s.Sink.Push(chunk)
}
