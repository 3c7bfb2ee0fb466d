package fishaudio

import (
	"github.com/vmihailenco/msgpack/v5"
)

// Live protocol event discriminators.
const (
	eventStart  = "start"
	eventText   = "text"
	eventFlush  = "flush"
	eventStop   = "stop"
	eventAudio  = "audio"
	eventFinish = "finish"
)

// finishReasonError is the finish reason the backend reports on failure.
const finishReasonError = "error"

// SynthesisRequest is the wire payload describing one synthesis request,
// shared by the batched endpoint (full text) and the live session's start
// event (empty text, fragments follow). Optional fields are omitted from
// the encoding when unset; the backend treats absent and present-but-empty
// differently.
type SynthesisRequest struct {
	Text        string  `msgpack:"text"`
	ReferenceID string  `msgpack:"reference_id,omitempty"`
	Format      string  `msgpack:"format"`
	Temperature float64 `msgpack:"temperature"`
	TopP        float64 `msgpack:"top_p"`
	SampleRate  int     `msgpack:"sample_rate"`
	ChunkLength int     `msgpack:"chunk_length,omitempty"`
	Latency     string  `msgpack:"latency,omitempty"`
	Normalize   bool    `msgpack:"normalize"`
}

// outboundEvent is one frame sent on the live connection.
type outboundEvent struct {
	Event   string            `msgpack:"event"`
	Text    string            `msgpack:"text,omitempty"`
	Request *SynthesisRequest `msgpack:"request,omitempty"`
}

// inboundEvent is one frame received on the live connection. Unknown map
// keys are ignored by the decoder, so informational frames with extra
// fields still carry their discriminator through.
type inboundEvent struct {
	Event  string `msgpack:"event"`
	Audio  []byte `msgpack:"audio"`
	Reason string `msgpack:"reason"`
}

func encodeEvent(ev outboundEvent) ([]byte, error) {
	return msgpack.Marshal(ev)
}

// decodeEvent parses one inbound frame. Frames that do not decode are a
// ProtocolError.
func decodeEvent(frame []byte) (inboundEvent, error) {
	var ev inboundEvent
	if err := msgpack.Unmarshal(frame, &ev); err != nil {
		return inboundEvent{}, &ProtocolError{Err: err}
	}
	return ev, nil
}
