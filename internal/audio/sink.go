package audio

// StreamInfo describes the audio a synthesis session will deliver to a sink.
type StreamInfo struct {
	SessionID  string
	SampleRate int    // Output sample rate in Hz
	Channels   int    // Channel count (1 = mono)
	MimeType   string // e.g. "audio/wav"
	Streaming  bool   // true for live duplex sessions, false for batched
}

// Sink receives synthesized audio from exactly one session at a time.
//
// Call order per session: Initialize first, StartSegment for streaming
// sessions, then Push once per audio chunk in arrival order. Flush marks a
// successfully completed batched request. EndInput is called exactly once on
// every exit path (success, failure, cancellation) and is the sink's chance
// to finalize. All calls for one session arrive from a single goroutine.
type Sink interface {
	Initialize(info StreamInfo) error
	StartSegment(segmentID string) error
	Push(chunk []byte) error
	Flush() error
	EndInput() error
}
