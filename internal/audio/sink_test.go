package audio

import (
	"bufio"
	"bytes"
	"testing"
)

func TestCaptureSink_Lifecycle(t *testing.T) {
	sink := NewCaptureSink()

	info := StreamInfo{
		SessionID:  "abc123def456",
		SampleRate: 24000,
		Channels:   1,
		MimeType:   "audio/wav",
		Streaming:  true,
	}

	if err := sink.Initialize(info); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}

	if err := sink.StartSegment("abc123def456"); err != nil {
		t.Fatalf("StartSegment() failed: %v", err)
	}

	if err := sink.Push([]byte{0x01, 0x02}); err != nil {
		t.Fatalf("Push() failed: %v", err)
	}
	if err := sink.Push([]byte{0x03}); err != nil {
		t.Fatalf("Push() failed: %v", err)
	}

	if err := sink.Flush(); err != nil {
		t.Fatalf("Flush() failed: %v", err)
	}

	if err := sink.EndInput(); err != nil {
		t.Fatalf("EndInput() failed: %v", err)
	}

	got := sink.Bytes()
	want := []byte{0x01, 0x02, 0x03}
	if !bytes.Equal(got, want) {
		t.Errorf("Expected bytes %v, got %v", want, got)
	}

	if sink.Info().SessionID != "abc123def456" {
		t.Errorf("Expected SessionID 'abc123def456', got '%s'", sink.Info().SessionID)
	}

	segments := sink.Segments()
	if len(segments) != 1 || segments[0] != "abc123def456" {
		t.Errorf("Expected one segment 'abc123def456', got %v", segments)
	}

	if !sink.Flushed() {
		t.Error("Expected sink to be flushed")
	}

	if !sink.Ended() {
		t.Error("Expected sink input to be ended")
	}
}

func TestCaptureSink_PushBeforeInitialize(t *testing.T) {
	sink := NewCaptureSink()

	if err := sink.Push([]byte{0x01}); err == nil {
		t.Error("Expected error pushing before Initialize")
	}
}

func TestCaptureSink_PushAfterEndInput(t *testing.T) {
	sink := NewCaptureSink()

	if err := sink.Initialize(StreamInfo{SessionID: "s1"}); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}
	if err := sink.EndInput(); err != nil {
		t.Fatalf("EndInput() failed: %v", err)
	}

	if err := sink.Push([]byte{0x01}); err == nil {
		t.Error("Expected error pushing after EndInput")
	}
}

func TestCaptureSink_DoubleInitialize(t *testing.T) {
	sink := NewCaptureSink()

	if err := sink.Initialize(StreamInfo{SessionID: "s1"}); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}

	if err := sink.Initialize(StreamInfo{SessionID: "s2"}); err == nil {
		t.Error("Expected error on second Initialize")
	}
}

func TestWriterSink_PushOrder(t *testing.T) {
	var buf bytes.Buffer
	sink := NewWriterSink(&buf)

	if err := sink.Initialize(StreamInfo{SessionID: "s1", Streaming: true}); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}

	chunks := [][]byte{{0x01}, {0x02, 0x03}, {0x04}}
	for _, c := range chunks {
		if err := sink.Push(c); err != nil {
			t.Fatalf("Push() failed: %v", err)
		}
	}

	if err := sink.EndInput(); err != nil {
		t.Fatalf("EndInput() failed: %v", err)
	}

	want := []byte{0x01, 0x02, 0x03, 0x04}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("Expected writer to receive %v, got %v", want, buf.Bytes())
	}
}

func TestWriterSink_FlushForwarded(t *testing.T) {
	var buf bytes.Buffer
	bw := bufio.NewWriterSize(&buf, 64)
	sink := NewWriterSink(bw)

	if err := sink.Initialize(StreamInfo{SessionID: "s1"}); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}

	if err := sink.Push([]byte("audio")); err != nil {
		t.Fatalf("Push() failed: %v", err)
	}

	// Still buffered before Flush
	if buf.Len() != 0 {
		t.Fatalf("Expected no bytes before Flush, got %d", buf.Len())
	}

	if err := sink.Flush(); err != nil {
		t.Fatalf("Flush() failed: %v", err)
	}

	if buf.String() != "audio" {
		t.Errorf("Expected 'audio' after Flush, got '%s'", buf.String())
	}
}

func TestWriterSink_PushAfterEndInput(t *testing.T) {
	var buf bytes.Buffer
	sink := NewWriterSink(&buf)

	if err := sink.Initialize(StreamInfo{SessionID: "s1"}); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}
	if err := sink.EndInput(); err != nil {
		t.Fatalf("EndInput() failed: %v", err)
	}

	if err := sink.Push([]byte{0x01}); err == nil {
		t.Error("Expected error pushing after EndInput")
	}
}
