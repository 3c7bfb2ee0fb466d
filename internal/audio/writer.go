package audio

import (
	"errors"
	"io"
	"sync"
)

// WriterSink forwards every pushed chunk to an io.Writer, one Write call per
// chunk. The streaming WebSocket handler uses it to turn sink pushes into
// binary frames. The writer is borrowed, never closed.
type WriterSink struct {
	mu    sync.Mutex
	w     io.Writer
	info  StreamInfo
	ready bool
	ended bool
}

// NewWriterSink creates a sink writing into w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Initialize records the stream metadata.
func (s *WriterSink) Initialize(info StreamInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return errors.New("sink already initialized")
	}
	s.info = info
	s.ready = true
	return nil
}

// StartSegment is a no-op for writer sinks.
func (s *WriterSink) StartSegment(segmentID string) error {
	return nil
}

// Push writes one chunk to the underlying writer.
func (s *WriterSink) Push(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return errors.New("sink not initialized")
	}
	if s.ended {
		return errors.New("sink input already ended")
	}
	if len(chunk) == 0 {
		return nil
	}
	_, err := s.w.Write(chunk)
	return err
}

// Flush forwards to the writer when it supports flushing.
func (s *WriterSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f, ok := s.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// EndInput finalizes the sink. Further pushes fail.
func (s *WriterSink) EndInput() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ended = true
	return nil
}

// Info returns the stream metadata passed to Initialize.
func (s *WriterSink) Info() StreamInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}
