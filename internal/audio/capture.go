package audio

import (
	"bytes"
	"errors"
	"sync"
)

// CaptureSink accumulates pushed audio in memory. It is used by the batched
// HTTP handler (so a retried request never duplicates audio already written
// to the wire) and as a test substrate.
type CaptureSink struct {
	mu          sync.Mutex
	info        StreamInfo
	initialized bool
	segments    []string
	buf         bytes.Buffer
	flushed     bool
	ended       bool
}

// NewCaptureSink creates an empty in-memory sink.
func NewCaptureSink() *CaptureSink {
	return &CaptureSink{}
}

// Initialize records the stream metadata for the session.
func (s *CaptureSink) Initialize(info StreamInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return errors.New("sink already initialized")
	}
	s.info = info
	s.initialized = true
	return nil
}

// StartSegment records a segment marker.
func (s *CaptureSink) StartSegment(segmentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.New("sink not initialized")
	}
	s.segments = append(s.segments, segmentID)
	return nil
}

// Push appends one audio chunk. The chunk is copied; callers may reuse the
// backing slice.
func (s *CaptureSink) Push(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.New("sink not initialized")
	}
	if s.ended {
		return errors.New("sink input already ended")
	}
	s.buf.Write(chunk)
	return nil
}

// Flush marks the accumulated audio as a complete batched result.
func (s *CaptureSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.New("sink not initialized")
	}
	s.flushed = true
	return nil
}

// EndInput finalizes the sink. Further pushes fail.
func (s *CaptureSink) EndInput() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ended = true
	return nil
}

// Bytes returns the accumulated audio.
func (s *CaptureSink) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]byte, s.buf.Len())
	copy(out, s.buf.Bytes())
	return out
}

// Info returns the stream metadata passed to Initialize.
func (s *CaptureSink) Info() StreamInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

// Segments returns the segment IDs seen so far.
func (s *CaptureSink) Segments() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.segments))
	copy(out, s.segments)
	return out
}

// Flushed reports whether Flush was called.
func (s *CaptureSink) Flushed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushed
}

// Ended reports whether EndInput was called.
func (s *CaptureSink) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}
