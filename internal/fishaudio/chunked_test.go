package fishaudio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

type fakeChunkStream struct {
	chunks [][]byte
	err    error // returned after the chunks run out; nil means clean EOF
}

func (s *fakeChunkStream) Next() ([]byte, error) {
	if len(s.chunks) > 0 {
		chunk := s.chunks[0]
		s.chunks = s.chunks[1:]
		return chunk, nil
	}
	if s.err != nil {
		return nil, s.err
	}
	return nil, io.EOF
}

func (s *fakeChunkStream) Close() error { return nil }

// stalledChunkStream blocks in Next until its context dies, then fails the
// way a context-bound body read does.
type stalledChunkStream struct {
	ctx context.Context
}

func (s *stalledChunkStream) Next() ([]byte, error) {
	<-s.ctx.Done()
	return nil, errors.New("transport torn down")
}

func (s *stalledChunkStream) Close() error { return nil }

type fakeBackend struct {
	stream   chunkStream
	err      error
	gotReq   *SynthesisRequest
	gotModel string
}

func (b *fakeBackend) Synthesize(ctx context.Context, req *SynthesisRequest, model string) (chunkStream, error) {
	b.gotReq = req
	b.gotModel = model
	if b.err != nil {
		return nil, b.err
	}
	return b.stream, nil
}

func TestSynthesize_HappyPath(t *testing.T) {
	c := newTestClient(t)
	backend := &fakeBackend{stream: &fakeChunkStream{chunks: [][]byte{{1}, {2}, {3}}}}
	c.backend = backend
	sink := &recordingSink{}

	if err := c.Synthesize(context.Background(), "こんにちは", sink); err != nil {
		t.Fatalf("Synthesize() failed: %v", err)
	}

	wantCalls := "initialize,push,push,push,flush,end_input"
	if got := strings.Join(sink.callSeq(), ","); got != wantCalls {
		t.Errorf("Expected sink calls [%s], got [%s]", wantCalls, got)
	}

	chunks := sink.pushedChunks()
	want := [][]byte{{1}, {2}, {3}}
	if len(chunks) != len(want) {
		t.Fatalf("Expected %d chunks, got %d", len(want), len(chunks))
	}
	for i := range want {
		if !bytes.Equal(chunks[i], want[i]) {
			t.Errorf("Chunk %d: expected %v, got %v", i, want[i], chunks[i])
		}
	}

	if backend.gotReq.Text != "こんにちは" {
		t.Errorf("Expected request text 'こんにちは', got %q", backend.gotReq.Text)
	}
	if backend.gotReq.Format != "wav" || backend.gotReq.SampleRate != SampleRate {
		t.Errorf("Expected wav @ %d Hz, got %s @ %d", SampleRate, backend.gotReq.Format, backend.gotReq.SampleRate)
	}
	if !backend.gotReq.Normalize {
		t.Error("Expected normalize enabled by default")
	}
	if backend.gotModel != "s1" {
		t.Errorf("Expected model 's1', got %q", backend.gotModel)
	}

	info := sink.streamInfo()
	if info.SampleRate != SampleRate || info.Channels != NumChannels || info.MimeType != MimeType {
		t.Errorf("Unexpected stream info: %+v", info)
	}
	if info.Streaming {
		t.Error("Expected batched stream info, got streaming")
	}
	if len(info.SessionID) != 12 {
		t.Errorf("Expected 12-character session ID, got %q", info.SessionID)
	}
}

func TestSynthesize_MidStreamFailure(t *testing.T) {
	backendErr := errors.New("connection reset")
	c := newTestClient(t)
	c.backend = &fakeBackend{stream: &fakeChunkStream{chunks: [][]byte{{1}}, err: backendErr}}
	sink := &recordingSink{}

	err := c.Synthesize(context.Background(), "hello", sink)
	if err == nil {
		t.Fatal("Expected error")
	}

	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("Expected ConnectionError, got %T: %v", err, err)
	}
	if !errors.Is(err, backendErr) {
		t.Errorf("Expected underlying cause preserved, got %v", err)
	}

	// Chunks delivered before the failure stay; no flush afterwards.
	wantCalls := "initialize,push,end_input"
	if got := strings.Join(sink.callSeq(), ","); got != wantCalls {
		t.Errorf("Expected sink calls [%s], got [%s]", wantCalls, got)
	}
}

func TestSynthesize_EmptyTextRejected(t *testing.T) {
	c := newTestClient(t)
	c.backend = &fakeBackend{}
	sink := &recordingSink{}

	for _, text := range []string{"", "   ", "\n\t"} {
		if err := c.Synthesize(context.Background(), text, sink); !errors.Is(err, ErrEmptyText) {
			t.Errorf("Expected ErrEmptyText for %q, got %v", text, err)
		}
	}

	if calls := sink.callSeq(); len(calls) != 0 {
		t.Errorf("Expected no sink calls for rejected input, got %v", calls)
	}
}

func TestSynthesize_RequestFailure(t *testing.T) {
	c := newTestClient(t)
	c.backend = &fakeBackend{err: errors.New("fish.audio API returned status 500")}
	sink := &recordingSink{}

	err := c.Synthesize(context.Background(), "hello", sink)
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("Expected ConnectionError, got %T: %v", err, err)
	}

	wantCalls := "initialize,end_input"
	if got := strings.Join(sink.callSeq(), ","); got != wantCalls {
		t.Errorf("Expected sink calls [%s], got [%s]", wantCalls, got)
	}
}

func TestSynthesize_Cancelled(t *testing.T) {
	c := newTestClient(t)
	c.backend = &fakeBackend{stream: &fakeChunkStream{chunks: [][]byte{{1}, {2}}}}
	sink := &recordingSink{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Synthesize(ctx, "hello", sink)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}

	// Nothing forwarded after cancellation; the sink is still finalized.
	for _, call := range sink.callSeq() {
		if call == "push" || call == "flush" {
			t.Errorf("Unexpected sink %s after cancellation", call)
		}
	}
	if sink.endInputs() != 1 {
		t.Errorf("Expected exactly one EndInput, got %d", sink.endInputs())
	}
}

func TestSynthesize_CancelledDuringBlockedRead(t *testing.T) {
	c := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.backend = &fakeBackend{stream: &stalledChunkStream{ctx: ctx}}
	sink := &recordingSink{}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := c.Synthesize(ctx, "hello", sink)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		t.Errorf("Expected bare context error, got %v", err)
	}

	if got := len(sink.pushedChunks()); got != 0 {
		t.Errorf("Expected no chunks, got %d", got)
	}
	if sink.endInputs() != 1 {
		t.Errorf("Expected exactly one EndInput, got %d", sink.endInputs())
	}
}

func TestSynthesize_SinkFailure(t *testing.T) {
	pushErr := errors.New("sink closed")
	c := newTestClient(t)
	c.backend = &fakeBackend{stream: &fakeChunkStream{chunks: [][]byte{{1}, {2}, {3}}}}
	sink := &recordingSink{pushErr: pushErr, pushFailAt: 2}

	err := c.Synthesize(context.Background(), "hello", sink)
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("Expected ConnectionError, got %T: %v", err, err)
	}
	if !errors.Is(err, pushErr) {
		t.Errorf("Expected sink error preserved as cause, got %v", err)
	}

	if got := len(sink.pushedChunks()); got != 1 {
		t.Errorf("Expected exactly 1 chunk delivered before the failure, got %d", got)
	}
	for _, call := range sink.callSeq() {
		if call == "flush" {
			t.Error("Unexpected flush on failure path")
		}
	}
	if sink.endInputs() != 1 {
		t.Errorf("Expected exactly one EndInput, got %d", sink.endInputs())
	}
}

func TestSynthesize_ObserverNotified(t *testing.T) {
	c := newTestClient(t)
	c.backend = &fakeBackend{stream: &fakeChunkStream{chunks: [][]byte{{1}}}}
	obs := &fakeObserver{}
	c.SetObserver(obs)

	if err := c.Synthesize(context.Background(), "hello", &recordingSink{}); err != nil {
		t.Fatalf("Synthesize() failed: %v", err)
	}

	if obs.finishedCount() != 1 {
		t.Errorf("Expected one finished notification, got %d", obs.finishedCount())
	}
	if obs.finishedErr[0] != nil {
		t.Errorf("Expected nil outcome, got %v", obs.finishedErr[0])
	}
	// The started milestone belongs to live sessions only.
	if obs.startedCount() != 0 {
		t.Errorf("Expected no started notification for batched mode, got %d", obs.startedCount())
	}
}
