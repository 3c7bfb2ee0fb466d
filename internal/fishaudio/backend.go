package fishaudio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// chunkStream is a blocking, pull-based, ordered sequence of audio chunks.
// Next returns io.EOF after the final chunk and may fail mid-sequence.
type chunkStream interface {
	Next() ([]byte, error)
	Close() error
}

// batchBackend issues one full-text synthesis request and returns the
// blocking chunk sequence it produces.
type batchBackend interface {
	Synthesize(ctx context.Context, req *SynthesisRequest, model string) (chunkStream, error)
}

// httpBackend implements batchBackend against the fish.audio HTTP API.
type httpBackend struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func newHTTPBackend(baseURL, apiKey string, timeout time.Duration) *httpBackend {
	return &httpBackend{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Synthesize POSTs the msgpack-encoded request and exposes the response
// body as a chunk stream.
func (b *httpBackend) Synthesize(ctx context.Context, req *SynthesisRequest, model string) (chunkStream, error) {
	payload, err := msgpack.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/v1/tts", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)
	httpReq.Header.Set("Content-Type", "application/msgpack")
	httpReq.Header.Set("model", model)

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fish.audio API returned status %d", resp.StatusCode)
	}

	return &bodyChunkStream{body: resp.Body}, nil
}

// bodyChunkStream pulls fixed-size chunks off a streaming response body.
type bodyChunkStream struct {
	body io.ReadCloser
}

const bodyChunkSize = 4096

func (s *bodyChunkStream) Next() ([]byte, error) {
	buf := make([]byte, bodyChunkSize)
	for {
		n, err := s.body.Read(buf)
		if n > 0 {
			// A read may return data and EOF together; deliver the data
			// now, the next call reports EOF.
			return buf[:n:n], nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (s *bodyChunkStream) Close() error {
	return s.body.Close()
}
