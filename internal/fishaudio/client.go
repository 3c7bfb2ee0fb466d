// Package fishaudio is a client-side bridge between a text-producing caller
// and the fish.audio synthesis service. It exposes two modes: batched
// (submit full text, drain all audio into a sink) and live streaming
// (incremental text with flush checkpoints over a duplex connection,
// incremental audio back). Neither mode retries; retry policy belongs to
// the caller.
package fishaudio

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/murmurlabs/speech-bridge/internal/config"
	"github.com/murmurlabs/speech-bridge/internal/observability"
)

// Audio properties fixed by the sink contract.
const (
	SampleRate  = 24000
	NumChannels = 1
	MimeType    = "audio/wav"
)

// Options holds the synthesis parameters applied to every session.
type Options struct {
	Language    string  // Language code; informational, voice choice comes from ReferenceID
	ReferenceID string  // Voice reference ID, empty selects the backend default voice
	Temperature float64 // Sampling temperature in [0.0, 1.0]
	TopP        float64 // Nucleus sampling in [0.0, 1.0]
	ChunkLength int     // Chunking hint in characters, 0 omits the hint
	Latency     string  // "", "normal" or "balanced"
	Backend     string  // Backend model tag, e.g. "s1"
}

// Client issues synthesis sessions against fish.audio. One client serves
// many sessions; every session owns its own connection.
type Client struct {
	opts     Options
	apiKey   string
	liveURL  string
	backend  batchBackend
	dial     dialFunc
	observer Observer
	logger   zerolog.Logger
}

// New creates a synthesis client from resolved configuration. A missing API
// key or an out-of-range option is a ConfigurationError: fatal at
// construction, never a per-session failure.
func New(cfg *config.Config) (*Client, error) {
	if cfg.FishAudioAPIKey == "" {
		return nil, &ConfigurationError{Reason: "FISHAUDIO_API_KEY not set"}
	}

	opts := Options{
		Language:    cfg.Language,
		ReferenceID: cfg.ReferenceID,
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
		ChunkLength: cfg.ChunkLength,
		Latency:     cfg.Latency,
		Backend:     cfg.Backend,
	}
	if err := validateOptions(opts); err != nil {
		return nil, err
	}

	c := &Client{
		opts:     opts,
		apiKey:   cfg.FishAudioAPIKey,
		liveURL:  cfg.FishAudioLiveURL,
		backend:  newHTTPBackend(cfg.FishAudioBaseURL, cfg.FishAudioAPIKey, cfg.RequestTimeoutDuration()),
		observer: NopObserver{},
		logger:   observability.GetLogger().With().Str("component", "fishaudio").Logger(),
	}

	dialer := &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeoutDuration()}
	c.dial = func(ctx context.Context) (streamConn, error) {
		header := http.Header{}
		header.Set("Authorization", "Bearer "+c.apiKey)
		header.Set("model", c.opts.Backend)

		conn, resp, err := dialer.DialContext(ctx, c.liveURL, header)
		if err != nil {
			if resp != nil {
				resp.Body.Close()
			}
			return nil, err
		}
		return conn, nil
	}

	c.logger.Debug().
		Str("language", opts.Language).
		Str("backend", opts.Backend).
		Str("reference_id", opts.ReferenceID).
		Msg("fish.audio client created")

	return c, nil
}

// SetObserver registers a session milestone observer. Call before starting
// any session.
func (c *Client) SetObserver(o Observer) {
	if o == nil {
		o = NopObserver{}
	}
	c.observer = o
}

// Options returns the synthesis parameters this client applies.
func (c *Client) Options() Options {
	return c.opts
}

func validateOptions(opts Options) error {
	if opts.Temperature < 0.0 || opts.Temperature > 1.0 {
		return &ConfigurationError{Reason: fmt.Sprintf("temperature %v out of range [0.0, 1.0]", opts.Temperature)}
	}
	if opts.TopP < 0.0 || opts.TopP > 1.0 {
		return &ConfigurationError{Reason: fmt.Sprintf("top_p %v out of range [0.0, 1.0]", opts.TopP)}
	}
	if opts.ChunkLength < 0 {
		return &ConfigurationError{Reason: fmt.Sprintf("chunk_length %d must not be negative", opts.ChunkLength)}
	}
	switch opts.Latency {
	case "", "normal", "balanced":
	default:
		return &ConfigurationError{Reason: fmt.Sprintf("unknown latency mode %q", opts.Latency)}
	}
	return nil
}

// buildRequest assembles the wire request for one session. Streaming
// sessions pass empty text; fragments follow as text events.
func (c *Client) buildRequest(text string) *SynthesisRequest {
	return &SynthesisRequest{
		Text:        text,
		ReferenceID: c.opts.ReferenceID,
		Format:      "wav",
		Temperature: c.opts.Temperature,
		TopP:        c.opts.TopP,
		SampleRate:  SampleRate,
		ChunkLength: c.opts.ChunkLength,
		Latency:     c.opts.Latency,
		Normalize:   true,
	}
}

// newSessionID returns a short per-session identifier: 12 hex characters,
// never reused.
func newSessionID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])[:12]
}
