package fishaudio

import (
	"context"
	"io"
	"strings"

	"github.com/murmurlabs/speech-bridge/internal/audio"
)

// relayItem is one element of the bridge's handoff channel: an audio chunk,
// or the terminal marker (done) carrying the producer's failure if any.
// Exactly one terminal item is ever relayed, always last.
type relayItem struct {
	chunk []byte
	done  bool
	err   error
}

// relayBuffer bounds the handoff channel. The consumer always drains to the
// terminal item, so the producer can never block indefinitely.
const relayBuffer = 16

// Synthesize performs one batched synthesis: the full text goes out as a
// single request and every produced chunk is pushed to the sink in emission
// order. On success the sink is flushed; on failure it is not, leaving the
// chunks already delivered intact. EndInput runs on every path. The engine
// never retries; one request is one attempt.
func (c *Client) Synthesize(ctx context.Context, text string, sink audio.Sink) (err error) {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}

	sessionID := newSessionID()
	logger := c.logger.With().Str("session_id", sessionID).Logger()

	defer func() {
		c.observer.SessionFinished(sessionID, err)
	}()

	if ierr := sink.Initialize(audio.StreamInfo{
		SessionID:  sessionID,
		SampleRate: SampleRate,
		Channels:   NumChannels,
		MimeType:   MimeType,
	}); ierr != nil {
		err = &ConnectionError{Op: "initialize", Err: ierr}
		return err
	}

	defer func() {
		if eerr := sink.EndInput(); eerr != nil {
			logger.Warn().Err(eerr).Msg("Failed to finalize sink")
		}
	}()

	stream, serr := c.backend.Synthesize(ctx, c.buildRequest(text), c.opts.Backend)
	if serr != nil {
		err = &ConnectionError{Op: "synthesize", Err: serr}
		return err
	}

	relay := make(chan relayItem, relayBuffer)

	// Producer: the blocking pull loop runs on its own goroutine so it
	// cannot stall the caller. It ends on the first failure or io.EOF.
	go func() {
		defer stream.Close()
		for {
			chunk, rerr := stream.Next()
			if rerr != nil {
				if rerr == io.EOF {
					relay <- relayItem{done: true}
				} else {
					relay <- relayItem{done: true, err: rerr}
				}
				return
			}
			relay <- relayItem{chunk: chunk}
		}
	}()

	// Consumer: forward chunks to the sink in order. On cancellation or a
	// sink failure, stop forwarding but keep draining until the terminal
	// item so the producer is never abandoned mid-relay.
	var (
		cancelled bool
		streamErr error
		sinkErr   error
	)
	for {
		if !cancelled && ctx.Err() != nil {
			cancelled = true
		}

		item := <-relay
		if item.done {
			streamErr = item.err
			break
		}
		if cancelled || sinkErr != nil {
			continue
		}
		if perr := sink.Push(item.chunk); perr != nil {
			sinkErr = perr
		}
	}

	switch {
	case cancelled || ctx.Err() != nil:
		// Cancellation can land while blocked on the relay receive.
		err = ctx.Err()
	case sinkErr != nil:
		err = &ConnectionError{Op: "push", Err: sinkErr}
	case streamErr != nil:
		err = &ConnectionError{Op: "stream", Err: streamErr}
	default:
		if ferr := sink.Flush(); ferr != nil {
			err = &ConnectionError{Op: "flush", Err: ferr}
		}
	}

	if err != nil {
		logger.Debug().Err(err).Msg("Batched synthesis failed")
		return err
	}

	logger.Debug().Msg("Batched synthesis complete")
	return nil
}
