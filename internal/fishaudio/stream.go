package fishaudio

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/murmurlabs/speech-bridge/internal/audio"
)

// TextInput is one element of a live session's input channel: a text
// fragment to append, or a flush boundary marking the text so far as a
// complete utterance. Closing the channel signals no more text.
type TextInput struct {
	Text  string
	Flush bool
}

// streamConn is the subset of *websocket.Conn one live session uses.
type streamConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// dialFunc opens the live synthesis connection for one session.
type dialFunc func(ctx context.Context) (streamConn, error)

// Stream runs one live synthesis session. Text fragments and flush
// boundaries arrive on input; closing input ends the session. Audio chunks
// are pushed to the sink in arrival order by a single goroutine. Both loops
// are fully shut down and EndInput has run by the time Stream returns, on
// every path. The first error observed wins; the session is never retried.
func (c *Client) Stream(ctx context.Context, input <-chan TextInput, sink audio.Sink) (err error) {
	sessionID := newSessionID()
	logger := c.logger.With().Str("session_id", sessionID).Logger()

	defer func() {
		c.observer.SessionFinished(sessionID, err)
	}()

	if err = sink.Initialize(audio.StreamInfo{
		SessionID:  sessionID,
		SampleRate: SampleRate,
		Channels:   NumChannels,
		MimeType:   MimeType,
		Streaming:  true,
	}); err != nil {
		return err
	}

	defer func() {
		if eerr := sink.EndInput(); eerr != nil {
			logger.Warn().Err(eerr).Msg("Failed to finalize sink")
		}
	}()

	if err = sink.StartSegment(sessionID); err != nil {
		return err
	}

	conn, derr := c.dial(ctx)
	if derr != nil {
		err = &ConnectionError{Op: "dial", Err: derr}
		return err
	}
	defer conn.Close()

	// The start event carries the request with empty text; fragments follow.
	startFrame, merr := encodeEvent(outboundEvent{Event: eventStart, Request: c.buildRequest("")})
	if merr != nil {
		err = &ConnectionError{Op: "start", Err: merr}
		return err
	}
	if werr := conn.WriteMessage(websocket.BinaryMessage, startFrame); werr != nil {
		err = &ConnectionError{Op: "start", Err: werr}
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	// recvCtx lets the sender shut the receiver down deliberately when the
	// session ends without ever starting: the backend sends no finish event
	// for a session that received no text.
	recvCtx, stopRecv := context.WithCancel(gctx)
	defer stopRecv()

	// Closing the connection is the only way to unblock a pending read once
	// the session is cancelled or deliberately shut down.
	stopWatch := context.AfterFunc(recvCtx, func() {
		conn.Close()
	})
	defer stopWatch()

	g.Go(func() error {
		return c.sendLoop(gctx, conn, input, sessionID, stopRecv)
	})
	g.Go(func() error {
		return c.recvLoop(ctx, recvCtx, conn, sink, logger)
	})

	if err = g.Wait(); err != nil {
		logger.Debug().Err(err).Msg("Live session failed")
		return err
	}

	logger.Debug().Msg("Live session complete")
	return nil
}

// sendLoop consumes the caller's input, coalescing fragments and forwarding
// flush boundaries. When input is exhausted it force-flushes trailing text
// and, if the session ever started, sends a stop event.
func (c *Client) sendLoop(ctx context.Context, conn streamConn, input <-chan TextInput, sessionID string, stopRecv context.CancelFunc) error {
	buf := &textBuffer{
		send: func(raw string) error {
			return c.sendText(conn, raw)
		},
		onStarted: func() {
			c.observer.SessionStarted(sessionID)
		},
	}

	for {
		select {
		case item, ok := <-input:
			if !ok {
				// Trailing text always goes out, bypassing deduplication.
				if err := buf.flush(true); err != nil {
					return err
				}
				if buf.started {
					if err := c.sendStop(conn); err != nil {
						// The session may already be finishing; a failed
						// stop must not fail an otherwise clean session.
						c.logger.Debug().Err(err).Msg("Failed to send stop event")
					}
					return nil
				}
				// Nothing was ever sent: no finish event will arrive, so
				// shut the receiver down ourselves.
				stopRecv()
				return nil
			}
			if item.Flush {
				if err := buf.flush(false); err != nil {
					return err
				}
				continue
			}
			buf.add(item.Text)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// sendText emits the text event carrying the raw fragment run, immediately
// followed by a flush event.
func (c *Client) sendText(conn streamConn, raw string) error {
	textFrame, err := encodeEvent(outboundEvent{Event: eventText, Text: raw})
	if err != nil {
		return &ConnectionError{Op: "send", Err: err}
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, textFrame); err != nil {
		return &ConnectionError{Op: "send", Err: err}
	}

	flushFrame, err := encodeEvent(outboundEvent{Event: eventFlush})
	if err != nil {
		return &ConnectionError{Op: "send", Err: err}
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, flushFrame); err != nil {
		return &ConnectionError{Op: "send", Err: err}
	}
	return nil
}

func (c *Client) sendStop(conn streamConn) error {
	frame, err := encodeEvent(outboundEvent{Event: eventStop})
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.BinaryMessage, frame)
}

// recvLoop reads inbound frames until a finish event or a failure. Audio
// payloads go to the sink in arrival order; this loop is the sink's only
// writer for the session.
func (c *Client) recvLoop(ctx, recvCtx context.Context, conn streamConn, sink audio.Sink, logger zerolog.Logger) error {
	for {
		_, frame, rerr := conn.ReadMessage()
		if rerr != nil {
			// Reads unblock through connection close on cancellation or
			// deliberate shutdown; report the causing condition, not the
			// read failure it produced.
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if recvCtx.Err() != nil {
				return nil
			}
			return &ConnectionError{Op: "receive", Err: rerr}
		}

		ev, derr := decodeEvent(frame)
		if derr != nil {
			return &ConnectionError{Op: "receive", Err: derr}
		}

		switch ev.Event {
		case eventAudio:
			if len(ev.Audio) == 0 {
				continue
			}
			if perr := sink.Push(ev.Audio); perr != nil {
				// Sink failures belong to the caller; they pass through
				// un-normalized.
				return perr
			}
		case eventFinish:
			if ev.Reason == finishReasonError {
				return &ConnectionError{Op: "receive", Err: fmt.Errorf("backend finished with reason %q", ev.Reason)}
			}
			return nil
		default:
			// The backend also emits informational frames, e.g. log events.
			logger.Debug().Str("event", ev.Event).Msg("Skipping unhandled event")
		}
	}
}
