package fishaudio

import (
	"errors"
	"fmt"
)

// ErrEmptyText is returned by Synthesize when the input text is empty or
// whitespace-only. Empty batched input is rejected rather than treated as a
// zero-chunk success.
var ErrEmptyText = errors.New("fishaudio: input text is empty")

// ConfigurationError indicates the client cannot be constructed: a missing
// credential or an out-of-range option. It is fatal and never retried.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("fishaudio: configuration error: %s", e.Reason)
}

// ConnectionError is the single failure class synthesis operations raise.
// Network failures, handshake failures, disconnects and backend-reported
// errors all normalize to it; the cause stays reachable through Unwrap.
type ConnectionError struct {
	Op  string // failing operation: "dial", "send", "receive", ...
	Err error
}

func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fishaudio: connection error during %s", e.Op)
	}
	return fmt.Sprintf("fishaudio: connection error during %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ProtocolError indicates a malformed or undecodable inbound frame. It is
// always surfaced wrapped inside a ConnectionError.
type ProtocolError struct {
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("fishaudio: protocol error: %v", e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }
