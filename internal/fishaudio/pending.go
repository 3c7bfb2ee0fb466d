package fishaudio

import (
	"strings"
)

// textBuffer accumulates text fragments between flush boundaries and
// deduplicates consecutive identical flushes so redundant flush signals do
// not produce duplicate backend requests for unchanged text. It is owned by
// exactly one sender loop; no locking.
type textBuffer struct {
	pending  []string
	lastSent string
	started  bool

	// send emits the text event (raw, un-normalized) followed by a flush
	// event. onStarted fires once, before the first accepted flush goes out.
	send      func(raw string) error
	onStarted func()
}

// add appends one fragment to the pending buffer.
func (b *textBuffer) add(fragment string) {
	b.pending = append(b.pending, fragment)
}

// flush concatenates the pending fragments and emits them. Empty buffers
// are a no-op. Whitespace-only text is dropped. Text whose trimmed form
// equals the previous flush is dropped unless force is set; force guarantees
// trailing text goes out at session end.
func (b *textBuffer) flush(force bool) error {
	if len(b.pending) == 0 {
		return nil
	}
	raw := strings.Join(b.pending, "")
	b.pending = b.pending[:0]

	normalized := strings.TrimSpace(raw)
	if normalized == "" {
		return nil
	}
	if !force && normalized == b.lastSent {
		return nil
	}
	b.lastSent = normalized

	if !b.started {
		b.started = true
		if b.onStarted != nil {
			b.onStarted()
		}
	}
	return b.send(raw)
}
