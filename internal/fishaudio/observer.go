package fishaudio

// Observer receives session milestone notifications. Implementations must
// tolerate concurrent sessions.
type Observer interface {
	// SessionStarted fires once per live session, when the first non-empty
	// flush is accepted and the backend begins producing audio.
	SessionStarted(sessionID string)
	// SessionFinished fires once per synthesis operation with its outcome,
	// in both modes.
	SessionFinished(sessionID string, err error)
}

// NopObserver discards all notifications.
type NopObserver struct{}

func (NopObserver) SessionStarted(string)         {}
func (NopObserver) SessionFinished(string, error) {}
