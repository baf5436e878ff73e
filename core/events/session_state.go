package events

const (
	// KindSessionStarted identifies an initialized realtime session.
	KindSessionStarted Kind = "session_state.started"
	// KindSessionEnded identifies a torn down realtime session.
	KindSessionEnded Kind = "session_state.ended"
)

// SessionStarted marks that the session is connected and initialized.
type SessionStarted struct {
	Base
	SessionID string
}

// NewSessionStarted creates a session started event.
func NewSessionStarted(sessionID string) SessionStarted {
	return SessionStarted{Base: NewBase(KindSessionStarted), SessionID: sessionID}
}

// SessionEnded marks that the session was closed.
type SessionEnded struct {
	Base
	SessionID string
	Reason    string
}

// NewSessionEnded creates a session ended event.
func NewSessionEnded(sessionID, reason string) SessionEnded {
	return SessionEnded{Base: NewBase(KindSessionEnded), SessionID: sessionID, Reason: reason}
}
