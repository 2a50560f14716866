package events

const (
	// KindSessionCreated identifies the start of a new conversation.
	KindSessionCreated Kind = "session.created"
	// KindSessionDisconnected identifies a lost realtime session.
	KindSessionDisconnected Kind = "session.disconnected"
	// KindWebsocketDisconnected identifies a closed realtime transport.
	KindWebsocketDisconnected Kind = "websocket.disconnected"
	// KindCallEnded identifies an explicit end of the call.
	KindCallEnded Kind = "call.ended"
)

// SessionCreated marks the start of a new conversation.
type SessionCreated struct {
	Base
	SessionID string
}

// NewSessionCreated creates a session created event.
func NewSessionCreated(sessionID string, opts ...BaseOption) SessionCreated {
	return SessionCreated{Base: NewBase(KindSessionCreated, opts...), SessionID: sessionID}
}

// SessionDisconnected marks a disconnect of the session or its transport.
// Kind distinguishes between the two sources.
type SessionDisconnected struct{ Base }

// NewSessionDisconnected creates a session disconnected event.
func NewSessionDisconnected(opts ...BaseOption) SessionDisconnected {
	return SessionDisconnected{Base: NewBase(KindSessionDisconnected, opts...)}
}

// NewWebsocketDisconnected creates a disconnect event raised by the
// transport.
func NewWebsocketDisconnected(opts ...BaseOption) SessionDisconnected {
	return SessionDisconnected{Base: NewBase(KindWebsocketDisconnected, opts...)}
}

// CallEnded marks an explicit end of the call.
type CallEnded struct{ Base }

// NewCallEnded creates a call ended event.
func NewCallEnded(opts ...BaseOption) CallEnded {
	return CallEnded{Base: NewBase(KindCallEnded, opts...)}
}

// Unrecognized carries an event of a kind this package does not know.
type Unrecognized struct {
	Base
	Type string
}

// NewUnrecognized creates an event for an unknown wire type.
func NewUnrecognized(eventType string, opts ...BaseOption) Unrecognized {
	return Unrecognized{Base: NewBase(Kind(eventType), opts...), Type: eventType}
}
