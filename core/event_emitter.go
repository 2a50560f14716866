package transcript

import "github.com/koscakluka/ema-transcript/core/items"

// notification is a state change reported to the host.
type notification interface {
	notification()
}

type itemUpdated struct{ item items.Item }

type callStatusChanged struct{ status CallStatus }

type sessionReset struct {
	sessionID  string
	generation uint64
}

func (itemUpdated) notification()       {}
func (callStatusChanged) notification() {}
func (sessionReset) notification()      {}

type notificationEmitter func(notification)

func noopNotificationEmitter(notification) {}

func newCallbackNotificationEmitter(callbacks sessionCallbacks) notificationEmitter {
	return func(n notification) {
		switch typed := n.(type) {
		case itemUpdated:
			if callbacks.onItemUpdated != nil {
				callbacks.onItemUpdated(typed.item)
			}
		case callStatusChanged:
			if callbacks.onCallStatus != nil {
				callbacks.onCallStatus(typed.status)
			}
		case sessionReset:
			if callbacks.onSessionReset != nil {
				callbacks.onSessionReset(typed.sessionID)
			}
		}
	}
}

func (s *Session) emitItemUpdated(item items.Item) {
	s.emit(itemUpdated{item: item})
}
