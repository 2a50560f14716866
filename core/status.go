package transcript

import "sync"

type CallStatus string

const (
	CallStatusIdle   CallStatus = "idle"
	CallStatusActive CallStatus = "active"
	CallStatusEnded  CallStatus = "ended"
)

// EndReason records what ended the call.
type EndReason string

const (
	EndReasonExplicit      EndReason = "call_ended"
	EndReasonDisconnected  EndReason = "disconnected"
	EndReasonClosingPhrase EndReason = "closing_phrase"
)

// statusTracker owns the call status. Transitions are idle|ended -> active on
// session start and idle|active -> ended otherwise.
type statusTracker struct {
	mu         sync.Mutex
	status     CallStatus
	generation uint64

	onChange func(CallStatus)
}

func newStatusTracker(onChange func(CallStatus)) *statusTracker {
	return &statusTracker{status: CallStatusIdle, onChange: onChange}
}

func (t *statusTracker) current() CallStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// start moves the tracker to active for generation.
func (t *statusTracker) start(generation uint64) {
	t.mu.Lock()
	previous := t.status
	t.status = CallStatusActive
	t.generation = generation
	t.mu.Unlock()

	if previous != CallStatusActive {
		t.notify(CallStatusActive)
	}
}

// end transitions to ended and reports whether a transition happened.
func (t *statusTracker) end(reason EndReason) bool {
	t.mu.Lock()
	if t.status == CallStatusEnded {
		t.mu.Unlock()
		return false
	}
	t.status = CallStatusEnded
	t.mu.Unlock()

	logger.Info("Call ended", "reason", reason)
	t.notify(CallStatusEnded)
	return true
}

// endForGeneration ends the call only if no newer session started since
// generation was captured.
func (t *statusTracker) endForGeneration(generation uint64, reason EndReason) bool {
	t.mu.Lock()
	if t.generation != generation || t.status == CallStatusEnded {
		t.mu.Unlock()
		return false
	}
	t.status = CallStatusEnded
	t.mu.Unlock()

	logger.Info("Call ended", "reason", reason, "generation", generation)
	t.notify(CallStatusEnded)
	return true
}

func (t *statusTracker) notify(status CallStatus) {
	if t.onChange != nil {
		t.onChange(status)
	}
}
