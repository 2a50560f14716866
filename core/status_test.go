package transcript

import "testing"

func TestStatusTrackerTransitions(t *testing.T) {
	changes := []CallStatus{}
	tracker := newStatusTracker(func(status CallStatus) { changes = append(changes, status) })

	if tracker.current() != CallStatusIdle {
		t.Fatalf("expected idle, got %s", tracker.current())
	}

	tracker.start(1)
	tracker.start(1)
	if !tracker.end(EndReasonExplicit) {
		t.Fatalf("expected active -> ended transition")
	}
	if tracker.end(EndReasonDisconnected) {
		t.Fatalf("expected no transition from ended")
	}
	tracker.start(2)

	expected := []CallStatus{CallStatusActive, CallStatusEnded, CallStatusActive}
	if len(changes) != len(expected) {
		t.Fatalf("expected changes %v, got %v", expected, changes)
	}
	for i := range expected {
		if changes[i] != expected[i] {
			t.Fatalf("expected changes %v, got %v", expected, changes)
		}
	}
}

func TestStatusTrackerEndFromIdle(t *testing.T) {
	tracker := newStatusTracker(nil)

	if !tracker.end(EndReasonDisconnected) {
		t.Fatalf("expected idle -> ended transition")
	}
	if tracker.current() != CallStatusEnded {
		t.Fatalf("expected ended, got %s", tracker.current())
	}
}

func TestStatusTrackerEndForGeneration(t *testing.T) {
	tracker := newStatusTracker(nil)
	tracker.start(1)
	tracker.start(2)

	if tracker.endForGeneration(1, EndReasonClosingPhrase) {
		t.Fatalf("expected stale generation not to end the call")
	}
	if tracker.current() != CallStatusActive {
		t.Fatalf("expected active, got %s", tracker.current())
	}
	if !tracker.endForGeneration(2, EndReasonClosingPhrase) {
		t.Fatalf("expected current generation to end the call")
	}
	if tracker.endForGeneration(2, EndReasonClosingPhrase) {
		t.Fatalf("expected already ended call not to transition again")
	}
}
