package transcript

import (
	"strings"
	"sync"
	"time"
)

// DefaultClosingPhrases are the phrases that signal the assistant is wrapping
// up the call. Matching is case-insensitive containment.
var DefaultClosingPhrases = []string{
	"goodbye",
	"thank you for calling",
	"call has ended",
	"end of call",
	"is there anything else i can help you with",
	"have a great day",
	"have a nice day",
	"thank you for your time",
	"thanks for calling",
	"call is now complete",
	"this concludes our call",
}

const DefaultGracePeriod = 3 * time.Second

// terminationDetector schedules the end of the call after the assistant says
// a closing phrase. At most one timer is scheduled per session generation.
type terminationDetector struct {
	mu sync.Mutex

	phrases     []string
	gracePeriod time.Duration
	afterFunc   func(time.Duration, func()) stopper

	timer      stopper
	generation uint64
	fired      bool
}

type stopper interface {
	Stop() bool
}

func newTerminationDetector(phrases []string, gracePeriod time.Duration, afterFunc func(time.Duration, func()) stopper) *terminationDetector {
	normalized := make([]string, 0, len(phrases))
	for _, phrase := range phrases {
		if phrase = strings.ToLower(strings.TrimSpace(phrase)); phrase != "" {
			normalized = append(normalized, phrase)
		}
	}
	if afterFunc == nil {
		afterFunc = func(d time.Duration, f func()) stopper { return time.AfterFunc(d, f) }
	}

	return &terminationDetector{
		phrases:     normalized,
		gracePeriod: gracePeriod,
		afterFunc:   afterFunc,
	}
}

func (d *terminationDetector) matches(text string) bool {
	lowered := strings.ToLower(text)
	for _, phrase := range d.phrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

// evaluate schedules onExpire when text contains a closing phrase and no
// timer was scheduled yet for generation. It reports whether a timer was
// scheduled by this call.
func (d *terminationDetector) evaluate(generation uint64, text string, onExpire func(generation uint64)) bool {
	if !d.matches(text) {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.generation == generation && (d.timer != nil || d.fired) {
		return false
	}
	if d.timer != nil {
		d.timer.Stop()
	}

	d.generation = generation
	d.fired = false
	d.timer = d.afterFunc(d.gracePeriod, func() {
		d.mu.Lock()
		if d.generation == generation {
			d.timer = nil
			d.fired = true
		}
		d.mu.Unlock()

		onExpire(generation)
	})
	return true
}

// reset cancels any pending timer and forgets the scheduled state.
func (d *terminationDetector) reset(generation uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.generation = generation
	d.fired = false
}

func (d *terminationDetector) scheduled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}
