package events

import "time"

type Kind string

// Event is a single realtime event delivered by the event source.
type Event interface {
	Kind() Kind
	Timestamp() time.Time

	sealed()
}

type Base struct {
	kind      Kind
	timestamp time.Time
}

func NewBase(kind Kind, opts ...BaseOption) Base {
	base := Base{kind: kind, timestamp: time.Now()}
	for _, opt := range opts {
		opt(&base)
	}
	return base
}

func (b Base) Kind() Kind {
	return b.kind
}

func (b Base) Timestamp() time.Time {
	return b.timestamp
}

func (Base) sealed() {}

type BaseOption func(*Base)

// WithTimestamp overrides the observation time of the event.
func WithTimestamp(timestamp time.Time) BaseOption {
	return func(b *Base) {
		b.timestamp = timestamp
	}
}
