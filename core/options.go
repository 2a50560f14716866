package transcript

import (
	"context"
	"time"

	"github.com/koscakluka/ema-transcript/core/items"
	"github.com/koscakluka/ema-transcript/core/speechtotext"
)

type SessionOption func(*Session)

// WithBaseContext sets the context in-flight fallback transcriptions derive
// from. The session closes itself once the context is done.
func WithBaseContext(ctx context.Context) SessionOption {
	return func(s *Session) {
		if ctx != nil {
			s.baseContext = ctx
		}
	}
}

// WithFallbackTranscriber enables the fallback transcription path. opts are
// passed to every fallback request, e.g. a language hint.
func WithFallbackTranscriber(transcriber speechtotext.Transcriber, opts ...speechtotext.TranscriptionOption) SessionOption {
	return func(s *Session) {
		s.fallback.transcriber = transcriber
		s.fallback.options = opts
	}
}

// WithAudioFetcher replaces the HTTP fetcher used to resolve audio
// references.
func WithAudioFetcher(fetcher AudioFetcher) SessionOption {
	return func(s *Session) {
		if fetcher != nil {
			s.fallback.fetcher = fetcher
		}
	}
}

// WithGracePeriod sets the delay between a closing phrase and the end of the
// call.
func WithGracePeriod(gracePeriod time.Duration) SessionOption {
	return func(s *Session) {
		if gracePeriod >= 0 {
			s.gracePeriod = gracePeriod
		}
	}
}

func WithClosingPhrases(phrases ...string) SessionOption {
	return func(s *Session) {
		s.closingPhrases = phrases
	}
}

// WithItemUpdatedCallback registers a callback invoked with a copy of every
// item the session creates or changes. It may be called from the fallback
// transcription goroutine.
func WithItemUpdatedCallback(callback func(items.Item)) SessionOption {
	return func(s *Session) {
		s.callbacks.onItemUpdated = callback
	}
}

// WithCallStatusCallback registers a callback for call status transitions.
// It may be called from the termination timer goroutine.
func WithCallStatusCallback(callback func(CallStatus)) SessionOption {
	return func(s *Session) {
		s.callbacks.onCallStatus = callback
	}
}

// WithSessionResetCallback registers a callback invoked after a new session
// cleared the transcript.
func WithSessionResetCallback(callback func(sessionID string)) SessionOption {
	return func(s *Session) {
		s.callbacks.onSessionReset = callback
	}
}

// WithClock sets the time source used for events that carry no observation
// time.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

type sessionCallbacks struct {
	onItemUpdated  func(items.Item)
	onCallStatus   func(CallStatus)
	onSessionReset func(sessionID string)
}

func (c sessionCallbacks) empty() bool {
	return c.onItemUpdated == nil && c.onCallStatus == nil && c.onSessionReset == nil
}
