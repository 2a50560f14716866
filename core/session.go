// Package transcript reduces the event stream of a realtime conversational
// API into an ordered transcript of messages, function calls and function
// call outputs.
//
// A [Session] owns the transcript of one call. Events are delivered one at a
// time through [Session.Handle]; the only asynchronous work is the fallback
// transcription of non-default-language speech and the delayed end of the
// call after a closing phrase.
package transcript

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/koscakluka/ema-transcript/core/events"
	"github.com/koscakluka/ema-transcript/core/items"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type Session struct {
	// handleMu serialises event handling.
	handleMu sync.Mutex

	store    *itemStore
	status   *statusTracker
	detector *terminationDetector
	fallback *fallbackBridge

	closingPhrases []string
	gracePeriod    time.Duration
	afterFunc      func(time.Duration, func()) stopper
	now            func() time.Time

	callbacks sessionCallbacks
	emit      notificationEmitter

	baseContext  context.Context
	stopBaseHook chan struct{}

	generationMu     sync.Mutex
	generationCtx    context.Context
	cancelGeneration context.CancelFunc
	sessionID        string

	fallbacks sync.WaitGroup
	closeOnce sync.Once
	closed    atomic.Bool
}

func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		store:          newItemStore(),
		fallback:       &fallbackBridge{},
		closingPhrases: DefaultClosingPhrases,
		gracePeriod:    DefaultGracePeriod,
		now:            time.Now,
		emit:           noopNotificationEmitter,
		baseContext:    context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.fallback.fetcher == nil {
		s.fallback.fetcher = NewHTTPAudioFetcher()
	}
	if !s.callbacks.empty() {
		s.emit = newCallbackNotificationEmitter(s.callbacks)
	}
	s.status = newStatusTracker(func(status CallStatus) {
		s.emit(callStatusChanged{status: status})
	})
	s.detector = newTerminationDetector(s.closingPhrases, s.gracePeriod, s.afterFunc)
	s.generationCtx, s.cancelGeneration = context.WithCancel(s.baseContext)

	if s.baseContext.Done() != nil {
		s.stopBaseHook = withContextCancelHook(s.baseContext, s.Close)
	}

	return s
}

// Handle reduces a single event into the transcript. Malformed and unknown
// events never fail the session, they are logged and skipped.
func (s *Session) Handle(ctx context.Context, event events.Event) {
	if event == nil {
		return
	}

	s.handleMu.Lock()
	defer s.handleMu.Unlock()

	if s.closed.Load() {
		logger.DebugContext(ctx, "Ignoring event for closed session", "kind", event.Kind())
		return
	}

	ctx, span := tracer.Start(ctx, "handle realtime event",
		trace.WithAttributes(attribute.String("event.kind", string(event.Kind()))))
	defer span.End()

	s.reduce(ctx, event)
	handledEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("event.kind", string(event.Kind()))))
}

// HandleRaw decodes a wire event stamped with the session clock and handles
// it.
func (s *Session) HandleRaw(ctx context.Context, msg []byte) error {
	event, err := events.Decode(msg, events.WithTimestamp(s.now()))
	if err != nil {
		return fmt.Errorf("failed to decode realtime event: %w", err)
	}

	s.Handle(ctx, event)
	return nil
}

// Snapshot returns a copy of the transcript in creation order.
func (s *Session) Snapshot() []items.Item {
	return s.store.snapshot()
}

// Item returns a copy of a single item.
func (s *Session) Item(id string) (items.Item, bool) {
	return s.store.get(id)
}

func (s *Session) CallStatus() CallStatus {
	return s.status.current()
}

// ExportAvailable reports whether the transcript can be exported, which is
// once the call ended or as soon as any item exists.
func (s *Session) ExportAvailable() bool {
	return s.status.current() == CallStatusEnded || s.store.len() > 0
}

// Generation identifies the current session. It changes on every session
// start.
func (s *Session) Generation() uint64 {
	return s.store.generation()
}

func (s *Session) SessionID() string {
	s.generationMu.Lock()
	defer s.generationMu.Unlock()
	return s.sessionID
}

// AwaitFallbacks blocks until all in-flight fallback transcriptions finished.
func (s *Session) AwaitFallbacks() {
	s.fallbacks.Wait()
}

// Close cancels in-flight fallback transcriptions and the pending end of
// call timer. Events handled after Close are ignored.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		if s.stopBaseHook != nil {
			close(s.stopBaseHook)
		}

		s.generationMu.Lock()
		s.cancelGeneration()
		s.generationMu.Unlock()

		s.detector.reset(s.store.generation())
	})
}

// startGeneration cancels work belonging to the previous session.
func (s *Session) startGeneration(sessionID string) {
	s.generationMu.Lock()
	defer s.generationMu.Unlock()

	s.cancelGeneration()
	s.generationCtx, s.cancelGeneration = context.WithCancel(s.baseContext)
	s.sessionID = sessionID
}

func (s *Session) generationContext() context.Context {
	s.generationMu.Lock()
	defer s.generationMu.Unlock()
	return s.generationCtx
}

func (s *Session) launchFallback(ctx context.Context, request fallbackRequest) {
	workerCtx := trace.ContextWithSpanContext(s.generationContext(), trace.SpanContextFromContext(ctx))
	run := panicSafeNamedWorker("fallback transcription", func(ctx context.Context) error {
		return s.runFallback(ctx, request)
	})

	s.fallbacks.Add(1)
	go func() {
		defer s.fallbacks.Done()
		if err := run(workerCtx); err != nil {
			logger.ErrorContext(workerCtx, "Fallback transcription worker stopped", "item_id", request.itemID, "error", err)
		}
	}()
}

func (s *Session) observedAt(event events.Event) time.Time {
	if timestamp := event.Timestamp(); !timestamp.IsZero() {
		return timestamp
	}
	return s.now()
}
