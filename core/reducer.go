package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-transcript/core/events"
	"github.com/koscakluka/ema-transcript/core/items"
	"github.com/koscakluka/ema-transcript/core/locale"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SpeechPlaceholder is shown for user speech that has not been transcribed
// yet.
const SpeechPlaceholder = "..."

const functionCallResponsePrefix = "Function call response: "

func (s *Session) reduce(ctx context.Context, event events.Event) {
	at := s.observedAt(event)

	switch e := event.(type) {
	case events.SessionCreated:
		s.reduceSessionCreated(ctx, e)
	case events.SpeechStarted:
		s.reduceSpeechStarted(ctx, e, at)
	case events.ItemCreated:
		s.reduceItemCreated(ctx, e, at)
	case events.TranscriptionCompleted:
		s.reduceTranscriptionCompleted(ctx, e, at)
	case events.ContentPartAdded:
		if e.OutputIndex != 0 || !e.Part.IsText() {
			return
		}
		s.appendFragment(ctx, e, e.ItemID, e.Part.Value(), at)
	case events.AudioTranscriptDelta:
		if e.OutputIndex != 0 || e.Delta == "" {
			return
		}
		s.appendFragment(ctx, e, e.ItemID, e.Delta, at)
	case events.OutputItemDone:
		s.reduceOutputItemDone(ctx, e, at)
	case events.CallEnded:
		s.status.end(EndReasonExplicit)
	case events.SessionDisconnected:
		s.status.end(EndReasonDisconnected)
	default:
		logger.DebugContext(ctx, "Ignoring unrecognized realtime event", "kind", event.Kind())
	}
}

func (s *Session) reduceSessionCreated(ctx context.Context, e events.SessionCreated) {
	generation := s.store.clear()
	s.startGeneration(e.SessionID)
	// The tracker must move to the new generation before the detector lets
	// go of the old timer, an expiring timer checks the tracker generation.
	s.status.start(generation)
	s.detector.reset(generation)

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("session.id", e.SessionID),
		attribute.Int64("session.generation", int64(generation)),
	)
	logger.InfoContext(ctx, "Realtime session started", "session_id", e.SessionID, "generation", generation)
	s.emit(sessionReset{sessionID: e.SessionID, generation: generation})
}

func (s *Session) reduceSpeechStarted(ctx context.Context, e events.SpeechStarted, at time.Time) {
	if e.ItemID == "" {
		s.skipMalformed(ctx, e, "missing item id")
		return
	}

	item, created := s.store.insertIfAbsent(e.ItemID, at, func(item *items.Item) {
		item.Kind = items.KindMessage
		item.Role = items.RoleUser
		item.Content = []items.ContentPart{items.NewTextPart(SpeechPlaceholder)}
		item.Status = items.StatusRunning
	})
	if created {
		s.emitItemUpdated(item)
	}
}

func (s *Session) reduceItemCreated(ctx context.Context, e events.ItemCreated, at time.Time) {
	source := e.Item
	if source.ID == "" {
		source.ID = uuid.NewString()
		logger.DebugContext(ctx, "Item created without id, assigned one", "item_id", source.ID)
	}

	switch items.Kind(source.Type) {
	case items.KindMessage:
		content := authoritativeContent(source.Content)
		item := s.store.upsert(source.ID, at, func(item *items.Item) {
			item.Kind = items.KindMessage
			if source.Role != "" {
				item.Role = items.Role(source.Role)
			}
			if len(content) > 0 {
				item.Content = content
				annotateLanguage(item)
			}
			item.Status = items.StatusCompleted
		})
		s.emitItemUpdated(item)

		if item.Role == items.RoleAssistant {
			s.evaluateTermination(ctx, item.Text())
		}

	case items.KindFunctionCallOutput:
		item := s.store.upsert(source.ID, at, func(item *items.Item) {
			item.Kind = items.KindFunctionCallOutput
			item.Role = items.RoleTool
			item.CallID = source.CallID
			item.Output = source.Output
			item.Content = []items.ContentPart{items.NewTextPart(functionCallResponsePrefix + source.Output)}
			item.Status = items.StatusCompleted
		})
		s.emitItemUpdated(item)

		for _, call := range s.store.completeCalls(source.CallID) {
			s.emitItemUpdated(call)
		}

	default:
		// Function calls are shown once their arguments are complete, see
		// reduceOutputItemDone.
		logger.DebugContext(ctx, "Ignoring created item", "item_id", source.ID, "type", source.Type)
	}
}

func (s *Session) reduceTranscriptionCompleted(ctx context.Context, e events.TranscriptionCompleted, at time.Time) {
	if e.ItemID == "" {
		s.skipMalformed(ctx, e, "missing item id")
		return
	}

	classification := locale.Classify(e.Transcript)
	item := s.store.upsert(e.ItemID, at, func(item *items.Item) {
		if item.Kind == "" {
			item.Kind = items.KindMessage
		}
		if item.Role == "" {
			item.Role = items.RoleUser
		}
		item.Content = []items.ContentPart{items.NewTextPart(e.Transcript)}
		item.Status = items.StatusCompleted
		item.RemoveAnnotation(items.AnnotationFallbackTranscribed)
		item.RemoveAnnotation(items.AnnotationFallbackFailed)
		annotateLanguage(item)
	})
	s.emitItemUpdated(item)

	if !classification.ShouldFallback(e.AudioURL != "") {
		return
	}
	if !s.fallback.enabled() {
		logger.DebugContext(ctx, "Non-default language transcript without fallback transcriber", "item_id", e.ItemID)
		return
	}

	s.launchFallback(ctx, fallbackRequest{
		generation: s.store.generation(),
		itemID:     e.ItemID,
		transcript: e.Transcript,
		audioURL:   e.AudioURL,
	})
}

// appendFragment appends a streamed fragment, creating a running assistant
// message if the item was not referenced before. Empty fragments only
// reserve the item's position.
func (s *Session) appendFragment(ctx context.Context, event events.Event, itemID, fragment string, at time.Time) {
	if itemID == "" {
		s.skipMalformed(ctx, event, "missing item id")
		return
	}

	initAssistantMessage := func(item *items.Item) {
		item.Kind = items.KindMessage
		item.Role = items.RoleAssistant
		item.Status = items.StatusRunning
	}

	if fragment == "" {
		if item, created := s.store.insertIfAbsent(itemID, at, initAssistantMessage); created {
			s.emitItemUpdated(item)
		}
		return
	}

	item := s.store.appendContent(itemID, at, items.NewTextPart(fragment), initAssistantMessage)
	s.emitItemUpdated(item)
}

func (s *Session) reduceOutputItemDone(ctx context.Context, e events.OutputItemDone, at time.Time) {
	source := e.Item
	if items.Kind(source.Type) != items.KindFunctionCall {
		return
	}
	if source.ID == "" {
		source.ID = uuid.NewString()
		logger.DebugContext(ctx, "Function call without id, assigned one", "item_id", source.ID)
	}

	display, err := formatFunctionCall(source.Name, source.Arguments)
	if err != nil {
		trace.SpanFromContext(ctx).RecordError(err)
		logger.WarnContext(ctx, "Showing raw function call arguments", "item_id", source.ID, "error", err)
	}
	_, outputSeen := s.store.findByCallID(source.CallID, items.KindFunctionCallOutput)

	item := s.store.upsert(source.ID, at, func(item *items.Item) {
		item.Kind = items.KindFunctionCall
		item.Role = items.RoleAssistant
		item.CallID = source.CallID
		item.Name = source.Name
		item.Arguments = source.Arguments
		item.Content = []items.ContentPart{items.NewTextPart(display)}
		if outputSeen || item.IsCompleted() {
			item.Status = items.StatusCompleted
		} else {
			item.Status = items.StatusRunning
		}
		if err != nil {
			item.Annotate(items.AnnotationMalformedArguments)
		} else {
			item.RemoveAnnotation(items.AnnotationMalformedArguments)
		}
	})
	s.emitItemUpdated(item)
}

func (s *Session) evaluateTermination(ctx context.Context, text string) {
	generation := s.store.generation()
	scheduled := s.detector.evaluate(generation, text, s.endAfterClosingPhrase)
	if scheduled {
		logger.InfoContext(ctx, "Closing phrase detected, scheduling end of call",
			"generation", generation, "grace_period", s.gracePeriod)
	}
}

// endAfterClosingPhrase runs when the grace period after a closing phrase
// expired. It is a no-op once a newer session started.
func (s *Session) endAfterClosingPhrase(generation uint64) {
	if s.store.generation() != generation {
		return
	}
	s.status.endForGeneration(generation, EndReasonClosingPhrase)
}

func (s *Session) skipMalformed(ctx context.Context, event events.Event, reason string) {
	err := fmt.Errorf("%w: %s: %s", events.ErrMalformedEvent, event.Kind(), reason)
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	logger.WarnContext(ctx, "Skipping malformed realtime event", "kind", event.Kind(), "error", err)
}

// authoritativeContent converts the textual parts of a created item. Parts
// without text, such as audio not yet transcribed, are dropped.
func authoritativeContent(parts []events.ContentPart) []items.ContentPart {
	var content []items.ContentPart
	for _, part := range parts {
		if value := part.Value(); value != "" {
			content = append(content, items.NewTextPart(value))
		}
	}
	return content
}

// formatFunctionCall renders name(arguments) with compacted JSON arguments.
// Malformed arguments are shown verbatim.
func formatFunctionCall(name, arguments string) (string, error) {
	compacted := bytes.Buffer{}
	if err := json.Compact(&compacted, []byte(arguments)); err != nil {
		return fmt.Sprintf("%s(%s)", name, arguments), fmt.Errorf("malformed arguments for %s: %w", name, err)
	}
	return fmt.Sprintf("%s(%s)", name, compacted.String()), nil
}

// annotateLanguage replaces the language annotations with ones derived from
// the current text.
func annotateLanguage(item *items.Item) {
	item.RemoveAnnotation(items.AnnotationNonDefaultLanguage)
	item.RemoveAnnotation(items.AnnotationTargetLocale)
	item.Annotate(locale.Classify(item.Text()).Annotations()...)
}
