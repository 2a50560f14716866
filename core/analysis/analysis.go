// Package analysis turns a finished transcript into a natural-language
// report through an external analyzer.
package analysis

import (
	"context"
	"errors"
	"strings"

	"github.com/koscakluka/ema-transcript/core/items"
	"github.com/koscakluka/ema-transcript/core/locale"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	// NoMessagesReport is returned when the transcript holds no messages.
	NoMessagesReport = "No message content found in the transcript to analyze."
	// FailureReport is returned when the analyzer failed.
	FailureReport = "Error analyzing call transcript. Please try again later."

	// LanguageNote marks messages that are likely not in the default
	// language.
	LanguageNote = " [Note: This message may be in a non-English language]"
)

var ErrNoMessages = errors.New("no message content to analyze")

// Analyzer produces a report for the message items of a transcript.
type Analyzer interface {
	Analyze(ctx context.Context, messages []items.Item) (string, error)
}

// Messages keeps only message items, function calls and their outputs are
// not part of the analyzed conversation.
func Messages(transcript []items.Item) []items.Item {
	messages := make([]items.Item, 0, len(transcript))
	for _, item := range transcript {
		if item.Kind == items.KindMessage {
			messages = append(messages, item)
		}
	}
	return messages
}

// Label is the speaker label used in formatted transcripts.
func Label(role items.Role) string {
	switch role {
	case items.RoleUser:
		return "Caller"
	case items.RoleTool:
		return "Tool"
	default:
		return "Assistant"
	}
}

// FormatTranscript renders messages as "Label: text" blocks separated by a
// blank line.
func FormatTranscript(messages []items.Item) string {
	blocks := make([]string, 0, len(messages))
	for _, message := range Messages(messages) {
		text := message.Text()
		line := Label(message.Role) + ": " + text
		if text != "" && locale.NeedsLanguageNote(text) {
			line += LanguageNote
		}
		blocks = append(blocks, line)
	}
	return strings.Join(blocks, "\n\n")
}

// HasNonDefaultLanguage reports whether any message got a language note.
func HasNonDefaultLanguage(messages []items.Item) bool {
	for _, message := range Messages(messages) {
		if text := message.Text(); text != "" && locale.NeedsLanguageNote(text) {
			return true
		}
	}
	return false
}

// Run analyzes the transcript and never fails: an empty transcript or an
// analyzer error yield fixed fallback reports.
func Run(ctx context.Context, analyzer Analyzer, transcript []items.Item) string {
	ctx, span := tracer.Start(ctx, "analyze transcript")
	defer span.End()

	messages := Messages(transcript)
	span.SetAttributes(
		attribute.Int("transcript.items", len(transcript)),
		attribute.Int("transcript.messages", len(messages)),
	)
	if len(messages) == 0 {
		return NoMessagesReport
	}
	if analyzer == nil {
		logger.WarnContext(ctx, "No analyzer configured")
		return FailureReport
	}

	report, err := analyzer.Analyze(ctx, messages)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.ErrorContext(ctx, "Failed to analyze transcript", "error", err)
		if errors.Is(err, ErrNoMessages) {
			return NoMessagesReport
		}
		return FailureReport
	}
	if strings.TrimSpace(report) == "" {
		return "No analysis available"
	}
	return report
}
