package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/koscakluka/ema-transcript/core/items"
)

type stubAnalyzer struct {
	report   string
	err      error
	received []items.Item
}

func (s *stubAnalyzer) Analyze(_ context.Context, messages []items.Item) (string, error) {
	s.received = messages
	return s.report, s.err
}

func textItem(kind items.Kind, role items.Role, text string) items.Item {
	return items.Item{Kind: kind, Role: role, Content: []items.ContentPart{items.NewTextPart(text)}}
}

func TestFormatTranscript(t *testing.T) {
	transcript := []items.Item{
		textItem(items.KindMessage, items.RoleAssistant, "Hello, can you tell me about yourself?"),
		textItem(items.KindMessage, items.RoleUser, "मैंने दो साल काम किया"),
		textItem(items.KindFunctionCall, items.RoleAssistant, `lookup({"id":1})`),
		textItem(items.KindFunctionCallOutput, items.RoleTool, "Function call response: ok"),
		textItem(items.KindMessage, items.RoleUser, "Yes, in sales."),
	}

	expected := "Assistant: Hello, can you tell me about yourself?\n\n" +
		"Caller: मैंने दो साल काम किया" + LanguageNote + "\n\n" +
		"Caller: Yes, in sales."
	if got := FormatTranscript(transcript); got != expected {
		t.Fatalf("expected %q, got %q", expected, got)
	}
	if !HasNonDefaultLanguage(transcript) {
		t.Fatalf("expected non default language to be detected")
	}
}

func TestLabel(t *testing.T) {
	testCases := map[items.Role]string{
		items.RoleUser:      "Caller",
		items.RoleAssistant: "Assistant",
		items.RoleTool:      "Tool",
		"":                  "Assistant",
	}
	for role, expected := range testCases {
		if got := Label(role); got != expected {
			t.Fatalf("expected Label(%q) to be %q, got %q", role, expected, got)
		}
	}
}

func TestRun(t *testing.T) {
	messages := []items.Item{textItem(items.KindMessage, items.RoleUser, "hello")}
	onlyCalls := []items.Item{textItem(items.KindFunctionCall, items.RoleAssistant, "f({})")}

	testCases := []struct {
		name       string
		analyzer   *stubAnalyzer
		transcript []items.Item
		expected   string
	}{
		{name: "report", analyzer: &stubAnalyzer{report: "GO"}, transcript: messages, expected: "GO"},
		{name: "no messages", analyzer: &stubAnalyzer{report: "unused"}, transcript: onlyCalls, expected: NoMessagesReport},
		{name: "empty transcript", analyzer: &stubAnalyzer{report: "unused"}, transcript: nil, expected: NoMessagesReport},
		{name: "analyzer failure", analyzer: &stubAnalyzer{err: errors.New("boom")}, transcript: messages, expected: FailureReport},
		{name: "blank report", analyzer: &stubAnalyzer{report: " "}, transcript: messages, expected: "No analysis available"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := Run(context.Background(), testCase.analyzer, testCase.transcript); got != testCase.expected {
				t.Fatalf("expected %q, got %q", testCase.expected, got)
			}
		})
	}
}

func TestRunPassesOnlyMessages(t *testing.T) {
	analyzer := &stubAnalyzer{report: "ok"}
	Run(context.Background(), analyzer, []items.Item{
		textItem(items.KindFunctionCall, items.RoleAssistant, "f({})"),
		textItem(items.KindMessage, items.RoleUser, "hello"),
	})

	if len(analyzer.received) != 1 || analyzer.received[0].Text() != "hello" {
		t.Fatalf("expected only the message to be analyzed, got %+v", analyzer.received)
	}
}

func TestRunWithoutAnalyzer(t *testing.T) {
	if got := Run(context.Background(), nil, []items.Item{textItem(items.KindMessage, items.RoleUser, "hi")}); got != FailureReport {
		t.Fatalf("expected failure report, got %q", got)
	}
}
