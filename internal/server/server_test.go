package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	transcript "github.com/koscakluka/ema-transcript/core"
	"github.com/koscakluka/ema-transcript/core/analysis"
	"github.com/koscakluka/ema-transcript/core/items"
	"github.com/koscakluka/ema-transcript/internal/archive"
)

var fixedNow = time.Date(2025, 1, 31, 14, 5, 9, 0, time.UTC)

type stubAnalyzer struct {
	report string
	err    error
}

func (a stubAnalyzer) Analyze(ctx context.Context, messages []items.Item) (string, error) {
	return a.report, a.err
}

type stubArchive struct {
	records map[int64]archive.Record
}

func (a stubArchive) List(ctx context.Context, limit int) ([]archive.Summary, error) {
	summaries := []archive.Summary{}
	for id, record := range a.records {
		summaries = append(summaries, archive.Summary{ID: id, SessionID: record.SessionID, ItemCount: len(record.Items)})
	}
	return summaries, nil
}

func (a stubArchive) Get(ctx context.Context, id int64) (archive.Record, error) {
	record, ok := a.records[id]
	if !ok {
		return archive.Record{}, archive.ErrNotFound
	}
	return record, nil
}

func newTestServer(t *testing.T, opts ...ServerOption) (*transcript.Session, *httptest.Server) {
	t.Helper()
	session := transcript.NewSession(transcript.WithClock(func() time.Time { return fixedNow }))
	t.Cleanup(session.Close)

	opts = append([]ServerOption{WithClock(func() time.Time { return fixedNow })}, opts...)
	server := httptest.NewServer(New(session, opts...).Handler())
	t.Cleanup(server.Close)
	return session, server
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return string(body)
}

func injectConversation(t *testing.T, url string) {
	t.Helper()
	for _, event := range []string{
		`{"type":"session.created","session":{"id":"sess_1"}}`,
		`{"type":"conversation.item.created","item":{"id":"item_1","type":"message","role":"assistant","content":[{"type":"text","text":"How can I help?"}]}}`,
		`{"type":"conversation.item.input_audio_transcription.completed","item_id":"item_2","transcript":"I need a plumber."}`,
	} {
		if resp := post(t, url+"/events", event); resp.StatusCode != http.StatusAccepted {
			t.Fatalf("expected 202 for %s, got %d", event, resp.StatusCode)
		}
	}
}

func TestExportsUnavailableBeforeAnyItem(t *testing.T) {
	_, server := newTestServer(t)

	for _, path := range []string{"/transcript.txt", "/transcript.pdf"} {
		if resp := get(t, server.URL+path); resp.StatusCode != http.StatusConflict {
			t.Fatalf("expected 409 for %s, got %d", path, resp.StatusCode)
		}
	}
	if resp := post(t, server.URL+"/analysis", ""); resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for analysis, got %d", resp.StatusCode)
	}
}

func TestStatusAndItems(t *testing.T) {
	_, server := newTestServer(t)
	injectConversation(t, server.URL)

	var status statusResponse
	if err := json.NewDecoder(get(t, server.URL+"/status").Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	if status.SessionID != "sess_1" || status.CallStatus != "active" || !status.ExportAvailable || status.Items != 2 {
		t.Fatalf("unexpected status %+v", status)
	}

	var snapshot []items.Item
	if err := json.NewDecoder(get(t, server.URL+"/items").Body).Decode(&snapshot); err != nil {
		t.Fatalf("failed to decode items: %v", err)
	}
	if len(snapshot) != 2 || snapshot[0].ID != "item_1" || snapshot[1].Text() != "I need a plumber." {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}

	if resp := get(t, server.URL+"/items/item_2"); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for a known item, got %d", resp.StatusCode)
	}
	if resp := get(t, server.URL+"/items/missing"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for a missing item, got %d", resp.StatusCode)
	}
}

func TestTextExport(t *testing.T) {
	_, server := newTestServer(t)
	injectConversation(t, server.URL)

	resp := get(t, server.URL+"/transcript.txt")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Disposition"); got != `attachment; filename="call-transcript-2025-01-31.txt"` {
		t.Fatalf("unexpected content disposition %q", got)
	}

	expected := "Assistant (14:05:09): How can I help?\n\nCaller (14:05:09): I need a plumber."
	if got := readBody(t, resp); got != expected {
		t.Fatalf("expected %q, got %q", expected, got)
	}
}

func TestPDFExport(t *testing.T) {
	_, server := newTestServer(t)
	injectConversation(t, server.URL)

	resp := get(t, server.URL+"/transcript.pdf")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("expected pdf content type, got %q", got)
	}
	if got := resp.Header.Get("Content-Disposition"); !strings.Contains(got, "call-transcript-2025-01-31.pdf") {
		t.Fatalf("unexpected content disposition %q", got)
	}
	if body := readBody(t, resp); !strings.HasPrefix(body, "%PDF-") {
		t.Fatalf("expected pdf body")
	}
}

func TestAnalysis(t *testing.T) {
	testCases := []struct {
		name     string
		analyzer analysis.Analyzer
		expected string
	}{
		{name: "report", analyzer: stubAnalyzer{report: "Summary\nAll good\n"}, expected: "Summary\nAll good\n"},
		{name: "failure", analyzer: stubAnalyzer{err: errors.New("boom")}, expected: analysis.FailureReport},
		{name: "no analyzer", expected: analysis.FailureReport},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			opts := []ServerOption{}
			if testCase.analyzer != nil {
				opts = append(opts, WithAnalyzer(testCase.analyzer))
			}
			_, server := newTestServer(t, opts...)
			injectConversation(t, server.URL)

			resp := post(t, server.URL+"/analysis", "")
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("expected 200, got %d", resp.StatusCode)
			}
			if got := resp.Header.Get("Content-Disposition"); !strings.Contains(got, "call-analysis-2025-01-31.txt") {
				t.Fatalf("unexpected content disposition %q", got)
			}
			if got := readBody(t, resp); got != testCase.expected {
				t.Fatalf("expected %q, got %q", testCase.expected, got)
			}
		})
	}
}

func TestInjectMalformedEvent(t *testing.T) {
	session, server := newTestServer(t)

	if resp := post(t, server.URL+"/events", `{"type":`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if resp := post(t, server.URL+"/events", `{"type":"response.created"}`); resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected unknown events to be accepted, got %d", resp.StatusCode)
	}
	if got := len(session.Snapshot()); got != 0 {
		t.Fatalf("expected no items, got %d", got)
	}
}

func TestExportAvailableAfterCallEnded(t *testing.T) {
	_, server := newTestServer(t)
	post(t, server.URL+"/events", `{"type":"call.ended"}`)

	resp := get(t, server.URL+"/transcript.txt")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 after the call ended, got %d", resp.StatusCode)
	}
	if got := readBody(t, resp); got != "" {
		t.Fatalf("expected empty transcript, got %q", got)
	}
}

func TestArchiveRoutes(t *testing.T) {
	_, withoutArchive := newTestServer(t)
	if resp := get(t, withoutArchive.URL+"/archive/"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected archive routes to be disabled, got %d", resp.StatusCode)
	}

	_, server := newTestServer(t, WithArchive(stubArchive{records: map[int64]archive.Record{
		7: {ID: 7, SessionID: "sess_7", Items: []items.Item{{ID: "item_1"}}},
	}}))

	var summaries []archive.Summary
	if err := json.NewDecoder(get(t, server.URL+"/archive/").Body).Decode(&summaries); err != nil {
		t.Fatalf("failed to decode summaries: %v", err)
	}
	if len(summaries) != 1 || summaries[0].SessionID != "sess_7" {
		t.Fatalf("unexpected summaries %+v", summaries)
	}

	testCases := map[string]int{
		"/archive/7":    http.StatusOK,
		"/archive/8":    http.StatusNotFound,
		"/archive/nope": http.StatusBadRequest,
	}
	for path, expected := range testCases {
		if resp := get(t, server.URL+path); resp.StatusCode != expected {
			t.Fatalf("expected %d for %s, got %d", expected, path, resp.StatusCode)
		}
	}
}
