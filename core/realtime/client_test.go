package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-transcript/core/events"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) handle(_ context.Context, event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) kinds() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]events.Kind, 0, len(r.events))
	for _, event := range r.events {
		kinds = append(kinds, event.Kind())
	}
	return kinds
}

func newRealtimeServer(t *testing.T, messages []string, holdOpen bool) (string, <-chan string) {
	t.Helper()
	auth := make(chan string, 1)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		for _, msg := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				t.Errorf("failed to write event: %v", err)
				return
			}
		}
		conn.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02})

		if holdOpen {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http"), auth
}

func TestListen(t *testing.T) {
	url, auth := newRealtimeServer(t, []string{
		`{"type":"session.created","session":{"id":"sess_1"}}`,
		`{not json`,
		`{"type":"conversation.item.created","item":{"id":"item_1","type":"message","role":"assistant","content":[{"type":"text","text":"Hello"}]}}`,
		`{"type":"rate_limits.updated"}`,
	}, false)

	client, err := NewClient(WithURL(url), WithAPIKey("secret"))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	recorder := &eventRecorder{}
	if err := client.Listen(context.Background(), recorder.handle); err != nil {
		t.Fatalf("expected listen to end cleanly, got %v", err)
	}

	if got := <-auth; got != "Bearer secret" {
		t.Fatalf("expected bearer authorization, got %q", got)
	}

	expected := []events.Kind{
		events.KindSessionCreated,
		events.KindItemCreated,
		"rate_limits.updated",
		events.KindWebsocketDisconnected,
	}
	got := recorder.kinds()
	if len(got) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Fatalf("expected %v, got %v", expected, got)
		}
	}

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	for _, event := range recorder.events {
		if event.Timestamp().IsZero() {
			t.Fatalf("expected %s to be stamped on arrival", event.Kind())
		}
	}
	if created, ok := recorder.events[0].(events.SessionCreated); !ok || created.SessionID != "sess_1" {
		t.Fatalf("expected session sess_1, got %+v", recorder.events[0])
	}
}

func TestListenStopsOnContextCancel(t *testing.T) {
	url, _ := newRealtimeServer(t, []string{`{"type":"session.created","session":{"id":"sess_1"}}`}, true)
	client, err := NewClient(WithURL(url), WithAPIKey("secret"))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	recorder := &eventRecorder{}
	done := make(chan error, 1)
	go func() { done <- client.Listen(ctx, recorder.handle) }()

	deadline := time.After(2 * time.Second)
	for len(recorder.kinds()) == 0 {
		select {
		case <-deadline:
			t.Fatalf("expected the first event before the deadline")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil error after cancel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected listen to stop after cancel")
	}

	kinds := recorder.kinds()
	if last := kinds[len(kinds)-1]; last != events.KindWebsocketDisconnected {
		t.Fatalf("expected disconnect to be delivered last, got %v", kinds)
	}
}

func TestListenDialFailure(t *testing.T) {
	client, err := NewClient(WithURL("ws://127.0.0.1:1/realtime"))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	recorder := &eventRecorder{}
	if err := client.Listen(context.Background(), recorder.handle); err == nil {
		t.Fatalf("expected dial error")
	}
	if got := recorder.kinds(); len(got) != 0 {
		t.Fatalf("expected no events without a connection, got %v", got)
	}
}

func TestNewClientRequiresURL(t *testing.T) {
	if _, err := NewClient(WithURL(" ")); !errors.Is(err, ErrMissingURL) {
		t.Fatalf("expected ErrMissingURL, got %v", err)
	}
}
