// Package realtime delivers realtime conversational API events to a
// handler, either live over a websocket or replayed from a recording.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-transcript/core/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultURL = "wss://api.openai.com/v1/realtime?model=gpt-4o-realtime-preview"

var ErrMissingURL = errors.New("realtime url not set")

// Handler receives decoded events one at a time, in arrival order.
type Handler func(ctx context.Context, event events.Event)

// Client listens to a realtime event stream over a websocket.
type Client struct {
	url    string
	apiKey string
	header http.Header
	dialer *websocket.Dialer
	now    func() time.Time
}

type ClientOption func(*Client)

func WithURL(url string) ClientOption {
	return func(c *Client) {
		c.url = url
	}
}

// WithAPIKey sets the bearer token sent when dialing. OPENAI_API_KEY is used
// when unset.
func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) {
		c.apiKey = apiKey
	}
}

// WithHeader adds a header to the websocket handshake.
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.header.Add(key, value)
	}
}

func WithDialer(dialer *websocket.Dialer) ClientOption {
	return func(c *Client) {
		if dialer != nil {
			c.dialer = dialer
		}
	}
}

func NewClient(opts ...ClientOption) (*Client, error) {
	client := &Client{
		url:    defaultURL,
		header: http.Header{},
		dialer: websocket.DefaultDialer,
		now:    time.Now,
	}
	if apiKey, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
		client.apiKey = apiKey
	}
	for _, opt := range opts {
		opt(client)
	}

	if strings.TrimSpace(client.url) == "" {
		return nil, ErrMissingURL
	}
	return client, nil
}

// Listen dials the realtime endpoint and passes every decoded event to
// handler until the connection closes or ctx is done. Messages that fail to
// decode are logged and skipped. A websocket.disconnected event is always
// delivered once the connection was established and then ends.
func (c *Client) Listen(ctx context.Context, handler Handler) error {
	ctx, span := tracer.Start(ctx, "listen to realtime events")
	defer span.End()

	conn, err := c.connect(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer conn.Close()

	stopCancelHook := make(chan struct{})
	defer close(stopCancelHook)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		case <-stopCancelHook:
		}
	}()

	received, err := c.readEvents(ctx, conn, handler)
	span.SetAttributes(attribute.Int("events.received", received))
	handler(context.WithoutCancel(ctx), events.NewWebsocketDisconnected(events.WithTimestamp(c.now())))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

func (c *Client) connect(ctx context.Context) (*websocket.Conn, error) {
	header := c.header.Clone()
	if c.apiKey != "" {
		header.Set("Authorization", "Bearer "+c.apiKey)
	}

	conn, _, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		return nil, fmt.Errorf("failed to open realtime websocket: %w", err)
	}
	return conn, nil
}

func (c *Client) readEvents(ctx context.Context, conn *websocket.Conn, handler Handler) (int, error) {
	received := 0
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return received, nil
			}
			if ctx.Err() != nil {
				return received, nil
			}
			return received, fmt.Errorf("failed to read realtime websocket message: %w", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}

		event, err := events.Decode(msg, events.WithTimestamp(c.now()))
		if err != nil {
			logger.WarnContext(ctx, "Skipping undecodable realtime event", "error", err)
			continue
		}
		received++
		handler(ctx, event)
	}
}
